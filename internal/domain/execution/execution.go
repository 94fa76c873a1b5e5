package execution

import (
	"time"
)

// Provider identifies the upstream that triggered a tool execution.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderDirect    Provider = "direct"
	ProviderOther     Provider = "other"
)

// Status is the lifecycle state of an execution record. Transitions are
// pending -> success or pending -> failure, exactly once.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Metadata carries request-scoped context for an execution record.
type Metadata struct {
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	ModelName string    `json:"modelName,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is one attempted tool or model-dispatch invocation.
type Record struct {
	ID            string         `json:"id"`
	ToolName      string         `json:"toolName"`
	Provider      Provider       `json:"provider"`
	SessionID     string         `json:"sessionId,omitempty"`
	Inputs        map[string]any `json:"inputs,omitempty"`
	Outputs       any            `json:"outputs,omitempty"`
	Status        Status         `json:"status"`
	ErrorMessage  string         `json:"errorMessage,omitempty"`
	ExecutionTime int64          `json:"executionTime"` // milliseconds
	Metadata      Metadata       `json:"metadata"`
}

// Handle completes a pending execution record exactly once. A handle only
// exists after the pending record's write, which is what guarantees the
// pending-before-terminal ordering per record.
type Handle interface {
	// Complete transitions the record to success (err == nil) or failure.
	// Calls after the first are ignored.
	Complete(result any, err error) *Record
}

// NopHandle is returned when execution logging itself failed; callers never
// crash on logging failure.
type NopHandle struct{}

func (NopHandle) Complete(any, error) *Record { return nil }

// Period is a trailing aggregation window anchored at "now".
type Period string

const (
	PeriodHour  Period = "hour"
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// WindowStart returns the inclusive lower bound of the period ending at now.
// Unknown periods default to a day.
func (p Period) WindowStart(now time.Time) time.Time {
	switch p {
	case PeriodHour:
		return now.Add(-time.Hour)
	case PeriodDay:
		return now.Add(-24 * time.Hour)
	case PeriodWeek:
		return now.Add(-7 * 24 * time.Hour)
	case PeriodMonth:
		return now.Add(-30 * 24 * time.Hour)
	default:
		return now.Add(-24 * time.Hour)
	}
}

// StatsQuery selects execution records for aggregation.
type StatsQuery struct {
	Period   Period
	ToolName string
	Limit    int
}

// ToolCount is a per-tool invocation total.
type ToolCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// ToolTiming is a per-tool average execution time in milliseconds.
type ToolTiming struct {
	Name    string  `json:"name"`
	AvgTime float64 `json:"avgTime"`
}

// Stats aggregates execution telemetry over a trailing window.
type Stats struct {
	TotalCount     int64        `json:"totalCount"`
	SuccessCount   int64        `json:"successCount"`
	FailureCount   int64        `json:"failureCount"`
	SuccessRate    float64      `json:"successRate"`
	TopTools       []ToolCount  `json:"topTools"`
	ExecutionTimes []ToolTiming `json:"executionTimes"`
}
