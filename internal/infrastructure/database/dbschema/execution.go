package dbschema

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/infinyte/mcp-server/internal/domain/execution"
	"github.com/infinyte/mcp-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(ToolExecution{})
}

// ToolExecution is the database schema for execution telemetry. Rows are
// write-mostly: inserted pending, updated exactly once on completion.
type ToolExecution struct {
	ID            string         `gorm:"column:id;size:64;primaryKey"`
	ToolName      string         `gorm:"column:tool_name;size:255;not null;index"`
	Provider      string         `gorm:"column:provider;size:50;not null"`
	SessionID     string         `gorm:"column:session_id;size:128;index"`
	Inputs        datatypes.JSON `gorm:"column:inputs;type:jsonb"`
	Outputs       datatypes.JSON `gorm:"column:outputs;type:jsonb"`
	Status        string         `gorm:"column:status;size:20;not null;index"`
	ErrorMessage  string         `gorm:"column:error_message;type:text"`
	ExecutionTime int64          `gorm:"column:execution_time;default:0"`
	IPAddress     string         `gorm:"column:ip_address;size:64"`
	UserAgent     string         `gorm:"column:user_agent;size:512"`
	UserID        string         `gorm:"column:user_id;size:128"`
	ModelName     string         `gorm:"column:model_name;size:128"`
	Timestamp     time.Time      `gorm:"column:timestamp;not null;index"`
}

// TableName returns the table name for GORM
func (ToolExecution) TableName() string {
	return "mcp_tool_executions"
}

// ToDomain converts a database row to a domain record.
func (e *ToolExecution) ToDomain() *execution.Record {
	var inputs map[string]any
	if len(e.Inputs) > 0 {
		_ = json.Unmarshal(e.Inputs, &inputs)
	}
	var outputs any
	if len(e.Outputs) > 0 {
		_ = json.Unmarshal(e.Outputs, &outputs)
	}

	return &execution.Record{
		ID:            e.ID,
		ToolName:      e.ToolName,
		Provider:      execution.Provider(e.Provider),
		SessionID:     e.SessionID,
		Inputs:        inputs,
		Outputs:       outputs,
		Status:        execution.Status(e.Status),
		ErrorMessage:  e.ErrorMessage,
		ExecutionTime: e.ExecutionTime,
		Metadata: execution.Metadata{
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			UserID:    e.UserID,
			ModelName: e.ModelName,
			Timestamp: e.Timestamp,
		},
	}
}

// NewSchemaToolExecution converts a domain record to a database row.
func NewSchemaToolExecution(rec *execution.Record) (*ToolExecution, error) {
	var inputs datatypes.JSON
	if rec.Inputs != nil {
		data, err := json.Marshal(rec.Inputs)
		if err != nil {
			return nil, err
		}
		inputs = datatypes.JSON(data)
	}
	var outputs datatypes.JSON
	if rec.Outputs != nil {
		data, err := json.Marshal(rec.Outputs)
		if err != nil {
			return nil, err
		}
		outputs = datatypes.JSON(data)
	}

	return &ToolExecution{
		ID:            rec.ID,
		ToolName:      rec.ToolName,
		Provider:      string(rec.Provider),
		SessionID:     rec.SessionID,
		Inputs:        inputs,
		Outputs:       outputs,
		Status:        string(rec.Status),
		ErrorMessage:  rec.ErrorMessage,
		ExecutionTime: rec.ExecutionTime,
		IPAddress:     rec.Metadata.IPAddress,
		UserAgent:     rec.Metadata.UserAgent,
		UserID:        rec.Metadata.UserID,
		ModelName:     rec.Metadata.ModelName,
		Timestamp:     rec.Metadata.Timestamp,
	}, nil
}
