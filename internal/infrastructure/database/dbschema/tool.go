package dbschema

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(ToolDefinition{})
}

// ToolDefinition is the database schema for registered tools.
type ToolDefinition struct {
	ID                 uint           `gorm:"column:id;primaryKey;autoIncrement"`
	Name               string         `gorm:"column:name;size:255;not null;uniqueIndex"`
	Description        string         `gorm:"column:description;type:text;not null"`
	Version            string         `gorm:"column:version;size:50;not null;default:'1.0.0'"`
	Category           string         `gorm:"column:category;size:50;not null;index"`
	Tags               pq.StringArray `gorm:"column:tags;type:text[]"`
	Parameters         datatypes.JSON `gorm:"column:parameters;type:jsonb"`
	Implementation     string         `gorm:"column:implementation;size:50;not null;default:'internal'"`
	ImplementationPath string         `gorm:"column:implementation_path;size:500"`
	Enabled            bool           `gorm:"column:enabled;default:true;index"`
	Provider           string         `gorm:"column:provider;size:100"`
	RequiresAuth       bool           `gorm:"column:requires_auth;default:false"`
	RateLimit          int            `gorm:"column:rate_limit;default:0"`
	CreatedBy          string         `gorm:"column:created_by;size:255"`
	CreatedAt          time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;not null"`
	LastUsed           *time.Time     `gorm:"column:last_used"`
	UsageCount         int64          `gorm:"column:usage_count;default:0"`
}

// TableName returns the table name for GORM
func (ToolDefinition) TableName() string {
	return "mcp_tool_definitions"
}

// ToDomain converts a database row to a domain definition.
func (t *ToolDefinition) ToDomain() (*tool.Definition, error) {
	var params tool.Parameters
	if len(t.Parameters) > 0 {
		if err := json.Unmarshal(t.Parameters, &params); err != nil {
			return nil, err
		}
	}

	return &tool.Definition{
		Name:               t.Name,
		Description:        t.Description,
		Version:            t.Version,
		Category:           tool.Category(t.Category),
		Tags:               []string(t.Tags),
		Parameters:         params,
		Implementation:     tool.Implementation(t.Implementation),
		ImplementationPath: t.ImplementationPath,
		Enabled:            t.Enabled,
		Provider:           t.Provider,
		Security: tool.Security{
			RequiresAuth: t.RequiresAuth,
			RateLimit:    t.RateLimit,
		},
		Metadata: tool.Metadata{
			CreatedBy:  t.CreatedBy,
			CreatedAt:  t.CreatedAt,
			UpdatedAt:  t.UpdatedAt,
			LastUsed:   t.LastUsed,
			UsageCount: t.UsageCount,
		},
	}, nil
}

// NewSchemaToolDefinition converts a domain definition to a database row.
func NewSchemaToolDefinition(def *tool.Definition) (*ToolDefinition, error) {
	params, err := json.Marshal(def.Parameters)
	if err != nil {
		return nil, err
	}

	return &ToolDefinition{
		Name:               def.Name,
		Description:        def.Description,
		Version:            def.Version,
		Category:           string(def.Category),
		Tags:               pq.StringArray(def.Tags),
		Parameters:         datatypes.JSON(params),
		Implementation:     string(def.Implementation),
		ImplementationPath: def.ImplementationPath,
		Enabled:            def.Enabled,
		Provider:           def.Provider,
		RequiresAuth:       def.Security.RequiresAuth,
		RateLimit:          def.Security.RateLimit,
		CreatedBy:          def.Metadata.CreatedBy,
		CreatedAt:          def.Metadata.CreatedAt,
		UpdatedAt:          def.Metadata.UpdatedAt,
		LastUsed:           def.Metadata.LastUsed,
		UsageCount:         def.Metadata.UsageCount,
	}, nil
}
