package dbschema

import (
	"time"

	"github.com/infinyte/mcp-server/internal/domain/configuration"
	"github.com/infinyte/mcp-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Configuration{})
}

// Configuration is the database schema for key/value settings and secrets.
type Configuration struct {
	ID          uint       `gorm:"column:id;primaryKey;autoIncrement"`
	Key         string     `gorm:"column:key;size:255;not null;uniqueIndex"`
	Value       string     `gorm:"column:value;type:text;not null"`
	IsEncrypted bool       `gorm:"column:is_encrypted;default:false"`
	Category    string     `gorm:"column:category;size:50;not null;index"`
	Description string     `gorm:"column:description;type:text"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null"`
	LastUsed    *time.Time `gorm:"column:last_used"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
}

// TableName returns the table name for GORM
func (Configuration) TableName() string {
	return "mcp_configurations"
}

// ToDomain converts a database row to a domain configuration.
func (c *Configuration) ToDomain() *configuration.Configuration {
	return &configuration.Configuration{
		Key:         c.Key,
		Value:       c.Value,
		IsEncrypted: c.IsEncrypted,
		Category:    configuration.Category(c.Category),
		Description: c.Description,
		Metadata: configuration.Metadata{
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
			LastUsed:  c.LastUsed,
			ExpiresAt: c.ExpiresAt,
		},
	}
}
