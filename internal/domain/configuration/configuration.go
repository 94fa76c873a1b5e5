package configuration

import "time"

// Category classifies a configuration entry.
type Category string

const (
	CategoryAPIKey      Category = "api_key"
	CategoryConnection  Category = "connection"
	CategoryServer      Category = "server"
	CategoryFeatureFlag Category = "feature_flag"
)

// SystemEncryptionKey is the reserved key under which the installation
// encryption key is persisted. Its row is always stored unencrypted.
const SystemEncryptionKey = "SYSTEM_ENCRYPTION_KEY"

// Metadata records bookkeeping for a configuration entry.
type Metadata struct {
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	LastUsed  *time.Time `json:"lastUsed,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Configuration is a key/value secret or setting. Value holds ciphertext in
// "<ivHex>:<ciphertextHex>" form when IsEncrypted is set.
type Configuration struct {
	Key         string   `json:"key"`
	Value       string   `json:"value"`
	IsEncrypted bool     `json:"isEncrypted"`
	Category    Category `json:"category"`
	Description string   `json:"description,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

// Clone returns a copy safe to hand out from caches.
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}
	out := *c
	if c.Metadata.LastUsed != nil {
		lastUsed := *c.Metadata.LastUsed
		out.Metadata.LastUsed = &lastUsed
	}
	if c.Metadata.ExpiresAt != nil {
		expiresAt := *c.Metadata.ExpiresAt
		out.Metadata.ExpiresAt = &expiresAt
	}
	return &out
}
