package tool

import (
	"fmt"
	"time"
)

// Category classifies a tool definition.
type Category string

const (
	CategoryWeb     Category = "web"
	CategoryImage   Category = "image"
	CategoryFile    Category = "file"
	CategoryData    Category = "data"
	CategoryUtility Category = "utility"
	CategoryCustom  Category = "custom"
)

// Implementation indicates how a tool is provided.
type Implementation string

const (
	ImplementationInternal Implementation = "internal"
	ImplementationExternal Implementation = "external"
	ImplementationPlugin   Implementation = "plugin"
)

// Property describes a single parameter in a tool's JSON-Schema-like
// parameter object. Nested object and array schemas reference further
// Property values.
type Property struct {
	Type        string               `json:"type" yaml:"type"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any                  `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []string             `json:"enum,omitempty" yaml:"enum,omitempty"`
	Format      string               `json:"format,omitempty" yaml:"format,omitempty"`
	Minimum     *float64             `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64             `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	MinLength   *int                 `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength   *int                 `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Items       *Property            `json:"items,omitempty" yaml:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Parameters is the schema describing a tool's accepted inputs.
type Parameters struct {
	Properties           map[string]*Property `json:"properties" yaml:"properties"`
	Required             []string             `json:"required,omitempty" yaml:"required,omitempty"`
	AdditionalProperties bool                 `json:"additionalProperties" yaml:"additionalProperties"`
}

// JSONSchema renders the parameters as a plain JSON-Schema object suitable
// for provider tool advertisements.
func (p Parameters) JSONSchema() map[string]any {
	properties := make(map[string]any, len(p.Properties))
	for name, prop := range p.Properties {
		properties[name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(p.Required) > 0 {
		schema["required"] = p.Required
	}
	if !p.AdditionalProperties {
		schema["additionalProperties"] = false
	}
	return schema
}

// Security captures per-tool access constraints.
type Security struct {
	RequiresAuth bool `json:"requiresAuth" yaml:"requiresAuth"`
	// RateLimit is requests per minute; 0 means unlimited.
	RateLimit int `json:"rateLimit" yaml:"rateLimit"`
}

// Metadata records bookkeeping for a tool definition.
type Metadata struct {
	CreatedBy  string     `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt" yaml:"updatedAt"`
	LastUsed   *time.Time `json:"lastUsed,omitempty" yaml:"lastUsed,omitempty"`
	UsageCount int64      `json:"usageCount" yaml:"usageCount"`
	Provider   string     `json:"provider,omitempty" yaml:"provider,omitempty"`
}

// Definition identifies an invocable capability. Name is the globally unique
// stable identifier.
type Definition struct {
	Name               string         `json:"name" yaml:"name"`
	Description        string         `json:"description" yaml:"description"`
	Version            string         `json:"version" yaml:"version"`
	Category           Category       `json:"category" yaml:"category"`
	Tags               []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Parameters         Parameters     `json:"parameters" yaml:"parameters"`
	Implementation     Implementation `json:"implementation" yaml:"implementation"`
	ImplementationPath string         `json:"implementationPath,omitempty" yaml:"implementationPath,omitempty"`
	Enabled            bool           `json:"enabled" yaml:"enabled"`
	Provider           string         `json:"provider,omitempty" yaml:"provider,omitempty"`
	Security           Security       `json:"security" yaml:"security"`
	Metadata           Metadata       `json:"metadata" yaml:"metadata"`
}

// DefaultVersion is applied when a definition omits its version.
const DefaultVersion = "1.0.0"

// Validate checks the structural invariants of a definition.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool definition requires a name")
	}
	for _, required := range d.Parameters.Required {
		if _, ok := d.Parameters.Properties[required]; !ok {
			return fmt.Errorf("tool %q: required parameter %q is not declared in properties", d.Name, required)
		}
	}
	return nil
}

// Normalize fills defaulted fields in place.
func (d *Definition) Normalize(now time.Time) {
	if d.Version == "" {
		d.Version = DefaultVersion
	}
	if d.Category == "" {
		d.Category = CategoryCustom
	}
	if d.Implementation == "" {
		d.Implementation = ImplementationInternal
	}
	if d.Metadata.CreatedAt.IsZero() {
		d.Metadata.CreatedAt = now
	}
	d.Metadata.UpdatedAt = now
}

// RecordUsage bumps the usage counters for one invocation.
func (d *Definition) RecordUsage(now time.Time) {
	d.Metadata.UsageCount++
	d.Metadata.LastUsed = &now
}

// Clone returns a deep copy so cache entries can be handed out without
// aliasing the cached value.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	out := *d
	out.Tags = append([]string(nil), d.Tags...)
	out.Parameters.Required = append([]string(nil), d.Parameters.Required...)
	if d.Parameters.Properties != nil {
		props := make(map[string]*Property, len(d.Parameters.Properties))
		for name, prop := range d.Parameters.Properties {
			props[name] = prop.clone()
		}
		out.Parameters.Properties = props
	}
	if d.Metadata.LastUsed != nil {
		lastUsed := *d.Metadata.LastUsed
		out.Metadata.LastUsed = &lastUsed
	}
	return &out
}

func (p *Property) clone() *Property {
	if p == nil {
		return nil
	}
	out := *p
	out.Enum = append([]string(nil), p.Enum...)
	out.Items = p.Items.clone()
	if p.Properties != nil {
		nested := make(map[string]*Property, len(p.Properties))
		for name, prop := range p.Properties {
			nested[name] = prop.clone()
		}
		out.Properties = nested
	}
	return &out
}

// Filter narrows tool queries.
type Filter struct {
	Category    Category
	EnabledOnly bool
}

// Matches reports whether the definition passes the filter.
func (f Filter) Matches(d *Definition) bool {
	if f.Category != "" && d.Category != f.Category {
		return false
	}
	if f.EnabledOnly && !d.Enabled {
		return false
	}
	return true
}
