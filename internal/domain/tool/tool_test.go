package tool_test

import (
	"testing"
	"time"

	"github.com/infinyte/mcp-server/internal/domain/tool"
)

func sampleDefinition() *tool.Definition {
	return &tool.Definition{
		Name:        "web_search",
		Description: "Search the web",
		Category:    tool.CategoryWeb,
		Tags:        []string{"web", "search"},
		Enabled:     true,
		Parameters: tool.Parameters{
			Properties: map[string]*tool.Property{
				"query": {Type: "string", Description: "search terms"},
				"limit": {Type: "integer", Default: 5},
			},
			Required: []string{"query"},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*tool.Definition)
		wantErr bool
	}{
		{name: "valid", mutate: func(*tool.Definition) {}},
		{name: "missing name", mutate: func(d *tool.Definition) { d.Name = "" }, wantErr: true},
		{
			name: "undeclared required parameter",
			mutate: func(d *tool.Definition) {
				d.Parameters.Required = append(d.Parameters.Required, "cursor")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := sampleDefinition()
			tt.mutate(def)
			err := def.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	def := &tool.Definition{Name: "custom_thing"}
	def.Normalize(now)

	if def.Version != tool.DefaultVersion {
		t.Fatalf("Version = %q", def.Version)
	}
	if def.Category != tool.CategoryCustom {
		t.Fatalf("Category = %q", def.Category)
	}
	if def.Implementation != tool.ImplementationInternal {
		t.Fatalf("Implementation = %q", def.Implementation)
	}
	if !def.Metadata.CreatedAt.Equal(now) || !def.Metadata.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps = %v / %v", def.Metadata.CreatedAt, def.Metadata.UpdatedAt)
	}
}

func TestNormalizeKeepsExistingValues(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	def := sampleDefinition()
	def.Version = "2.1.0"
	def.Metadata.CreatedAt = created
	def.Normalize(now)

	if def.Version != "2.1.0" {
		t.Fatalf("Version = %q", def.Version)
	}
	if def.Category != tool.CategoryWeb {
		t.Fatalf("Category = %q", def.Category)
	}
	if !def.Metadata.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %v", def.Metadata.CreatedAt)
	}
}

func TestRecordUsage(t *testing.T) {
	now := time.Now().UTC()
	def := sampleDefinition()
	def.RecordUsage(now)
	def.RecordUsage(now)

	if def.Metadata.UsageCount != 2 {
		t.Fatalf("UsageCount = %d", def.Metadata.UsageCount)
	}
	if def.Metadata.LastUsed == nil || !def.Metadata.LastUsed.Equal(now) {
		t.Fatalf("LastUsed = %v", def.Metadata.LastUsed)
	}
}

func TestCloneIsDeep(t *testing.T) {
	lastUsed := time.Now().UTC()
	def := sampleDefinition()
	def.Metadata.LastUsed = &lastUsed

	clone := def.Clone()
	clone.Tags[0] = "mutated"
	clone.Parameters.Required[0] = "mutated"
	clone.Parameters.Properties["query"].Description = "mutated"
	*clone.Metadata.LastUsed = clone.Metadata.LastUsed.Add(time.Hour)

	if def.Tags[0] != "web" {
		t.Fatalf("Tags aliased: %v", def.Tags)
	}
	if def.Parameters.Required[0] != "query" {
		t.Fatalf("Required aliased: %v", def.Parameters.Required)
	}
	if def.Parameters.Properties["query"].Description != "search terms" {
		t.Fatalf("Properties aliased")
	}
	if !def.Metadata.LastUsed.Equal(lastUsed) {
		t.Fatalf("LastUsed aliased: %v", def.Metadata.LastUsed)
	}
}

func TestCloneNil(t *testing.T) {
	var def *tool.Definition
	if def.Clone() != nil {
		t.Fatalf("Clone of nil should be nil")
	}
}

func TestJSONSchema(t *testing.T) {
	def := sampleDefinition()
	schema := def.Parameters.JSONSchema()

	if schema["type"] != "object" {
		t.Fatalf("type = %v", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok || len(props) != 2 {
		t.Fatalf("properties = %v", schema["properties"])
	}
	required, ok := schema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "query" {
		t.Fatalf("required = %v", schema["required"])
	}
	if schema["additionalProperties"] != false {
		t.Fatalf("additionalProperties = %v", schema["additionalProperties"])
	}

	open := tool.Parameters{AdditionalProperties: true}
	if _, present := open.JSONSchema()["additionalProperties"]; present {
		t.Fatalf("additionalProperties should be omitted when allowed")
	}
	if _, present := open.JSONSchema()["required"]; present {
		t.Fatalf("required should be omitted when empty")
	}
}

func TestFilterMatches(t *testing.T) {
	enabled := sampleDefinition()
	disabled := sampleDefinition()
	disabled.Enabled = false
	image := sampleDefinition()
	image.Category = tool.CategoryImage

	tests := []struct {
		name   string
		filter tool.Filter
		def    *tool.Definition
		want   bool
	}{
		{name: "empty filter matches", filter: tool.Filter{}, def: disabled, want: true},
		{name: "category match", filter: tool.Filter{Category: tool.CategoryWeb}, def: enabled, want: true},
		{name: "category mismatch", filter: tool.Filter{Category: tool.CategoryWeb}, def: image, want: false},
		{name: "enabled only excludes disabled", filter: tool.Filter{EnabledOnly: true}, def: disabled, want: false},
		{name: "enabled only keeps enabled", filter: tool.Filter{EnabledOnly: true}, def: enabled, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.def); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
