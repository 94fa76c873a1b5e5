// Package catalog maintains the registry of invocable tools: the built-in
// definitions seeded at startup plus whatever admins register, with filtered,
// paginated, multi-format listing.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/infinyte/mcp-server/internal/domain/store"
	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/logger"
)

// Service answers catalog queries against the record store.
type Service struct {
	store store.Store
}

// NewService builds the catalog service.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Seed inserts the built-in definitions, skipping any name already present so
// admin edits to a built-in survive restarts.
func (s *Service) Seed(ctx context.Context) error {
	log := logger.GetLogger()
	var seeded int
	for _, def := range BuiltinTools() {
		existing, err := s.store.GetToolByName(ctx, def.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if _, err := s.store.SaveToolDefinition(ctx, def); err != nil {
			return err
		}
		seeded++
	}
	if seeded > 0 {
		log.Info().Int("count", seeded).Msg("Seeded built-in tools")
	}
	return nil
}

// ListOptions narrows and paginates a catalog listing. Zero values mean
// "no constraint"; Enabled distinguishes unset from false.
type ListOptions struct {
	Category string
	Enabled  *bool
	Search   string
	Provider string
	Limit    int
	Offset   int
}

// ListMetadata summarizes a filtered listing before pagination.
type ListMetadata struct {
	Categories []string `json:"categories" yaml:"categories"`
	Providers  []string `json:"providers" yaml:"providers"`
	TotalCount int      `json:"totalCount" yaml:"totalCount"`
	Offset     int      `json:"offset" yaml:"offset"`
	Limit      int      `json:"limit" yaml:"limit"`
}

// ListResult is a page of the catalog plus its metadata.
type ListResult struct {
	Tools    []*tool.Definition `json:"tools" yaml:"tools"`
	Metadata ListMetadata       `json:"metadata" yaml:"metadata"`
}

// List applies all filters, collects distinct categories and providers over
// the filtered set, then paginates in name order.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	all, err := s.store.GetAllTools(ctx, tool.Filter{})
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(opts.Search))
	filtered := make([]*tool.Definition, 0, len(all))
	for _, def := range all {
		if opts.Category != "" && string(def.Category) != opts.Category {
			continue
		}
		if opts.Enabled != nil && def.Enabled != *opts.Enabled {
			continue
		}
		if search != "" && !matchesSearch(def, search) {
			continue
		}
		if opts.Provider != "" && providerOf(def) != opts.Provider {
			continue
		}
		filtered = append(filtered, def)
	}

	categorySet := make(map[string]struct{})
	providerSet := make(map[string]struct{})
	for _, def := range filtered {
		categorySet[string(def.Category)] = struct{}{}
		if p := providerOf(def); p != "" {
			providerSet[p] = struct{}{}
		}
	}

	total := len(filtered)
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	page := filtered[offset:]
	if opts.Limit > 0 && opts.Limit < len(page) {
		page = page[:opts.Limit]
	}

	return &ListResult{
		Tools: page,
		Metadata: ListMetadata{
			Categories: sortedKeys(categorySet),
			Providers:  sortedKeys(providerSet),
			TotalCount: total,
			Offset:     offset,
			Limit:      opts.Limit,
		},
	}, nil
}

func matchesSearch(def *tool.Definition, search string) bool {
	if strings.Contains(strings.ToLower(def.Name), search) {
		return true
	}
	if strings.Contains(strings.ToLower(def.Description), search) {
		return true
	}
	for _, tag := range def.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	return false
}

func providerOf(def *tool.Definition) string {
	if def.Provider != "" {
		return def.Provider
	}
	return def.Metadata.Provider
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Usage is the callable endpoint derived from a tool's name prefix.
type Usage struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Method   string `json:"method" yaml:"method"`
}

// UsageFor maps a tool name onto its direct invocation route. Tools outside
// the naming conventions have no usage block.
func UsageFor(name string) *Usage {
	switch {
	case strings.HasPrefix(name, "web_"):
		return &Usage{Endpoint: "/tools/web/" + strings.TrimPrefix(name, "web_"), Method: "POST"}
	case strings.HasPrefix(name, "generate_"):
		return &Usage{Endpoint: "/tools/image/generate", Method: "POST"}
	case strings.HasPrefix(name, "edit_"):
		return &Usage{Endpoint: "/tools/image/edit", Method: "POST"}
	case strings.HasPrefix(name, "create_image_"):
		return &Usage{Endpoint: "/tools/image/variation", Method: "POST"}
	default:
		return nil
	}
}
