package catalog

import (
	"github.com/infinyte/mcp-server/internal/domain/tool"
)

// BuiltinTools returns the static catalog seeded at startup. Definitions are
// built fresh on each call so callers can mutate their copies.
func BuiltinTools() []*tool.Definition {
	return []*tool.Definition{
		{
			Name:        "web_search",
			Description: "Search the web for current information on a topic",
			Version:     tool.DefaultVersion,
			Category:    tool.CategoryWeb,
			Tags:        []string{"web", "search"},
			Parameters: tool.Parameters{
				Properties: map[string]*tool.Property{
					"query": {
						Type:        "string",
						Description: "The search query",
						MinLength:   ptrInt(1),
					},
					"limit": {
						Type:        "integer",
						Description: "Maximum number of results to return",
						Default:     5,
						Minimum:     ptrFloat(1),
						Maximum:     ptrFloat(20),
					},
				},
				Required: []string{"query"},
			},
			Implementation: tool.ImplementationInternal,
			Enabled:        true,
			Metadata:       tool.Metadata{CreatedBy: "system"},
		},
		{
			Name:        "web_content",
			Description: "Fetch and extract the readable content of a webpage",
			Version:     tool.DefaultVersion,
			Category:    tool.CategoryWeb,
			Tags:        []string{"web", "content", "scraping"},
			Parameters: tool.Parameters{
				Properties: map[string]*tool.Property{
					"url": {
						Type:        "string",
						Description: "The URL of the page to fetch",
						Format:      "uri",
					},
					"useCache": {
						Type:        "boolean",
						Description: "Serve a cached copy when one is fresh",
						Default:     true,
					},
				},
				Required: []string{"url"},
			},
			Implementation: tool.ImplementationInternal,
			Enabled:        true,
			Metadata:       tool.Metadata{CreatedBy: "system"},
		},
		{
			Name:        "web_batch",
			Description: "Fetch content from multiple URLs in one call",
			Version:     tool.DefaultVersion,
			Category:    tool.CategoryWeb,
			Tags:        []string{"web", "content", "batch"},
			Parameters: tool.Parameters{
				Properties: map[string]*tool.Property{
					"urls": {
						Type:        "array",
						Description: "The URLs to fetch",
						Items: &tool.Property{
							Type:   "string",
							Format: "uri",
						},
					},
					"useCache": {
						Type:        "boolean",
						Description: "Serve cached copies when fresh",
						Default:     true,
					},
				},
				Required: []string{"urls"},
			},
			Implementation: tool.ImplementationInternal,
			Enabled:        true,
			Metadata:       tool.Metadata{CreatedBy: "system"},
		},
		{
			Name:        "generate_image",
			Description: "Generate an image from a text prompt",
			Version:     tool.DefaultVersion,
			Category:    tool.CategoryImage,
			Tags:        []string{"image", "generation"},
			Parameters: tool.Parameters{
				Properties: map[string]*tool.Property{
					"prompt": {
						Type:        "string",
						Description: "Text description of the desired image",
						MinLength:   ptrInt(1),
					},
					"provider": {
						Type:        "string",
						Description: "Image backend to use",
						Enum:        []string{"openai", "stability"},
						Default:     "openai",
					},
					"options": {
						Type:        "object",
						Description: "Provider-specific generation options",
						Properties: map[string]*tool.Property{
							"size": {
								Type:        "string",
								Description: "Output dimensions",
								Enum:        []string{"256x256", "512x512", "1024x1024", "1792x1024", "1024x1792"},
								Default:     "1024x1024",
							},
							"quality": {
								Type:        "string",
								Description: "Rendering quality",
								Enum:        []string{"standard", "hd"},
								Default:     "standard",
							},
							"style": {
								Type:        "string",
								Description: "Rendering style",
								Enum:        []string{"vivid", "natural"},
							},
							"n": {
								Type:        "integer",
								Description: "Number of images to generate",
								Default:     1,
								Minimum:     ptrFloat(1),
								Maximum:     ptrFloat(4),
							},
						},
					},
				},
				Required: []string{"prompt"},
			},
			Implementation: tool.ImplementationInternal,
			Enabled:        true,
			Metadata:       tool.Metadata{CreatedBy: "system"},
		},
		{
			Name:        "edit_image",
			Description: "Edit an existing image according to a text prompt",
			Version:     tool.DefaultVersion,
			Category:    tool.CategoryImage,
			Tags:        []string{"image", "editing"},
			Parameters: tool.Parameters{
				Properties: map[string]*tool.Property{
					"imagePath": {
						Type:        "string",
						Description: "Path to the source image",
					},
					"prompt": {
						Type:        "string",
						Description: "Description of the desired edit",
						MinLength:   ptrInt(1),
					},
					"maskPath": {
						Type:        "string",
						Description: "Optional mask restricting the edited region",
					},
				},
				Required: []string{"imagePath", "prompt"},
			},
			Implementation: tool.ImplementationInternal,
			Enabled:        true,
			Metadata:       tool.Metadata{CreatedBy: "system"},
		},
		{
			Name:        "create_image_variation",
			Description: "Create a variation of an existing image",
			Version:     tool.DefaultVersion,
			Category:    tool.CategoryImage,
			Tags:        []string{"image", "variation"},
			Parameters: tool.Parameters{
				Properties: map[string]*tool.Property{
					"imagePath": {
						Type:        "string",
						Description: "Path to the source image",
					},
				},
				Required: []string{"imagePath"},
			},
			Implementation: tool.ImplementationInternal,
			Enabled:        true,
			Metadata:       tool.Metadata{CreatedBy: "system"},
		},
	}
}

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }
