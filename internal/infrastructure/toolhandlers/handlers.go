// Package toolhandlers adapts the web and image clients to the dispatch
// registry, including input coercion from loosely typed model-call payloads.
package toolhandlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/infinyte/mcp-server/internal/domain/dispatch"
	"github.com/infinyte/mcp-server/internal/infrastructure/imagegen"
	"github.com/infinyte/mcp-server/internal/infrastructure/websearch"
)

// RegisterAll installs the built-in tool handlers.
func RegisterAll(registry *dispatch.Registry, web *websearch.Client, images *imagegen.Client) {
	registry.Register(dispatch.HandlerFunc{ToolName: "web_search", Fn: webSearchHandler(web)})
	registry.Register(dispatch.HandlerFunc{ToolName: "web_content", Fn: webContentHandler(web)})
	registry.Register(dispatch.HandlerFunc{ToolName: "web_batch", Fn: webBatchHandler(web)})
	registry.Register(dispatch.HandlerFunc{ToolName: "generate_image", Fn: generateImageHandler(images)})
	registry.Register(dispatch.HandlerFunc{ToolName: "edit_image", Fn: editImageHandler(images)})
	registry.Register(dispatch.HandlerFunc{ToolName: "create_image_variation", Fn: imageVariationHandler(images)})
}

func webSearchHandler(web *websearch.Client) func(context.Context, map[string]any) (any, error) {
	return func(ctx context.Context, input map[string]any) (any, error) {
		query, err := requiredString(input, "query")
		if err != nil {
			return nil, err
		}
		return web.Search(ctx, query, intValue(input, "limit", 0))
	}
}

func webContentHandler(web *websearch.Client) func(context.Context, map[string]any) (any, error) {
	return func(ctx context.Context, input map[string]any) (any, error) {
		pageURL, err := requiredString(input, "url")
		if err != nil {
			return nil, err
		}
		return web.FetchContent(ctx, pageURL, boolValue(input, "useCache", true))
	}
}

func webBatchHandler(web *websearch.Client) func(context.Context, map[string]any) (any, error) {
	return func(ctx context.Context, input map[string]any) (any, error) {
		urls := stringSlice(input["urls"])
		if len(urls) == 0 {
			return nil, fmt.Errorf("urls is required")
		}
		return web.FetchBatch(ctx, urls, boolValue(input, "useCache", true))
	}
}

func generateImageHandler(images *imagegen.Client) func(context.Context, map[string]any) (any, error) {
	return func(ctx context.Context, input map[string]any) (any, error) {
		prompt, err := requiredString(input, "prompt")
		if err != nil {
			return nil, err
		}
		var opts imagegen.Options
		if raw, ok := input["options"]; ok {
			if err := decodeInto(raw, &opts); err != nil {
				return nil, fmt.Errorf("invalid options: %w", err)
			}
		}
		return images.Generate(ctx, prompt, stringValue(input, "provider"), opts)
	}
}

func editImageHandler(images *imagegen.Client) func(context.Context, map[string]any) (any, error) {
	return func(ctx context.Context, input map[string]any) (any, error) {
		imagePath, err := requiredString(input, "imagePath")
		if err != nil {
			return nil, err
		}
		prompt, err := requiredString(input, "prompt")
		if err != nil {
			return nil, err
		}
		return images.Edit(ctx, imagePath, prompt, stringValue(input, "maskPath"))
	}
}

func imageVariationHandler(images *imagegen.Client) func(context.Context, map[string]any) (any, error) {
	return func(ctx context.Context, input map[string]any) (any, error) {
		imagePath, err := requiredString(input, "imagePath")
		if err != nil {
			return nil, err
		}
		return images.Variation(ctx, imagePath)
	}
}

func requiredString(input map[string]any, key string) (string, error) {
	value, ok := input[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

func stringValue(input map[string]any, key string) string {
	value, _ := input[key].(string)
	return value
}

// intValue tolerates the float64 that JSON decoding produces for numbers.
func intValue(input map[string]any, key string, fallback int) int {
	switch v := input[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return fallback
}

func boolValue(input map[string]any, key string, fallback bool) bool {
	if v, ok := input[key].(bool); ok {
		return v
	}
	return fallback
}

func stringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func decodeInto(raw any, target any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
