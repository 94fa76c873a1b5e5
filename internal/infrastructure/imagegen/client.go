// Package imagegen implements the image tool backends on top of the OpenAI
// Images API and the Stability REST API.
package imagegen

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	openai "github.com/sashabaranov/go-openai"

	"github.com/infinyte/mcp-server/internal/infrastructure/logger"
	"github.com/infinyte/mcp-server/internal/infrastructure/metrics"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

const (
	stabilityEndpoint      = "https://api.stability.ai/v1/generation/stable-diffusion-xl-1024-v1-0/text-to-image"
	defaultSize            = "1024x1024"
	defaultImageCount      = 1
	maxImageCount          = 4
	defaultStabilitySteps  = 30
	defaultStabilityCfg    = 7.0
	stabilityImageDim  int = 1024
)

// ImagesClient is the subset of the go-openai client used here.
type ImagesClient interface {
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
	CreateEditImage(ctx context.Context, request openai.ImageEditRequest) (openai.ImageResponse, error)
	CreateVariImage(ctx context.Context, request openai.ImageVariRequest) (openai.ImageResponse, error)
}

// Options are the provider-specific generation knobs.
type Options struct {
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
	N       int    `json:"n,omitempty"`
}

// GeneratedImage is one output image. Exactly one of URL and B64JSON is set
// depending on the backend.
type GeneratedImage struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64Json,omitempty"`
	RevisedPrompt string `json:"revisedPrompt,omitempty"`
}

// Result is the common output of the image tools.
type Result struct {
	Success  bool             `json:"success"`
	Provider string           `json:"provider"`
	Prompt   string           `json:"prompt,omitempty"`
	Images   []GeneratedImage `json:"images"`
}

// Client performs image generation, editing and variation.
type Client struct {
	images          ImagesClient
	stability       *resty.Client
	stabilityAPIKey string
}

// NewClient wires the OpenAI and Stability backends. Either key may be empty;
// calls against an unconfigured backend fail with a validation error.
func NewClient(images ImagesClient, stabilityAPIKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		images: images,
		stability: resty.New().
			SetHeader("User-Agent", "MCP-Server/1.0").
			SetTimeout(timeout).
			SetRetryCount(0),
		stabilityAPIKey: stabilityAPIKey,
	}
}

// NewClientFromAPIKeys constructs the client with the default go-openai HTTP
// client.
func NewClientFromAPIKeys(openaiAPIKey, stabilityAPIKey string, timeout time.Duration) *Client {
	var images ImagesClient
	if openaiAPIKey != "" {
		images = openai.NewClient(openaiAPIKey)
	}
	return NewClient(images, stabilityAPIKey, timeout)
}

// Generate renders images from a text prompt via the selected backend.
func (c *Client) Generate(ctx context.Context, prompt, providerName string, opts Options) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "prompt is required", nil)
	}
	switch strings.ToLower(strings.TrimSpace(providerName)) {
	case "", "openai":
		return c.generateViaOpenAI(ctx, prompt, opts)
	case "stability":
		return c.generateViaStability(ctx, prompt, opts)
	default:
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("unsupported image provider: %s", providerName), nil)
	}
}

func (c *Client) generateViaOpenAI(ctx context.Context, prompt string, opts Options) (*Result, error) {
	if c.images == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "openai image backend is not configured", nil)
	}

	n := opts.N
	if n <= 0 {
		n = defaultImageCount
	}
	if n > maxImageCount {
		n = maxImageCount
	}
	size := opts.Size
	if size == "" {
		size = defaultSize
	}

	request := openai.ImageRequest{
		Prompt:  prompt,
		Model:   openai.CreateImageModelDallE3,
		N:       n,
		Size:    size,
		Quality: opts.Quality,
		Style:   opts.Style,
	}

	response, err := c.images.CreateImage(ctx, request)
	if err != nil {
		metrics.RecordProviderError("openai", "image_generate")
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "openai image generation failed", err)
	}
	return openAIResult("openai", prompt, response), nil
}

type stabilityResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		Seed         int64  `json:"seed"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
}

func (c *Client) generateViaStability(ctx context.Context, prompt string, opts Options) (*Result, error) {
	if strings.TrimSpace(c.stabilityAPIKey) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "stability image backend is not configured", nil)
	}

	n := opts.N
	if n <= 0 {
		n = defaultImageCount
	}
	if n > maxImageCount {
		n = maxImageCount
	}
	width, height := parseSize(opts.Size)

	var result stabilityResponse
	resp, err := c.stability.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.stabilityAPIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"text_prompts": []map[string]any{{"text": prompt}},
			"cfg_scale":    defaultStabilityCfg,
			"width":        width,
			"height":       height,
			"samples":      n,
			"steps":        defaultStabilitySteps,
		}).
		SetResult(&result).
		Post(stabilityEndpoint)
	if err != nil {
		metrics.RecordProviderError("stability", "image_generate")
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "stability image generation failed", err)
	}
	if resp.IsError() {
		metrics.RecordProviderError("stability", "image_generate")
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("stability API error (status %d): %s", resp.StatusCode(), resp.String()), nil)
	}

	images := make([]GeneratedImage, 0, len(result.Artifacts))
	for _, artifact := range result.Artifacts {
		images = append(images, GeneratedImage{B64JSON: artifact.Base64})
	}
	log := logger.GetLogger()
	log.Info().Int("count", len(images)).Msg("Stability image generation completed")
	return &Result{Success: true, Provider: "stability", Prompt: prompt, Images: images}, nil
}

// Edit reworks an existing image according to a prompt, optionally restricted
// by a mask. OpenAI only.
func (c *Client) Edit(ctx context.Context, imagePath, prompt, maskPath string) (*Result, error) {
	if c.images == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "openai image backend is not configured", nil)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "prompt is required", nil)
	}

	image, err := os.Open(imagePath)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("cannot open image %s", imagePath), err)
	}
	defer image.Close()

	request := openai.ImageEditRequest{
		Image:  image,
		Prompt: prompt,
		N:      defaultImageCount,
		Size:   defaultSize,
	}
	if maskPath != "" {
		mask, err := os.Open(maskPath)
		if err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation,
				fmt.Sprintf("cannot open mask %s", maskPath), err)
		}
		defer mask.Close()
		request.Mask = mask
	}

	response, err := c.images.CreateEditImage(ctx, request)
	if err != nil {
		metrics.RecordProviderError("openai", "image_edit")
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "openai image edit failed", err)
	}
	return openAIResult("openai", prompt, response), nil
}

// Variation produces a variant of an existing image. OpenAI only.
func (c *Client) Variation(ctx context.Context, imagePath string) (*Result, error) {
	if c.images == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "openai image backend is not configured", nil)
	}

	image, err := os.Open(imagePath)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("cannot open image %s", imagePath), err)
	}
	defer image.Close()

	response, err := c.images.CreateVariImage(ctx, openai.ImageVariRequest{
		Image: image,
		N:     defaultImageCount,
		Size:  defaultSize,
	})
	if err != nil {
		metrics.RecordProviderError("openai", "image_variation")
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "openai image variation failed", err)
	}
	return openAIResult("openai", "", response), nil
}

func openAIResult(providerName, prompt string, response openai.ImageResponse) *Result {
	images := make([]GeneratedImage, 0, len(response.Data))
	for _, item := range response.Data {
		images = append(images, GeneratedImage{
			URL:           item.URL,
			B64JSON:       item.B64JSON,
			RevisedPrompt: item.RevisedPrompt,
		})
	}
	return &Result{Success: true, Provider: providerName, Prompt: prompt, Images: images}
}

func parseSize(size string) (int, int) {
	parts := strings.SplitN(strings.TrimSpace(size), "x", 2)
	if len(parts) == 2 {
		width, werr := strconv.Atoi(parts[0])
		height, herr := strconv.Atoi(parts[1])
		if werr == nil && herr == nil && width > 0 && height > 0 {
			return width, height
		}
	}
	return stabilityImageDim, stabilityImageDim
}
