package openaiadapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1/"
	DefaultPromptModel       = "openai/gpt-4.1"
)

const systemPrompt = `You are a professional product marketing expert specializing in video script creation.
Your task is to create a detailed, creative prompt for generating a 3D turntable product video.
Consider the product's features, benefits, and visual aspects.
Focus on creating a prompt that will highlight the product's best visual elements.
The result should be a paragraph that describes how to showcase the product in a 3D rotating view.`

const userPromptTemplate = `Product: %s

Description: %s

Please create a detailed prompt for a 3D turntable video of this product.
Include specific details about:
1. The product's appearance and key visual features
2. The environment/background that would best showcase it
3. Lighting suggestions
4. Camera angles and movements for the turntable effect
5. Any special effects that would enhance the presentation

Create a cohesive, detailed paragraph that can be used as a prompt for AI video generation.`

type PromptGeneratorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// SiteURL and AppTitle are sent as OpenRouter attribution headers.
	SiteURL    string
	AppTitle   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// PromptGenerator asks an OpenAI-compatible chat endpoint (OpenRouter by
// default) for a turntable video prompt.
type PromptGenerator struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

func NewPromptGenerator(cfg PromptGeneratorConfig, logger *slog.Logger) *PromptGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultPromptModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(ensureTrailingSlash(baseURL)),
		option.WithMaxRetries(0),
	}
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.AppTitle != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.AppTitle))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &PromptGenerator{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}
}

func (g *PromptGenerator) GeneratePrompt(ctx context.Context, title string, description string) (ports.GeneratedPrompt, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf(userPromptTemplate, title, description)),
		},
	})
	if err != nil {
		return ports.GeneratedPrompt{}, classifyError("generate prompt", err)
	}
	if len(resp.Choices) == 0 {
		return ports.GeneratedPrompt{}, fmt.Errorf("%w: completion has no choices", domainerrors.ErrMalformedResponse)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return ports.GeneratedPrompt{}, fmt.Errorf("%w: completion content is empty", domainerrors.ErrMalformedResponse)
	}

	modelID := g.model
	if resp.Model != "" {
		modelID = resp.Model
	}
	g.logger.Debug("prompt completion received",
		"event", "openrouter_prompt_completed",
		"module", "media-generation/video-pipeline-service",
		"layer", "adapter",
		"model_id", modelID,
		"prompt_chars", len(text),
	)
	return ports.GeneratedPrompt{Text: text, ModelID: modelID}, nil
}

func ensureTrailingSlash(raw string) string {
	if strings.HasSuffix(raw, "/") {
		return raw
	}
	return raw + "/"
}
