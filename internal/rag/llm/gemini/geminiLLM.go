package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/rag/llm"
	"github.com/akolanti/docqa/pkg/logger_i"
	"google.golang.org/genai"
)

var logger = logger_i.NewLogger("llm_gemini")

type generateAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	HTTPClient  *http.Client
}

type llmClient struct {
	api         generateAPI
	modelName   string
	temperature float32
}

func GetGeminiClient(ctx context.Context, opts Options) (llm.Provider, error) {
	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		logger.Error("Error creating Gemini client", "error", err)
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	logger.Info("Gemini client created", "model", opts.Model, "temperature", opts.Temperature)
	return &llmClient{api: c.Models, modelName: opts.Model, temperature: opts.Temperature}, nil
}

func (c *llmClient) ModelName() string { return c.modelName }

func (c *llmClient) Generate(ctx context.Context, prompt string) (string, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	contentConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}

	result, err := c.api.GenerateContent(ctx, c.modelName, genai.Text(prompt), contentConfig)
	if err != nil {
		log.Error("Gemini generation failed", "error", err)
		return "", err
	}
	answer := strings.TrimSpace(result.Text())
	if answer == "" {
		reason := ""
		if len(result.Candidates) > 0 {
			reason = string(result.Candidates[0].FinishReason)
		}
		log.Warn("Gemini returned no text", "finishReason", reason)
		return "", fmt.Errorf("%w (finish reason %q)", ragErrors.ErrEmptyAnswer, reason)
	}
	return answer, nil
}
