package openaiLLM

import (
	"context"
	"net/http"
	"strings"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/rag/llm"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var logger = logger_i.NewLogger("llm_openai")

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	HTTPClient  *http.Client
}

type llmClient struct {
	api         openai.Client
	modelName   string
	temperature float64
}

func NewOpenAIClient(opts Options) llm.Provider {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// generation is a single call, retries belong to the caller
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	logger.Info("OpenAI chat client created", "model", opts.Model)
	return &llmClient{
		api:         openai.NewClient(reqOpts...),
		modelName:   opts.Model,
		temperature: float64(opts.Temperature),
	}
}

func (c *llmClient) ModelName() string { return c.modelName }

func (c *llmClient) Generate(ctx context.Context, prompt string) (string, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	res, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Model:       c.modelName,
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		log.Error("OpenAI generation failed", "error", err)
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", ragErrors.ErrEmptyAnswer
	}
	answer := strings.TrimSpace(res.Choices[0].Message.Content)
	if answer == "" {
		log.Warn("OpenAI returned no text", "finishReason", res.Choices[0].FinishReason)
		return "", ragErrors.ErrEmptyAnswer
	}
	return answer, nil
}
