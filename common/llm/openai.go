package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"

	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/common/metrics"
)

// openaiClient speaks the OpenAI chat-completions wire format. Ollama, Groq
// and OpenRouter all expose it, so they share this transport.
type openaiClient struct {
	client    openai.Client
	provider  Provider
	model     string
	timeout   time.Duration
	maxTokens int
}

func newOpenAIClient(cfg Config) (Client, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}

	return &openaiClient{
		client:    openai.NewClient(opts...),
		provider:  cfg.Provider,
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (c *openaiClient) Generate(ctx context.Context, messages []Message, system string) (string, error) {
	sc := logger.StartSpan(ctx, "llm.generate")
	defer sc.End()
	sc.SetAttributes(
		attribute.String("llm.provider", string(c.provider)),
		attribute.String("llm.model", c.model),
		attribute.Int("llm.messages", len(messages)),
	)

	callCtx, cancel := context.WithTimeout(sc.Context(), c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:     c.model,
		Messages:  c.convertMessages(messages, system),
		MaxTokens: openai.Int(int64(c.maxTokens)),
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(callCtx, params)
	metrics.ObserveProviderRequest(string(c.provider), time.Since(start), err)
	if err != nil {
		te := newTransportError(ctx, callCtx, c.provider, err)
		sc.RecordError(te)
		return "", te
	}

	slog.DebugContext(ctx, "llm chat completed",
		"provider", c.provider,
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		te := &TransportError{Provider: c.provider, Err: errors.New("no choices in response")}
		sc.RecordError(te)
		return "", te
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *openaiClient) Provider() Provider {
	return c.provider
}

func (c *openaiClient) Model() string {
	return c.model
}

// convertMessages prepends the system instruction and maps roles.
func (c *openaiClient) convertMessages(msgs []Message, system string) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if system != "" {
		result = append(result, openai.SystemMessage(system))
	}

	for _, msg := range msgs {
		switch msg.Role {
		case RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}

	return result
}
