package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"

	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/common/metrics"
)

type anthropicClient struct {
	client    anthropic.Client
	model     string
	timeout   time.Duration
	maxTokens int
}

func newAnthropicClient(cfg Config) (Client, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}

	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5-20250514"
	}

	return &anthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     model,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (c *anthropicClient) Generate(ctx context.Context, messages []Message, system string) (string, error) {
	sc := logger.StartSpan(ctx, "llm.generate")
	defer sc.End()
	sc.SetAttributes(
		attribute.String("llm.provider", string(ProviderAnthropic)),
		attribute.String("llm.model", c.model),
		attribute.Int("llm.messages", len(messages)),
	)

	callCtx, cancel := context.WithTimeout(sc.Context(), c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages:  c.convertMessages(messages),
	}

	// Anthropic takes the system instruction separately, not in the messages array.
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}

	start := time.Now()
	resp, err := c.client.Messages.New(callCtx, params)
	metrics.ObserveProviderRequest(string(ProviderAnthropic), time.Since(start), err)
	if err != nil {
		te := newTransportError(ctx, callCtx, ProviderAnthropic, err)
		sc.RecordError(te)
		return "", te
	}

	slog.DebugContext(ctx, "llm chat completed",
		"provider", ProviderAnthropic,
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason)

	var text strings.Builder
	found := false
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
			found = true
		}
	}
	if !found {
		te := &TransportError{Provider: ProviderAnthropic, Err: errors.New("no text content in response")}
		sc.RecordError(te)
		return "", te
	}

	return text.String(), nil
}

func (c *anthropicClient) Provider() Provider {
	return ProviderAnthropic
}

func (c *anthropicClient) Model() string {
	return c.model
}

func (c *anthropicClient) convertMessages(msgs []Message) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(msgs))

	for _, msg := range msgs {
		role := anthropic.MessageParamRoleUser
		if msg.Role == RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		messages = append(messages, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}

	return messages
}
