package llm

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Provider identifies a text-generation backend. The set is closed; adding a
// backend means adding a constant here and a case in New.
type Provider string

const (
	ProviderOllama     Provider = "ollama"
	ProviderGroq       Provider = "groq"
	ProviderOpenRouter Provider = "openrouter"
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
)

// Providers lists every supported backend in a stable order.
func Providers() []Provider {
	return []Provider{ProviderOllama, ProviderGroq, ProviderOpenRouter, ProviderOpenAI, ProviderAnthropic}
}

// ParseProvider resolves a provider identifier, failing for anything outside the closed set.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers() {
		if p == known {
			return p, nil
		}
	}
	return "", &ConfigError{Field: "provider", Reason: fmt.Sprintf("unsupported LLM provider: %q", s)}
}

// MaxTimeout is the hard upper bound on a single Generate call.
const MaxTimeout = 120 * time.Second

const defaultMaxTokens = 4096

// Role tags a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage is a convenience constructor for a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage is a convenience constructor for an assistant turn.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Config holds LLM client configuration.
type Config struct {
	Provider  Provider
	APIKey    string        // Required for hosted providers
	BaseURL   string        // Optional: custom API endpoint
	Model     string        // Optional: provider default when empty
	Timeout   time.Duration // Per-call timeout, capped at MaxTimeout
	MaxTokens int
}

// Client generates a single completion for a conversation under one system instruction.
// Implementations issue exactly one network request per call and never retry.
type Client interface {
	Generate(ctx context.Context, messages []Message, system string) (string, error)
	Provider() Provider
	Model() string
}

// New creates a Client for cfg.Provider. Every configuration problem is
// reported here as a *ConfigError; no network call is made.
func New(cfg Config) (Client, error) {
	provider, err := ParseProvider(string(cfg.Provider))
	if err != nil {
		return nil, err
	}
	cfg.Provider = provider

	switch {
	case cfg.Timeout == 0:
		cfg.Timeout = MaxTimeout
	case cfg.Timeout < 0:
		return nil, &ConfigError{Field: "timeout", Reason: "must be positive"}
	case cfg.Timeout > MaxTimeout:
		cfg.Timeout = MaxTimeout
	}
	if cfg.MaxTokens < 0 {
		return nil, &ConfigError{Field: "max_tokens", Reason: "must not be negative"}
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	switch provider {
	case ProviderOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434"
		}
		// Ollama serves an OpenAI-compatible API under /v1 and ignores credentials.
		cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/v1"
		if cfg.APIKey == "" {
			cfg.APIKey = "ollama"
		}
		if cfg.Model == "" {
			cfg.Model = "llama3.1:latest"
		}
		return newOpenAIClient(cfg)
	case ProviderGroq:
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.groq.com/openai/v1"
		}
		if cfg.Model == "" {
			cfg.Model = "llama-3.1-70b-versatile"
		}
		return newHostedOpenAIClient(cfg)
	case ProviderOpenRouter:
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://openrouter.ai/api/v1"
		}
		if cfg.Model == "" {
			cfg.Model = "meta-llama/llama-3.1-70b-instruct"
		}
		return newHostedOpenAIClient(cfg)
	case ProviderOpenAI:
		if cfg.Model == "" {
			cfg.Model = "gpt-4o-mini"
		}
		return newHostedOpenAIClient(cfg)
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, &ConfigError{Field: "api_key", Reason: "required for anthropic"}
		}
		return newAnthropicClient(cfg)
	default:
		return nil, &ConfigError{Field: "provider", Reason: fmt.Sprintf("unsupported LLM provider: %s", provider)}
	}
}

func newHostedOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Field: "api_key", Reason: fmt.Sprintf("required for %s", cfg.Provider)}
	}
	return newOpenAIClient(cfg)
}

// Setting keys accepted by NewFromSettings.
const (
	SettingURL       = "url"
	SettingModel     = "model"
	SettingAPIKey    = "api_key"
	SettingTimeout   = "timeout"
	SettingMaxTokens = "max_tokens"
)

// NewFromSettings builds a Client from a provider identifier and a flat map of
// string settings, the form used by configuration files and the CLI.
func NewFromSettings(provider string, settings map[string]string) (Client, error) {
	cfg, err := ConfigFromSettings(provider, settings)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// ConfigFromSettings converts a settings map into a Config.
func ConfigFromSettings(provider string, settings map[string]string) (Config, error) {
	p, err := ParseProvider(provider)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{Provider: p}
	var unknown []string
	for key, value := range settings {
		switch key {
		case SettingURL:
			cfg.BaseURL = value
		case SettingModel:
			cfg.Model = value
		case SettingAPIKey:
			cfg.APIKey = value
		case SettingTimeout:
			d, err := parseTimeout(value)
			if err != nil {
				return Config{}, &ConfigError{Field: key, Reason: err.Error()}
			}
			cfg.Timeout = d
		case SettingMaxTokens:
			n, err := strconv.Atoi(value)
			if err != nil {
				return Config{}, &ConfigError{Field: key, Reason: "must be an integer"}
			}
			cfg.MaxTokens = n
		default:
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Config{}, &ConfigError{Field: strings.Join(unknown, ","), Reason: "unknown setting"}
	}
	return cfg, nil
}

// parseTimeout accepts a Go duration ("90s") or a bare number of seconds ("90").
func parseTimeout(value string) (time.Duration, error) {
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return d, nil
}
