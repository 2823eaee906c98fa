// Command assess runs the assessment pipeline once over a saved discovery
// transcript and writes the resulting package.
//
//	assess -provider groq -set model=llama-3.1-70b-versatile -transcript conv.json -out package.json -report report.md
//
// The transcript is a JSON array of {"role": "user"|"assistant", "content": "..."}.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/core/config"
	"airoi.app/assessor/internal/capability"
	"airoi.app/assessor/internal/model"
	"airoi.app/assessor/internal/orchestrator"
	"airoi.app/assessor/internal/report"
)

// settingFlags collects repeated -set key=value pairs.
type settingFlags map[string]string

func (s settingFlags) String() string {
	pairs := make([]string, 0, len(s))
	for k, v := range s {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (s settingFlags) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	s[strings.TrimSpace(key)] = val
	return nil
}

type options struct {
	provider       string
	settings       settingFlags
	transcript     string
	out            string
	reportPath     string
	reportFormat   string
	capabilityPath string
}

func main() {
	opts := options{settings: settingFlags{}}
	flag.StringVar(&opts.provider, "provider", "", "LLM provider (ollama, groq, openrouter, openai, anthropic); defaults to LLM_PROVIDER")
	flag.Var(opts.settings, "set", "provider setting key=value (url, model, api_key, timeout, max_tokens); repeatable")
	flag.StringVar(&opts.transcript, "transcript", "", "path to the discovery transcript JSON (required)")
	flag.StringVar(&opts.out, "out", "", "write the package JSON here instead of stdout")
	flag.StringVar(&opts.reportPath, "report", "", "also render a report to this path")
	flag.StringVar(&opts.reportFormat, "format", "md", "report format: md or html")
	flag.StringVar(&opts.capabilityPath, "capabilities", "", "capability matrix YAML overriding the built-in one")
	flag.Parse()

	os.Exit(run(opts))
}

func run(opts options) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.ServiceTypeCLI)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 2
	}
	logger.Setup(cfg)

	if opts.transcript == "" {
		fmt.Fprintln(os.Stderr, "-transcript is required")
		flag.Usage()
		return 2
	}

	client, err := newClient(cfg, opts)
	if err != nil {
		slog.ErrorContext(ctx, "failed to configure llm provider", "error", err)
		return 2
	}

	matrix, err := capability.Load(opts.capabilityPath)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load capability matrix", "error", err)
		return 2
	}

	history, err := readTranscript(opts.transcript)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read transcript", "error", err, "path", opts.transcript)
		return 2
	}

	var format report.Format
	if opts.reportPath != "" {
		if format, err = report.ParseFormat(opts.reportFormat); err != nil {
			slog.ErrorContext(ctx, "invalid report format", "error", err)
			return 2
		}
	}

	pipeline := orchestrator.NewFromClient(client, matrix, orchestrator.Config{
		MaxAttempts:        cfg.Pipeline.MaxAttempts,
		ExtractionAttempts: cfg.Pipeline.ExtractionAttempts,
		BaseBackoff:        cfg.Pipeline.BaseBackoff,
		MaxGuides:          cfg.Pipeline.MaxGuides,
	})

	if cfg.Pipeline.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Pipeline.RunTimeout)
		defer cancel()
	}

	slog.InfoContext(ctx, "running assessment",
		"provider", client.Provider(),
		"model", client.Model(),
		"turns", len(history))

	result, err := pipeline.Run(ctx, history)
	if err != nil {
		var phaseErr *orchestrator.PhaseError
		if errors.As(err, &phaseErr) {
			slog.ErrorContext(ctx, "assessment failed", "failed_state", phaseErr.State, "reason", phaseErr.Reason)
			return 1
		}
		slog.ErrorContext(ctx, "assessment failed", "error", err)
		return 1
	}

	if err := writePackage(opts.out, result.Package); err != nil {
		slog.ErrorContext(ctx, "failed to write package", "error", err)
		return 2
	}

	if opts.reportPath != "" {
		rendered, err := report.Render(result.Package, format)
		if err != nil {
			slog.ErrorContext(ctx, "failed to render report", "error", err)
			return 2
		}
		if err := os.WriteFile(opts.reportPath, rendered, 0o644); err != nil {
			slog.ErrorContext(ctx, "failed to write report", "error", err, "path", opts.reportPath)
			return 2
		}
	}

	slog.InfoContext(ctx, "assessment complete",
		"opportunities", len(result.Package.Opportunities),
		"guides", len(result.Package.ImplementationGuides),
		"degraded", result.Package.Degraded())
	return 0
}

// newClient resolves settings for -provider (or LLM_PROVIDER) from the
// environment and layers -set entries over them.
func newClient(cfg config.Config, opts options) (llm.Client, error) {
	llmCfg := cfg.LLM
	if opts.provider != "" {
		llmCfg.Provider = opts.provider
	}
	settings := llmCfg.Settings()
	for k, v := range opts.settings {
		settings[k] = v
	}
	return llm.NewFromSettings(llmCfg.Provider, settings)
}

func readTranscript(path string) ([]llm.Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var history []llm.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	for i, m := range history {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			return nil, fmt.Errorf("turn %d: unknown role %q", i, m.Role)
		}
	}
	return history, nil
}

func writePackage(path string, pkg *model.AssessmentPackage) (err error) {
	var w io.Writer = os.Stdout
	if path != "" {
		f, createErr := os.Create(path)
		if createErr != nil {
			return createErr
		}
		defer func() {
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
		}()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(pkg)
}
