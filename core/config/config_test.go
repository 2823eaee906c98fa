package config_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"airoi.app/assessor/core/config"
)

func setEnv(key, value string) {
	previous, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			_ = os.Setenv(key, previous)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

var _ = Describe("Load", func() {
	BeforeEach(func() {
		setEnv("ASSESSOR_ENV", "test")
	})

	It("applies the documented defaults", func() {
		cfg, err := config.Load(config.ServiceTypeWorker)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Service).To(Equal(config.ServiceTypeWorker))
		Expect(cfg.Port).To(Equal("8000"))
		Expect(cfg.MetricsPort).To(Equal("9100"))
		Expect(cfg.AllowedOrigins).To(Equal([]string{"*"}))
		Expect(cfg.LLM.Provider).To(Equal("ollama"))
		Expect(cfg.LLM.Timeout).To(Equal(120 * time.Second))
		Expect(cfg.Pipeline.MaxAttempts).To(Equal(3))
		Expect(cfg.Pipeline.ExtractionAttempts).To(Equal(2))
		Expect(cfg.Pipeline.MaxGuides).To(Equal(3))
		Expect(cfg.Queue.RedisStream).To(Equal("assessment_jobs"))
		Expect(cfg.Queue.RedisConsumer).To(Equal("worker"))
		Expect(cfg.OTel.Enabled()).To(BeFalse())
	})

	It("splits the allowed origins list", func() {
		setEnv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

		cfg, err := config.Load(config.ServiceTypeServer)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.AllowedOrigins).To(Equal([]string{"https://a.example", "https://b.example"}))
	})

	It("rejects a non-positive provider timeout", func() {
		setEnv("LLM_TIMEOUT_SECONDS", "0")

		_, err := config.Load(config.ServiceTypeServer)
		Expect(err).To(MatchError(ContainSubstring("LLM_TIMEOUT_SECONDS")))
	})

	It("rejects zero retry attempts", func() {
		setEnv("PIPELINE_MAX_ATTEMPTS", "0")

		_, err := config.Load(config.ServiceTypeServer)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("LLMConfig.Settings", func() {
	It("exposes only the active provider's settings", func() {
		cfg := config.LLMConfig{
			Provider:        "groq",
			GroqAPIKey:      "gsk",
			OpenAIAPIKey:    "sk",
			AnthropicAPIKey: "ant",
			Timeout:         90 * time.Second,
			MaxTokens:       2048,
		}

		Expect(cfg.Settings()).To(Equal(map[string]string{
			"api_key":    "gsk",
			"timeout":    "1m30s",
			"max_tokens": "2048",
		}))
	})

	It("carries the ollama endpoint and model", func() {
		cfg := config.LLMConfig{
			Provider:    "ollama",
			OllamaURL:   "http://gpu-box:11434",
			OllamaModel: "llama3.1:latest",
			Timeout:     time.Minute,
		}

		settings := cfg.Settings()
		Expect(settings).To(HaveKeyWithValue("url", "http://gpu-box:11434"))
		Expect(settings).To(HaveKeyWithValue("model", "llama3.1:latest"))
		Expect(settings).NotTo(HaveKey("api_key"))
	})
})
