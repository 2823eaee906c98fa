package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/core/config"
	"airoi.app/assessor/internal/model"
)

var _ = Describe("settingFlags", func() {
	It("collects repeated key=value pairs", func() {
		s := settingFlags{}
		Expect(s.Set("model=llama3.1:8b")).To(Succeed())
		Expect(s.Set("url=http://gpu-box:11434")).To(Succeed())
		Expect(s).To(Equal(settingFlags{"model": "llama3.1:8b", "url": "http://gpu-box:11434"}))
	})

	It("keeps '=' inside values", func() {
		s := settingFlags{}
		Expect(s.Set("api_key=abc=def")).To(Succeed())
		Expect(s["api_key"]).To(Equal("abc=def"))
	})

	It("rejects entries without a key", func() {
		s := settingFlags{}
		Expect(s.Set("model")).NotTo(Succeed())
		Expect(s.Set("=x")).NotTo(Succeed())
	})
})

var _ = Describe("readTranscript", func() {
	write := func(content string) string {
		path := filepath.Join(GinkgoT().TempDir(), "conv.json")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	It("reads role-tagged turns in order", func() {
		history, err := readTranscript(write(`[
			{"role": "assistant", "content": "What systems do you use?"},
			{"role": "user", "content": "SAP"}
		]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(Equal([]llm.Message{
			llm.AssistantMessage("What systems do you use?"),
			llm.UserMessage("SAP"),
		}))
	})

	It("rejects unknown roles", func() {
		_, err := readTranscript(write(`[{"role": "system", "content": "x"}]`))
		Expect(err).To(MatchError(ContainSubstring("unknown role")))
	})

	It("rejects malformed files", func() {
		_, err := readTranscript(write(`{`))
		Expect(err).To(MatchError(ContainSubstring("decoding transcript")))
	})
})

var _ = Describe("newClient", func() {
	It("layers -set entries over the environment's provider settings", func() {
		cfg := config.Config{LLM: config.LLMConfig{
			Provider:    "ollama",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "llama3.1:latest",
			Timeout:     llm.MaxTimeout,
			MaxTokens:   4096,
		}}

		client, err := newClient(cfg, options{settings: settingFlags{"model": "qwen2.5:14b"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Provider()).To(Equal(llm.ProviderOllama))
		Expect(client.Model()).To(Equal("qwen2.5:14b"))
	})

	It("takes the named provider's credential from the environment", func() {
		cfg := config.Config{LLM: config.LLMConfig{
			Provider:   "ollama",
			GroqAPIKey: "gsk-from-env",
			Timeout:    llm.MaxTimeout,
			MaxTokens:  4096,
		}}

		client, err := newClient(cfg, options{provider: "groq", settings: settingFlags{"model": "llama-3.1-8b-instant"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Provider()).To(Equal(llm.ProviderGroq))
		Expect(client.Model()).To(Equal("llama-3.1-8b-instant"))
	})

	It("fails when the named hosted provider has no credential anywhere", func() {
		cfg := config.Config{LLM: config.LLMConfig{Provider: "ollama", Timeout: llm.MaxTimeout, MaxTokens: 4096}}

		_, err := newClient(cfg, options{provider: "groq", settings: settingFlags{}})
		Expect(err).To(MatchError(llm.ErrConfiguration))
	})
})

var _ = Describe("writePackage", func() {
	It("writes the package as indented JSON", func() {
		path := filepath.Join(GinkgoT().TempDir(), "package.json")
		pkg := &model.AssessmentPackage{
			AuditData:     model.AuditData{CompanyName: "Northwind Retail"},
			Opportunities: []model.Opportunity{},
		}

		Expect(writePackage(path, pkg)).To(Succeed())

		raw, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		var got model.AssessmentPackage
		Expect(json.Unmarshal(raw, &got)).To(Succeed())
		Expect(got.AuditData.CompanyName).To(Equal("Northwind Retail"))
		Expect(string(raw)).To(ContainSubstring("\n  \"audit_data\""))
	})

	It("reports a path that cannot be created", func() {
		path := filepath.Join(GinkgoT().TempDir(), "missing", "package.json")

		Expect(writePackage(path, &model.AssessmentPackage{})).NotTo(Succeed())
	})
})
