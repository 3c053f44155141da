package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/loqalabs/loqa-podcast/internal/config"
)

// Request describes a language model prompt.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	TraceID     string
}

// Completion is the full text produced for a Request. Content may be empty
// when the backend returned no choices.
type Completion struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Generator defines a pluggable LLM backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (Completion, error)
}

// StatusError reports a non-success HTTP status from a backend.
type StatusError struct {
	Backend string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Backend, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Backend, e.Status, e.Body)
}

// OptionsFromConfig builds request defaults from config.
func OptionsFromConfig(cfg config.LLMConfig) Request {
	system := cfg.SystemPrompt
	if system == "" {
		system = config.DefaultSystemPrompt
	}
	return Request{System: system, MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}
}

// New returns the backend selected by cfg.Mode.
func New(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Mode {
	case "openai":
		return NewOpenAIGenerator(cfg.APIKey, cfg.Endpoint, cfg.Model), nil
	case "ollama":
		return NewOllamaGenerator(cfg.Endpoint, cfg.Model), nil
	case "exec":
		return NewExecGenerator(cfg.Command)
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported llm mode %q", cfg.Mode)
	}
}
