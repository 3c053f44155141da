package llm

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type openAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator talks to the chat completions API. baseURL may point at
// any OpenAI-compatible server; empty keeps the library default.
func NewOpenAIGenerator(apiKey, baseURL, model string) Generator {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4.1"
	}
	return &openAIGenerator{client: openai.NewClientWithConfig(clientCfg), model: model}
}

func (g *openAIGenerator) Generate(ctx context.Context, req Request) (Completion, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return Completion{}, &StatusError{Backend: "openai", Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return Completion{}, &StatusError{Backend: "openai", Status: reqErr.HTTPStatusCode, Body: reqErr.Error()}
		}
		return Completion{}, err
	}

	out := Completion{
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Latency:          time.Since(start),
	}
	// A response without choices is not an error: the script is just empty.
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
	}
	return out, nil
}
