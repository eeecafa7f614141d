package openai

import (
	"context"
	"fmt"

	"ableton-smart-assistant/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

// Provider backs the LLM contract with the OpenAI chat completions API.
type Provider struct {
	client *goopenai.Client
	model  string
}

var _ llm.Provider = &Provider{}

func NewProvider(apiKey, model string) *Provider {
	if model == "" {
		model = goopenai.GPT4o
	}
	return &Provider{
		client: goopenai.NewClient(apiKey),
		model:  model,
	}
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := &llm.Options{
		Temperature: 0.7,
	}
	for _, opt := range opts {
		opt(options)
	}

	messages := make([]goopenai.ChatCompletionMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = goopenai.ChatMessageRoleAssistant
		}
		messages[i] = goopenai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		}
	}

	model := p.model
	if options.Model != "" {
		model = options.Model
	}

	request := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(options.Temperature),
	}
	if options.MaxTokens > 0 {
		request.MaxTokens = options.MaxTokens
	}
	if options.JSONOnly {
		request.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	response, err := p.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: empty choices")
	}

	return response.Choices[0].Message.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: goopenai.ChatMessageRoleUser, Content: prompt}}, opts...)
}
