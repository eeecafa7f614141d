package vision

import (
	"context"
	"encoding/base64"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider sends screenshots to an OpenAI vision model as inline
// base64 image parts.
type OpenAIProvider struct {
	client *goopenai.Client
	model  string
}

var _ Provider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = goopenai.GPT4o
	}
	return &OpenAIProvider{
		client: goopenai.NewClient(apiKey),
		model:  model,
	}
}

func (p *OpenAIProvider) Analyze(ctx context.Context, prompt string, image []byte) (string, error) {
	imageURL := fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(image))

	request := goopenai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0.1,
		MaxTokens:   200,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{
						Type: goopenai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{
							URL: imageURL,
						},
					},
				},
			},
		},
	}

	response, err := p.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", fmt.Errorf("openai vision completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai vision completion: empty choices")
	}

	return response.Choices[0].Message.Content, nil
}
