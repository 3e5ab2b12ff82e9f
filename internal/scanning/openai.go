package scanning

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAI implements the Scanner interface using an OpenAI-compatible chat API
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a new OpenAI Scanner instance. baseURL may be empty to use
// the public API, which needs a key, or point at any OpenAI-compatible
// endpoint, where the key is optional.
func NewOpenAI(apiKey string, modelName string, baseURL string) (*OpenAI, error) {
	if apiKey == "" && baseURL == "" {
		return nil, fmt.Errorf("openai api key is required for the public API")
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
	}, nil
}

// Extract analyzes an image and extracts receipt data
func (o *OpenAI) Extract(ctx context.Context, photo DataURI) (*Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	pngData, _, err := preparePNG(photo)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: receiptExtractPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    NewDataURI("image/png", pngData).String(),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	extraction, err := parseExtractionJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing openai response: %w", err)
	}

	return extraction, nil
}

// Close is a no-op; the OpenAI client holds no resources
func (o *OpenAI) Close() error {
	return nil
}
