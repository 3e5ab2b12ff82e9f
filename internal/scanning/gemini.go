package scanning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	geminiTimeout      = 30 * time.Second
)

var errEmptyGeminiReply = errors.New("gemini returned no text")

// Gemini extracts receipts with Google's hosted Gemini models
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini opens a Gemini client. The model runs at temperature 0 so the
// same photo yields the same items.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	return &Gemini{client: client, model: model}, nil
}

// Extract sends the photo and prompt as one multimodal request
func (g *Gemini) Extract(ctx context.Context, photo DataURI) (*Extraction, error) {
	pngData, _, err := preparePNG(photo)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	// ImageData takes the format name, not a MIME type
	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData("png", pngData),
		genai.Text(receiptExtractPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("calling gemini: %w", err)
	}

	reply, err := replyText(resp)
	if err != nil {
		return nil, err
	}

	extraction, err := parseExtractionJSON(reply)
	if err != nil {
		return nil, fmt.Errorf("parsing gemini reply: %w", err)
	}
	return extraction, nil
}

// replyText joins the text parts of the first candidate
func replyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyGeminiReply
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errEmptyGeminiReply
	}
	return sb.String(), nil
}

// Close releases the underlying gRPC connection
func (g *Gemini) Close() error {
	return g.client.Close()
}
