package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llava"

	// local vision models need far longer than hosted APIs
	ollamaTimeout = 2 * time.Minute
)

// Ollama extracts receipts with a vision model served by a local Ollama
type Ollama struct {
	chatURL string
	model   string
	client  *http.Client
}

// NewOllama points a scanner at an Ollama server. Empty arguments fall back
// to a local server running llava.
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if modelName == "" {
		modelName = defaultOllamaModel
	}

	return &Ollama{
		chatURL: strings.TrimSuffix(baseURL, "/") + "/api/chat",
		model:   modelName,
		client:  &http.Client{Timeout: ollamaTimeout},
	}, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
}

// ollamaMessage carries images as bare base64, without a data URI header
type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (o *Ollama) chatRequest(pngData []byte) ollamaChatRequest {
	return ollamaChatRequest{
		Model:  o.model,
		Format: "json",
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{
				Role:    "user",
				Content: receiptExtractPrompt,
				Images:  []string{NewDataURI("image/png", pngData).Base64()},
			},
		},
	}
}

// Extract sends the photo to /api/chat and parses the JSON reply
func (o *Ollama) Extract(ctx context.Context, photo DataURI) (*Extraction, error) {
	pngData, _, err := preparePNG(photo)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(o.chatRequest(pngData))
	if err != nil {
		return nil, fmt.Errorf("encoding ollama request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ollamaTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var chat ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", err)
	}

	extraction, err := parseExtractionJSON(chat.Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama reply: %w", err)
	}
	return extraction, nil
}

// Close does nothing; the HTTP client holds no resources
func (o *Ollama) Close() error {
	return nil
}
