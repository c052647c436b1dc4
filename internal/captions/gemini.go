package captions

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// geminiMaxTokens leaves room for the thinking budget of 2.5+ models.
const geminiMaxTokens = 1024

// GeminiProvider sends the photo and prompt to Gemini models.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider returns an unconfigured provider when apiKey is empty.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	if apiKey == "" {
		return &GeminiProvider{}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (g *GeminiProvider) Name() string { return "gemini" }

func (g *GeminiProvider) Configured() bool { return g.client != nil }

func (g *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	if g.client == nil {
		return "", errors.New("gemini: no api key configured")
	}

	var parts []*genai.Part
	if req.Image != nil && len(req.Image.Data) > 0 {
		mimeType := req.Image.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: mimeType, Data: req.Image.Data},
		})
	}
	parts = append(parts, &genai.Part{Text: req.Prompt})

	temperature := req.Temperature
	maxTokens := int32(req.MaxTokens)
	if maxTokens < geminiMaxTokens {
		maxTokens = geminiMaxTokens
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		},
		Temperature:     &temperature,
		MaxOutputTokens: maxTokens,
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", req.Model, err)
	}
	if resp == nil {
		return "", fmt.Errorf("gemini %s: empty response", req.Model)
	}
	return resp.Text(), nil
}
