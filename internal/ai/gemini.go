package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"

	"google.golang.org/genai"
)

// generateFunc sends one user turn to the model and returns its text.
type generateFunc func(ctx context.Context, parts []*genai.Part) (string, error)

// GeminiParser asks a Gemini model for drafts.
type GeminiParser struct {
	model    string
	generate generateFunc
}

var _ Parser = (*GeminiParser)(nil)

func NewGeminiParser(ctx context.Context, apiKey, model string) (*GeminiParser, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}
	p := &GeminiParser{model: model}
	p.generate = func(ctx context.Context, parts []*genai.Part) (string, error) {
		contents := []*genai.Content{{Role: "user", Parts: parts}}
		resp, err := client.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return p, nil
}

func (p *GeminiParser) ParseText(ctx context.Context, text string, today core.Date) ([]Draft, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	parts := []*genai.Part{
		{Text: buildPrompt(today)},
		{Text: "Input:\n" + text},
	}
	return p.run(ctx, parts, today)
}

func (p *GeminiParser) ParseImage(ctx context.Context, data []byte, today core.Date) ([]Draft, error) {
	img, err := PrepareImage(data)
	if err != nil {
		return nil, err
	}
	parts := []*genai.Part{
		{Text: buildPrompt(today)},
		{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: img}},
	}
	return p.run(ctx, parts, today)
}

func (p *GeminiParser) run(ctx context.Context, parts []*genai.Part, today core.Date) ([]Draft, error) {
	raw, err := p.generate(ctx, parts)
	if err != nil {
		return nil, fmt.Errorf("%w: generate content: %v", ErrUpstream, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty response from model", ErrUpstream)
	}
	drafts, err := decodeDrafts(raw, today)
	if err != nil {
		slog.WarnContext(ctx, "Model output produced no drafts", "model", p.model, "error", err)
		return nil, err
	}
	slog.InfoContext(ctx, "Parsed drafts", "model", p.model, "count", len(drafts))
	return drafts, nil
}
