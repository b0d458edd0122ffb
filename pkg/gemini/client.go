// Package gemini wraps the Gemini API behind a small interface for the
// web-grounded discovery source.
package gemini

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/pickpal/pickpal/internal/resilience"
)

// Client defines the Gemini operations used by the discovery source.
type Client interface {
	// GenerateJSON sends a prompt and returns the model's JSON response.
	GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error)
}

type genaiClient struct {
	cli   *genai.Client
	model string
	retry resilience.RetryConfig
}

// NewClient creates a Gemini API client for the given model.
func NewClient(ctx context.Context, apiKey, model string) (Client, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &genaiClient{
		cli:   cli,
		model: model,
		retry: resilience.DefaultRetryConfig(),
	}, nil
}

func (g *genaiClient) GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	cfg := g.retry
	cfg.OnRetry = resilience.RetryLogger("gemini", "generate")

	raw, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (json.RawMessage, error) {
		resp, err := g.cli.Models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
		if err != nil {
			return nil, eris.Wrap(err, "gemini: generate content")
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return nil, eris.New("gemini: empty response")
		}
		txt := resp.Candidates[0].Content.Parts[0].Text
		if !json.Valid([]byte(txt)) {
			return nil, eris.New("gemini: invalid JSON from model")
		}
		return json.RawMessage(txt), nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}
