package sentiment

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pickpal/pickpal/pkg/anthropic"
)

const claudePrompt = `You score product review sentiment for one aspect.
Given the aspect name and review excerpts that mention it, respond with ONLY
valid JSON, no other text:
{"polarity": 0.0}
where polarity is in [-1, 1]: -1 strongly negative, 0 neutral, 1 strongly positive.`

// maxExcerpts bounds the number of review excerpts sent per call.
const maxExcerpts = 12

// ClaudeScorer scores aspect polarity with a Claude model. Falls back to
// nothing on its own; callers decide what to do on error.
type ClaudeScorer struct {
	client anthropic.Client
	model  string
}

// NewClaude creates a Claude-backed scorer.
func NewClaude(client anthropic.Client, model string) *ClaudeScorer {
	return &ClaudeScorer{client: client, model: model}
}

func (s *ClaudeScorer) Score(ctx context.Context, aspect string, reviews []string) (float64, error) {
	if len(reviews) == 0 {
		return 0, nil
	}
	if len(reviews) > maxExcerpts {
		reviews = reviews[:maxExcerpts]
	}

	var b strings.Builder
	b.WriteString("Aspect: ")
	b.WriteString(aspect)
	b.WriteString("\n\nReview excerpts:\n")
	for _, r := range reviews {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteString("\n")
	}

	temp := 0.0
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   64,
		System:      claudePrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: b.String()}},
		Temperature: &temp,
	})
	if err != nil {
		return 0, eris.Wrap(err, "sentiment: claude score")
	}

	var parsed struct {
		Polarity float64 `json:"polarity"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Text)), &parsed); err != nil {
		return 0, eris.Wrapf(err, "sentiment: parse claude response %q", resp.Text)
	}
	return Clamp(parsed.Polarity), nil
}
