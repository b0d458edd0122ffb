package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pickpal/pickpal/internal/model"
	"github.com/pickpal/pickpal/pkg/gemini"
)

const geminiPrompt = `You are a product research assistant. Find real products matching the
query below and return a JSON array. Each element must have this shape:

{
  "name": "string",
  "brand": "string",
  "price": 0.0,
  "stars": 0.0,
  "url": "string",
  "in_stock": true,
  "reviews": [
    {"text": "string", "stars": 0.0, "date": "YYYY-MM-DD", "helpful": 0, "verified": true}
  ]
}

Include at most %d products and at most %d representative reviews per
product. Omit fields you are not confident about rather than guessing.
Return ONLY the JSON array.

Query: %s
Category: %s
Constraints: %s`

const (
	geminiMaxProducts = 8
	geminiMaxReviews  = 20
)

// Gemini asks a Gemini model for structured candidates. It is best-effort:
// malformed entries are skipped rather than failing the fetch.
type Gemini struct {
	client gemini.Client
}

func NewGemini(client gemini.Client) *Gemini {
	return &Gemini{client: client}
}

func (g *Gemini) Name() string {
	return "gemini"
}

func (g *Gemini) Fetch(ctx context.Context, q Query) ([]model.ProductCandidate, error) {
	constraints := "none"
	if len(q.Constraints) > 0 {
		if b, err := json.Marshal(q.Constraints); err == nil {
			constraints = string(b)
		}
	}
	prompt := fmt.Sprintf(geminiPrompt,
		geminiMaxProducts, geminiMaxReviews,
		strings.Join(q.Terms, " "), q.Category, constraints)

	raw, err := g.client.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, eris.Wrap(err, "gemini source: generate")
	}

	var products []fixtureProduct
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, eris.Wrap(err, "gemini source: decode candidates")
	}

	out := make([]model.ProductCandidate, 0, len(products))
	for _, p := range products {
		if p.Name == "" {
			continue
		}
		out = append(out, g.toCandidate(p, q.Trace))
	}

	zap.L().Debug("gemini fetch",
		zap.String("request_id", q.Trace.RequestID),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}

func (g *Gemini) toCandidate(p fixtureProduct, trace model.Trace) model.ProductCandidate {
	out := model.ProductCandidate{
		Trace: trace.Next(model.StepDiscover, g.Name()),
		Name:  p.Name,
		Brand: p.Brand,
		Price: p.Price,
		Stars: p.Stars,
		Meta:  map[string]string{"source": g.Name()},
	}
	if p.URL != "" {
		out.URLs = map[string]string{g.Name(): p.URL}
	}
	if p.InStock != nil && !*p.InStock {
		out.Meta["in_stock"] = "false"
	}
	for _, r := range p.Reviews {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			date = time.Time{}
		}
		out.Reviews = append(out.Reviews, model.Review{
			Text:     r.Text,
			Stars:    r.Stars,
			Date:     date,
			Helpful:  r.Helpful,
			Verified: r.Verified,
		})
	}
	return out
}
