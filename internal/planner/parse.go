package planner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pickpal/pickpal/internal/aspect"
	"github.com/pickpal/pickpal/internal/model"
)

var (
	maxPriceRe   = regexp.MustCompile(`(?i)(?:under|below|less than|max(?:imum)?|budget of|up to)\s*\$?\s*(\d+(?:\.\d+)?)`)
	minRatingRe  = regexp.MustCompile(`(?i)(?:at least|minimum|min)\s*(\d(?:\.\d)?)\s*stars?`)
	minReviewsRe = regexp.MustCompile(`(?i)(?:minimum|min|at least)\s*(\d+)\s*reviews`)
	useCaseRe    = regexp.MustCompile(`(?i)\bfor\s+([a-z][a-z ]*?)(?:\s+(?:under|below|with|that|and)\b|$)`)
)

// parseBrief builds a ShoppingBrief from free text. Explicit constraints
// passed by the caller win over anything extracted from the query.
func (p *Planner) parseBrief(trace model.Trace, query string, constraints map[string]any) *model.ShoppingBrief {
	brief := &model.ShoppingBrief{
		Trace:       trace.Next(model.StepParse, componentName),
		Query:       strings.TrimSpace(query),
		Category:    aspect.DetectCategory(query),
		Constraints: make(map[string]any),
		Success: model.SuccessCriteria{
			K:          p.cfg.MaxTopK,
			Diversity:  true,
			MinReviews: p.cfg.MinReviews,
		},
	}
	if brief.Success.K <= 0 {
		brief.Success.K = 3
	}

	if m := maxPriceRe.FindStringSubmatch(query); m != nil {
		if price, err := strconv.ParseFloat(m[1], 64); err == nil {
			brief.Constraints["max_price"] = price
		}
	}
	if m := minRatingRe.FindStringSubmatch(query); m != nil {
		if rating, err := strconv.ParseFloat(m[1], 64); err == nil {
			brief.Constraints["min_rating"] = rating
		}
	}
	if m := minReviewsRe.FindStringSubmatch(query); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			brief.Success.MinReviews = n
		}
	}
	if m := useCaseRe.FindStringSubmatch(query); m != nil {
		brief.UseCase = strings.TrimSpace(m[1])
	}

	for k, v := range constraints {
		switch k {
		case "k":
			if n, ok := asInt(v); ok && n > 0 {
				brief.Success.K = n
			}
		case "diversity":
			if b, ok := v.(bool); ok {
				brief.Success.Diversity = b
			}
		case "min_reviews":
			if n, ok := asInt(v); ok {
				brief.Success.MinReviews = n
			}
		default:
			brief.Constraints[k] = v
		}
	}
	return brief
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}
