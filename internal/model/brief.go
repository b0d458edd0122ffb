package model

import (
	"maps"
	"regexp"
	"strconv"
)

// SuccessCriteria describes what a satisfying result set looks like.
type SuccessCriteria struct {
	K          int  `json:"k"`
	Diversity  bool `json:"diversity"`
	MinReviews int  `json:"min_reviews"`
}

// ShoppingBrief is the parsed intent for one shopping request. Weights need
// not sum to 1; the ranker normalizes them.
type ShoppingBrief struct {
	Trace       Trace              `json:"trace"`
	Query       string             `json:"query"`
	Category    string             `json:"category,omitempty"`
	UseCase     string             `json:"use_case,omitempty"`
	Constraints map[string]any     `json:"constraints,omitempty"`
	Weights     map[string]float64 `json:"weights,omitempty"`
	Success     SuccessCriteria    `json:"success"`
}

// Clone returns a deep copy so adaptation can adjust a brief without
// mutating the one already handed to earlier stages.
func (b *ShoppingBrief) Clone() *ShoppingBrief {
	c := *b
	c.Constraints = maps.Clone(b.Constraints)
	c.Weights = maps.Clone(b.Weights)
	return &c
}

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// MaxPrice reads the max_price constraint, tolerating numeric and string
// forms ("150", "$150", "under 150").
func (b *ShoppingBrief) MaxPrice() (float64, bool) {
	v, ok := b.Constraints["max_price"]
	if !ok {
		return 0, false
	}
	return asPrice(v)
}

func asPrice(v any) (float64, bool) {
	switch p := v.(type) {
	case float64:
		return p, true
	case float32:
		return float64(p), true
	case int:
		return float64(p), true
	case int64:
		return float64(p), true
	case string:
		if m := numberRe.FindString(p); m != "" {
			f, err := strconv.ParseFloat(m, 64)
			if err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
