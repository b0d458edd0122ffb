package model

import "time"

// Review is a single raw product review as delivered by a source.
type Review struct {
	Text     string    `json:"text"`
	Stars    float64   `json:"stars"`
	Date     time.Time `json:"date"`
	Helpful  int       `json:"helpful"`
	Verified bool      `json:"verified"`
}

// ProductCandidate is a raw discovered product. Created by Discovery and
// immutable afterward.
type ProductCandidate struct {
	Trace   Trace             `json:"trace"`
	Name    string            `json:"name"`
	Brand   string            `json:"brand,omitempty"`
	Price   *float64          `json:"price,omitempty"`
	Stars   *float64          `json:"stars,omitempty"`
	URLs    map[string]string `json:"urls,omitempty"` // source name -> listing URL
	Reviews []Review          `json:"reviews,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Completeness scores how much usable data a candidate carries. Used when
// merging duplicates: the most complete variant wins.
func (c *ProductCandidate) Completeness() int {
	score := len(c.Reviews) * 10
	if c.Price != nil {
		score += 5
	}
	if c.Stars != nil {
		score += 5
	}
	if c.Brand != "" {
		score += 3
	}
	score += len(c.URLs)
	score += len(c.Meta)
	return score
}

// SignalUnknown marks a signal that could not be computed (e.g. a product
// with no reviews). Distinct from zero so scoring can stay neutral.
const SignalUnknown = -1

// Signals are derived review-quality indicators.
type Signals struct {
	VerifiedPct    float64 `json:"verified_pct"`
	AvgHelpful     float64 `json:"avg_helpful"`
	RecencyDaysP50 float64 `json:"recency_days_p50"`
}

// UnknownSignals returns the sentinel value for products without reviews.
func UnknownSignals() Signals {
	return Signals{
		VerifiedPct:    SignalUnknown,
		AvgHelpful:     SignalUnknown,
		RecencyDaysP50: SignalUnknown,
	}
}

// Unknown reports whether the signals carry the no-review sentinel.
func (s Signals) Unknown() bool {
	return s.VerifiedPct == SignalUnknown
}

// EnrichedProduct is a canonicalized, signal-annotated product. CanonicalID
// is unique per distinct real-world product within one request.
type EnrichedProduct struct {
	Trace       Trace             `json:"trace"`
	CanonicalID string            `json:"canonical_id"`
	Name        string            `json:"name"`
	Brand       string            `json:"brand,omitempty"`
	Price       *float64          `json:"price,omitempty"`
	Stars       *float64          `json:"stars,omitempty"`
	ReviewCount int               `json:"review_count"`
	Signals     Signals           `json:"signals"`
	Aspects     map[string]int    `json:"aspects,omitempty"` // aspect -> reviews mentioning it
	Citations   []string          `json:"citations,omitempty"`
	Reviews     []Review          `json:"-"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// RankedProduct carries the composite score and the extracted pros/cons.
// Score is on a 0-10 scale.
type RankedProduct struct {
	Trace       Trace              `json:"trace"`
	CanonicalID string             `json:"canonical_id"`
	Name        string             `json:"name"`
	Brand       string             `json:"brand,omitempty"`
	Score       float64            `json:"score"`
	Pros        []string           `json:"pros"`
	Cons        []string           `json:"cons"`
	Breakdown   map[string]float64 `json:"breakdown"`
	Price       *float64           `json:"price,omitempty"`
	Stars       *float64           `json:"stars,omitempty"`
	ReviewCount int                `json:"review_count"`
	Meta        map[string]string  `json:"meta,omitempty"`
}
