package model

import "time"

// Recommendation is the user-facing view of a RankedProduct.
type Recommendation struct {
	CanonicalID string             `json:"canonical_id"`
	Name        string             `json:"name"`
	Brand       string             `json:"brand,omitempty"`
	Price       *float64           `json:"price,omitempty"`
	Rating      *float64           `json:"rating,omitempty"`
	Score       float64            `json:"score"`
	Pros        []string           `json:"pros"`
	Cons        []string           `json:"cons"`
	Breakdown   map[string]float64 `json:"breakdown,omitempty"`
	ReviewCount int                `json:"review_count"`
}

// Result is the pipeline entry point's return value. Degraded means the
// adaptation budget was exhausted without passing verification.
type Result struct {
	RequestID       string           `json:"request_id"`
	Query           string           `json:"query"`
	Recommendations []Recommendation `json:"recommendations"`
	TotalFound      int              `json:"total_found"`
	Degraded        bool             `json:"degraded"`
	Notes           []string         `json:"notes,omitempty"`
}

// RecommendationFrom projects a RankedProduct into its result view.
func RecommendationFrom(p RankedProduct) Recommendation {
	return Recommendation{
		CanonicalID: p.CanonicalID,
		Name:        p.Name,
		Brand:       p.Brand,
		Price:       p.Price,
		Rating:      p.Stars,
		Score:       p.Score,
		Pros:        p.Pros,
		Cons:        p.Cons,
		Breakdown:   p.Breakdown,
		ReviewCount: p.ReviewCount,
	}
}

// SearchState is the terminal state of a recorded search.
type SearchState string

const (
	SearchReturned SearchState = "returned"
	SearchFailed   SearchState = "failed"
)

// SearchRecord is one row of search history.
type SearchRecord struct {
	RequestID  string      `json:"request_id"`
	SessionID  string      `json:"session_id,omitempty"`
	Query      string      `json:"query"`
	State      SearchState `json:"state"`
	Degraded   bool        `json:"degraded"`
	Result     *Result     `json:"result,omitempty"`
	DurationMs int64       `json:"duration_ms"`
	CreatedAt  time.Time   `json:"created_at"`
}
