package model

// Verification check names.
const (
	CheckBudget     = "budget"
	CheckOutOfStock = "out_of_stock"
	CheckDuplicate  = "duplicate"
	CheckEvidence   = "evidence"
)

// AdaptTarget names the stage a failed check wants re-run.
type AdaptTarget string

const (
	AdaptDiscover AdaptTarget = "discover"
	AdaptRank     AdaptTarget = "rank"
)

// AdaptationHint tells the planner how to recover from a failed check.
type AdaptationHint struct {
	Check      string      `json:"check"`
	Target     AdaptTarget `json:"target"`
	Note       string      `json:"note"`
	MinReviews int         `json:"min_reviews,omitempty"` // evidence: lower threshold to this
	MaxPrice   float64     `json:"max_price,omitempty"`   // budget: filter the pool to this
}

// VerificationReport is the Verifier's verdict over the top-K results.
type VerificationReport struct {
	Trace  Trace            `json:"trace"`
	Passed bool             `json:"passed"`
	Checks map[string]bool  `json:"checks"`
	Notes  []string         `json:"notes,omitempty"`
	Hints  []AdaptationHint `json:"hints,omitempty"`
}

// FailedChecks lists the names of checks that did not pass, in a stable
// order matching the hint slice.
func (r *VerificationReport) FailedChecks() []string {
	var failed []string
	for _, h := range r.Hints {
		failed = append(failed, h.Check)
	}
	return failed
}
