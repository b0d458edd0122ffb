// Package source defines the CandidateSource capability and the bundled
// implementations (JSON fixtures, XLSX catalog, Gemini web discovery).
package source

import (
	"context"

	"github.com/pickpal/pickpal/internal/model"
)

// Query is the search request handed to every source during one discovery
// fan-out.
type Query struct {
	Trace       model.Trace
	Terms       []string // first term is the user's raw query; rest are expansions
	Category    string
	Constraints map[string]any
}

// CandidateSource fetches raw product candidates for a query. Fetch must be
// idempotent and side-effect-free from the pipeline's perspective; the
// discovery stage calls it concurrently with an independent timeout.
type CandidateSource interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]model.ProductCandidate, error)
}

// Registry holds the enabled sources in registration order. Registration
// order is the merge order, which keeps discovery deterministic.
type Registry struct {
	sources []CandidateSource
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a source. Not safe for concurrent use; registration
// happens once at startup.
func (r *Registry) Register(s CandidateSource) {
	r.sources = append(r.sources, s)
}

// Sources returns the registered sources in order.
func (r *Registry) Sources() []CandidateSource {
	return r.sources
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.sources)
}
