// Package discovery fans a shopping brief out to every registered candidate
// source, merges the results, and widens the query when too few distinct
// products come back.
package discovery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pickpal/pickpal/internal/config"
	"github.com/pickpal/pickpal/internal/model"
	"github.com/pickpal/pickpal/internal/source"
)

const componentName = "discovery"

// Discoverer runs the parallel source fan-out with query-expansion backoff.
type Discoverer struct {
	registry       *source.Registry
	sourceTimeout  time.Duration
	maxExpansions  int
	minCandidates  int
	mergeThreshold float64
}

func New(registry *source.Registry, cfg config.DiscoveryConfig, minCandidates int, mergeThreshold float64) *Discoverer {
	d := &Discoverer{
		registry:       registry,
		sourceTimeout:  cfg.SourceTimeout(),
		maxExpansions:  cfg.MaxExpansions,
		minCandidates:  minCandidates,
		mergeThreshold: mergeThreshold,
	}
	if d.sourceTimeout <= 0 {
		d.sourceTimeout = 10 * time.Second
	}
	if d.minCandidates <= 0 {
		d.minCandidates = 3
	}
	if d.mergeThreshold <= 0 {
		d.mergeThreshold = 0.85
	}
	return d
}

// Discover returns the merged distinct candidate pool for a brief. Raw
// results accumulate across expansion attempts, so a broadened retry only
// ever grows the pool.
func (d *Discoverer) Discover(ctx context.Context, brief *model.ShoppingBrief) ([]model.ProductCandidate, error) {
	if d.registry.Len() == 0 {
		return nil, eris.Wrap(ErrSourceUnavailable, "discovery: no sources registered")
	}

	var raw []model.ProductCandidate
	allFailed := true
	for attempt := 0; attempt <= d.maxExpansions; attempt++ {
		q := d.buildQuery(brief, attempt)
		fetched, succeeded := d.fanOut(ctx, q)
		if succeeded > 0 {
			allFailed = false
		}
		raw = append(raw, fetched...)

		merged := d.merge(raw)
		zap.L().Info("discovery attempt",
			zap.String("request_id", brief.Trace.RequestID),
			zap.Int("attempt", attempt),
			zap.Int("raw", len(raw)),
			zap.Int("distinct", len(merged)),
		)
		if len(merged) >= d.minCandidates {
			return merged, nil
		}
		if err := ctx.Err(); err != nil {
			return merged, eris.Wrap(ErrDiscoveryTimeout, err.Error())
		}
	}

	merged := d.merge(raw)
	if len(merged) == 0 && allFailed {
		return nil, ErrSourceUnavailable
	}
	return merged, eris.Wrapf(ErrInsufficientCandidates, "found %d, need %d", len(merged), d.minCandidates)
}

// fanOut queries every source concurrently with an independent timeout per
// source. Per-source failures are absorbed and logged; a slow source never
// blocks the rest.
func (d *Discoverer) fanOut(ctx context.Context, q source.Query) ([]model.ProductCandidate, int) {
	var (
		mu        sync.Mutex
		results   = make(map[string][]model.ProductCandidate)
		succeeded int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range d.registry.Sources() {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, d.sourceTimeout)
			defer cancel()

			fetched, err := src.Fetch(fetchCtx, q)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					zap.L().Warn("source fetch failed",
						zap.String("request_id", q.Trace.RequestID),
						zap.String("source", src.Name()),
						zap.Error(err),
					)
				}
				return nil
			}

			mu.Lock()
			results[src.Name()] = fetched
			succeeded++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Registration order keeps the merged pool deterministic.
	var all []model.ProductCandidate
	for _, src := range d.registry.Sources() {
		all = append(all, results[src.Name()]...)
	}
	return all, succeeded
}

// buildQuery widens the brief one notch per attempt: first the brief as-is,
// then category terms with only the price constraint, then bare category
// terms with nothing else.
func (d *Discoverer) buildQuery(brief *model.ShoppingBrief, attempt int) source.Query {
	q := source.Query{
		Trace:    brief.Trace.Next(model.StepDiscover, componentName),
		Category: brief.Category,
	}
	switch {
	case attempt == 0:
		q.Terms = []string{brief.Query}
		q.Constraints = brief.Constraints
	case attempt == 1:
		q.Terms = broadenedTerms(brief)
		if price, ok := brief.MaxPrice(); ok {
			q.Constraints = map[string]any{"max_price": price}
		}
	default:
		q.Terms = broadenedTerms(brief)
	}
	return q
}

func broadenedTerms(brief *model.ShoppingBrief) []string {
	var terms []string
	if brief.Category != "" {
		terms = append(terms, strings.ReplaceAll(brief.Category, "_", " "))
	}
	if brief.UseCase != "" {
		terms = append(terms, brief.UseCase)
	}
	if len(terms) == 0 {
		terms = []string{brief.Query}
	}
	return terms
}
