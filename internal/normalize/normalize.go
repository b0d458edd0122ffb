// Package normalize resolves raw candidates to canonical products and
// annotates them with review-derived signals and aspect frequencies.
package normalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pickpal/pickpal/internal/aspect"
	"github.com/pickpal/pickpal/internal/config"
	"github.com/pickpal/pickpal/internal/model"
)

const componentName = "normalizer"

// Normalizer canonicalizes and enriches. It never drops a product: every
// input candidate lands in exactly one output entity.
type Normalizer struct {
	vocab          aspect.Vocabulary
	threshold      float64
	maxConcurrency int
	now            func() time.Time
}

func New(vocab aspect.Vocabulary, cfg config.NormalizeConfig) *Normalizer {
	n := &Normalizer{
		vocab:          vocab,
		threshold:      cfg.DedupeThreshold,
		maxConcurrency: cfg.MaxConcurrency,
		now:            time.Now,
	}
	if n.threshold <= 0 {
		n.threshold = 0.85
	}
	if n.maxConcurrency <= 0 {
		n.maxConcurrency = 8
	}
	return n
}

// Normalize groups candidates into canonical entities, then enriches each
// group concurrently. Group formation is sequential and order-preserving so
// the same input always yields the same canonical ids.
func (n *Normalizer) Normalize(ctx context.Context, category string, candidates []model.ProductCandidate) ([]model.EnrichedProduct, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	groups := n.group(candidates)
	enriched := make([]model.EnrichedProduct, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.maxConcurrency)
	for i, members := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			enriched[i] = n.enrich(category, members)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "normalizer: enrich")
	}

	zap.L().Info("normalized candidates",
		zap.String("request_id", candidates[0].Trace.RequestID),
		zap.Int("candidates", len(candidates)),
		zap.Int("canonical", len(enriched)),
	)
	return enriched, nil
}

func (n *Normalizer) group(candidates []model.ProductCandidate) [][]model.ProductCandidate {
	var groups [][]model.ProductCandidate
	var identities []string

	for _, c := range candidates {
		id := Identity(c.Name, c.Brand)
		matched := -1
		best := n.threshold
		for i, existing := range identities {
			if sim := NameSimilarity(id, existing); sim >= best {
				matched, best = i, sim
			}
		}
		if matched >= 0 {
			groups[matched] = append(groups[matched], c)
			continue
		}
		groups = append(groups, []model.ProductCandidate{c})
		identities = append(identities, id)
	}
	return groups
}

// CanonicalID derives a stable identity key from a product name and brand.
// Token order and casing do not affect it, so re-normalizing an already
// canonical product reproduces the same id.
func CanonicalID(name, brand string) string {
	words := wordSet(Identity(name, brand))
	tokens := make([]string, 0, len(words))
	for w := range words {
		tokens = append(tokens, w)
	}
	sort.Strings(tokens)

	h := sha256.New()
	for _, t := range tokens {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

func (n *Normalizer) enrich(category string, members []model.ProductCandidate) model.EnrichedProduct {
	rep := members[0]
	for _, m := range members[1:] {
		if m.Completeness() > rep.Completeness() {
			rep = m
		}
	}

	var reviews []model.Review
	citations := make(map[string]struct{})
	meta := make(map[string]string)
	for _, m := range members {
		reviews = append(reviews, m.Reviews...)
		for _, url := range m.URLs {
			citations[url] = struct{}{}
		}
		for k, v := range m.Meta {
			if _, ok := meta[k]; !ok {
				meta[k] = v
			}
		}
	}
	for k, v := range rep.Meta {
		meta[k] = v
	}

	out := model.EnrichedProduct{
		Trace:       rep.Trace.Next(model.StepNormalize, componentName),
		CanonicalID: CanonicalID(rep.Name, rep.Brand),
		Name:        rep.Name,
		Brand:       rep.Brand,
		Price:       n.aggregatePrice(rep, members),
		Stars:       n.aggregateStars(rep, reviews),
		ReviewCount: len(reviews),
		Signals:     n.signals(reviews),
		Aspects:     n.aspectFrequencies(category, reviews),
		Citations:   sortedKeys(citations),
		Reviews:     reviews,
		Meta:        meta,
	}
	return out
}

// aggregatePrice prefers the representative's listing price, falling back
// to the median across duplicate listings.
func (n *Normalizer) aggregatePrice(rep model.ProductCandidate, members []model.ProductCandidate) *float64 {
	if rep.Price != nil {
		v := *rep.Price
		return &v
	}
	var prices []float64
	for _, m := range members {
		if m.Price != nil {
			prices = append(prices, *m.Price)
		}
	}
	if len(prices) == 0 {
		return nil
	}
	v := median(prices)
	return &v
}

func (n *Normalizer) aggregateStars(rep model.ProductCandidate, reviews []model.Review) *float64 {
	if rep.Stars != nil {
		v := *rep.Stars
		return &v
	}
	if len(reviews) == 0 {
		return nil
	}
	sum := 0.0
	for _, r := range reviews {
		sum += r.Stars
	}
	v := sum / float64(len(reviews))
	return &v
}

func (n *Normalizer) signals(reviews []model.Review) model.Signals {
	if len(reviews) == 0 {
		return model.UnknownSignals()
	}

	verified := 0
	helpful := 0
	var ages []float64
	now := n.now()
	for _, r := range reviews {
		if r.Verified {
			verified++
		}
		helpful += r.Helpful
		if !r.Date.IsZero() {
			age := now.Sub(r.Date).Hours() / 24
			if age < 0 {
				age = 0
			}
			ages = append(ages, age)
		}
	}

	s := model.Signals{
		VerifiedPct:    float64(verified) / float64(len(reviews)),
		AvgHelpful:     float64(helpful) / float64(len(reviews)),
		RecencyDaysP50: model.SignalUnknown,
	}
	if len(ages) > 0 {
		s.RecencyDaysP50 = median(ages)
	}
	return s
}

func (n *Normalizer) aspectFrequencies(category string, reviews []model.Review) map[string]int {
	vocab := n.vocab.ForCategory(category)
	freq := make(map[string]int)
	for _, r := range reviews {
		for name, keywords := range vocab {
			if aspect.Mentions(r.Text, keywords) {
				freq[name]++
			}
		}
	}
	if len(freq) == 0 {
		return nil
	}
	return freq
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
