// Package rank turns enriched products into a scored, diverse top-K with
// pros and cons extracted from aspect sentiment.
package rank

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pickpal/pickpal/internal/aspect"
	"github.com/pickpal/pickpal/internal/config"
	"github.com/pickpal/pickpal/internal/model"
	"github.com/pickpal/pickpal/internal/sentiment"
)

const componentName = "ranker"

// Ranker computes composite scores and selects the top K.
type Ranker struct {
	scorer           sentiment.Scorer
	vocab            aspect.Vocabulary
	defaultWeights   map[string]float64
	neutralCutoff    float64
	diversityKey     string
	sentimentTimeout time.Duration
	maxConcurrency   int
}

func New(scorer sentiment.Scorer, vocab aspect.Vocabulary, cfg config.RankConfig) *Ranker {
	r := &Ranker{
		scorer:           scorer,
		vocab:            vocab,
		defaultWeights:   mergeWeights(DefaultWeights(), cfg.Weights),
		neutralCutoff:    cfg.NeutralCutoff,
		diversityKey:     cfg.DiversityKey,
		sentimentTimeout: cfg.SentimentTimeout(),
		maxConcurrency:   cfg.MaxConcurrency,
	}
	if r.neutralCutoff <= 0 {
		r.neutralCutoff = 0.2
	}
	if r.diversityKey == "" {
		r.diversityKey = "brand"
	}
	if r.sentimentTimeout <= 0 {
		r.sentimentTimeout = 10 * time.Second
	}
	if r.maxConcurrency <= 0 {
		r.maxConcurrency = 8
	}
	return r
}

// Rank scores every product concurrently, sorts with the deterministic
// tie-break, and selects up to success.k items honoring the diversity flag.
// Returned notes record any relaxation applied during selection.
func (r *Ranker) Rank(ctx context.Context, brief *model.ShoppingBrief, products []model.EnrichedProduct) ([]model.RankedProduct, []string, error) {
	if len(products) == 0 {
		return nil, nil, nil
	}

	weights := mergeWeights(r.defaultWeights, brief.Weights)
	scored := make([]model.RankedProduct, len(products))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrency)
	for i, p := range products {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scored[i] = r.score(gctx, brief, p, weights)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrap(err, "ranker: score products")
	}

	sortRanked(scored)

	k := brief.Success.K
	if k <= 0 {
		k = 3
	}
	if k > len(scored) {
		k = len(scored)
	}
	top, notes := r.selectTopK(scored, k, brief.Success.Diversity)

	zap.L().Info("ranked products",
		zap.String("request_id", brief.Trace.RequestID),
		zap.Int("scored", len(scored)),
		zap.Int("selected", len(top)),
	)
	return top, notes, nil
}

func (r *Ranker) score(ctx context.Context, brief *model.ShoppingBrief, p model.EnrichedProduct, weights map[string]float64) model.RankedProduct {
	polarities := r.aspectPolarities(ctx, brief.Category, p)
	avg, hasAvg := frequencyWeightedPolarity(p.Aspects, polarities)
	parts := breakdown(p, avg, hasAvg)
	pros, cons := r.prosAndCons(p.Aspects, polarities)

	return model.RankedProduct{
		Trace:       p.Trace.Next(model.StepRank, componentName),
		CanonicalID: p.CanonicalID,
		Name:        p.Name,
		Brand:       p.Brand,
		Score:       composite(parts, weights),
		Pros:        pros,
		Cons:        cons,
		Breakdown:   parts,
		Price:       p.Price,
		Stars:       p.Stars,
		ReviewCount: p.ReviewCount,
		Meta:        p.Meta,
	}
}

// aspectPolarities scores each mentioned aspect over the reviews mentioning
// it. A scorer failure falls back to a star-derived estimate rather than
// failing the product.
func (r *Ranker) aspectPolarities(ctx context.Context, category string, p model.EnrichedProduct) map[string]float64 {
	if len(p.Aspects) == 0 {
		return nil
	}
	vocab := r.vocab.ForCategory(category)

	polarities := make(map[string]float64, len(p.Aspects))
	for _, name := range sortedAspects(p.Aspects) {
		texts := reviewsMentioning(p.Reviews, vocab[name])
		if len(texts) == 0 {
			continue
		}

		scoreCtx, cancel := context.WithTimeout(ctx, r.sentimentTimeout)
		polarity, err := r.scorer.Score(scoreCtx, name, texts)
		cancel()
		if err != nil {
			zap.L().Warn("aspect sentiment failed, using star fallback",
				zap.String("request_id", p.Trace.RequestID),
				zap.String("aspect", name),
				zap.Error(err),
			)
			polarity = starPolarity(p.Stars)
		}
		polarities[name] = sentiment.Clamp(polarity)
	}
	return polarities
}

func reviewsMentioning(reviews []model.Review, keywords []string) []string {
	var texts []string
	for _, rev := range reviews {
		if aspect.Mentions(rev.Text, keywords) {
			texts = append(texts, rev.Text)
		}
	}
	return texts
}

// frequencyWeightedPolarity averages aspect polarities weighted by how many
// reviews mention each aspect.
func frequencyWeightedPolarity(freqs map[string]int, polarities map[string]float64) (float64, bool) {
	var weighted, total float64
	for name, polarity := range polarities {
		f := float64(freqs[name])
		if f <= 0 {
			continue
		}
		weighted += polarity * f
		total += f
	}
	if total == 0 {
		return 0, false
	}
	return weighted / total, true
}

// prosAndCons picks up to 3 aspects each way, ranked by |polarity| weighted
// by mention frequency. Near-neutral aspects appear in neither list.
func (r *Ranker) prosAndCons(freqs map[string]int, polarities map[string]float64) ([]string, []string) {
	type weighted struct {
		name   string
		weight float64
	}
	var positive, negative []weighted
	for name, polarity := range polarities {
		w := polarity * float64(freqs[name])
		switch {
		case polarity >= r.neutralCutoff:
			positive = append(positive, weighted{name, w})
		case polarity <= -r.neutralCutoff:
			negative = append(negative, weighted{name, -w})
		}
	}

	byWeight := func(items []weighted) {
		sort.Slice(items, func(i, j int) bool {
			if items[i].weight != items[j].weight {
				return items[i].weight > items[j].weight
			}
			return items[i].name < items[j].name
		})
	}
	byWeight(positive)
	byWeight(negative)

	var pros, cons []string
	for _, item := range positive[:min(3, len(positive))] {
		pros = append(pros, fmt.Sprintf("strong %s", aspectPhrase(item.name)))
	}
	for _, item := range negative[:min(3, len(negative))] {
		cons = append(cons, fmt.Sprintf("complaints about %s", aspectPhrase(item.name)))
	}
	return pros, cons
}

func aspectPhrase(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

// selectTopK takes the top k from an already-sorted list. With diversity on,
// no two picks share the diversity key; if that leaves fewer than k, the
// constraint is relaxed and noted.
func (r *Ranker) selectTopK(sorted []model.RankedProduct, k int, diversity bool) ([]model.RankedProduct, []string) {
	if !diversity {
		return sorted[:min(k, len(sorted))], nil
	}

	var picked []model.RankedProduct
	seen := make(map[string]struct{})
	for _, p := range sorted {
		if len(picked) == k {
			break
		}
		key := r.diversityValue(p)
		if _, dup := seen[key]; dup && key != "" {
			continue
		}
		seen[key] = struct{}{}
		picked = append(picked, p)
	}
	if len(picked) == k {
		return picked, nil
	}

	// Not enough distinct keys: fill remaining slots by score order.
	var notes []string
	have := make(map[string]struct{}, len(picked))
	for _, p := range picked {
		have[p.CanonicalID] = struct{}{}
	}
	for _, p := range sorted {
		if len(picked) == k {
			break
		}
		if _, ok := have[p.CanonicalID]; ok {
			continue
		}
		picked = append(picked, p)
		have[p.CanonicalID] = struct{}{}
	}
	if len(seen) < k {
		notes = append(notes, fmt.Sprintf("diversity relaxed: only %d distinct %s values available", len(seen), r.diversityKey))
	}
	sortRanked(picked)
	return picked, notes
}

func (r *Ranker) diversityValue(p model.RankedProduct) string {
	if r.diversityKey == "brand" {
		return strings.ToLower(p.Brand)
	}
	return strings.ToLower(p.Meta[r.diversityKey])
}

func sortedAspects(freqs map[string]int) []string {
	names := make([]string, 0, len(freqs))
	for name := range freqs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
