package rank

import (
	"math"
	"sort"

	"github.com/pickpal/pickpal/internal/model"
)

// Scoring dimensions. Every composite breakdown carries all four.
const (
	DimRating      = "rating"
	DimSentiment   = "sentiment"
	DimRecency     = "recency"
	DimHelpfulness = "helpfulness"
)

const (
	scoreMax = 10.0
	// neutralScore stands in for any dimension whose input is unknown, so
	// missing data neither rewards nor punishes a product.
	neutralScore = 5.0
	// recencyHalfLifeDays controls the exponential decay of the recency
	// dimension: a pool of six-month-old reviews scores ~3.7.
	recencyHalfLifeDays = 180.0
)

// DefaultWeights is the scoring mix used when the brief carries none.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		DimRating:      0.4,
		DimSentiment:   0.3,
		DimRecency:     0.2,
		DimHelpfulness: 0.1,
	}
}

// mergeWeights overlays brief weights on the defaults and normalizes the
// result to sum to 1. Unknown dimension names and non-positive values are
// ignored.
func mergeWeights(defaults, brief map[string]float64) map[string]float64 {
	merged := make(map[string]float64, len(defaults))
	for dim, w := range defaults {
		merged[dim] = w
	}
	for dim, w := range brief {
		if _, ok := merged[dim]; ok && w >= 0 {
			merged[dim] = w
		}
	}

	total := 0.0
	for _, w := range merged {
		total += w
	}
	if total <= 0 {
		return DefaultWeights()
	}
	for dim := range merged {
		merged[dim] /= total
	}
	return merged
}

// breakdown computes the per-dimension scores, each on [0, 10].
func breakdown(p model.EnrichedProduct, polarity float64, hasPolarity bool) map[string]float64 {
	out := map[string]float64{
		DimRating:      neutralScore,
		DimSentiment:   neutralScore,
		DimRecency:     neutralScore,
		DimHelpfulness: neutralScore,
	}
	if p.Stars != nil {
		out[DimRating] = clampScore(*p.Stars / 5.0 * scoreMax)
	}
	if hasPolarity {
		out[DimSentiment] = clampScore((polarity + 1) * 5.0)
	}
	if !p.Signals.Unknown() {
		if p.Signals.RecencyDaysP50 != model.SignalUnknown {
			out[DimRecency] = clampScore(scoreMax * math.Exp(-p.Signals.RecencyDaysP50/recencyHalfLifeDays))
		}
		out[DimHelpfulness] = clampScore(math.Min(p.Signals.AvgHelpful, scoreMax))
	}
	return out
}

func composite(parts map[string]float64, weights map[string]float64) float64 {
	score := 0.0
	for dim, w := range weights {
		score += parts[dim] * w
	}
	return clampScore(score)
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > scoreMax {
		return scoreMax
	}
	return s
}

// starPolarity estimates aspect polarity from the aggregate star rating when
// the sentiment scorer is unavailable. 3 stars map to neutral.
func starPolarity(stars *float64) float64 {
	if stars == nil {
		return 0
	}
	p := (*stars - 3.0) / 2.0
	if p < -1 {
		return -1
	}
	if p > 1 {
		return 1
	}
	return p
}

// sortRanked applies the documented ordering: score descending, then review
// count descending, then canonical id ascending.
func sortRanked(items []model.RankedProduct) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].ReviewCount != items[j].ReviewCount {
			return items[i].ReviewCount > items[j].ReviewCount
		}
		return items[i].CanonicalID < items[j].CanonicalID
	})
}
