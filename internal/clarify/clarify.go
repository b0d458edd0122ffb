// Package clarify decides, via a value-of-information policy, whether a
// clarifying question is worth asking before discovery runs.
package clarify

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pickpal/pickpal/internal/config"
	"github.com/pickpal/pickpal/internal/model"
	"github.com/pickpal/pickpal/internal/source"
)

const componentName = "clarifier"

// Brief slots the clarifier can ask about, in descending value order.
const (
	SlotBudget     = "budget"
	SlotUseCase    = "use_case"
	SlotPriorities = "priorities"
)

var slotOrder = []string{SlotBudget, SlotUseCase, SlotPriorities}

var slotQuestions = map[string]string{
	SlotBudget:     "What is your budget? (e.g. under $150)",
	SlotUseCase:    "What will you mainly use it for?",
	SlotPriorities: "Which aspects matter most to you? (e.g. battery life, comfort, price)",
}

// priceSensitivityWords mark a query where the budget slot is load-bearing:
// without a number the budget constraint cannot be verified at all.
var priceSensitivityWords = []string{"cheap", "affordable", "budget", "inexpensive", "value"}

// Clarifier implements the VOI policy: for each missing slot it simulates
// two plausible answers against probe stats and asks only when the simulated
// answers would move the reference ranking by more than tau.
type Clarifier struct {
	prober       *prober
	tau          float64
	maxQuestions int
}

func New(registry *source.Registry, cfg config.ClarifyConfig) *Clarifier {
	c := &Clarifier{
		prober:       newProber(registry, cfg.ProbeTimeout(), cfg.ProbeCacheSize),
		tau:          cfg.Tau,
		maxQuestions: cfg.MaxQuestions,
	}
	if c.tau <= 0 {
		c.tau = 0.75
	}
	if c.maxQuestions <= 0 {
		c.maxQuestions = 2
	}
	if c.maxQuestions > 2 {
		c.maxQuestions = 2
	}
	return c
}

// Plan returns a clarification request covering the missing slots worth
// asking about, or nil when no question clears the VOI bar.
func (c *Clarifier) Plan(ctx context.Context, brief *model.ShoppingBrief) *model.ClarificationRequest {
	missing := MissingSlots(brief)
	if len(missing) == 0 {
		return nil
	}

	stats := c.prober.stats(ctx, brief)

	var ask []string
	for _, slot := range missing {
		if len(ask) == c.maxQuestions {
			break
		}
		if c.infeasibleWithout(slot, brief) {
			ask = append(ask, slot)
			continue
		}
		delta := c.estimateDelta(slot, stats)
		zap.L().Debug("voi estimate",
			zap.String("request_id", brief.Trace.RequestID),
			zap.String("slot", slot),
			zap.Float64("delta", delta),
			zap.Float64("tau", c.tau),
		)
		if delta > c.tau {
			ask = append(ask, slot)
		}
	}
	if len(ask) == 0 {
		return nil
	}

	req := &model.ClarificationRequest{
		Trace:   brief.Trace.Next(model.StepClarify, componentName),
		Missing: ask,
	}
	for _, slot := range ask {
		req.Questions = append(req.Questions, slotQuestions[slot])
	}
	return req
}

// MissingSlots lists the unset brief slots in descending value order.
func MissingSlots(brief *model.ShoppingBrief) []string {
	var missing []string
	for _, slot := range slotOrder {
		switch slot {
		case SlotBudget:
			if _, ok := brief.MaxPrice(); !ok {
				missing = append(missing, slot)
			}
		case SlotUseCase:
			if brief.UseCase == "" {
				missing = append(missing, slot)
			}
		case SlotPriorities:
			if len(brief.Weights) == 0 {
				missing = append(missing, slot)
			}
		}
	}
	return missing
}

func (c *Clarifier) infeasibleWithout(slot string, brief *model.ShoppingBrief) bool {
	if slot != SlotBudget {
		return false
	}
	lower := strings.ToLower(brief.Query)
	for _, w := range priceSensitivityWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// estimateDelta simulates two plausible answers for the slot and measures
// how far apart they would move a reference composite built from the probe
// pool. The composite lives on a 0-10 scale, so tau is a score delta.
func (c *Clarifier) estimateDelta(slot string, stats ProbeStats) float64 {
	if stats.Empty() {
		return 0
	}
	switch slot {
	case SlotBudget:
		return c.budgetDelta(stats)
	case SlotUseCase, SlotPriorities:
		return c.weightDelta(stats)
	}
	return 0
}

// budgetDelta compares a tight budget (25th price percentile) against a
// loose one (75th): the mean rating score of products that survive each cut.
func (c *Clarifier) budgetDelta(stats ProbeStats) float64 {
	tight, ok1 := stats.PricePercentile(0.25)
	loose, ok2 := stats.PricePercentile(0.75)
	if !ok1 || !ok2 || tight == loose {
		return 0
	}
	return math.Abs(meanRatingUnderBudget(stats, tight) - meanRatingUnderBudget(stats, loose))
}

func meanRatingUnderBudget(stats ProbeStats, budget float64) float64 {
	var sum float64
	var n int
	for _, item := range stats.Items {
		if item.HasPrice && item.Price > budget {
			continue
		}
		sum += ratingScore(item)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// weightDelta compares a rating-led scoring preset against a value-led one
// (rating blended with cheapness). A uniform shift across the pool leaves
// the ranking unchanged, so the delta is the spread of per-item shifts, not
// their size. Homogeneous pools score near zero and the question is skipped.
func (c *Clarifier) weightDelta(stats ProbeStats) float64 {
	maxPrice := 0.0
	for _, item := range stats.Items {
		if item.HasPrice && item.Price > maxPrice {
			maxPrice = item.Price
		}
	}
	if maxPrice == 0 {
		return 0
	}

	shifts := make([]float64, 0, len(stats.Items))
	var mean float64
	for _, item := range stats.Items {
		cheapness := 0.0
		if item.HasPrice {
			cheapness = 10 * (1 - item.Price/maxPrice)
		}
		shift := 0.5 * (ratingScore(item) - cheapness)
		shifts = append(shifts, shift)
		mean += shift
	}
	mean /= float64(len(shifts))

	var deviation float64
	for _, shift := range shifts {
		deviation += math.Abs(shift - mean)
	}
	return deviation / float64(len(shifts))
}

func ratingScore(item ProbeItem) float64 {
	if !item.HasStars {
		return 5.0
	}
	return item.Stars / 5.0 * 10.0
}

var priceRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// priorityWeights is the scoring preset applied when the user names what
// matters to them: their stated aspects flow through review sentiment, so
// that dimension gets the largest share.
func priorityWeights() map[string]float64 {
	return map[string]float64{
		"rating":      0.30,
		"sentiment":   0.45,
		"recency":     0.15,
		"helpfulness": 0.10,
	}
}

// Apply folds answers into a copy of the brief. Blank answers and skipped
// requests leave the brief untouched.
func (c *Clarifier) Apply(brief *model.ShoppingBrief, answer model.ClarificationAnswer) *model.ShoppingBrief {
	updated := brief.Clone()
	if answer.Skipped {
		return updated
	}

	for slot, text := range answer.Answers {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		switch slot {
		case SlotBudget:
			if m := priceRe.FindString(text); m != "" {
				if price, err := strconv.ParseFloat(m, 64); err == nil {
					if updated.Constraints == nil {
						updated.Constraints = make(map[string]any)
					}
					updated.Constraints["max_price"] = price
				}
			}
		case SlotUseCase:
			updated.UseCase = text
		case SlotPriorities:
			if updated.Constraints == nil {
				updated.Constraints = make(map[string]any)
			}
			updated.Constraints["priorities"] = text
			if len(updated.Weights) == 0 {
				updated.Weights = priorityWeights()
			}
		}
	}
	return updated
}
