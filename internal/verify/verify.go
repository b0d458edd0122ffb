// Package verify runs independent constraint checks over the ranked top-K
// and tells the planner how to recover when one fails.
package verify

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/pickpal/pickpal/internal/model"
)

const componentName = "verifier"

// Relaxations records thresholds the planner already loosened during
// adaptation, so the matching checks report a note instead of failing again.
type Relaxations struct {
	MinReviews    int  // effective threshold after lowering, 0 if untouched
	MinReviewsSet bool // distinguishes "lowered to 0" from "never lowered"
}

// Verifier checks budget, availability, duplication, and evidence.
type Verifier struct{}

func New() *Verifier {
	return &Verifier{}
}

// Verify runs every check and reports pass/fail per check plus adaptation
// hints for the failures. Checks are independent: one failure never hides
// another.
func (v *Verifier) Verify(brief *model.ShoppingBrief, ranked []model.RankedProduct, relaxed Relaxations) *model.VerificationReport {
	report := &model.VerificationReport{
		Trace:  brief.Trace.Next(model.StepVerify, componentName),
		Passed: true,
		Checks: make(map[string]bool),
	}

	v.checkBudget(brief, ranked, report)
	v.checkAvailability(ranked, report)
	v.checkDuplicates(ranked, report)
	v.checkEvidence(brief, ranked, relaxed, report)

	for _, ok := range report.Checks {
		if !ok {
			report.Passed = false
			break
		}
	}

	zap.L().Info("verification complete",
		zap.String("request_id", brief.Trace.RequestID),
		zap.Bool("passed", report.Passed),
		zap.Strings("failed", report.FailedChecks()),
	)
	return report
}

// checkBudget requires every returned item's price at or under max_price.
// An item with no price at all cannot be shown as within budget, so it
// fails the check too.
func (v *Verifier) checkBudget(brief *model.ShoppingBrief, ranked []model.RankedProduct, report *model.VerificationReport) {
	maxPrice, ok := brief.MaxPrice()
	if !ok {
		report.Checks[model.CheckBudget] = true
		return
	}

	var violations []string
	for _, p := range ranked {
		switch {
		case p.Price == nil:
			violations = append(violations, fmt.Sprintf("%s has no price information", p.Name))
		case *p.Price > maxPrice:
			violations = append(violations, fmt.Sprintf("%s priced %.2f over budget %.2f", p.Name, *p.Price, maxPrice))
		}
	}

	passed := len(violations) == 0
	report.Checks[model.CheckBudget] = passed
	if !passed {
		report.Notes = append(report.Notes, violations...)
		report.Hints = append(report.Hints, model.AdaptationHint{
			Check:    model.CheckBudget,
			Target:   model.AdaptRank,
			Note:     fmt.Sprintf("filter pool to max_price %.2f and re-rank", maxPrice),
			MaxPrice: maxPrice,
		})
	}
}

func (v *Verifier) checkAvailability(ranked []model.RankedProduct, report *model.VerificationReport) {
	var outOfStock []string
	for _, p := range ranked {
		if p.Meta["in_stock"] == "false" {
			outOfStock = append(outOfStock, p.Name)
		}
	}

	passed := len(outOfStock) == 0
	report.Checks[model.CheckOutOfStock] = passed
	if !passed {
		report.Notes = append(report.Notes, fmt.Sprintf("out of stock: %v", outOfStock))
		report.Hints = append(report.Hints, model.AdaptationHint{
			Check:  model.CheckOutOfStock,
			Target: model.AdaptDiscover,
			Note:   "re-discover excluding out-of-stock listings",
		})
	}
}

// checkDuplicates re-checks what the ranker should already guarantee.
func (v *Verifier) checkDuplicates(ranked []model.RankedProduct, report *model.VerificationReport) {
	seen := make(map[string]string, len(ranked))
	var dups []string
	for _, p := range ranked {
		if prev, ok := seen[p.CanonicalID]; ok {
			dups = append(dups, fmt.Sprintf("%s duplicates %s", p.Name, prev))
			continue
		}
		seen[p.CanonicalID] = p.Name
	}
	sort.Strings(dups)

	passed := len(dups) == 0
	report.Checks[model.CheckDuplicate] = passed
	if !passed {
		report.Notes = append(report.Notes, dups...)
		report.Hints = append(report.Hints, model.AdaptationHint{
			Check:  model.CheckDuplicate,
			Target: model.AdaptDiscover,
			Note:   "re-discover with stricter deduplication",
		})
	}
}

// checkEvidence requires review_count at or above success.min_reviews for
// every returned item. If the planner already lowered the threshold, the
// relaxation is noted and the lowered value applies.
func (v *Verifier) checkEvidence(brief *model.ShoppingBrief, ranked []model.RankedProduct, relaxed Relaxations, report *model.VerificationReport) {
	threshold := brief.Success.MinReviews
	if relaxed.MinReviewsSet {
		threshold = relaxed.MinReviews
		report.Notes = append(report.Notes, fmt.Sprintf("evidence threshold relaxed to %d reviews", threshold))
	}
	if threshold <= 0 {
		report.Checks[model.CheckEvidence] = true
		return
	}

	lowest := -1
	var thin []string
	for _, p := range ranked {
		if p.ReviewCount < threshold {
			thin = append(thin, fmt.Sprintf("%s has %d reviews, need %d", p.Name, p.ReviewCount, threshold))
			if lowest < 0 || p.ReviewCount < lowest {
				lowest = p.ReviewCount
			}
		}
	}

	passed := len(thin) == 0
	report.Checks[model.CheckEvidence] = passed
	if !passed {
		report.Notes = append(report.Notes, thin...)
		report.Hints = append(report.Hints, model.AdaptationHint{
			Check:      model.CheckEvidence,
			Target:     model.AdaptDiscover,
			Note:       fmt.Sprintf("lower min_reviews to %d and expand sources", lowest),
			MinReviews: lowest,
		})
	}
}
