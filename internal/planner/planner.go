// Package planner owns the request state machine: parse, optional
// clarification, discover, normalize, rank, verify, and the bounded
// adaptation loop.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pickpal/pickpal/internal/clarify"
	"github.com/pickpal/pickpal/internal/config"
	"github.com/pickpal/pickpal/internal/discovery"
	"github.com/pickpal/pickpal/internal/model"
	"github.com/pickpal/pickpal/internal/normalize"
	"github.com/pickpal/pickpal/internal/rank"
	"github.com/pickpal/pickpal/internal/store"
	"github.com/pickpal/pickpal/internal/verify"
)

const componentName = "planner"

// ErrAdaptationBudgetExhausted marks a verification failure that survived
// both adaptation attempts. The planner still returns a degraded result;
// the sentinel only appears in logs and notes.
var ErrAdaptationBudgetExhausted = errors.New("planner: adaptation budget exhausted")

// state is the planner's position in the pipeline.
type state string

const (
	stateDiscover  state = "discover"
	stateNormalize state = "normalize"
	stateRank      state = "rank"
	stateVerify    state = "verify"
	stateAdapt     state = "adapt"
	stateReturn    state = "return"
	stateFail      state = "fail"
)

// Request is one pipeline invocation.
type Request struct {
	Query       string         `json:"query"`
	Constraints map[string]any `json:"constraints,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
}

// Planner sequences the pipeline components for one request at a time.
// Safe for concurrent use: all per-request state lives on the stack.
type Planner struct {
	clarifier  *clarify.Clarifier
	channel    clarify.Channel // nil means clarification is disabled
	discoverer *discovery.Discoverer
	normalizer *normalize.Normalizer
	ranker     *rank.Ranker
	verifier   *verify.Verifier
	store      store.Store
	cfg        config.PipelineConfig
	clarifyCfg config.ClarifyConfig
}

func New(
	clarifier *clarify.Clarifier,
	channel clarify.Channel,
	discoverer *discovery.Discoverer,
	normalizer *normalize.Normalizer,
	ranker *rank.Ranker,
	verifier *verify.Verifier,
	st store.Store,
	cfg config.PipelineConfig,
	clarifyCfg config.ClarifyConfig,
) *Planner {
	return &Planner{
		clarifier:  clarifier,
		channel:    channel,
		discoverer: discoverer,
		normalizer: normalizer,
		ranker:     ranker,
		verifier:   verifier,
		store:      st,
		cfg:        cfg,
		clarifyCfg: clarifyCfg,
	}
}

// run carries the evolving per-request state through the machine.
type run struct {
	brief      *model.ShoppingBrief
	pool       []model.ProductCandidate
	enriched   []model.EnrichedProduct
	totalFound int
	ranked     []model.RankedProduct
	report     *model.VerificationReport
	relaxed    verify.Relaxations
	notes      []string

	discoverBudget int
	rankBudget     int
	degraded       bool
	failErr        error
}

// Search runs the whole pipeline for one query. A non-nil error means the
// request failed outright; verification shortfalls come back as a degraded
// Result instead.
func (p *Planner) Search(ctx context.Context, req Request) (*model.Result, error) {
	start := time.Now()
	trace := model.NewTrace("", model.StepParse, componentName)
	log := zap.L().With(zap.String("request_id", trace.RequestID))

	if deadline := p.cfg.RequestDeadline(); deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	r := &run{
		brief:          p.parseBrief(trace, req.Query, req.Constraints),
		discoverBudget: 1,
		rankBudget:     1,
	}
	log.Info("search started", zap.String("query", r.brief.Query), zap.String("category", r.brief.Category))

	if err := p.store.CreateSearch(ctx, &model.SearchRecord{
		RequestID: trace.RequestID,
		SessionID: req.SessionID,
		Query:     r.brief.Query,
		CreatedAt: start.UTC(),
	}); err != nil {
		log.Warn("record search failed", zap.Error(err))
	}

	p.clarify(ctx, req.SessionID, r)

	st := stateDiscover
	for {
		switch st {
		case stateDiscover:
			st = p.discover(ctx, r)
		case stateNormalize:
			st = p.normalize(ctx, r)
		case stateRank:
			st = p.rank(ctx, r)
		case stateVerify:
			st = p.verify(r)
		case stateAdapt:
			st = p.adapt(r)
		case stateReturn:
			result := p.buildResult(r)
			p.finish(ctx, trace.RequestID, model.SearchReturned, result, start)
			log.Info("search returned",
				zap.Int("recommendations", len(result.Recommendations)),
				zap.Bool("degraded", result.Degraded),
				zap.Duration("took", time.Since(start)),
			)
			return result, nil
		case stateFail:
			p.finish(ctx, trace.RequestID, model.SearchFailed, nil, start)
			log.Warn("search failed", zap.Error(r.failErr))
			return nil, r.failErr
		}
	}
}

// clarify runs the optional CLARIFY state: session answers are applied
// first, then the VOI policy decides whether a question is worth the wait.
func (p *Planner) clarify(ctx context.Context, sessionID string, r *run) {
	if sessionID != "" {
		answers, err := p.store.GetSessionAnswers(ctx, sessionID)
		if err != nil {
			zap.L().Warn("session answers unavailable", zap.String("session_id", sessionID), zap.Error(err))
		} else if len(answers) > 0 {
			r.brief = p.clarifier.Apply(r.brief, model.ClarificationAnswer{Answers: answers})
		}
	}
	if p.channel == nil {
		return
	}

	creq := p.clarifier.Plan(ctx, r.brief)
	if creq == nil {
		return
	}

	askCtx, cancel := context.WithTimeout(ctx, p.clarifyCfg.AnswerTimeout())
	answer, err := p.channel.Ask(askCtx, *creq)
	cancel()
	if err != nil {
		if !errors.Is(err, clarify.ErrAnswerTimeout) && !errors.Is(err, context.DeadlineExceeded) {
			zap.L().Warn("clarification channel failed", zap.Error(err))
		}
		answer = model.ClarificationAnswer{Trace: creq.Trace, Skipped: true}
	}

	r.brief = p.clarifier.Apply(r.brief, answer)
	if sessionID != "" && len(answer.Answers) > 0 {
		if err := p.store.PutSessionAnswers(ctx, sessionID, answer.Answers); err != nil {
			zap.L().Warn("persist session answers failed", zap.Error(err))
		}
	}
}

func (p *Planner) discover(ctx context.Context, r *run) state {
	pool, err := p.discoverer.Discover(ctx, r.brief)
	if err != nil {
		r.failErr = p.userFacing(err)
		return stateFail
	}
	r.pool = pool
	return stateNormalize
}

func (p *Planner) normalize(ctx context.Context, r *run) state {
	enriched, err := p.normalizer.Normalize(ctx, r.brief.Category, r.pool)
	if err != nil {
		r.failErr = eris.Wrap(err, "planner: normalize")
		return stateFail
	}
	r.enriched = enriched
	r.totalFound = len(enriched)
	return stateRank
}

func (p *Planner) rank(ctx context.Context, r *run) state {
	ranked, notes, err := p.ranker.Rank(ctx, r.brief, r.enriched)
	if err != nil {
		r.failErr = eris.Wrap(err, "planner: rank")
		return stateFail
	}
	r.ranked = ranked
	r.notes = append(r.notes, notes...)
	return stateVerify
}

func (p *Planner) verify(r *run) state {
	r.report = p.verifier.Verify(r.brief, r.ranked, r.relaxed)
	if r.report.Passed {
		// Passing only because a threshold was lowered is still a
		// shortfall against what the user asked for.
		if r.relaxed.MinReviewsSet && r.belowOriginalEvidence() {
			r.degraded = true
			r.notes = append(r.notes, r.report.Notes...)
		}
		return stateReturn
	}
	return stateAdapt
}

func (r *run) belowOriginalEvidence() bool {
	for _, p := range r.ranked {
		if p.ReviewCount < r.brief.Success.MinReviews {
			return true
		}
	}
	return false
}

// adapt routes failed checks to the stage their hints name, spending at
// most one re-discovery and one re-rank per request. Out of budget means a
// degraded return, never a silent drop.
func (p *Planner) adapt(r *run) state {
	var rankHint, discoverHint *model.AdaptationHint
	for i := range r.report.Hints {
		h := &r.report.Hints[i]
		switch h.Target {
		case model.AdaptRank:
			if rankHint == nil {
				rankHint = h
			}
		case model.AdaptDiscover:
			if discoverHint == nil {
				discoverHint = h
			}
		}
	}

	if rankHint != nil && r.rankBudget > 0 {
		r.rankBudget--
		r.notes = append(r.notes, rankHint.Note)
		if rankHint.MaxPrice > 0 {
			kept := filterByPrice(r.enriched, rankHint.MaxPrice)
			if len(kept) > 0 {
				r.enriched = kept
				zap.L().Info("adapting: re-rank with filtered pool",
					zap.String("request_id", r.brief.Trace.RequestID),
					zap.Float64("max_price", rankHint.MaxPrice),
					zap.Int("remaining", len(kept)),
				)
				return stateRank
			}
			r.notes = append(r.notes, fmt.Sprintf("no candidates within budget %.2f", rankHint.MaxPrice))
		} else {
			return stateRank
		}
	}

	if discoverHint != nil && r.discoverBudget > 0 {
		r.discoverBudget--
		r.notes = append(r.notes, discoverHint.Note)
		if discoverHint.MinReviews >= 0 && discoverHint.Check == model.CheckEvidence {
			r.relaxed = verify.Relaxations{MinReviews: discoverHint.MinReviews, MinReviewsSet: true}
		}
		zap.L().Info("adapting: re-discover",
			zap.String("request_id", r.brief.Trace.RequestID),
			zap.String("check", discoverHint.Check),
		)
		r.brief.Trace = r.brief.Trace.Next(model.StepAdapt, componentName)
		return stateDiscover
	}

	r.degraded = true
	r.notes = append(r.notes, r.report.Notes...)
	zap.L().Warn("adaptation budget exhausted, returning degraded result",
		zap.String("request_id", r.brief.Trace.RequestID),
		zap.Strings("failed_checks", r.report.FailedChecks()),
		zap.Error(ErrAdaptationBudgetExhausted),
	)
	return stateReturn
}

func (p *Planner) buildResult(r *run) *model.Result {
	result := &model.Result{
		RequestID:  r.brief.Trace.RequestID,
		Query:      r.brief.Query,
		TotalFound: r.totalFound,
		Degraded:   r.degraded,
		Notes:      dedupeNotes(r.notes),
	}
	for _, p := range r.ranked {
		result.Recommendations = append(result.Recommendations, model.RecommendationFrom(p))
	}
	return result
}

func (p *Planner) finish(ctx context.Context, requestID string, st model.SearchState, result *model.Result, start time.Time) {
	degraded := result != nil && result.Degraded
	if err := p.store.CompleteSearch(ctx, requestID, st, degraded, result, time.Since(start)); err != nil {
		zap.L().Warn("complete search record failed", zap.String("request_id", requestID), zap.Error(err))
	}
}

// userFacing maps discovery failures onto the messages shown to users.
func (p *Planner) userFacing(err error) error {
	switch {
	case errors.Is(err, discovery.ErrInsufficientCandidates):
		return eris.Wrap(err, "not enough matching products were found; try a broader query")
	case errors.Is(err, discovery.ErrSourceUnavailable):
		return eris.Wrap(err, "no product source is reachable right now; try again later")
	case errors.Is(err, discovery.ErrDiscoveryTimeout):
		return eris.Wrap(err, "product discovery timed out; try again later")
	}
	return eris.Wrap(err, "planner: discover")
}

func filterByPrice(products []model.EnrichedProduct, maxPrice float64) []model.EnrichedProduct {
	var kept []model.EnrichedProduct
	for _, p := range products {
		if p.Price != nil && *p.Price <= maxPrice {
			kept = append(kept, p)
		}
	}
	return kept
}

func dedupeNotes(notes []string) []string {
	if len(notes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(notes))
	var out []string
	for _, n := range notes {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
