package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pickpal/pickpal/internal/aspect"
	"github.com/pickpal/pickpal/internal/clarify"
	"github.com/pickpal/pickpal/internal/config"
	"github.com/pickpal/pickpal/internal/discovery"
	"github.com/pickpal/pickpal/internal/model"
	"github.com/pickpal/pickpal/internal/normalize"
	"github.com/pickpal/pickpal/internal/rank"
	"github.com/pickpal/pickpal/internal/sentiment"
	"github.com/pickpal/pickpal/internal/source"
	"github.com/pickpal/pickpal/internal/store"
	"github.com/pickpal/pickpal/internal/verify"
)

func ptr(v float64) *float64 { return &v }

func makeReviews(n int, stars float64, texts ...string) []model.Review {
	now := time.Now()
	out := make([]model.Review, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Review{
			Text:     texts[i%len(texts)],
			Stars:    stars,
			Date:     now.AddDate(0, 0, -(i%90 + 1)),
			Helpful:  i % 5,
			Verified: i%2 == 0,
		})
	}
	return out
}

func product(name, brand string, price, stars float64, reviews []model.Review) model.ProductCandidate {
	return model.ProductCandidate{
		Name:    name,
		Brand:   brand,
		Price:   ptr(price),
		Stars:   ptr(stars),
		Reviews: reviews,
	}
}

var earbudTexts = []string{
	"great sound quality and clear audio",
	"amazing battery life, the charge lasts for hours",
	"comfortable fit, easy to wear while running",
	"good value for the price",
}

func earbudPool() map[string][]model.ProductCandidate {
	return map[string][]model.ProductCandidate{
		"wireless_earbuds": {
			product("Sony WF-1000XM5", "Sony", 148, 4.7, makeReviews(30, 5, earbudTexts...)),
			product("Jabra Elite 8 Active", "Jabra", 129, 4.5, makeReviews(30, 4, earbudTexts...)),
			product("Anker Soundcore Liberty 4", "Anker", 89, 4.3, makeReviews(30, 4, earbudTexts...)),
			product("Beats Fit Pro", "Beats", 139, 4.2, makeReviews(30, 4, earbudTexts...)),
			product("EarFun Air Pro 4", "EarFun", 69, 4.0, makeReviews(30, 4, earbudTexts...)),
		},
	}
}

// newTestPlanner wires the whole pipeline against an in-memory pool.
func newTestPlanner(t *testing.T, pools map[string][]model.ProductCandidate, channel clarify.Channel) (*Planner, *store.MemoryStore) {
	t.Helper()
	cfg := config.Default()

	registry := source.NewRegistry()
	registry.Register(source.NewFixtureFromPools(pools))

	vocab := aspect.Default()
	st := store.NewMemory()

	p := New(
		clarify.New(registry, cfg.Clarify),
		channel,
		discovery.New(registry, cfg.Discovery, cfg.Pipeline.MinCandidates, cfg.Normalize.DedupeThreshold),
		normalize.New(vocab, cfg.Normalize),
		rank.New(sentiment.NewLexicon(), vocab, cfg.Rank),
		verify.New(),
		st,
		cfg.Pipeline,
		cfg.Clarify,
	)
	return p, st
}

func TestSearch_HappyPath(t *testing.T) {
	p, st := newTestPlanner(t, earbudPool(), nil)

	result, err := p.Search(context.Background(), Request{
		Query: "best wireless earbuds under $150 for running",
	})
	require.NoError(t, err)

	assert.Len(t, result.Recommendations, 3)
	assert.False(t, result.Degraded)
	assert.Equal(t, 5, result.TotalFound)
	assert.Len(t, result.RequestID, 8)

	for _, rec := range result.Recommendations {
		require.NotNil(t, rec.Price)
		assert.LessOrEqual(t, *rec.Price, 150.0)
		assert.LessOrEqual(t, len(rec.Pros), 3)
		assert.LessOrEqual(t, len(rec.Cons), 3)
	}
	for i := 1; i < len(result.Recommendations); i++ {
		assert.GreaterOrEqual(t, result.Recommendations[i-1].Score, result.Recommendations[i].Score)
	}

	rec, err := st.GetSearch(context.Background(), result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.SearchReturned, rec.State)
	assert.False(t, rec.Degraded)
}

func TestSearch_BudgetAdaptationRefiltersAndReranks(t *testing.T) {
	texts := []string{"sturdy and stable desk", "quiet motor, smooth operation", "good value desk"}
	pools := map[string][]model.ProductCandidate{
		"standing_desk": {
			product("Uplift V2 Commercial", "Uplift", 450, 4.9, makeReviews(8, 5, texts...)),
			product("Fully Jarvis Bamboo", "Fully", 400, 4.8, makeReviews(8, 5, texts...)),
			product("Flexispot E7 Pro", "Flexispot", 250, 4.5, makeReviews(8, 4, texts...)),
			product("Vari Essential", "Vari", 280, 4.4, makeReviews(8, 4, texts...)),
			product("Monoprice Sit-Stand", "Monoprice", 220, 4.2, makeReviews(8, 4, texts...)),
		},
	}
	p, _ := newTestPlanner(t, pools, nil)

	result, err := p.Search(context.Background(), Request{Query: "best standing desk under $300"})
	require.NoError(t, err)

	assert.Len(t, result.Recommendations, 3)
	assert.False(t, result.Degraded)
	// the count reflects everything discovered, not the price-filtered pool
	assert.Equal(t, 5, result.TotalFound)
	for _, rec := range result.Recommendations {
		require.NotNil(t, rec.Price)
		assert.LessOrEqual(t, *rec.Price, 300.0)
	}
	// adaptation leaves an audit trail
	require.NotEmpty(t, result.Notes)
	assert.Contains(t, result.Notes[0], "re-rank")
}

func TestSearch_EvidenceAdaptationDegrades(t *testing.T) {
	texts := []string{"fast performance, great screen", "solid build but battery issues"}
	pools := map[string][]model.ProductCandidate{
		"laptop": {
			product("MacBook Air M3", "Apple", 1099, 4.8, makeReviews(20, 5, texts...)),
			product("Dell XPS 13", "Dell", 999, 4.5, makeReviews(20, 4, texts...)),
			product("Lenovo ThinkPad X1", "Lenovo", 1299, 4.4, makeReviews(20, 4, texts...)),
			product("Asus Zenbook 14", "Asus", 849, 4.2, makeReviews(20, 4, texts...)),
		},
	}
	p, _ := newTestPlanner(t, pools, nil)

	result, err := p.Search(context.Background(), Request{Query: "premium laptop with minimum 200 reviews"})
	require.NoError(t, err)

	assert.Len(t, result.Recommendations, 3)
	assert.True(t, result.Degraded)

	var foundRelaxNote bool
	for _, note := range result.Notes {
		if containsAll(note, "relaxed", "20") {
			foundRelaxNote = true
		}
	}
	assert.True(t, foundRelaxNote, "notes should name the relaxed threshold: %v", result.Notes)
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		found := false
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestSearch_OutOfStockExhaustsBudgetAndDegrades(t *testing.T) {
	oos := product("Only Good Desk", "Acme", 250, 4.9, makeReviews(8, 5, "sturdy and stable"))
	oos.Meta = map[string]string{"in_stock": "false"}
	pools := map[string][]model.ProductCandidate{
		"standing_desk": {
			oos,
			product("Desk Two", "Beta", 260, 4.5, makeReviews(8, 4, "sturdy and stable")),
			product("Desk Three", "Gamma", 270, 4.4, makeReviews(8, 4, "sturdy and stable")),
		},
	}
	p, _ := newTestPlanner(t, pools, nil)

	result, err := p.Search(context.Background(), Request{Query: "best standing desk"})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Len(t, result.Recommendations, 3)
}

func TestSearch_InsufficientCandidatesFails(t *testing.T) {
	pools := map[string][]model.ProductCandidate{
		"standing_desk": {
			product("Lonely Desk", "Acme", 250, 4.5, makeReviews(8, 4, "sturdy desk")),
		},
	}
	p, st := newTestPlanner(t, pools, nil)

	_, err := p.Search(context.Background(), Request{Query: "best standing desk"})
	require.Error(t, err)
	assert.ErrorIs(t, err, discovery.ErrInsufficientCandidates)

	records, listErr := st.ListSearches(context.Background(), store.SearchFilter{State: model.SearchFailed})
	require.NoError(t, listErr)
	assert.Len(t, records, 1)
}

func TestSearch_ClarificationAnswersPersistPerSession(t *testing.T) {
	asked := 0
	channel := clarify.ChannelFunc(func(ctx context.Context, req model.ClarificationRequest) (model.ClarificationAnswer, error) {
		asked++
		return model.ClarificationAnswer{
			Trace:   req.Trace,
			Answers: map[string]string{clarify.SlotBudget: "under $150"},
		}, nil
	})

	// Wide price spread so the VOI policy wants the budget slot filled.
	pools := earbudPool()
	pools["wireless_earbuds"] = append(pools["wireless_earbuds"],
		product("Bang & Olufsen Beoplay EX", "Bang & Olufsen", 399, 4.6, makeReviews(12, 5, earbudTexts...)))

	p, st := newTestPlanner(t, pools, channel)

	result, err := p.Search(context.Background(), Request{
		Query:     "best wireless earbuds for running",
		SessionID: "sess-1",
	})
	require.NoError(t, err)
	require.Positive(t, asked)

	answers, err := st.GetSessionAnswers(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "under $150", answers[clarify.SlotBudget])

	// With the budget applied, nothing over $150 should be recommended once
	// verification passes or adapts.
	for _, rec := range result.Recommendations {
		if rec.Price != nil {
			assert.LessOrEqual(t, *rec.Price, 150.0)
		}
	}
}

func TestSearch_ClarificationTimeoutProceedsWithDefaults(t *testing.T) {
	channel := clarify.ChannelFunc(func(ctx context.Context, req model.ClarificationRequest) (model.ClarificationAnswer, error) {
		return model.ClarificationAnswer{}, clarify.ErrAnswerTimeout
	})

	pools := earbudPool()
	pools["wireless_earbuds"] = append(pools["wireless_earbuds"],
		product("Bang & Olufsen Beoplay EX", "Bang & Olufsen", 399, 4.6, makeReviews(12, 5, earbudTexts...)))

	p, _ := newTestPlanner(t, pools, channel)
	result, err := p.Search(context.Background(), Request{Query: "best wireless earbuds for running"})
	require.NoError(t, err)
	assert.Len(t, result.Recommendations, 3)
}

func TestSearch_ExplicitConstraintsWin(t *testing.T) {
	p, _ := newTestPlanner(t, earbudPool(), nil)
	result, err := p.Search(context.Background(), Request{
		Query:       "best wireless earbuds under $150",
		Constraints: map[string]any{"max_price": 100.0, "k": 2},
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Recommendations), 2)
	for _, rec := range result.Recommendations {
		require.NotNil(t, rec.Price)
		assert.LessOrEqual(t, *rec.Price, 100.0)
	}
}

func TestSearch_Deterministic(t *testing.T) {
	p, _ := newTestPlanner(t, earbudPool(), nil)
	ctx := context.Background()
	req := Request{Query: "best wireless earbuds under $150 for running"}

	a, err := p.Search(ctx, req)
	require.NoError(t, err)
	b, err := p.Search(ctx, req)
	require.NoError(t, err)

	require.Len(t, b.Recommendations, len(a.Recommendations))
	for i := range a.Recommendations {
		assert.Equal(t, a.Recommendations[i].CanonicalID, b.Recommendations[i].CanonicalID)
		assert.InDelta(t, a.Recommendations[i].Score, b.Recommendations[i].Score, 0.001)
	}
}

func TestSearch_NoGoroutineLeaks(t *testing.T) {
	// go.opencensus.io starts this worker in package init (pulled in
	// transitively); it is not started by Search and never exits.
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	p, _ := newTestPlanner(t, earbudPool(), nil)
	_, err := p.Search(context.Background(), Request{Query: "best wireless earbuds under $150"})
	require.NoError(t, err)
}

func TestParseBrief_Extraction(t *testing.T) {
	p, _ := newTestPlanner(t, earbudPool(), nil)
	trace := model.NewTrace("req1", model.StepParse, "test")

	brief := p.parseBrief(trace, "best wireless earbuds under $150 for running", nil)
	assert.Equal(t, "wireless_earbuds", brief.Category)
	assert.Equal(t, "running", brief.UseCase)
	price, ok := brief.MaxPrice()
	require.True(t, ok)
	assert.Equal(t, 150.0, price)
	assert.Equal(t, 3, brief.Success.K)
	assert.True(t, brief.Success.Diversity)

	brief = p.parseBrief(trace, "premium laptop with minimum 200 reviews", nil)
	assert.Equal(t, "laptop", brief.Category)
	assert.Equal(t, 200, brief.Success.MinReviews)

	brief = p.parseBrief(trace, "earbuds", map[string]any{"diversity": false, "min_reviews": 10})
	assert.False(t, brief.Success.Diversity)
	assert.Equal(t, 10, brief.Success.MinReviews)
}
