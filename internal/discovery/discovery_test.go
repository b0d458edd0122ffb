package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickpal/pickpal/internal/config"
	"github.com/pickpal/pickpal/internal/model"
	"github.com/pickpal/pickpal/internal/source"
)

type stubSource struct {
	name  string
	items []model.ProductCandidate
	err   error
	calls atomic.Int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, q source.Query) ([]model.ProductCandidate, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

func testBrief() *model.ShoppingBrief {
	return &model.ShoppingBrief{
		Trace:    model.NewTrace("req1", model.StepParse, "test"),
		Query:    "best wireless earbuds",
		Category: "wireless_earbuds",
	}
}

func item(name, brand, url string, reviews int) model.ProductCandidate {
	c := model.ProductCandidate{Name: name, Brand: brand}
	if url != "" {
		c.URLs = map[string]string{"src": url}
	}
	for i := 0; i < reviews; i++ {
		c.Reviews = append(c.Reviews, model.Review{Text: "fine", Stars: 4})
	}
	return c
}

func newTestDiscoverer(sources ...source.CandidateSource) *Discoverer {
	registry := source.NewRegistry()
	for _, s := range sources {
		registry.Register(s)
	}
	return New(registry, config.DiscoveryConfig{SourceTimeoutSecs: 2, MaxExpansions: 2}, 3, 0.85)
}

func TestDiscover_MergesAcrossSources(t *testing.T) {
	a := &stubSource{name: "a", items: []model.ProductCandidate{
		item("Sony WF-1000XM5", "Sony", "", 2),
		item("Jabra Elite 8", "Jabra", "", 1),
	}}
	b := &stubSource{name: "b", items: []model.ProductCandidate{
		item("Anker Liberty 4", "Anker", "", 3),
	}}

	pool, err := newTestDiscoverer(a, b).Discover(context.Background(), testBrief())
	require.NoError(t, err)
	assert.Len(t, pool, 3)
	assert.EqualValues(t, 1, a.calls.Load())
}

func TestDiscover_AbsorbsFailingSource(t *testing.T) {
	good := &stubSource{name: "good", items: []model.ProductCandidate{
		item("Sony WF-1000XM5", "Sony", "", 1),
		item("Jabra Elite 8", "Jabra", "", 1),
		item("Anker Liberty 4", "Anker", "", 1),
	}}
	bad := &stubSource{name: "bad", err: errors.New("connection refused")}

	pool, err := newTestDiscoverer(good, bad).Discover(context.Background(), testBrief())
	require.NoError(t, err)
	assert.Len(t, pool, 3)
}

func TestDiscover_BackoffThenInsufficient(t *testing.T) {
	thin := &stubSource{name: "thin", items: []model.ProductCandidate{
		item("Only Product", "Acme", "", 1),
	}}

	d := newTestDiscoverer(thin)
	pool, err := d.Discover(context.Background(), testBrief())
	assert.ErrorIs(t, err, ErrInsufficientCandidates)
	assert.Len(t, pool, 1)
	// initial attempt plus two expansions
	assert.EqualValues(t, 3, thin.calls.Load())
}

func TestDiscover_AllSourcesDown(t *testing.T) {
	down := &stubSource{name: "down", err: errors.New("unreachable")}
	_, err := newTestDiscoverer(down).Discover(context.Background(), testBrief())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestDiscover_NoSourcesRegistered(t *testing.T) {
	_, err := newTestDiscoverer().Discover(context.Background(), testBrief())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestMerge_ByURL(t *testing.T) {
	d := newTestDiscoverer()
	merged := d.merge([]model.ProductCandidate{
		item("Sony WF1000XM5 Wireless Earbuds", "Sony", "https://www.shop.example/p/123?ref=x", 1),
		item("WF-1000XM5 True Wireless", "Sony", "http://shop.example/p/123", 4),
	})
	require.Len(t, merged, 1)
	// most complete variant wins
	assert.Len(t, merged[0].Reviews, 4)
}

func TestMerge_FuzzyNameUnionsURLs(t *testing.T) {
	a := item("Sony WF-1000XM5", "Sony", "", 1)
	a.URLs = map[string]string{"shopx": "https://shopx.example/xm5"}
	b := item("Sony WF-1000XM5", "Sony", "", 3)
	b.URLs = map[string]string{"shopy": "https://shopy.example/sony"}

	merged := newTestDiscoverer().merge([]model.ProductCandidate{a, b})
	require.Len(t, merged, 1)
	assert.Len(t, merged[0].URLs, 2)
	assert.Len(t, merged[0].Reviews, 3)
}

func TestMerge_KeepsDistinctProducts(t *testing.T) {
	merged := newTestDiscoverer().merge([]model.ProductCandidate{
		item("Sony WF-1000XM5", "Sony", "", 1),
		item("Bose QuietComfort Ultra", "Bose", "", 1),
	})
	assert.Len(t, merged, 2)
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"https://www.shop.example/p/123?utm=x": "shop.example/p/123",
		"http://shop.example/p/123/":           "shop.example/p/123",
		"SHOP.example/p/123#reviews":           "shop.example/p/123",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeURL(in), in)
	}
}

func TestBuildQuery_Expansion(t *testing.T) {
	d := newTestDiscoverer()
	brief := testBrief()
	brief.UseCase = "running"
	brief.Constraints = map[string]any{"max_price": 150.0, "color": "black"}

	q0 := d.buildQuery(brief, 0)
	assert.Equal(t, []string{"best wireless earbuds"}, q0.Terms)
	assert.Len(t, q0.Constraints, 2)

	q1 := d.buildQuery(brief, 1)
	assert.Equal(t, []string{"wireless earbuds", "running"}, q1.Terms)
	assert.Equal(t, map[string]any{"max_price": 150.0}, q1.Constraints)

	q2 := d.buildQuery(brief, 2)
	assert.Empty(t, q2.Constraints)
	assert.Equal(t, "req1", q2.Trace.RequestID)
}
