package clarify

import (
	"context"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/pickpal/pickpal/internal/model"
	"github.com/pickpal/pickpal/internal/source"
)

// ProbeItem is one observed candidate from a cheap pre-discovery probe.
type ProbeItem struct {
	Price    float64
	Stars    float64
	HasPrice bool
	HasStars bool
}

// ProbeStats summarizes the plausible candidate pool cheaply, before real
// discovery runs. The VOI policy simulates answers against these numbers.
type ProbeStats struct {
	Items []ProbeItem
}

func (s ProbeStats) Empty() bool {
	return len(s.Items) == 0
}

// PricePercentile returns the pth quantile of observed prices (p in [0,1]).
func (s ProbeStats) PricePercentile(p float64) (float64, bool) {
	var prices []float64
	for _, item := range s.Items {
		if item.HasPrice {
			prices = append(prices, item.Price)
		}
	}
	if len(prices) == 0 {
		return 0, false
	}
	sort.Float64s(prices)
	idx := int(p * float64(len(prices)-1))
	return prices[idx], true
}

// prober fetches probe stats from the first source that answers, caching by
// category+query so repeated requests in a session skip the fetch.
type prober struct {
	registry *source.Registry
	timeout  time.Duration
	cache    *lru.Cache[string, ProbeStats]
}

func newProber(registry *source.Registry, timeout time.Duration, cacheSize int) *prober {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if cacheSize <= 0 {
		cacheSize = 64
	}
	cache, _ := lru.New[string, ProbeStats](cacheSize)
	return &prober{registry: registry, timeout: timeout, cache: cache}
}

func (p *prober) stats(ctx context.Context, brief *model.ShoppingBrief) ProbeStats {
	key := brief.Category + "|" + brief.Query
	if cached, ok := p.cache.Get(key); ok {
		return cached
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	q := source.Query{
		Trace:    brief.Trace.Next(model.StepClarify, componentName),
		Terms:    []string{brief.Query},
		Category: brief.Category,
	}

	var stats ProbeStats
	for _, src := range p.registry.Sources() {
		candidates, err := src.Fetch(probeCtx, q)
		if err != nil {
			zap.L().Debug("probe source failed",
				zap.String("request_id", brief.Trace.RequestID),
				zap.String("source", src.Name()),
				zap.Error(err),
			)
			continue
		}
		for _, c := range candidates {
			item := ProbeItem{}
			if c.Price != nil {
				item.Price, item.HasPrice = *c.Price, true
			}
			if c.Stars != nil {
				item.Stars, item.HasStars = *c.Stars, true
			}
			if item.HasPrice || item.HasStars {
				stats.Items = append(stats.Items, item)
			}
		}
		if !stats.Empty() {
			break
		}
	}

	p.cache.Add(key, stats)
	return stats
}
