package source

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/pickpal/pickpal/internal/model"
)

// RateLimited wraps a source with a token-bucket limiter so bursts of
// requests (or adaptation re-discovery) cannot hammer a paid API.
type RateLimited struct {
	inner   CandidateSource
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with an rps limit.
func NewRateLimited(inner CandidateSource, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) Name() string {
	return r.inner.Name()
}

func (r *RateLimited) Fetch(ctx context.Context, q Query) ([]model.ProductCandidate, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrapf(err, "source %s: rate limit wait", r.inner.Name())
	}
	return r.inner.Fetch(ctx, q)
}
