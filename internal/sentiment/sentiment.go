// Package sentiment provides the aspect-sentiment capability: mapping an
// aspect keyword plus review texts to a polarity score in [-1, 1].
package sentiment

import "context"

// Scorer scores the polarity of an aspect across review texts. Implementations
// must be safe for concurrent use; the ranker fans out across products.
type Scorer interface {
	// Score returns a polarity in [-1, 1] for the aspect given the reviews
	// that mention it. -1 is strongly negative, +1 strongly positive.
	Score(ctx context.Context, aspect string, reviews []string) (float64, error)
}

// Clamp bounds a polarity to [-1, 1].
func Clamp(p float64) float64 {
	if p < -1 {
		return -1
	}
	if p > 1 {
		return 1
	}
	return p
}
