package sentiment

import (
	"context"
	"strings"
)

var positiveIndicators = []string{
	"excellent", "amazing", "great", "good", "perfect", "love", "best",
	"fantastic", "outstanding", "incredible", "wonderful", "awesome",
	"superb", "brilliant", "impressive", "solid", "reliable", "smooth",
	"comfortable", "easy", "clear",
}

var negativeIndicators = []string{
	"terrible", "awful", "bad", "worst", "hate", "horrible", "disappointing",
	"poor", "cheap", "flimsy", "uncomfortable", "difficult", "annoying",
	"frustrating", "issues", "problems", "broken", "defective", "useless",
}

// LexiconScorer is the default deterministic scorer: keyword polarity
// counting over the sentences that mention the aspect. No network, no
// state, same input always yields the same polarity.
type LexiconScorer struct{}

// NewLexicon returns the keyword-based scorer.
func NewLexicon() *LexiconScorer {
	return &LexiconScorer{}
}

func (s *LexiconScorer) Score(_ context.Context, _ string, reviews []string) (float64, error) {
	if len(reviews) == 0 {
		return 0, nil
	}

	var sum float64
	var scored int
	for _, text := range reviews {
		p, ok := sentenceSentiment(text)
		if ok {
			sum += p
			scored++
		}
	}
	if scored == 0 {
		return 0, nil
	}
	return Clamp(sum / float64(scored)), nil
}

// sentenceSentiment returns (polarity, true) when the text contains any
// sentiment indicator, (0, false) otherwise.
func sentenceSentiment(text string) (float64, bool) {
	lower := strings.ToLower(text)

	var pos, neg int
	for _, w := range positiveIndicators {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeIndicators {
		if strings.Contains(lower, w) {
			neg++
		}
	}

	if pos == 0 && neg == 0 {
		return 0, false
	}
	return float64(pos-neg) / float64(pos+neg), true
}
