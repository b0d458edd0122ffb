package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrace_GeneratesID(t *testing.T) {
	tr := NewTrace("", StepParse, "planner")
	assert.Len(t, tr.RequestID, 8)
	assert.Equal(t, StepParse, tr.Step)
	assert.False(t, tr.Timestamp.IsZero())
}

func TestTraceNext_PreservesRequestID(t *testing.T) {
	tr := NewTrace("abc12345", StepParse, "planner")
	hop := tr.Next(StepDiscover, "discovery")
	assert.Equal(t, "abc12345", hop.RequestID)
	assert.Equal(t, StepDiscover, hop.Step)
	assert.Equal(t, "discovery", hop.Source)
}

func TestBriefMaxPrice_Forms(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  float64
		ok    bool
	}{
		{"float", 150.0, 150, true},
		{"int", 150, 150, true},
		{"plain string", "150", 150, true},
		{"dollar string", "$149.99", 149.99, true},
		{"phrase", "under 300", 300, true},
		{"garbage", "cheap", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &ShoppingBrief{Constraints: map[string]any{"max_price": tc.value}}
			got, ok := b.MaxPrice()
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 0.001)
			}
		})
	}
}

func TestBriefMaxPrice_Missing(t *testing.T) {
	b := &ShoppingBrief{}
	_, ok := b.MaxPrice()
	assert.False(t, ok)
}

func TestBriefClone_Independent(t *testing.T) {
	b := &ShoppingBrief{
		Constraints: map[string]any{"max_price": 100.0},
		Weights:     map[string]float64{"rating": 0.5},
	}
	c := b.Clone()
	c.Constraints["max_price"] = 50.0
	c.Weights["rating"] = 0.1

	assert.Equal(t, 100.0, b.Constraints["max_price"])
	assert.Equal(t, 0.5, b.Weights["rating"])
}

func TestCompleteness_Ordering(t *testing.T) {
	price := 99.0
	full := ProductCandidate{
		Price:   &price,
		Brand:   "Acme",
		Reviews: []Review{{Text: "good"}, {Text: "great"}},
		URLs:    map[string]string{"a": "http://x"},
	}
	bare := ProductCandidate{Name: "thing"}
	assert.Greater(t, full.Completeness(), bare.Completeness())
}

func TestUnknownSignals(t *testing.T) {
	s := UnknownSignals()
	require.True(t, s.Unknown())
	assert.EqualValues(t, SignalUnknown, s.VerifiedPct)
	assert.EqualValues(t, SignalUnknown, s.RecencyDaysP50)

	known := Signals{VerifiedPct: 0.5, AvgHelpful: 2, RecencyDaysP50: 30}
	assert.False(t, known.Unknown())
}

func TestVerificationReport_FailedChecks(t *testing.T) {
	r := VerificationReport{
		Hints: []AdaptationHint{
			{Check: CheckBudget, Target: AdaptRank},
			{Check: CheckEvidence, Target: AdaptDiscover},
		},
	}
	assert.Equal(t, []string{CheckBudget, CheckEvidence}, r.FailedChecks())
}
