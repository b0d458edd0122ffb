package model

import (
	"time"

	"github.com/google/uuid"
)

// Step identifies a pipeline stage for trace correlation.
type Step string

const (
	StepParse     Step = "parse"
	StepClarify   Step = "clarify"
	StepDiscover  Step = "discover"
	StepNormalize Step = "normalize"
	StepRank      Step = "rank"
	StepVerify    Step = "verify"
	StepAdapt     Step = "adapt"
	StepReturn    Step = "return"
	StepFail      Step = "fail"
)

// Trace is the correlation context threaded through every message in one
// request. RequestID never changes after creation; Step and Source change
// per hop.
type Trace struct {
	RequestID string    `json:"request_id"`
	Step      Step      `json:"step"`
	Source    string    `json:"source_component"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTrace creates the root trace for a request. An empty requestID gets a
// fresh short UUID-derived id.
func NewTrace(requestID string, step Step, source string) Trace {
	if requestID == "" {
		requestID = uuid.New().String()[:8]
	}
	return Trace{
		RequestID: requestID,
		Step:      step,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

// Next derives the trace for the following hop, preserving the request id.
func (t Trace) Next(step Step, source string) Trace {
	return Trace{
		RequestID: t.RequestID,
		Step:      step,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}
