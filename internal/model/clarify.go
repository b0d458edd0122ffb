package model

// ClarificationRequest asks the user to fill missing brief slots. Created by
// the Clarifier, consumed once by the Planner, never persisted beyond the
// request (answers may be cached per session, the request itself is not).
type ClarificationRequest struct {
	Trace     Trace    `json:"trace"`
	Missing   []string `json:"missing"`
	Questions []string `json:"questions"`
}

// ClarificationAnswer carries the user's (possibly partial) answers.
// Skipped marks a timeout or an explicit skip; the planner proceeds with
// defaults.
type ClarificationAnswer struct {
	Trace   Trace             `json:"trace"`
	Answers map[string]string `json:"answers,omitempty"`
	Skipped bool              `json:"skipped,omitempty"`
}
