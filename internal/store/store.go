// Package store persists search history and per-session clarification
// answers.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pickpal/pickpal/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// SearchFilter specifies criteria for listing search history.
type SearchFilter struct {
	SessionID string            `json:"session_id,omitempty"`
	State     model.SearchState `json:"state,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Offset    int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the recommendation pipeline.
type Store interface {
	// Search history
	CreateSearch(ctx context.Context, rec *model.SearchRecord) error
	CompleteSearch(ctx context.Context, requestID string, state model.SearchState, degraded bool, result *model.Result, duration time.Duration) error
	GetSearch(ctx context.Context, requestID string) (*model.SearchRecord, error)
	ListSearches(ctx context.Context, filter SearchFilter) ([]model.SearchRecord, error)

	// Session memory: clarification answers only, merged on write.
	GetSessionAnswers(ctx context.Context, sessionID string) (map[string]string, error)
	PutSessionAnswers(ctx context.Context, sessionID string, answers map[string]string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
