package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pickpal/pickpal/internal/model"
)

// MemoryStore is the in-process Store used when no database is configured.
// Session memory is locked per session, not globally, so concurrent requests
// for different sessions never contend.
type MemoryStore struct {
	mu       sync.RWMutex
	searches map[string]*model.SearchRecord

	sessions sync.Map // session id -> *sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	answers map[string]string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{searches: make(map[string]*model.SearchRecord)}
}

func (m *MemoryStore) Migrate(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateSearch(ctx context.Context, rec *model.SearchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.searches[rec.RequestID] = &cp
	return nil
}

func (m *MemoryStore) CompleteSearch(ctx context.Context, requestID string, state model.SearchState, degraded bool, result *model.Result, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.searches[requestID]
	if !ok {
		return ErrNotFound
	}
	rec.State = state
	rec.Degraded = degraded
	rec.Result = result
	rec.DurationMs = duration.Milliseconds()
	return nil
}

func (m *MemoryStore) GetSearch(ctx context.Context, requestID string) (*model.SearchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.searches[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) ListSearches(ctx context.Context, filter SearchFilter) ([]model.SearchRecord, error) {
	m.mu.RLock()
	var all []model.SearchRecord
	for _, rec := range m.searches {
		if filter.SessionID != "" && rec.SessionID != filter.SessionID {
			continue
		}
		if filter.State != "" && rec.State != filter.State {
			continue
		}
		all = append(all, *rec)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].RequestID < all[j].RequestID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(all) {
			return nil, nil
		}
		all = all[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (m *MemoryStore) session(sessionID string) *sessionEntry {
	entry, _ := m.sessions.LoadOrStore(sessionID, &sessionEntry{answers: make(map[string]string)})
	return entry.(*sessionEntry)
}

func (m *MemoryStore) GetSessionAnswers(ctx context.Context, sessionID string) (map[string]string, error) {
	entry := m.session(sessionID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := make(map[string]string, len(entry.answers))
	for k, v := range entry.answers {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) PutSessionAnswers(ctx context.Context, sessionID string, answers map[string]string) error {
	entry := m.session(sessionID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	for k, v := range answers {
		entry.answers[k] = v
	}
	return nil
}
