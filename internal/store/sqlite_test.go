package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickpal/pickpal/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndGetSearch(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.CreateSearch(ctx, &model.SearchRecord{
		RequestID: "req-1",
		SessionID: "sess-1",
		Query:     "best wireless earbuds",
	})
	require.NoError(t, err)

	rec, err := st.GetSearch(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, "best wireless earbuds", rec.Query)
	assert.Nil(t, rec.Result)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestSQLite_GetSearch_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetSearch(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_CompleteSearch(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateSearch(ctx, &model.SearchRecord{RequestID: "req-1", Query: "q"}))

	price := 129.0
	result := &model.Result{
		RequestID:  "req-1",
		Query:      "q",
		TotalFound: 5,
		Recommendations: []model.Recommendation{
			{CanonicalID: "abc123def456", Name: "Jabra Elite 8", Price: &price, Score: 8.4},
		},
		Notes: []string{"re-ranked under budget"},
	}
	err := st.CompleteSearch(ctx, "req-1", model.SearchReturned, true, result, 2*time.Second)
	require.NoError(t, err)

	rec, err := st.GetSearch(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.SearchReturned, rec.State)
	assert.True(t, rec.Degraded)
	assert.Equal(t, int64(2000), rec.DurationMs)
	require.NotNil(t, rec.Result)
	assert.Equal(t, 5, rec.Result.TotalFound)
	require.Len(t, rec.Result.Recommendations, 1)
	assert.Equal(t, "Jabra Elite 8", rec.Result.Recommendations[0].Name)
	require.NotNil(t, rec.Result.Recommendations[0].Price)
	assert.Equal(t, 129.0, *rec.Result.Recommendations[0].Price)
	assert.Equal(t, []string{"re-ranked under budget"}, rec.Result.Notes)
}

func TestSQLite_CompleteSearch_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompleteSearch(context.Background(), "nonexistent", model.SearchFailed, false, nil, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListSearches_OrderAndFilters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []model.SearchRecord{
		{RequestID: "req-a", SessionID: "s1", Query: "a", CreatedAt: base},
		{RequestID: "req-b", SessionID: "s1", Query: "b", CreatedAt: base.Add(time.Minute)},
		{RequestID: "req-c", SessionID: "s2", Query: "c", CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range records {
		require.NoError(t, st.CreateSearch(ctx, &records[i]))
	}
	require.NoError(t, st.CompleteSearch(ctx, "req-b", model.SearchFailed, false, nil, time.Second))

	all, err := st.ListSearches(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "req-c", all[0].RequestID)
	assert.Equal(t, "req-b", all[1].RequestID)
	assert.Equal(t, "req-a", all[2].RequestID)

	bySession, err := st.ListSearches(ctx, SearchFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, bySession, 2)

	failed, err := st.ListSearches(ctx, SearchFilter{State: model.SearchFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "req-b", failed[0].RequestID)
}

func TestSQLite_ListSearches_LimitOffset(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"req-a", "req-b", "req-c", "req-d"} {
		require.NoError(t, st.CreateSearch(ctx, &model.SearchRecord{
			RequestID: id,
			Query:     id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := st.ListSearches(ctx, SearchFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "req-c", page[0].RequestID)
	assert.Equal(t, "req-b", page[1].RequestID)
}

func TestSQLite_SessionAnswers_MergeOnWrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	answers, err := st.GetSessionAnswers(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, answers)

	require.NoError(t, st.PutSessionAnswers(ctx, "sess-1", map[string]string{"budget": "under $150"}))
	require.NoError(t, st.PutSessionAnswers(ctx, "sess-1", map[string]string{"use_case": "running"}))
	require.NoError(t, st.PutSessionAnswers(ctx, "sess-1", map[string]string{"budget": "under $200"}))

	answers, err = st.GetSessionAnswers(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"budget":   "under $200",
		"use_case": "running",
	}, answers)
}

func TestSQLite_SessionAnswers_IsolatedBySession(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutSessionAnswers(ctx, "sess-1", map[string]string{"budget": "under $150"}))

	other, err := st.GetSessionAnswers(ctx, "sess-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)

	// Migrate already ran in newTestSQLiteStore; a second call must not error.
	require.NoError(t, st.Migrate(context.Background()))
}
