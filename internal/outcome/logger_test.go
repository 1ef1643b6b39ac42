package outcome

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

var (
	scopeA = model.Scope{UserID: "u1", AccountRef: "acct-a"}
	scopeB = model.Scope{UserID: "u1", AccountRef: "acct-b"}
)

func entry(id, runID string, scope model.Scope, status model.RunStatus, text string, at time.Time) *model.RunLogEntry {
	return &model.RunLogEntry{
		ID: id, RunID: runID, ModuleID: "quotes", ItemID: "item-" + id,
		UserID: scope.UserID, AccountRef: scope.AccountRef,
		Status: status, GeneratedText: text, CreatedAt: at,
	}
}

// exerciseStore runs the same behavioural checks against any Store
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()
	l := NewLogger(store, zerolog.Nop())
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		e := entry(fmt.Sprintf("a%d", i), "run-1", scopeA, model.RunStatusPublished, fmt.Sprintf("text %d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, l.Save(ctx, e))
	}
	require.NoError(t, l.Save(ctx, entry("b0", "run-1", scopeB, model.RunStatusFailed, "", base.Add(time.Minute))))
	require.NoError(t, l.Save(ctx, entry("b1", "run-2", scopeB, model.RunStatusPending, "", base.Add(2*time.Minute))))

	t.Run("recent texts newest first within scope", func(t *testing.T) {
		texts, err := l.RecentTexts(ctx, scopeA, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"text 4", "text 3", "text 2"}, texts)

		texts, err = l.RecentTexts(ctx, scopeB, 10)
		require.NoError(t, err)
		assert.Empty(t, texts)
	})

	t.Run("save updates in place", func(t *testing.T) {
		e, err := store.Get(ctx, "b1")
		require.NoError(t, err)
		e.Status = model.RunStatusFailed
		e.FailedStage = model.StagePublish
		e.MediaURL = "https://store/x.png"
		require.NoError(t, l.Save(ctx, e))

		got, err := store.Get(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, got.Status)
		assert.Equal(t, "https://store/x.png", got.MediaURL)
		assert.NotNil(t, got.CompletedAt)

		recent, err := l.Recent(ctx, scopeB, 10)
		require.NoError(t, err)
		assert.Len(t, recent, 2)
	})

	t.Run("between is half-open", func(t *testing.T) {
		got, err := l.Between(ctx, base.Add(time.Minute), base.Add(3*time.Minute))
		require.NoError(t, err)
		var ids []string
		for _, e := range got {
			ids = append(ids, e.ID)
		}
		assert.ElementsMatch(t, []string{"a1", "b0", "a2", "b1"}, ids)
	})

	t.Run("summarize", func(t *testing.T) {
		sum, err := l.Summarize(ctx, "", "run-1", base, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 6, sum.Total)
		assert.Equal(t, 5, sum.Published)
		assert.Equal(t, 1, sum.Failed)
		assert.Equal(t, 0, sum.InFlight)
		assert.InDelta(t, 5.0/6.0, sum.SuccessRate, 1e-9)

		sum, err = l.Summarize(ctx, "u1", "run-1", base, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 6, sum.Total)

		sum, err = l.Summarize(ctx, "someone-else", "run-1", base, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Zero(t, sum.Total)
	})

	t.Run("missing entry", func(t *testing.T) {
		_, err := store.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "runlog", "autogram.db"))
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestLogger_SaveErrorIsReported(t *testing.T) {
	store := NewMemoryStore()
	store.SaveErr = errors.New("disk full")
	l := NewLogger(store, zerolog.Nop())

	err := l.Save(context.Background(), entry("x", "r", scopeA, model.RunStatusFailed, "", time.Now()))
	assert.ErrorContains(t, err, "disk full")
}

func TestLogger_SummarizeEmpty(t *testing.T) {
	l := NewLogger(NewMemoryStore(), zerolog.Nop())
	sum, err := l.Summarize(context.Background(), "", "", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Zero(t, sum.Total)
	assert.Zero(t, sum.SuccessRate)
}
