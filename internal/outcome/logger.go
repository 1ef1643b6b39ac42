package outcome

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

// Logger is the append/update/query surface over a Store
type Logger struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewLogger(store Store, log zerolog.Logger) *Logger {
	return &Logger{store: store, log: log, now: time.Now}
}

// Save appends a new attempt or records stage progress of an existing one.
// Errors are logged and returned; pipeline callers ignore them.
func (l *Logger) Save(ctx context.Context, e *model.RunLogEntry) error {
	now := l.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status.IsTerminal() && e.CompletedAt == nil {
		e.CompletedAt = &now
	}

	if err := l.store.Save(ctx, e); err != nil {
		l.log.Warn().Err(err).
			Str("entry_id", e.ID).
			Str("module", e.ModuleID).
			Str("item", e.ItemID).
			Str("status", string(e.Status)).
			Msg("failed to persist run log entry")
		return fmt.Errorf("failed to persist entry %s: %w", e.ID, err)
	}
	return nil
}

func (l *Logger) Get(ctx context.Context, id string) (*model.RunLogEntry, error) {
	return l.store.Get(ctx, id)
}

// Recent returns up to limit entries of scope, newest first
func (l *Logger) Recent(ctx context.Context, scope model.Scope, limit int) ([]model.RunLogEntry, error) {
	return l.store.Recent(ctx, scope, limit)
}

// RecentTexts returns the generated texts of the latest entries of scope,
// newest first. Entries that never produced text are skipped.
func (l *Logger) RecentTexts(ctx context.Context, scope model.Scope, limit int) ([]string, error) {
	entries, err := l.store.Recent(ctx, scope, limit)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.GeneratedText) != "" {
			texts = append(texts, e.GeneratedText)
		}
	}
	return texts, nil
}

// Between returns entries created in [from, to), oldest first
func (l *Logger) Between(ctx context.Context, from, to time.Time) ([]model.RunLogEntry, error) {
	return l.store.Between(ctx, from, to)
}

// Summarize aggregates the entries of one run created in [from, to).
// An empty runID summarizes every entry in the range; a non-empty userID
// keeps only that user's entries.
func (l *Logger) Summarize(ctx context.Context, userID, runID string, from, to time.Time) (*model.RunSummary, error) {
	entries, err := l.store.Between(ctx, from, to)
	if err != nil {
		return nil, err
	}

	sum := &model.RunSummary{RunID: runID}
	for _, e := range entries {
		if runID != "" && e.RunID != runID {
			continue
		}
		if userID != "" && e.UserID != userID {
			continue
		}
		sum.Total++
		switch e.Status {
		case model.RunStatusPublished:
			sum.Published++
		case model.RunStatusFailed:
			sum.Failed++
		default:
			sum.InFlight++
		}
	}
	if sum.Total > 0 {
		sum.SuccessRate = float64(sum.Published) / float64(sum.Total)
	}
	return sum, nil
}
