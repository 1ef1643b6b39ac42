package outcome

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const entryColumns = `id, run_id, module_id, item_id, user_id, account_ref, display_name, status,
	failed_stage, generated_text, visual_prompt, media_url, publish_id, err, regenerated,
	created_at, updated_at, completed_at`

// SQLiteStore is a single-file durable log
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer keeps SQLite out of SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &SQLiteStore{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}
	return st, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, e *model.RunLogEntry) error {
	var completed any
	if e.CompletedAt != nil {
		completed = e.CompletedAt.UnixMilli()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_log(`+entryColumns+`)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			failed_stage=excluded.failed_stage,
			generated_text=excluded.generated_text,
			visual_prompt=excluded.visual_prompt,
			media_url=excluded.media_url,
			publish_id=excluded.publish_id,
			err=excluded.err,
			regenerated=excluded.regenerated,
			updated_at=excluded.updated_at,
			completed_at=excluded.completed_at`,
		e.ID, e.RunID, e.ModuleID, e.ItemID, e.UserID, e.AccountRef, nullStr(e.DisplayName), string(e.Status),
		nullStr(string(e.FailedStage)), nullStr(e.GeneratedText), nullStr(e.VisualPrompt), nullStr(e.MediaURL),
		nullStr(e.PublishID), nullStr(e.Error), e.Regenerated,
		e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli(), completed,
	)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.RunLogEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM run_log WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	return e, err
}

func (s *SQLiteStore) Recent(ctx context.Context, scope model.Scope, limit int) ([]model.RunLogEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM run_log
		 WHERE user_id = ? AND account_ref = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		scope.UserID, scope.AccountRef, limit,
	)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *SQLiteStore) Between(ctx context.Context, from, to time.Time) ([]model.RunLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM run_log
		 WHERE created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC, rowid ASC`,
		from.UnixMilli(), to.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*model.RunLogEntry, error) {
	var (
		e                                                       model.RunLogEntry
		status                                                  string
		displayName, failedStage, text, prompt, media, post, em sql.NullString
		createdAt, updatedAt                                    int64
		completedAt                                             sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.RunID, &e.ModuleID, &e.ItemID, &e.UserID, &e.AccountRef, &displayName, &status,
		&failedStage, &text, &prompt, &media, &post, &em, &e.Regenerated,
		&createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	e.Status = model.RunStatus(status)
	e.DisplayName = displayName.String
	e.FailedStage = model.Stage(failedStage.String)
	e.GeneratedText = text.String
	e.VisualPrompt = prompt.String
	e.MediaURL = media.String
	e.PublishID = post.String
	e.Error = em.String
	e.CreatedAt = time.UnixMilli(createdAt)
	e.UpdatedAt = time.UnixMilli(updatedAt)
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64)
		e.CompletedAt = &t
	}
	return &e, nil
}

func collect(rows *sql.Rows) ([]model.RunLogEntry, error) {
	defer rows.Close()

	var out []model.RunLogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
