package pushlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the history in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path required")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS push_history (
			project TEXT NOT NULL,
			change_id TEXT NOT NULL,
			last_pushed_commit TEXT NOT NULL,
			pushed_at TEXT NOT NULL,
			PRIMARY KEY (project, change_id)
		)
	`); err != nil {
		return fmt.Errorf("create push_history table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LastPushed(ctx context.Context, project, changeID string) (string, error) {
	var commit string
	err := s.db.QueryRowContext(ctx,
		"SELECT last_pushed_commit FROM push_history WHERE project = ? AND change_id = ?",
		project, changeID,
	).Scan(&commit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("read push history: %w", err)
	}
	return commit, nil
}

func (s *SQLiteStore) RecordPush(ctx context.Context, project, changeID, commit string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_history (project, change_id, last_pushed_commit, pushed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (project, change_id) DO UPDATE SET
			last_pushed_commit = excluded.last_pushed_commit,
			pushed_at = excluded.pushed_at
	`, project, changeID, commit, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record push: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT project, change_id, last_pushed_commit FROM push_history ORDER BY project, change_id")
	if err != nil {
		return nil, fmt.Errorf("list push history: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Project, &r.ChangeID, &r.Commit); err != nil {
			return nil, fmt.Errorf("scan push history: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate push history: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
