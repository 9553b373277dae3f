package storage

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

	"remindbot/internal/task"
	logx "remindbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &PersistenceError{Op: "mkdir", Err: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &sqliteStore{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, &PersistenceError{Op: "migrate", Err: err}
	}
	return s, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Create(ctx context.Context, t task.Task) (task.Task, error) {
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return task.Task{}, &PersistenceError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	// Id sequence comes from the stored image inside the same transaction,
	// never from a cached counter.
	var maxID int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM tasks`).Scan(&maxID); err != nil {
		return task.Task{}, &PersistenceError{Op: "next id", Err: err}
	}

	now := time.Now()
	t.ID = maxID + 1
	t.Status = task.StatusPending
	t.Delivered = ""
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks(id, date, time, timezone, title, description, owner, status, delivered, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Date, t.Time, t.Timezone, t.Title, t.Description, t.Owner,
		string(t.Status), t.Delivered, fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt),
	)
	if err != nil {
		return task.Task{}, &PersistenceError{Op: "insert", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return task.Task{}, &PersistenceError{Op: "commit", Err: err}
	}
	return t, nil
}

func (s *sqliteStore) List(ctx context.Context, owner string) ([]task.Task, error) {
	q := `SELECT id, date, time, timezone, title, description, owner, status, delivered, created_at, updated_at
	      FROM tasks ORDER BY id`
	args := []any{}
	if owner != "" {
		q = `SELECT id, date, time, timezone, title, description, owner, status, delivered, created_at, updated_at
		     FROM tasks WHERE owner = ? ORDER BY id`
		args = append(args, owner)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	out := make([]task.Task, 0, 16)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "scan", Err: err}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return out, nil
}

func (s *sqliteStore) Update(ctx context.Context, id int64, owner string, p task.Patch) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, &PersistenceError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT id, date, time, timezone, title, description, owner, status, delivered, created_at, updated_at
		 FROM tasks WHERE id = ? AND owner = ?`, id, owner)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &PersistenceError{Op: "select", Err: err}
	}

	p.Apply(&t)
	t.UpdatedAt = time.Now()

	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET date=?, time=?, timezone=?, title=?, description=?, status=?, delivered=?, updated_at=?
		 WHERE id=? AND owner=?`,
		t.Date, t.Time, t.Timezone, t.Title, t.Description, string(t.Status), t.Delivered, fmtTime(t.UpdatedAt),
		id, owner,
	)
	if err != nil {
		return false, &PersistenceError{Op: "update", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return false, &PersistenceError{Op: "commit", Err: err}
	}
	return true, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id int64, owner string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return false, &PersistenceError{Op: "delete", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &PersistenceError{Op: "delete", Err: err}
	}
	return n > 0, nil
}

func (s *sqliteStore) Commit(ctx context.Context, results []task.Result) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	now := fmtTime(time.Now())
	for _, r := range results {
		// Status and marker only; a marker already present stays.
		_, err := tx.ExecContext(ctx,
			`UPDATE tasks
			 SET status = ?,
			     delivered = CASE WHEN delivered = '' THEN ? ELSE delivered END,
			     updated_at = ?
			 WHERE id = ?`,
			string(r.Status), r.Marker, now, r.ID,
		)
		if err != nil {
			return &PersistenceError{Op: "commit results", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (task.Task, error) {
	var t task.Task
	var status, created, updated string
	err := r.Scan(&t.ID, &t.Date, &t.Time, &t.Timezone, &t.Title, &t.Description,
		&t.Owner, &status, &t.Delivered, &created, &updated)
	if err != nil {
		return task.Task{}, err
	}
	t.Status = task.Status(status)
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

func fmtTime(t time.Time) string { return t.Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
