package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"eventcal/internal/model"
)

//go:embed schema.sql
var schema string

// timeLayout is fixed width so that text comparison in SQL orders the same
// way as the instants it encodes.
const timeLayout = "2006-01-02T15:04:05.000Z"

// SQLite implements Store on a local SQLite file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("store: database path is empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; serialise through one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLite) UpsertCategories(ctx context.Context, cats []model.Category) error {
	if len(cats) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO categories (name, color, created_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET color = excluded.color
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	created := formatTime(s.now())
	for _, c := range cats {
		if _, err := stmt.ExecContext(ctx, c.Name, c.Color, created); err != nil {
			return fmt.Errorf("upsert category %q: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, color, created_at
		FROM categories
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var (
			c       model.Category
			created string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &created); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = parseTime(created)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *SQLite) InsertEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	if ev.Status == "" {
		ev.Status = model.StatusPublished
	}
	ev.CreatedAt = s.now().UTC()

	var end, image sql.NullString
	if ev.End != nil {
		end = sql.NullString{String: formatTime(*ev.End), Valid: true}
	}
	if ev.ImagePath != "" {
		image = sql.NullString{String: ev.ImagePath, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO events (title, event_date, end_date, category, content, status, image_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.Title, formatTime(ev.Start), end, ev.TagRef(), ev.Detail, ev.Status, image, formatTime(ev.CreatedAt))
	if err != nil {
		return model.Event{}, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Event{}, err
	}
	ev.ID = id
	return ev, nil
}

const eventColumns = `id, title, event_date, end_date, category, content, status, image_path, created_at`

func (s *SQLite) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	return ev, err
}

func (s *SQLite) ListPublished(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE status = ? AND event_date >= ? AND event_date < ?
		ORDER BY event_date ASC, id ASC
	`, model.StatusPublished, formatTime(from), formatTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLite) NextPublished(ctx context.Context, now time.Time) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE status = ? AND event_date >= ?
		ORDER BY event_date ASC, id ASC
		LIMIT 1
	`, model.StatusPublished, formatTime(now))
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (model.Event, error) {
	var (
		ev                   model.Event
		start, created, tags string
		end, image           sql.NullString
	)
	if err := sc.Scan(&ev.ID, &ev.Title, &start, &end, &tags, &ev.Detail, &ev.Status, &image, &created); err != nil {
		return model.Event{}, err
	}

	var err error
	if ev.Start, err = parseTime(start); err != nil {
		return model.Event{}, fmt.Errorf("event %d: bad event_date: %w", ev.ID, err)
	}
	if end.Valid && end.String != "" {
		t, err := parseTime(end.String)
		if err != nil {
			return model.Event{}, fmt.Errorf("event %d: bad end_date: %w", ev.ID, err)
		}
		ev.End = &t
	}
	ev.Tags = model.SplitTags(tags)
	if image.Valid {
		ev.ImagePath = image.String
	}
	ev.CreatedAt, _ = parseTime(created)
	return ev, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err == nil {
		return t, nil
	}
	// Rows written by other clients may carry an offset instead of Z.
	return time.Parse(time.RFC3339Nano, s)
}
