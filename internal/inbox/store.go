// Package inbox stores submissions received by the local development relay in
// an embedded SQLite database.
package inbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/conneroisu/shopfront/internal/form"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const defaultListLimit = 50

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no submission has the requested ID.
var ErrNotFound = errors.New("inbox: submission not found")

// Submission is one contact form post accepted by the local relay.
type Submission struct {
	ID          string           `json:"id"`
	ReceivedAt  time.Time        `json:"received_at"`
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	Service     string           `json:"service,omitempty"`
	Message     string           `json:"message"`
	Attribution form.Attribution `json:"attribution"`
	RemoteAddr  string           `json:"remote_addr,omitempty"`
	Spam        bool             `json:"spam"`
}

// FromPayload copies the visitor-supplied fields of a relay payload.
func FromPayload(p form.Payload, remoteAddr string) Submission {
	return Submission{
		Name:        p.Name,
		Email:       p.Email,
		Service:     p.Service,
		Message:     p.Message,
		Attribution: p.Attribution,
		RemoteAddr:  remoteAddr,
		Spam:        p.IsSpam(),
	}
}

// ListOptions filters List.
type ListOptions struct {
	Limit       int
	IncludeSpam bool
}

// Store is a SQLite-backed submission inbox. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id           TEXT PRIMARY KEY,
	received_at  TEXT NOT NULL,
	name         TEXT NOT NULL,
	email        TEXT NOT NULL,
	service      TEXT NOT NULL DEFAULT '',
	message      TEXT NOT NULL,
	utm_source   TEXT NOT NULL DEFAULT '',
	utm_medium   TEXT NOT NULL DEFAULT '',
	utm_campaign TEXT NOT NULL DEFAULT '',
	utm_term     TEXT NOT NULL DEFAULT '',
	utm_content  TEXT NOT NULL DEFAULT '',
	remote_addr  TEXT NOT NULL DEFAULT '',
	spam         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_submissions_received ON submissions (received_at DESC);
`

// Open opens or creates the inbox at path. Parent directories are created.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("inbox: create directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("inbox: open %s: %w", path, err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("inbox: migrate: %w", err)
	}

	return &Store{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now: time.Now,
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores sub, assigning an ID and receive time when they are unset.
func (s *Store) Save(ctx context.Context, sub Submission) (Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = s.now()
	}
	sub.ReceivedAt = sub.ReceivedAt.UTC()

	query, args, err := s.sb.Insert("submissions").
		Columns(columns...).
		Values(sub.ID, sub.ReceivedAt.Format(timeLayout), sub.Name, sub.Email, sub.Service, sub.Message,
			sub.Attribution.Source, sub.Attribution.Medium, sub.Attribution.Campaign,
			sub.Attribution.Term, sub.Attribution.Content,
			sub.RemoteAddr, sub.Spam).
		ToSql()
	if err != nil {
		return Submission{}, fmt.Errorf("inbox: build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return Submission{}, fmt.Errorf("inbox: insert: %w", err)
	}
	return sub, nil
}

var columns = []string{
	"id", "received_at", "name", "email", "service", "message",
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"remote_addr", "spam",
}

// List returns submissions newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Submission, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := s.sb.Select(columns...).
		From("submissions").
		OrderBy("received_at DESC", "rowid DESC").
		Limit(uint64(limit))
	if !opts.IncludeSpam {
		q = q.Where(sq.Eq{"spam": false})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("inbox: build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inbox: query: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		sub, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inbox: rows: %w", err)
	}
	return out, nil
}

// Get returns the submission with id.
func (s *Store) Get(ctx context.Context, id string) (Submission, error) {
	query, args, err := s.sb.Select(columns...).From("submissions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Submission{}, fmt.Errorf("inbox: build select: %w", err)
	}

	sub, err := scan(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	return sub, err
}

// Delete removes the submission with id.
func (s *Store) Delete(ctx context.Context, id string) error {
	query, args, err := s.sb.Delete("submissions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("inbox: build delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("inbox: delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored submissions, spam included.
func (s *Store) Count(ctx context.Context) (int, error) {
	query, args, err := s.sb.Select("COUNT(*)").From("submissions").ToSql()
	if err != nil {
		return 0, fmt.Errorf("inbox: build count: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("inbox: count: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (Submission, error) {
	var (
		sub      Submission
		received string
	)
	err := row.Scan(&sub.ID, &received, &sub.Name, &sub.Email, &sub.Service, &sub.Message,
		&sub.Attribution.Source, &sub.Attribution.Medium, &sub.Attribution.Campaign,
		&sub.Attribution.Term, &sub.Attribution.Content,
		&sub.RemoteAddr, &sub.Spam)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, err
		}
		return Submission{}, fmt.Errorf("inbox: scan: %w", err)
	}
	if sub.ReceivedAt, err = time.Parse(timeLayout, received); err != nil {
		return Submission{}, fmt.Errorf("inbox: parse received_at: %w", err)
	}
	return sub, nil
}
