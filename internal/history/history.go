// Package history keeps a local SQLite record of filed issues and uploaded
// attachments.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/randalmurphal/bugfiler/internal/bugtracker"
)

//go:embed schema/*.sql
var schemaFS embed.FS

const migrationPrefix = "history_"

// timeLayout is fixed width so created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Kind distinguishes history entries.
type Kind string

const (
	KindIssue      Kind = "issue"
	KindAttachment Kind = "attachment"
)

// Entry is one recorded filing action.
type Entry struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	ServerURL string    `json:"server_url,omitempty"`
	Project   string    `json:"project,omitempty"`
	IssueType string    `json:"issue_type,omitempty"`
	IssueKey  string    `json:"issue_key"`
	IssueID   string    `json:"issue_id,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	FileName  string    `json:"file_name,omitempty"`
	Size      int64     `json:"size,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the history database at path and applies
// pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Per-connection pragmas only hold with a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordIssue stores a created issue.
func (s *Store) RecordIssue(ctx context.Context, serverURL string, req bugtracker.IssueRequest, ref bugtracker.IssueRef) (Entry, error) {
	e := Entry{
		ID:        uuid.NewString(),
		Kind:      KindIssue,
		ServerURL: serverURL,
		Project:   req.ProjectKey,
		IssueType: req.IssueType,
		IssueKey:  ref.Key,
		IssueID:   ref.ID,
		Summary:   req.Summary,
		CreatedAt: s.now().UTC(),
	}
	return e, s.insert(ctx, e)
}

// RecordAttachment stores an uploaded attachment.
func (s *Store) RecordAttachment(ctx context.Context, serverURL, issueKey, fileName string, size int64) (Entry, error) {
	e := Entry{
		ID:        uuid.NewString(),
		Kind:      KindAttachment,
		ServerURL: serverURL,
		IssueKey:  issueKey,
		FileName:  fileName,
		Size:      size,
		CreatedAt: s.now().UTC(),
	}
	return e, s.insert(ctx, e)
}

func (s *Store) insert(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, kind, server_url, project, issue_type, issue_key, issue_id, summary, file_name, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.ServerURL, e.Project, e.IssueType, e.IssueKey, e.IssueID,
		e.Summary, e.FileName, e.Size, e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record %s %s: %w", e.Kind, e.IssueKey, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns every entry.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, kind, server_url, project, issue_type, issue_key, issue_id, summary, file_name, size, created_at
		FROM entries ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			kind    string
			created string
		)
		if err := rows.Scan(&e.ID, &kind, &e.ServerURL, &e.Project, &e.IssueType, &e.IssueKey,
			&e.IssueID, &e.Summary, &e.FileName, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.Kind = Kind(kind)
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse history timestamp %q: %w", created, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// migrate applies embedded schema files not yet recorded in _migrations.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM _migrations")
	if err != nil {
		return fmt.Errorf("query migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate migrations: %w", err)
	}
	_ = rows.Close()

	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), migrationPrefix) && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		version := migrationVersion(name)
		if applied[version] {
			continue
		}
		content, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO _migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// migrationVersion extracts 1 from "history_001.sql".
func migrationVersion(name string) int {
	s := strings.TrimSuffix(strings.TrimPrefix(name, migrationPrefix), ".sql")
	var v int
	_, _ = fmt.Sscanf(s, "%d", &v)
	return v
}
