package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/zeno-search/zeno/internal/doc"
	zerrors "github.com/zeno-search/zeno/internal/errors"
)

// Record is the registry's view of an ingested document. The index keeps
// the searchable text; the registry keeps what is needed to list and
// manage documents.
type Record struct {
	ID        doc.ID    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Type      doc.Type  `json:"type"`
	ParsedMS  int64     `json:"parsed_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordFor builds the registry record of an indexed document.
func RecordFor(d doc.Document) (Record, error) {
	ms, err := d.Parsed.Millis()
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:       d.ID,
		URL:      d.URL,
		Title:    d.Title.String(),
		Type:     d.Type,
		ParsedMS: ms,
	}, nil
}

const registrySchema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	title      TEXT NOT NULL,
	doc_type   TEXT NOT NULL,
	parsed_ms  INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);
CREATE INDEX IF NOT EXISTS idx_documents_url ON documents(url);
`

// Registry is a SQLite catalogue of ingested documents.
type Registry struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenRegistry opens or creates the registry database at path.
// An empty path opens an in-memory database.
func OpenRegistry(path string) (*Registry, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, zerrors.New(zerrors.ErrCodeRegistryIO, "cannot create registry directory", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, zerrors.New(zerrors.ErrCodeRegistryIO, "failed to open registry", err)
	}

	// Single writer; also keeps one connection alive for :memory:
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, zerrors.New(zerrors.ErrCodeRegistryIO, "failed to set pragma", err)
		}
	}

	if _, err := db.Exec(registrySchema); err != nil {
		_ = db.Close()
		return nil, zerrors.New(zerrors.ErrCodeRegistryIO, "failed to create registry schema", err)
	}

	return &Registry{db: db, path: path, now: time.Now}, nil
}

// Save inserts or replaces r. CreatedAt is set when zero.
func (r *Registry) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return zerrors.EmptyField("id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, url, title, doc_type, parsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			doc_type = excluded.doc_type,
			parsed_ms = excluded.parsed_ms`,
		string(rec.ID), rec.URL, rec.Title, rec.Type.String(), rec.ParsedMS, rec.CreatedAt.UnixMilli())
	if err != nil {
		return zerrors.New(zerrors.ErrCodeRegistryIO, "failed to save document record", err)
	}
	return nil
}

// Get returns the record for id, or a not-found error.
func (r *Registry) Get(ctx context.Context, id doc.ID) (Record, error) {
	if id == "" {
		return Record{}, zerrors.EmptyField("id")
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, url, title, doc_type, parsed_ms, created_at FROM documents WHERE id = ?`, string(id))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, zerrors.NotFound("document " + string(id))
	}
	if err != nil {
		return Record{}, zerrors.New(zerrors.ErrCodeRegistryIO, "failed to read document record", err)
	}
	return rec, nil
}

// List returns up to limit records, newest first. A limit of zero or less
// returns every record.
func (r *Registry) List(ctx context.Context, limit int) ([]Record, error) {
	q := `SELECT id, url, title, doc_type, parsed_ms, created_at FROM documents
		ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, zerrors.New(zerrors.ErrCodeRegistryIO, "failed to list documents", err)
	}
	defer func() { _ = rows.Close() }()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, zerrors.New(zerrors.ErrCodeRegistryIO, "failed to read document record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, zerrors.New(zerrors.ErrCodeRegistryIO, "failed to list documents", err)
	}
	return records, nil
}

// Delete removes the record for id. Deleting a missing record is a
// not-found error.
func (r *Registry) Delete(ctx context.Context, id doc.ID) error {
	if id == "" {
		return zerrors.EmptyField("id")
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, string(id))
	if err != nil {
		return zerrors.New(zerrors.ErrCodeRegistryIO, "failed to delete document record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return zerrors.New(zerrors.ErrCodeRegistryIO, "failed to delete document record", err)
	}
	if n == 0 {
		return zerrors.NotFound("document " + string(id))
	}
	return nil
}

// Count returns the number of records.
func (r *Registry) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, zerrors.New(zerrors.ErrCodeRegistryIO, "failed to count documents", err)
	}
	return n, nil
}

// Close closes the database.
func (r *Registry) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close registry: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec       Record
		id        string
		docType   string
		createdMS int64
	)
	if err := row.Scan(&id, &rec.URL, &rec.Title, &docType, &rec.ParsedMS, &createdMS); err != nil {
		return Record{}, err
	}
	rec.ID = doc.ID(id)
	rec.Type, _ = doc.ParseType(docType)
	rec.CreatedAt = time.UnixMilli(createdMS)
	return rec, nil
}
