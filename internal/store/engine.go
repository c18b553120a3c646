package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp/syntax"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/zeno-search/zeno/internal/doc"
	zerrors "github.com/zeno-search/zeno/internal/errors"
)

// indexSubdir holds the bleve data inside the index directory. bleve
// refuses to create an index in an existing directory, and the lock file
// has to exist before the index does.
const indexSubdir = "store"

// Hit is one search result: the document id plus its stored fields.
type Hit struct {
	ID    doc.ID  `json:"id"`
	URL   string  `json:"url"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// EngineOptions configures OpenEngine.
type EngineOptions struct {
	// CacheSize is the number of cached search results. Zero disables
	// caching.
	CacheSize int
	Logger    *slog.Logger
}

// DefaultEngineOptions returns the options used by the server.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{CacheSize: DefaultResultCacheSize}
}

// Engine owns one on-disk full-text index with the fixed document schema.
//
// Engine is not safe for concurrent use. index.Coordinator is the only
// caller in a running server and serializes every call.
type Engine struct {
	dir    string
	index  bleve.Index
	lock   *DirLock
	cache  *resultCache
	logger *slog.Logger
	closed bool
}

// OpenEngine opens the index in dir, creating it if needed. It fails with
// an index IO error if dir is unusable, another process owns it, or the
// index there was built with a different schema.
func OpenEngine(dir string, opts EngineOptions) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if dir == "" {
		return nil, zerrors.IndexIOError("index directory not set", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, zerrors.IndexIOError("cannot create index directory "+dir, err)
	}

	lock := NewDirLock(dir)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, zerrors.IndexIOError("cannot lock index directory "+dir, err)
	}
	if !acquired {
		return nil, zerrors.New(zerrors.ErrCodeIndexLocked, "index directory is in use: "+dir, nil).
			WithSuggestion("stop the other zeno process or use the running server")
	}

	im, err := NewIndexMapping()
	if err != nil {
		_ = lock.Unlock()
		return nil, zerrors.IndexIOError("cannot build schema", err)
	}
	fingerprint, err := SchemaFingerprint(im)
	if err != nil {
		_ = lock.Unlock()
		return nil, zerrors.IndexIOError("cannot fingerprint schema", err)
	}

	idx, err := openOrCreate(filepath.Join(dir, indexSubdir), im, fingerprint, logger)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	return &Engine{
		dir:    dir,
		index:  idx,
		lock:   lock,
		cache:  newResultCache(opts.CacheSize),
		logger: logger,
	}, nil
}

func openOrCreate(path string, im mapping.IndexMapping, fingerprint string, logger *slog.Logger) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, im)
		if err != nil {
			return nil, zerrors.IndexIOError("cannot create index at "+path, err)
		}
		if err := idx.SetInternal(schemaKey, []byte(fingerprint)); err != nil {
			_ = idx.Close()
			return nil, zerrors.IndexIOError("cannot record schema", err)
		}
		logger.Info("index_created", slog.String("path", path))
		return idx, nil
	}
	if err != nil {
		return nil, zerrors.IndexIOError("cannot open index at "+path, err)
	}

	if err := checkSchema(idx, fingerprint); err != nil {
		_ = idx.Close()
		return nil, err
	}

	count, _ := idx.DocCount()
	logger.Info("index_opened",
		slog.String("path", path),
		slog.Uint64("documents", count))
	return idx, nil
}

// checkSchema compares the fingerprint recorded at creation with ours.
// An empty index without a fingerprint was interrupted during creation and
// is adopted.
func checkSchema(idx bleve.Index, fingerprint string) error {
	stored, err := idx.GetInternal(schemaKey)
	if err != nil {
		return zerrors.IndexIOError("cannot read schema fingerprint", err)
	}

	if len(stored) == 0 {
		count, err := idx.DocCount()
		if err != nil {
			return zerrors.IndexIOError("cannot count documents", err)
		}
		if count > 0 {
			return zerrors.New(zerrors.ErrCodeSchemaMismatch, "index has no schema fingerprint", nil).
				WithSuggestion("remove the index directory and re-ingest")
		}
		if err := idx.SetInternal(schemaKey, []byte(fingerprint)); err != nil {
			return zerrors.IndexIOError("cannot record schema", err)
		}
		return nil
	}

	if string(stored) != fingerprint {
		return zerrors.New(zerrors.ErrCodeSchemaMismatch, "index was built with an incompatible schema", nil).
			WithDetail("found", string(stored)).
			WithDetail("expected", fingerprint).
			WithSuggestion("remove the index directory and re-ingest")
	}
	return nil
}

// Dir returns the index directory.
func (e *Engine) Dir() string {
	return e.dir
}

// AddDocument indexes d and commits before returning. A document that
// returns from AddDocument is durable and visible to the next Search.
func (e *Engine) AddDocument(ctx context.Context, d doc.Document) error {
	if e.closed {
		return zerrors.IndexIOError("index is closed", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	parsed, err := d.Parsed.ToStorage()
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		FieldURL:    d.URL,
		FieldTitle:  d.Title.String(),
		FieldParsed: parsed,
	}
	if d.Body != nil {
		fields[FieldBody] = d.Body.String()
	}
	if d.Description != nil {
		fields[FieldDescription] = d.Description.String()
	}

	batch := e.index.NewBatch()
	if err := batch.Index(string(d.ID), fields); err != nil {
		return zerrors.IndexIOError(fmt.Sprintf("failed to index document %s", d.ID), err)
	}
	if err := e.index.Batch(batch); err != nil {
		return zerrors.IndexIOError("failed to commit", err)
	}
	e.cache.purge()

	e.logger.Debug("doc_indexed",
		slog.String("id", string(d.ID)),
		slog.String("url", d.URL))
	return nil
}

// Search returns up to limit hits for query in descending score order.
// The query uses query-string syntax over url, title, body and
// description, with OR between bare terms. A limit of zero returns no
// hits and does not parse the query.
func (e *Engine) Search(ctx context.Context, queryStr string, limit uint) ([]Hit, error) {
	if e.closed {
		return nil, zerrors.IndexIOError("index is closed", nil)
	}
	if limit == 0 {
		return []Hit{}, nil
	}

	q := bleve.NewQueryStringQuery(queryStr)
	if _, err := q.Parse(); err != nil {
		return nil, zerrors.QuerySyntaxError(queryStr, err)
	}

	if hits, ok := e.cache.get(queryStr, limit); ok {
		return hits, nil
	}

	count, err := e.index.DocCount()
	if err != nil {
		return nil, zerrors.IndexIOError("cannot count documents", err)
	}
	if count == 0 {
		return []Hit{}, nil
	}
	size := uint64(limit)
	if size > count {
		size = count
	}

	req := bleve.NewSearchRequestOptions(q, int(size), 0, false)
	req.Fields = []string{FieldURL, FieldTitle}
	req.SortBy([]string{"-_score", "_id"})

	result, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Regexp terms are only compiled while searching.
		if errors.As(err, new(*syntax.Error)) {
			return nil, zerrors.QuerySyntaxError(queryStr, err)
		}
		return nil, zerrors.IndexIOError("search failed", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hits = append(hits, Hit{
			ID:    doc.ID(h.ID),
			URL:   stringField(h.Fields, FieldURL),
			Title: stringField(h.Fields, FieldTitle),
			Score: h.Score,
		})
	}
	e.cache.add(queryStr, limit, hits)
	return hits, nil
}

// Delete removes the document with the given id. It returns a not-found
// error if no such document is indexed.
func (e *Engine) Delete(ctx context.Context, id doc.ID) error {
	if e.closed {
		return zerrors.IndexIOError("index is closed", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	existing, err := e.index.Document(string(id))
	if err != nil {
		return zerrors.IndexIOError("cannot look up document", err)
	}
	if existing == nil {
		return zerrors.NotFound("document " + string(id))
	}

	batch := e.index.NewBatch()
	batch.Delete(string(id))
	if err := e.index.Batch(batch); err != nil {
		return zerrors.IndexIOError("failed to commit delete", err)
	}
	e.cache.purge()

	e.logger.Debug("doc_deleted", slog.String("id", string(id)))
	return nil
}

// DocCount returns the number of indexed documents.
func (e *Engine) DocCount() (uint64, error) {
	if e.closed {
		return 0, zerrors.IndexIOError("index is closed", nil)
	}
	n, err := e.index.DocCount()
	if err != nil {
		return 0, zerrors.IndexIOError("cannot count documents", err)
	}
	return n, nil
}

// Close closes the index and releases the directory lock. Further calls
// fail with an index IO error. Close is idempotent.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.cache.purge()

	err := e.index.Close()
	if unlockErr := e.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	if err != nil {
		return zerrors.IndexIOError("failed to close index", err)
	}
	return nil
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}
