// Package ingest turns URLs and files into indexed documents. It is the
// one place where fetching, indexing and the registry meet; every surface
// (HTTP, daemon, MCP, inbox, CLI) goes through a Service.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/zeno-search/zeno/internal/doc"
	zerrors "github.com/zeno-search/zeno/internal/errors"
	"github.com/zeno-search/zeno/internal/index"
	"github.com/zeno-search/zeno/internal/scraper"
	"github.com/zeno-search/zeno/internal/store"
	"github.com/zeno-search/zeno/internal/telemetry"
)

// Fetcher retrieves and extracts documents.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*scraper.Page, error)
	ExtractFile(ctx context.Context, path string) (*scraper.Page, error)
}

// Index is the coordinator's API.
type Index interface {
	Index(ctx context.Context, d doc.Document) error
	Search(ctx context.Context, query string, limit uint) ([]store.Hit, error)
	Delete(ctx context.Context, id doc.ID) error
	Stats(ctx context.Context) (index.Stats, error)
}

// Registry records ingested documents.
type Registry interface {
	Save(ctx context.Context, rec store.Record) error
	Get(ctx context.Context, id doc.ID) (store.Record, error)
	List(ctx context.Context, limit int) ([]store.Record, error)
	Delete(ctx context.Context, id doc.ID) error
	Count(ctx context.Context) (int, error)
}

var (
	_ Fetcher  = (*scraper.Scraper)(nil)
	_ Index    = (*index.Handle)(nil)
	_ Registry = (*store.Registry)(nil)
)

// IndexURLRequest asks for a URL to be fetched and indexed. A non-empty
// Title or Description replaces the extracted one.
type IndexURLRequest struct {
	URL         string `json:"url" validate:"required,url"`
	Title       string `json:"title,omitempty" validate:"omitempty,max=1024"`
	Description string `json:"description,omitempty" validate:"omitempty,max=4096"`
}

// Stats summarizes the index and the registry. Queries is set when the
// service records search metrics.
type Stats struct {
	Documents  uint64              `json:"documents"`
	Registered int                 `json:"registered"`
	Queries    *telemetry.Snapshot `json:"queries,omitempty"`
}

// Service ingests and queries documents.
type Service struct {
	fetcher  Fetcher
	index    Index
	registry Registry
	metrics  *telemetry.QueryMetrics
	logger   *slog.Logger
}

// NewService creates a Service. A nil logger uses slog.Default().
func NewService(fetcher Fetcher, idx Index, registry Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{fetcher: fetcher, index: idx, registry: registry, logger: logger}
}

// WithMetrics makes the service record every successful search in m.
func (s *Service) WithMetrics(m *telemetry.QueryMetrics) *Service {
	s.metrics = m
	return s
}

// IndexURL fetches req.URL, indexes it and records it.
func (s *Service) IndexURL(ctx context.Context, req IndexURLRequest) (doc.Document, error) {
	if strings.TrimSpace(req.URL) == "" {
		return doc.Document{}, zerrors.EmptyField("url")
	}

	page, err := s.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		s.logger.Warn("scrape_failed", slog.String("url", req.URL), slog.String("error", err.Error()))
		return doc.Document{}, err
	}

	if req.Title != "" {
		page.Title = req.Title
	}
	if req.Description != "" {
		page.Description = req.Description
	}
	return s.indexPage(ctx, page)
}

// IndexFile extracts a local file, indexes it and records it.
func (s *Service) IndexFile(ctx context.Context, path string) (doc.Document, error) {
	page, err := s.fetcher.ExtractFile(ctx, path)
	if err != nil {
		s.logger.Warn("extract_failed", slog.String("path", path), slog.String("error", err.Error()))
		return doc.Document{}, err
	}
	return s.indexPage(ctx, page)
}

func (s *Service) indexPage(ctx context.Context, page *scraper.Page) (doc.Document, error) {
	titleText := strings.TrimSpace(page.Title)
	if titleText == "" {
		titleText = page.URL
	}
	title, err := doc.NewTitle(titleText)
	if err != nil {
		return doc.Document{}, err
	}

	c, err := doc.NewCreateDocument(page.URL, title,
		doc.OptionalBody(page.Body),
		doc.OptionalDescription(strings.TrimSpace(page.Description)),
		page.Type)
	if err != nil {
		return doc.Document{}, err
	}
	return s.IndexDocument(ctx, c)
}

// IndexDocument assigns c an id, indexes it and records it. A registry
// failure is returned but does not undo the index write.
func (s *Service) IndexDocument(ctx context.Context, c doc.CreateDocument) (doc.Document, error) {
	d := doc.Assign(c)

	rec, err := store.RecordFor(d)
	if err != nil {
		return doc.Document{}, err
	}
	if err := s.index.Index(ctx, d); err != nil {
		return doc.Document{}, err
	}

	if err := s.registry.Save(ctx, rec); err != nil {
		s.logger.Error("registry_save_failed",
			slog.String("id", d.ID.String()),
			slog.String("error", err.Error()))
		return d, err
	}

	s.logger.Info("doc_ingested",
		slog.String("id", d.ID.String()),
		slog.String("url", d.URL),
		slog.String("type", d.Type.String()))
	return d, nil
}

// Search runs query against the index.
func (s *Service) Search(ctx context.Context, query string, limit uint) ([]store.Hit, error) {
	start := time.Now()
	hits, err := s.index.Search(ctx, query, limit)
	if err != nil {
		s.logger.Debug("search_failed", slog.String("query", query), slog.String("error", err.Error()))
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Record(telemetry.QueryEvent{Query: query, ResultCount: len(hits), Latency: time.Since(start)})
	}
	return hits, nil
}

// Delete removes a document from the index and the registry. A document
// missing from both is NotFound.
func (s *Service) Delete(ctx context.Context, id doc.ID) error {
	indexErr := s.index.Delete(ctx, id)
	if indexErr != nil && !zerrors.IsNotFound(indexErr) {
		return indexErr
	}

	regErr := s.registry.Delete(ctx, id)
	if regErr != nil && !zerrors.IsNotFound(regErr) {
		return regErr
	}

	if indexErr != nil && regErr != nil {
		return zerrors.NotFound("document " + id.String())
	}
	s.logger.Info("doc_removed", slog.String("id", id.String()))
	return nil
}

// Get returns the registry record for id.
func (s *Service) Get(ctx context.Context, id doc.ID) (store.Record, error) {
	return s.registry.Get(ctx, id)
}

// List returns up to limit registry records, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]store.Record, error) {
	return s.registry.List(ctx, limit)
}

// Stats reports the indexed and registered document counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	is, err := s.index.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	n, err := s.registry.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Documents: is.Documents, Registered: n}
	if s.metrics != nil {
		stats.Queries = s.metrics.Snapshot()
	}
	return stats, nil
}
