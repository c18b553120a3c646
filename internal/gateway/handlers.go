package gateway

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/zeno-search/zeno/internal/doc"
	zerrors "github.com/zeno-search/zeno/internal/errors"
	"github.com/zeno-search/zeno/internal/ingest"
	"github.com/zeno-search/zeno/internal/store"
	"github.com/zeno-search/zeno/pkg/version"
)

// ScrapeRequest is the body of POST /scrape.
type ScrapeRequest = ingest.IndexURLRequest

// ScrapeResponse is returned by POST /scrape.
type ScrapeResponse struct {
	ID    doc.ID `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// SearchRequest is the body of POST /search. A missing limit uses the
// server default; limits above the maximum are clamped.
type SearchRequest struct {
	Query string `json:"query" validate:"required"`
	Limit *uint  `json:"limit,omitempty"`
}

// SearchResponse is returned by POST /search.
type SearchResponse struct {
	Results []store.Hit `json:"results"`
}

// DocumentsResponse is returned by GET /documents.
type DocumentsResponse struct {
	Documents []store.Record `json:"documents"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	ingest.Stats
	Version string `json:"version"`
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func (s *Server) handleScrape(c *fiber.Ctx) error {
	var req ScrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return zerrors.ValidationError("invalid JSON request", err)
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := s.validate(&req); err != nil {
		return err
	}

	ctx, cancel := s.callContext(c)
	defer cancel()

	d, err := s.svc.IndexURL(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(ScrapeResponse{ID: d.ID, URL: d.URL, Title: d.Title.String()})
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return zerrors.ValidationError("invalid JSON request", err)
	}
	if err := s.validate(&req); err != nil {
		return err
	}

	limit := s.opts.DefaultLimit
	if req.Limit != nil {
		limit = min(*req.Limit, s.opts.MaxLimit)
	}

	ctx, cancel := s.callContext(c)
	defer cancel()

	hits, err := s.svc.Search(ctx, req.Query, limit)
	if err != nil {
		return err
	}
	if hits == nil {
		hits = []store.Hit{}
	}
	return c.JSON(SearchResponse{Results: hits})
}

// handleListDocuments serves GET /documents, newest first. An absent limit
// uses the default; limit=0 returns no documents, as it does for /search.
func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", int(s.opts.DefaultLimit))
	if limit < 0 {
		return zerrors.ValidationError("limit must be non-negative", nil)
	}
	if limit == 0 {
		return c.JSON(DocumentsResponse{Documents: []store.Record{}})
	}

	ctx, cancel := s.callContext(c)
	defer cancel()

	recs, err := s.svc.List(ctx, limit)
	if err != nil {
		return err
	}
	return c.JSON(DocumentsResponse{Documents: recs})
}

func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	id, err := doc.ParseID(c.Params("id"))
	if err != nil {
		return err
	}

	ctx, cancel := s.callContext(c)
	defer cancel()

	if err := s.svc.Delete(ctx, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	ctx, cancel := s.callContext(c)
	defer cancel()

	stats, err := s.svc.Stats(ctx)
	if err != nil {
		return err
	}
	return c.JSON(StatsResponse{Stats: stats, Version: version.Short()})
}
