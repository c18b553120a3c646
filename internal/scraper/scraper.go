// Package scraper fetches web pages and PDFs and turns them into text.
package scraper

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/zeno-search/zeno/internal/config"
	"github.com/zeno-search/zeno/internal/doc"
	zerrors "github.com/zeno-search/zeno/internal/errors"
)

// Page is a fetched and extracted document.
type Page struct {
	URL         string
	Title       string
	Body        string
	Description string
	Type        doc.Type
}

// Options configures a Scraper.
type Options struct {
	UserAgent     string
	Timeout       time.Duration
	RatePerSecond float64
	MaxBodyBytes  int
	PDFToText     string
	Retry         zerrors.RetryConfig
	Logger        *slog.Logger
}

// OptionsFromConfig builds Options from the scraper configuration.
func OptionsFromConfig(c config.ScraperConfig) Options {
	return Options{
		UserAgent:     c.UserAgent,
		Timeout:       c.Timeout,
		RatePerSecond: c.RatePerSecond,
		MaxBodyBytes:  c.MaxBodyBytes,
		PDFToText:     c.PDFToText,
		Retry:         zerrors.DefaultRetryConfig(),
	}
}

// Scraper fetches documents over HTTP. It is safe for concurrent use;
// requests share one rate limit.
type Scraper struct {
	collector *colly.Collector
	limiter   *rate.Limiter
	pdfTool   string
	retry     zerrors.RetryConfig
	logger    *slog.Logger
}

const (
	ctxBody   = "zeno.body"
	ctxType   = "zeno.content_type"
	ctxStatus = "zeno.status"
	ctxFinal  = "zeno.final_url"
)

// New creates a Scraper.
func New(opts Options) *Scraper {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PDFToText == "" {
		opts.PDFToText = "pdftotext"
	}

	c := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxDepth(1),
	)
	if opts.MaxBodyBytes > 0 {
		c.MaxBodySize = opts.MaxBodyBytes
	}
	if opts.Timeout > 0 {
		c.SetRequestTimeout(opts.Timeout)
	}

	c.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxBody, r.Body)
		r.Ctx.Put(ctxType, r.Headers.Get("Content-Type"))
		r.Ctx.Put(ctxFinal, r.Request.URL.String())
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Ctx != nil && r.StatusCode != 0 {
			r.Ctx.Put(ctxStatus, strconv.Itoa(r.StatusCode))
		}
	})

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}

	return &Scraper{
		collector: c,
		limiter:   rate.NewLimiter(limit, 1),
		pdfTool:   opts.PDFToText,
		retry:     opts.Retry,
		logger:    logger,
	}
}

// Fetch downloads rawURL and extracts its content. Timeouts and 5xx
// responses are retried.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, zerrors.ValidationError("url must be an absolute http or https URL", err).
			WithDetail("url", rawURL)
	}

	var resp fetched
	err = zerrors.RetryIf(ctx, s.retry, zerrors.IsRetryable, func() error {
		var ferr error
		resp, ferr = s.get(ctx, u.String())
		if ferr != nil && zerrors.IsRetryable(ferr) {
			s.logger.Warn("fetch failed, retrying",
				slog.String("url", u.String()),
				slog.String("error", ferr.Error()))
		}
		return ferr
	})
	if err != nil {
		return nil, err
	}

	page, err := s.extract(ctx, resp)
	if err != nil {
		return nil, err
	}
	s.logger.Info("page fetched",
		slog.String("url", page.URL),
		slog.String("type", page.Type.String()),
		slog.Int("bytes", len(resp.body)))
	return page, nil
}

type fetched struct {
	url         string
	contentType string
	body        []byte
}

func (s *Scraper) get(ctx context.Context, target string) (fetched, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return fetched{}, err
	}

	// colly has no per-request context, so the caller's deadline only
	// applies up to this point; the request itself is bounded by Timeout.
	cctx := colly.NewContext()
	err := s.collector.Request(http.MethodGet, target, nil, cctx, nil)
	if err != nil {
		return fetched{}, classifyFetchError(target, cctx.Get(ctxStatus), err)
	}

	body, _ := cctx.GetAny(ctxBody).([]byte)
	final := cctx.Get(ctxFinal)
	if final == "" {
		final = target
	}
	return fetched{url: final, contentType: cctx.Get(ctxType), body: body}, nil
}

func classifyFetchError(target, status string, err error) error {
	if status != "" {
		code, _ := strconv.Atoi(status)
		errCode := zerrors.ErrCodeFetchFailed
		if code >= 500 {
			errCode = zerrors.ErrCodeUpstreamStatus
		}
		return zerrors.New(errCode, fmt.Sprintf("upstream returned %d %s", code, http.StatusText(code)), err).
			WithDetail("url", target).
			WithDetail("status", status)
	}

	var netErr net.Error
	if (stderrors.As(err, &netErr) && netErr.Timeout()) || stderrors.Is(err, context.DeadlineExceeded) {
		return zerrors.New(zerrors.ErrCodeFetchTimeout, "fetch timed out", err).WithDetail("url", target)
	}
	return zerrors.New(zerrors.ErrCodeFetchFailed, "fetch failed", err).WithDetail("url", target)
}

func (s *Scraper) extract(ctx context.Context, f fetched) (*Page, error) {
	typ := doc.TypeOf(f.url)
	if strings.HasPrefix(strings.ToLower(f.contentType), "application/pdf") {
		typ = doc.TypePDF
	}

	switch typ {
	case doc.TypePDF:
		pdf, err := extractPDFBytes(ctx, s.pdfTool, f.body, s.logger)
		if err != nil {
			return nil, err
		}
		return &Page{URL: f.url, Title: pdf.Title, Body: pdf.Body, Type: doc.TypePDF}, nil
	default:
		h, err := ExtractHTML(bytes.NewReader(f.body))
		if err != nil {
			return nil, zerrors.New(zerrors.ErrCodeExtractFailed, "could not parse html", err).
				WithDetail("url", f.url)
		}
		return &Page{URL: f.url, Title: h.Title, Body: h.Body, Description: h.Description, Type: doc.TypeHTML}, nil
	}
}

// ExtractFile extracts a local .html, .htm or .pdf file. The page URL is
// the file:// URL of its absolute path.
func (s *Scraper) ExtractFile(ctx context.Context, path string) (*Page, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, zerrors.ValidationError("invalid path", err).WithDetail("path", path)
	}
	location := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()

	switch strings.ToLower(filepath.Ext(abs)) {
	case ".pdf":
		pdf, err := extractPDF(ctx, s.pdfTool, abs, s.logger)
		if err != nil {
			return nil, err
		}
		return &Page{URL: location, Title: pdf.Title, Body: pdf.Body, Type: doc.TypePDF}, nil
	case ".html", ".htm":
		f, err := os.Open(abs)
		if err != nil {
			return nil, zerrors.New(zerrors.ErrCodeExtractFailed, "failed to open file", err).WithDetail("path", abs)
		}
		defer func() { _ = f.Close() }()

		h, err := ExtractHTML(f)
		if err != nil {
			return nil, zerrors.New(zerrors.ErrCodeExtractFailed, "could not parse html", err).WithDetail("path", abs)
		}
		title := h.Title
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
		}
		return &Page{URL: location, Title: title, Body: h.Body, Description: h.Description, Type: doc.TypeHTML}, nil
	default:
		return nil, zerrors.ValidationError("unsupported file type", nil).
			WithDetail("path", abs).
			WithSuggestion("only .html, .htm and .pdf files can be indexed")
	}
}

// Supported reports whether ExtractFile handles path.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".html", ".htm":
		return true
	}
	return false
}
