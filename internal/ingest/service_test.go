package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeno-search/zeno/internal/doc"
	zerrors "github.com/zeno-search/zeno/internal/errors"
	"github.com/zeno-search/zeno/internal/index"
	"github.com/zeno-search/zeno/internal/scraper"
	"github.com/zeno-search/zeno/internal/store"
	"github.com/zeno-search/zeno/internal/telemetry"
)

type fakeFetcher struct {
	pages map[string]*scraper.Page
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*scraper.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.pages[rawURL]
	if !ok {
		return nil, zerrors.New(zerrors.ErrCodeFetchFailed, "upstream returned 404 Not Found", nil)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeFetcher) ExtractFile(ctx context.Context, path string) (*scraper.Page, error) {
	return f.Fetch(ctx, "file://"+path)
}

// failingRegistry wraps a registry and fails every Save.
type failingRegistry struct {
	Registry
}

func (failingRegistry) Save(context.Context, store.Record) error {
	return zerrors.New(zerrors.ErrCodeRegistryIO, "disk full", nil)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	svc      *Service
	fetcher  *fakeFetcher
	handle   *index.Handle
	registry *store.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	engine, err := store.OpenEngine(filepath.Join(t.TempDir(), "index"), store.EngineOptions{Logger: quietLogger()})
	require.NoError(t, err)
	handle := index.Start(engine, index.Options{Logger: quietLogger()})

	registry, err := store.OpenRegistry("")
	require.NoError(t, err)

	t.Cleanup(func() {
		handle.Close()
		_ = handle.Wait(context.Background())
		_ = engine.Close()
		_ = registry.Close()
	})

	fetcher := &fakeFetcher{pages: map[string]*scraper.Page{
		"https://example.com/nn": {
			URL:         "https://example.com/nn",
			Title:       "Neural Network From Scratch",
			Body:        "perceptron backpropagation gradient ",
			Description: "a tutorial",
			Type:        doc.TypeHTML,
		},
		"https://example.com/paper.pdf": {
			URL:  "https://example.com/paper.pdf",
			Body: "Attention Is All You Need\ntransformer ",
			Type: doc.TypePDF,
		},
		"file:///inbox/notes.html": {
			URL:   "file:///inbox/notes.html",
			Title: "notes",
			Body:  "grocery list ",
			Type:  doc.TypeHTML,
		},
	}}

	return &fixture{
		svc:      NewService(fetcher, handle, registry, quietLogger()),
		fetcher:  fetcher,
		handle:   handle,
		registry: registry,
	}
}

func TestIndexURL_SearchableAndRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.IndexURL(ctx, IndexURLRequest{URL: "https://example.com/nn"})
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "Neural Network From Scratch", d.Title.String())
	assert.Equal(t, "a tutorial", d.DescriptionText())

	hits, err := f.svc.Search(ctx, "backpropagation", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, d.ID, hits[0].ID)
	assert.Equal(t, "https://example.com/nn", hits[0].URL)

	rec, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Neural Network From Scratch", rec.Title)
	assert.Equal(t, doc.TypeHTML, rec.Type)
}

func TestIndexURL_RequestOverridesExtracted(t *testing.T) {
	f := newFixture(t)

	d, err := f.svc.IndexURL(context.Background(), IndexURLRequest{
		URL:         "https://example.com/nn",
		Title:       "My Title",
		Description: "my words",
	})
	require.NoError(t, err)
	assert.Equal(t, "My Title", d.Title.String())
	assert.Equal(t, "my words", d.DescriptionText())
}

func TestIndexURL_TitleFallsBackToURL(t *testing.T) {
	f := newFixture(t)
	f.fetcher.pages["https://example.com/blank"] = &scraper.Page{URL: "https://example.com/blank", Body: "text ", Type: doc.TypeHTML}

	d, err := f.svc.IndexURL(context.Background(), IndexURLRequest{URL: "https://example.com/blank"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/blank", d.Title.String())
}

func TestIndexURL_PDFWithoutBodyOrDescription(t *testing.T) {
	f := newFixture(t)
	f.fetcher.pages["https://example.com/empty.pdf"] = &scraper.Page{URL: "https://example.com/empty.pdf", Title: "Scan", Type: doc.TypePDF}

	d, err := f.svc.IndexURL(context.Background(), IndexURLRequest{URL: "https://example.com/empty.pdf"})
	require.NoError(t, err)
	assert.Nil(t, d.Body)
	assert.Nil(t, d.Description)
	assert.Equal(t, doc.TypePDF, d.Type)
}

func TestIndexURL_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.IndexURL(ctx, IndexURLRequest{URL: "  "})
	assert.True(t, zerrors.IsValidation(err))

	_, err = f.svc.IndexURL(ctx, IndexURLRequest{URL: "https://example.com/missing"})
	assert.Equal(t, zerrors.ErrCodeFetchFailed, zerrors.GetCode(err))

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats, "failed fetches index nothing")
}

func TestIndexFile(t *testing.T) {
	f := newFixture(t)

	d, err := f.svc.IndexFile(context.Background(), "/inbox/notes.html")
	require.NoError(t, err)
	assert.Equal(t, "file:///inbox/notes.html", d.URL)

	hits, err := f.svc.Search(context.Background(), "grocery", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestIndexDocument_RegistryFailureKeepsIndexWrite(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.fetcher, f.handle, failingRegistry{f.registry}, quietLogger())

	title, err := doc.NewTitle("kept")
	require.NoError(t, err)
	c, err := doc.NewCreateDocument("https://example.com/kept", title, doc.OptionalBody("survivor"), nil, doc.TypeHTML)
	require.NoError(t, err)

	d, err := svc.IndexDocument(context.Background(), c)
	require.Error(t, err)
	assert.Equal(t, zerrors.ErrCodeRegistryIO, zerrors.GetCode(err))
	assert.NotEmpty(t, d.ID)

	hits, err := svc.Search(context.Background(), "survivor", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestIndexDocument_TimestampOverflowIndexesNothing(t *testing.T) {
	f := newFixture(t)

	title, err := doc.NewTitle("future")
	require.NoError(t, err)
	c, err := doc.NewCreateDocument("https://example.com/future", title, nil, nil, doc.TypeHTML)
	require.NoError(t, err)
	c.Parsed = doc.Timestamp(1 << 63)

	_, err = f.svc.IndexDocument(context.Background(), c)
	assert.True(t, zerrors.IsTimestampOverflow(err))

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.IndexURL(ctx, IndexURLRequest{URL: "https://example.com/nn"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, d.ID))

	hits, err := f.svc.Search(ctx, "perceptron", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = f.svc.Get(ctx, d.ID)
	assert.True(t, zerrors.IsNotFound(err))

	err = f.svc.Delete(ctx, d.ID)
	assert.True(t, zerrors.IsNotFound(err))
}

func TestListAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, u := range []string{"https://example.com/nn", "https://example.com/paper.pdf"} {
		_, err := f.svc.IndexURL(ctx, IndexURLRequest{URL: u})
		require.NoError(t, err)
	}

	recs, err := f.svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	one, err := f.svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Documents: 2, Registered: 2}, stats)
}

func TestClosedIndexReportsChannelClosed(t *testing.T) {
	f := newFixture(t)
	f.handle.Close()

	_, err := f.svc.IndexURL(context.Background(), IndexURLRequest{URL: "https://example.com/nn"})
	assert.True(t, zerrors.IsChannelClosed(err))

	_, err = f.svc.Search(context.Background(), "x", 1)
	assert.True(t, zerrors.IsChannelClosed(err))
}

func TestFetcherErrorPassesThrough(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	f.fetcher.err = boom

	_, err := f.svc.IndexURL(context.Background(), IndexURLRequest{URL: "https://example.com/nn"})
	assert.ErrorIs(t, err, boom)
}

func TestSearchRecordsMetrics(t *testing.T) {
	f := newFixture(t)
	metrics := telemetry.NewQueryMetrics(telemetry.Config{})
	svc := NewService(f.fetcher, f.handle, f.registry, quietLogger()).WithMetrics(metrics)
	ctx := context.Background()

	_, err := svc.IndexURL(ctx, IndexURLRequest{URL: "https://example.com/nn"})
	require.NoError(t, err)

	_, err = svc.Search(ctx, "perceptron", 5)
	require.NoError(t, err)
	_, err = svc.Search(ctx, "nothingmatches", 5)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats.Queries)
	assert.Equal(t, int64(2), stats.Queries.TotalQueries)
	assert.Equal(t, []string{"nothingmatches"}, stats.Queries.ZeroResultQueries)
}
