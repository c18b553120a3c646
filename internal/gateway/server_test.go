package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeno-search/zeno/internal/doc"
	zerrors "github.com/zeno-search/zeno/internal/errors"
	"github.com/zeno-search/zeno/internal/ingest"
	"github.com/zeno-search/zeno/internal/store"
)

// fakeService records calls and returns canned results.
type fakeService struct {
	mu sync.Mutex

	indexed   []ingest.IndexURLRequest
	indexErr  error
	lastLimit uint
	lastQuery string
	hits      []store.Hit
	searchErr error
	records   []store.Record
	listLimit int
	deleted   []doc.ID
	deleteErr error
	stats     ingest.Stats
	block     bool
}

func (f *fakeService) IndexURL(ctx context.Context, req ingest.IndexURLRequest) (doc.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexErr != nil {
		return doc.Document{}, f.indexErr
	}
	f.indexed = append(f.indexed, req)

	title := req.Title
	if title == "" {
		title = "Extracted"
	}
	t, err := doc.NewTitle(title)
	if err != nil {
		return doc.Document{}, err
	}
	c, err := doc.NewCreateDocument(req.URL, t, nil, nil, doc.TypeOf(req.URL))
	if err != nil {
		return doc.Document{}, err
	}
	return doc.Assign(c), nil
}

func (f *fakeService) Search(ctx context.Context, query string, limit uint) ([]store.Hit, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery, f.lastLimit = query, limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if int(limit) < len(f.hits) {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func (f *fakeService) List(_ context.Context, limit int) ([]store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listLimit = limit
	return f.records, nil
}

func (f *fakeService) Delete(_ context.Context, id doc.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeService) Stats(context.Context) (ingest.Stats, error) {
	return f.stats, nil
}

func newTestServer(svc Service) *Server {
	return New(svc, Options{
		RequestTimeout: time.Second,
		DefaultLimit:   10,
		MaxLimit:       100,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func do(t *testing.T, s *Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, 5000)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeError(t *testing.T, data []byte) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(data, &body), string(data))
	return body
}

func TestRoot(t *testing.T) {
	resp, data := do(t, newTestServer(&fakeService{}), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(data))
}

func TestRequestID(t *testing.T) {
	s := newTestServer(&fakeService{})

	resp, _ := do(t, s, http.MethodGet, "/", "")
	generated := resp.Header.Get(headerRequestID)
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, given)
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, given, resp.Header.Get(headerRequestID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, "not-a-uuid")
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", resp.Header.Get(headerRequestID))
}

func TestScrape(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc)

	resp, data := do(t, s, http.MethodPost, "/scrape",
		`{"url":" https://example.com/a ","title":"Neural Network From Scratch","description":"d"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var out ScrapeResponse
	require.NoError(t, json.Unmarshal(data, &out))
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "https://example.com/a", out.URL)
	assert.Equal(t, "Neural Network From Scratch", out.Title)

	require.Len(t, svc.indexed, 1)
	assert.Equal(t, "d", svc.indexed[0].Description)
}

func TestScrape_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing url", `{"title":"x"}`, "url"},
		{"empty url", `{"url":"  "}`, "url"},
		{"not a url", `{"url":"example"}`, "url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			resp, data := do(t, newTestServer(svc), http.MethodPost, "/scrape", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			body := decodeError(t, data)
			assert.Equal(t, zerrors.ErrCodeInvalidInput, body.Code)
			assert.Contains(t, body.Fields, tt.field)
			assert.NotEmpty(t, body.RequestID)
			assert.Empty(t, svc.indexed, "nothing is sent for invalid input")
		})
	}

	resp, data := do(t, newTestServer(&fakeService{}), http.MethodPost, "/scrape", `{"url":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, zerrors.ErrCodeInvalidInput, decodeError(t, data).Code)
}

func TestSearch_Limits(t *testing.T) {
	hits := make([]store.Hit, 150)
	for i := range hits {
		hits[i] = store.Hit{ID: doc.NewID(), URL: "https://example.com", Title: "t", Score: 1}
	}

	tests := []struct {
		name      string
		body      string
		wantLimit uint
	}{
		{"default", `{"query":"neural"}`, 10},
		{"explicit", `{"query":"neural","limit":3}`, 3},
		{"zero", `{"query":"neural","limit":0}`, 0},
		{"clamped", `{"query":"neural","limit":500}`, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{hits: hits}
			resp, data := do(t, newTestServer(svc), http.MethodPost, "/search", tt.body)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

			var out SearchResponse
			require.NoError(t, json.Unmarshal(data, &out))
			assert.Equal(t, tt.wantLimit, svc.lastLimit)
			assert.Len(t, out.Results, int(tt.wantLimit))
			assert.Equal(t, "neural", svc.lastQuery)
		})
	}
}

func TestSearch_EmptyResultsIsArray(t *testing.T) {
	resp, data := do(t, newTestServer(&fakeService{}), http.MethodPost, "/search", `{"query":"nothing"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"results":[]}`, string(data))
}

func TestSearch_MissingQuery(t *testing.T) {
	resp, data := do(t, newTestServer(&fakeService{}), http.MethodPost, "/search", `{"limit":3}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, data).Fields, "query")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"query syntax", zerrors.QuerySyntaxError("title:", errors.New("parse")), http.StatusBadRequest, zerrors.ErrCodeQuerySyntax},
		{"validation", zerrors.EmptyField("title"), http.StatusBadRequest, zerrors.ErrCodeEmptyField},
		{"timestamp overflow", zerrors.TimestampOverflow(1 << 63), http.StatusUnprocessableEntity, zerrors.ErrCodeTimestampOverflow},
		{"not found", zerrors.NotFound("document x"), http.StatusNotFound, zerrors.ErrCodeNotFound},
		{"fetch", zerrors.New(zerrors.ErrCodeFetchFailed, "fetch failed", nil), http.StatusBadGateway, zerrors.ErrCodeFetchFailed},
		{"extract", zerrors.New(zerrors.ErrCodeExtractFailed, "pdftotext failed", nil), http.StatusBadGateway, zerrors.ErrCodeExtractFailed},
		{"channel closed", zerrors.ChannelClosed(), http.StatusServiceUnavailable, zerrors.ErrCodeChannelClosed},
		{"index io", zerrors.IndexIOError("disk", nil), http.StatusInternalServerError, zerrors.ErrCodeIndexIO},
		{"plain", errors.New("mystery"), http.StatusInternalServerError, zerrors.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{searchErr: tt.err}
			resp, data := do(t, newTestServer(svc), http.MethodPost, "/search", `{"query":"q"}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, data).Code)
		})
	}
}

func TestPlainErrorsHideDetails(t *testing.T) {
	svc := &fakeService{searchErr: errors.New("secret path /var/lib/x")}
	_, data := do(t, newTestServer(svc), http.MethodPost, "/search", `{"query":"q"}`)
	assert.NotContains(t, string(data), "secret")
}

func TestSearch_Timeout(t *testing.T) {
	svc := &fakeService{block: true}
	s := New(svc, Options{
		RequestTimeout: 50 * time.Millisecond,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	resp, data := do(t, s, http.MethodPost, "/search", `{"query":"slow"}`)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, "TIMEOUT", decodeError(t, data).Code)
}

func TestDocuments(t *testing.T) {
	id := doc.NewID()
	svc := &fakeService{records: []store.Record{{ID: id, URL: "https://example.com/a", Title: "A", Type: doc.TypePDF}}}
	s := newTestServer(svc)

	resp, data := do(t, s, http.MethodGet, "/documents?limit=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, svc.listLimit)

	var out DocumentsResponse
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out.Documents, 1)
	assert.Equal(t, id, out.Documents[0].ID)
	assert.Contains(t, string(data), `"type":"pdf"`)

	do(t, s, http.MethodGet, "/documents", "")
	assert.Equal(t, 10, svc.listLimit)

	svc.listLimit = -1
	resp, data = do(t, s, http.MethodGet, "/documents?limit=0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"documents":[]}`, string(data))
	assert.Equal(t, -1, svc.listLimit)

	resp, _ = do(t, s, http.MethodGet, "/documents?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteDocument(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc)
	id := doc.NewID()

	resp, _ := do(t, s, http.MethodDelete, "/documents/"+id.String(), "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []doc.ID{id}, svc.deleted)

	svc.deleteErr = zerrors.NotFound("document " + id.String())
	resp, _ = do(t, s, http.MethodDelete, "/documents/"+id.String(), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStats(t *testing.T) {
	svc := &fakeService{stats: ingest.Stats{Documents: 4, Registered: 3}}
	resp, data := do(t, newTestServer(svc), http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.EqualValues(t, 4, out["documents"])
	assert.EqualValues(t, 3, out["registered"])
	assert.NotEmpty(t, out["version"])
}

func TestUnknownRoute(t *testing.T) {
	resp, data := do(t, newTestServer(&fakeService{}), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "HTTP_404", decodeError(t, data).Code)
}

func TestServe_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := newTestServer(&fakeService{})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
