package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeno-search/zeno/internal/doc"
	zerrors "github.com/zeno-search/zeno/internal/errors"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := OpenEngine(t.TempDir(), DefaultEngineOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func makeDoc(t *testing.T, url, title, body, description string) doc.Document {
	t.Helper()
	tt, err := doc.NewTitle(title)
	require.NoError(t, err)
	c, err := doc.NewCreateDocument(url, tt, doc.OptionalBody(body), doc.OptionalDescription(description), doc.TypeOf(url))
	require.NoError(t, err)
	return doc.Assign(c)
}

func hitIDs(hits []Hit) []doc.ID {
	ids := make([]doc.ID, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}

// TS01: Read-after-write through the engine
func TestEngine_AddThenSearch_FindsDocument(t *testing.T) {
	// Given: an empty engine
	e := newTestEngine(t)
	ctx := context.Background()

	// When: a document is added
	d := makeDoc(t, "https://example.com/a", "Neural Network From Scratch", "gradient descent optimizer", "")
	require.NoError(t, e.AddDocument(ctx, d))

	// Then: searching for title terms returns it with stored fields
	hits, err := e.Search(ctx, "Neural Network", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, d.ID, hits[0].ID)
	assert.Equal(t, "https://example.com/a", hits[0].URL)
	assert.Equal(t, "Neural Network From Scratch", hits[0].Title)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestEngine_Search_MatchesEveryTextField(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	d := makeDoc(t, "https://example.com/zebra-page", "Animals", "optimizer internals", "a striped summary")
	require.NoError(t, e.AddDocument(ctx, d))

	for _, q := range []string{"zebra", "animals", "optimizer", "striped"} {
		t.Run(q, func(t *testing.T) {
			hits, err := e.Search(ctx, q, 10)
			require.NoError(t, err)
			assert.Equal(t, []doc.ID{d.ID}, hitIDs(hits))
		})
	}
}

func TestEngine_Search_OrSemantics(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a := makeDoc(t, "https://example.com/a", "apples", "", "")
	b := makeDoc(t, "https://example.com/b", "bananas", "", "")
	require.NoError(t, e.AddDocument(ctx, a))
	require.NoError(t, e.AddDocument(ctx, b))

	hits, err := e.Search(ctx, "apples bananas", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []doc.ID{a.ID, b.ID}, hitIDs(hits))
}

func TestEngine_Search_BodyIsNotReturned(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.AddDocument(ctx, makeDoc(t, "https://example.com/a", "title", "secretword", "hidden description")))

	hits, err := e.Search(ctx, "secretword", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "title", hits[0].Title)
	assert.Equal(t, "https://example.com/a", hits[0].URL)
}

func TestEngine_Search_LimitBoundsResults(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		d := makeDoc(t, fmt.Sprintf("https://example.com/%d", i), fmt.Sprintf("common page %d", i), "", "")
		require.NoError(t, e.AddDocument(ctx, d))
	}

	for _, limit := range []uint{0, 1, 3, 7, 50} {
		t.Run(fmt.Sprintf("limit_%d", limit), func(t *testing.T) {
			hits, err := e.Search(ctx, "common", limit)
			require.NoError(t, err)
			assert.NotNil(t, hits)
			assert.LessOrEqual(t, len(hits), int(limit))
			if limit <= 7 {
				assert.Len(t, hits, int(limit))
			} else {
				assert.Len(t, hits, 7)
			}
		})
	}
}

func TestEngine_Search_LimitZeroSkipsParsing(t *testing.T) {
	e := newTestEngine(t)

	hits, err := e.Search(context.Background(), "title:(", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestEngine_Search_OrderedByScore(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	docs := []doc.Document{
		makeDoc(t, "https://example.com/1", "rust", "rust rust rust rust", "rust"),
		makeDoc(t, "https://example.com/2", "go", "rust appears once among many other words here", ""),
		makeDoc(t, "https://example.com/3", "rust and go", "rust twice rust", ""),
	}
	for _, d := range docs {
		require.NoError(t, e.AddDocument(ctx, d))
	}

	hits, err := e.Search(ctx, "rust", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestEngine_Search_SyntaxError(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Search(context.Background(), "title:", 10)
	require.Error(t, err)
	assert.True(t, zerrors.IsQuerySyntax(err))

	// A bad regexp parses but fails to compile during the search.
	require.NoError(t, e.AddDocument(context.Background(),
		makeDoc(t, "https://example.com/1", "regexp target", "", "")))
	_, err = e.Search(context.Background(), "title:/[/", 10)
	require.Error(t, err)
	assert.True(t, zerrors.IsQuerySyntax(err))
}

func TestEngine_Search_EmptyIndex(t *testing.T) {
	e := newTestEngine(t)

	hits, err := e.Search(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestEngine_Search_CacheInvalidatedByWrites(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first := makeDoc(t, "https://example.com/1", "cached term", "", "")
	require.NoError(t, e.AddDocument(ctx, first))

	hits, err := e.Search(ctx, "cached", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, e.cache.len())

	second := makeDoc(t, "https://example.com/2", "cached again", "", "")
	require.NoError(t, e.AddDocument(ctx, second))
	assert.Equal(t, 0, e.cache.len())

	hits, err = e.Search(ctx, "cached", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestEngine_AddDocument_TimestampOverflow(t *testing.T) {
	e := newTestEngine(t)

	d := makeDoc(t, "https://example.com/future", "far future", "", "")
	d.Parsed = doc.Timestamp(1 << 63)

	err := e.AddDocument(context.Background(), d)
	require.Error(t, err)
	assert.True(t, zerrors.IsTimestampOverflow(err))

	count, err := e.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEngine_Delete(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	d := makeDoc(t, "https://example.com/gone", "ephemeral", "", "")
	require.NoError(t, e.AddDocument(ctx, d))

	require.NoError(t, e.Delete(ctx, d.ID))

	hits, err := e.Search(ctx, "ephemeral", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	err = e.Delete(ctx, d.ID)
	assert.True(t, zerrors.IsNotFound(err))
}

func TestEngine_Reopen_PersistsDocuments(t *testing.T) {
	// Given: a directory with one committed document
	dir := t.TempDir()
	ctx := context.Background()

	e, err := OpenEngine(dir, DefaultEngineOptions())
	require.NoError(t, err)
	d := makeDoc(t, "https://example.com/durable", "durable write", "", "")
	require.NoError(t, e.AddDocument(ctx, d))
	require.NoError(t, e.Close())

	// When: the engine is reopened
	e, err = OpenEngine(dir, DefaultEngineOptions())
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	// Then: the document is still searchable
	hits, err := e.Search(ctx, "durable", 10)
	require.NoError(t, err)
	assert.Equal(t, []doc.ID{d.ID}, hitIDs(hits))
}

func TestOpenEngine_LockedDirectory(t *testing.T) {
	dir := t.TempDir()

	first, err := OpenEngine(dir, DefaultEngineOptions())
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	_, err = OpenEngine(dir, DefaultEngineOptions())
	require.Error(t, err)
	assert.True(t, zerrors.IsIndexIO(err))
	assert.Equal(t, zerrors.ErrCodeIndexLocked, zerrors.GetCode(err))
}

func TestOpenEngine_SchemaMismatch(t *testing.T) {
	// Given: an index created with a foreign mapping
	dir := t.TempDir()
	foreign, err := bleve.New(filepath.Join(dir, indexSubdir), bleve.NewIndexMapping())
	require.NoError(t, err)
	require.NoError(t, foreign.SetInternal(schemaKey, []byte("other-schema")))
	require.NoError(t, foreign.Close())

	// When: opening it
	_, err = OpenEngine(dir, DefaultEngineOptions())

	// Then: it is rejected as an index IO error
	require.Error(t, err)
	assert.True(t, zerrors.IsIndexIO(err))
	assert.Equal(t, zerrors.ErrCodeSchemaMismatch, zerrors.GetCode(err))
}

func TestOpenEngine_MissingFingerprintWithDocuments(t *testing.T) {
	dir := t.TempDir()
	foreign, err := bleve.New(filepath.Join(dir, indexSubdir), bleve.NewIndexMapping())
	require.NoError(t, err)
	require.NoError(t, foreign.Index("x", map[string]interface{}{"title": "legacy"}))
	require.NoError(t, foreign.Close())

	_, err = OpenEngine(dir, DefaultEngineOptions())
	assert.Equal(t, zerrors.ErrCodeSchemaMismatch, zerrors.GetCode(err))
}

func TestOpenEngine_UnusableDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := OpenEngine(file, DefaultEngineOptions())
	require.Error(t, err)
	assert.True(t, zerrors.IsIndexIO(err))

	_, err = OpenEngine("", DefaultEngineOptions())
	assert.True(t, zerrors.IsIndexIO(err))
}

func TestEngine_Closed(t *testing.T) {
	e, err := OpenEngine(t.TempDir(), DefaultEngineOptions())
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.Search(context.Background(), "x", 10)
	assert.True(t, zerrors.IsIndexIO(err))

	err = e.AddDocument(context.Background(), makeDoc(t, "https://example.com", "t", "", ""))
	assert.True(t, zerrors.IsIndexIO(err))

	_, err = e.DocCount()
	assert.True(t, zerrors.IsIndexIO(err))
}

func TestEngine_CloseReleasesLock(t *testing.T) {
	dir := t.TempDir()

	e, err := OpenEngine(dir, DefaultEngineOptions())
	require.NoError(t, err)
	require.NoError(t, e.Close())

	again, err := OpenEngine(dir, DefaultEngineOptions())
	require.NoError(t, err)
	assert.NoError(t, again.Close())
}

func TestSchemaFingerprint_Stable(t *testing.T) {
	a, err := NewIndexMapping()
	require.NoError(t, err)
	b, err := NewIndexMapping()
	require.NoError(t, err)

	fa, err := SchemaFingerprint(a)
	require.NoError(t, err)
	fb, err := SchemaFingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)

	other, err := SchemaFingerprint(bleve.NewIndexMapping())
	require.NoError(t, err)
	assert.NotEqual(t, fa, other)
}
