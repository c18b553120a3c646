package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func htmlOnly(path string) bool {
	return strings.HasSuffix(path, ".html")
}

type collector struct {
	mu     sync.Mutex
	events []FileEvent
}

func (c *collector) handle(_ context.Context, batch []FileEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, batch...)
}

func (c *collector) snapshot() []FileEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]FileEvent(nil), c.events...)
}

func startInbox(t *testing.T, dir string) (*Inbox, *collector) {
	t.Helper()

	in, err := NewInbox(dir, Options{Debounce: 50 * time.Millisecond, Filter: htmlOnly, Logger: quietLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	c := &collector{}
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx, c.handle) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("inbox did not stop")
		}
	})
	return in, c
}

func TestNewInbox_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "inbox")

	in, err := NewInbox(dir, Options{Logger: quietLogger()})
	require.NoError(t, err)
	defer in.Stop()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, filepath.IsAbs(in.Dir()))
}

func TestInbox_DeliversFilteredCreate(t *testing.T) {
	dir := t.TempDir()
	_, c := startInbox(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte("<p>hi</p>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	require.Eventually(t, func() bool { return len(c.snapshot()) > 0 }, 2*time.Second, 10*time.Millisecond)

	// Give the ignored file time to show up if filtering were broken.
	time.Sleep(150 * time.Millisecond)
	events := c.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, filepath.Join(dir, "page.html"), events[0].Path)
	assert.Equal(t, OpCreate, events[0].Operation)
}

func TestInbox_IgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	_, c := startInbox(t, dir)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.html"), 0o755))

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, c.snapshot())
}

func TestInbox_StopIsIdempotent(t *testing.T) {
	in, err := NewInbox(t.TempDir(), Options{Logger: quietLogger()})
	require.NoError(t, err)

	in.Stop()
	in.Stop()

	err = in.Run(context.Background(), func(context.Context, []FileEvent) {})
	assert.NoError(t, err)
}
