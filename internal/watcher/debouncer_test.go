package watcher

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDebouncer(t *testing.T, window time.Duration) *Debouncer {
	t.Helper()
	d := NewDebouncer(window, 4, quietLogger())
	t.Cleanup(d.Stop)
	return d
}

func event(path string, op Operation) FileEvent {
	return FileEvent{Path: path, Operation: op, Timestamp: time.Now()}
}

func receive(t *testing.T, d *Debouncer, wait time.Duration) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(wait):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	d := newTestDebouncer(t, 50*time.Millisecond)

	d.Add(event("/inbox/a.html", OpCreate))

	batch := receive(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "/inbox/a.html", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_RepeatedWrites_Coalesce(t *testing.T) {
	d := newTestDebouncer(t, 100*time.Millisecond)

	for range 5 {
		d.Add(event("/inbox/a.pdf", OpModify))
		time.Sleep(10 * time.Millisecond)
	}

	batch := receive(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
	assert.Zero(t, d.Pending())
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want Operation
	}{
		{"create then modify", []Operation{OpCreate, OpModify}, OpCreate},
		{"modify then delete", []Operation{OpModify, OpDelete}, OpDelete},
		{"delete then create", []Operation{OpDelete, OpCreate}, OpModify},
		{"modify then modify", []Operation{OpModify, OpModify}, OpModify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDebouncer(t, 30*time.Millisecond)
			for _, op := range tt.ops {
				d.Add(event("/inbox/x.html", op))
			}

			batch := receive(t, d, time.Second)
			require.Len(t, batch, 1)
			assert.Equal(t, tt.want, batch[0].Operation)
		})
	}
}

func TestDebouncer_CreateThenDelete_NoEvent(t *testing.T) {
	d := newTestDebouncer(t, 30*time.Millisecond)

	d.Add(event("/inbox/tmp.html", OpCreate))
	d.Add(event("/inbox/tmp.html", OpDelete))
	assert.Zero(t, d.Pending())

	select {
	case batch := <-d.Output():
		t.Fatalf("unexpected batch %v", batch)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncer_BatchSortedByPath(t *testing.T) {
	d := newTestDebouncer(t, 50*time.Millisecond)

	d.Add(event("/inbox/c.html", OpDelete))
	d.Add(event("/inbox/a.html", OpCreate))
	d.Add(event("/inbox/b.pdf", OpModify))

	batch := receive(t, d, time.Second)
	require.Len(t, batch, 3)
	assert.Equal(t, "/inbox/a.html", batch[0].Path)
	assert.Equal(t, "/inbox/b.pdf", batch[1].Path)
	assert.Equal(t, "/inbox/c.html", batch[2].Path)
}

func TestDebouncer_QuietPeriodIsPerPath(t *testing.T) {
	d := newTestDebouncer(t, 80*time.Millisecond)

	d.Add(event("/inbox/early.html", OpCreate))
	time.Sleep(50 * time.Millisecond)
	d.Add(event("/inbox/late.html", OpCreate))

	first := receive(t, d, time.Second)
	require.Len(t, first, 1)
	assert.Equal(t, "/inbox/early.html", first[0].Path)

	second := receive(t, d, time.Second)
	require.Len(t, second, 1)
	assert.Equal(t, "/inbox/late.html", second[0].Path)
}

func TestDebouncer_FullOutputDropsBatch(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, 1, quietLogger())
	t.Cleanup(d.Stop)

	d.Add(event("/inbox/one.html", OpCreate))
	require.Eventually(t, func() bool { return len(d.output) == 1 }, time.Second, 5*time.Millisecond)

	d.Add(event("/inbox/two.html", OpCreate))
	require.Eventually(t, func() bool { return d.Pending() == 0 }, time.Second, 5*time.Millisecond)

	batch := <-d.Output()
	assert.Equal(t, "/inbox/one.html", batch[0].Path)

	d.mu.Lock()
	assert.Equal(t, 1, d.dropped)
	d.mu.Unlock()
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(time.Hour, 1, quietLogger())
	d.Add(event("/inbox/a.html", OpCreate))

	d.Stop()
	d.Stop()
	d.Add(event("/inbox/b.html", OpCreate))

	_, ok := <-d.Output()
	assert.False(t, ok, "output should be closed")
	assert.Zero(t, d.Pending())
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "UNKNOWN", Operation(42).String())
}
