package watcher

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Debouncer holds file events until their path has been quiet for the
// window, merging events that arrive for the same path:
//   - CREATE + MODIFY = CREATE
//   - CREATE + DELETE = nothing
//   - MODIFY + DELETE = DELETE
//   - DELETE + CREATE = MODIFY
//
// Paths that become quiet together are delivered as one batch, sorted by
// path.
type Debouncer struct {
	window  time.Duration
	logger  *slog.Logger
	mu      sync.Mutex
	pending map[string]*pendingEvent
	output  chan []FileEvent
	timer   *time.Timer
	dropped int
	stopped bool
}

type pendingEvent struct {
	event    FileEvent
	firstOp  Operation
	lastSeen time.Time
}

// NewDebouncer creates a debouncer that buffers up to size batches.
func NewDebouncer(window time.Duration, size int, logger *slog.Logger) *Debouncer {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{
		window:  window,
		logger:  logger,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []FileEvent, size),
	}
}

// Add records an event and restarts its path's quiet period.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	now := time.Now()
	existing, ok := d.pending[event.Path]
	if !ok {
		d.pending[event.Path] = &pendingEvent{event: event, firstOp: event.Operation, lastSeen: now}
		d.schedule(now)
		return
	}

	merged, keep := coalesce(existing.firstOp, existing.event, event)
	if !keep {
		delete(d.pending, event.Path)
	} else {
		existing.event = merged
		existing.lastSeen = now
	}
	d.schedule(now)
}

func coalesce(first Operation, prev, next FileEvent) (FileEvent, bool) {
	switch first {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			prev.Timestamp = next.Timestamp
			return prev, true
		case OpDelete:
			return FileEvent{}, false
		}
	case OpDelete:
		if next.Operation == OpCreate {
			next.Operation = OpModify
		}
	}
	return next, true
}

// schedule arms the timer for the earliest pending deadline. Callers hold mu.
func (d *Debouncer) schedule(now time.Time) {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if len(d.pending) == 0 {
		return
	}

	var next time.Time
	for _, pe := range d.pending {
		deadline := pe.lastSeen.Add(d.window)
		if next.IsZero() || deadline.Before(next) {
			next = deadline
		}
	}
	d.timer = time.AfterFunc(max(next.Sub(now), 0), d.flush)
}

// flush emits the events whose path has been quiet for the window.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	now := time.Now()
	var batch []FileEvent
	for path, pe := range d.pending {
		if now.Sub(pe.lastSeen) >= d.window {
			batch = append(batch, pe.event)
			delete(d.pending, path)
		}
	}
	d.schedule(now)

	if len(batch) == 0 {
		return
	}
	slices.SortFunc(batch, func(a, b FileEvent) int { return strings.Compare(a.Path, b.Path) })

	select {
	case d.output <- batch:
	default:
		d.dropped++
		d.logger.Warn("inbox batch dropped, consumer too slow",
			slog.Int("batch_size", len(batch)),
			slog.Int("dropped_total", d.dropped))
	}
}

// Output returns the channel of debounced batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Pending reports how many paths are waiting for their quiet period.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop discards pending events and closes the output channel. Safe to call
// multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
	close(d.output)
}
