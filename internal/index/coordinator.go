// Package index runs the coordinator that owns the search engine.
//
// A single goroutine holds the engine and applies messages one at a time in
// arrival order. Callers talk to it only through a Handle, so the engine
// itself needs no locking.
package index

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/zeno-search/zeno/internal/doc"
	zerrors "github.com/zeno-search/zeno/internal/errors"
	"github.com/zeno-search/zeno/internal/store"
)

// DefaultCapacity bounds the number of queued messages. Senders block
// when it is reached.
const DefaultCapacity = 32

// Engine is the part of store.Engine the coordinator drives.
type Engine interface {
	AddDocument(ctx context.Context, d doc.Document) error
	Search(ctx context.Context, query string, limit uint) ([]store.Hit, error)
	Delete(ctx context.Context, id doc.ID) error
	DocCount() (uint64, error)
}

var _ Engine = (*store.Engine)(nil)

// Options configures Start.
type Options struct {
	// Capacity is the message channel size. Defaults to DefaultCapacity.
	Capacity int
	Logger   *slog.Logger
}

// Coordinator is the single owner of an Engine.
type Coordinator struct {
	engine Engine
	msgs   <-chan Message
	logger *slog.Logger
	done   chan struct{}
}

// Handle sends messages to a running coordinator. It is safe for
// concurrent use.
type Handle struct {
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	msgs   chan<- Message
	done   <-chan struct{}
}

// Start spawns the coordinator for engine and returns its handle. The
// engine must not be used by anything else afterwards.
func Start(engine Engine, opts Options) *Handle {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	msgs := make(chan Message, capacity)
	c := &Coordinator{
		engine: engine,
		msgs:   msgs,
		logger: logger,
		done:   make(chan struct{}),
	}
	go c.run()

	return &Handle{msgs: msgs, done: c.done}
}

// run processes messages until the channel is closed. It runs on its own
// OS thread so slow commits never stall request goroutines.
func (c *Coordinator) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(c.done)

	c.logger.Info("coordinator started")
	for m := range c.msgs {
		m.handle(c.engine, c.logger)
	}
	c.logger.Info("coordinator finished running")
}

// Index adds d to the index. It returns after the write is committed.
func (h *Handle) Index(ctx context.Context, d doc.Document) error {
	m := &IndexMessage{Document: d, reply: newReply[struct{}](ctx)}
	_, err := call(ctx, h, m, m.reply)
	return err
}

// Search returns up to limit hits for query, best first.
func (h *Handle) Search(ctx context.Context, query string, limit uint) ([]store.Hit, error) {
	m := &SearchMessage{Query: query, Limit: limit, reply: newReply[[]store.Hit](ctx)}
	return call(ctx, h, m, m.reply)
}

// Delete removes the document with the given id.
func (h *Handle) Delete(ctx context.Context, id doc.ID) error {
	m := &DeleteMessage{ID: id, reply: newReply[struct{}](ctx)}
	_, err := call(ctx, h, m, m.reply)
	return err
}

// Stats reports index statistics.
func (h *Handle) Stats(ctx context.Context) (Stats, error) {
	m := &StatsMessage{reply: newReply[Stats](ctx)}
	return call(ctx, h, m, m.reply)
}

// Close stops accepting messages. Queued messages are still processed,
// then the coordinator exits and Done is closed. Close is idempotent.
func (h *Handle) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.closed = true
		close(h.msgs)
	})
}

// Done is closed once the coordinator has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the coordinator has exited or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) send(ctx context.Context, m Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return zerrors.ChannelClosed()
	}
	select {
	case h.msgs <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call sends m and waits for its reply. A caller whose context ends while
// waiting abandons the request; the coordinator still completes it.
func call[T any](ctx context.Context, h *Handle, m Message, r reply[T]) (T, error) {
	var zero T
	if err := h.send(ctx, m); err != nil {
		return zero, err
	}

	select {
	case res := <-r.ch:
		return res.val, res.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-h.done:
		return zero, zerrors.ChannelClosed()
	}
}
