package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zeno-search/zeno/internal/doc"
	zerrors "github.com/zeno-search/zeno/internal/errors"
	"github.com/zeno-search/zeno/internal/store"
)

// Message is a request to the coordinator. The set of messages is closed:
// every kind implements handle, so a new kind cannot be sent without being
// handled.
type Message interface {
	handle(e Engine, logger *slog.Logger)
	kind() string
}

// Stats describes the index owned by a coordinator.
type Stats struct {
	Documents uint64 `json:"documents"`
}

// IndexMessage adds a document and replies once it is committed.
type IndexMessage struct {
	Document doc.Document
	reply    reply[struct{}]
}

// SearchMessage runs a query and replies with the ranked hits.
type SearchMessage struct {
	Query string
	Limit uint
	reply reply[[]store.Hit]
}

// DeleteMessage removes a document by id.
type DeleteMessage struct {
	ID    doc.ID
	reply reply[struct{}]
}

// StatsMessage reports index statistics.
type StatsMessage struct {
	reply reply[Stats]
}

func (m *IndexMessage) kind() string  { return "index" }
func (m *SearchMessage) kind() string { return "search" }
func (m *DeleteMessage) kind() string { return "delete" }
func (m *StatsMessage) kind() string  { return "stats" }

func (m *IndexMessage) handle(e Engine, logger *slog.Logger) {
	_, err := guard(func() (struct{}, error) {
		return struct{}{}, e.AddDocument(m.reply.engineContext(), m.Document)
	})
	m.reply.deliver(logger, m.kind(), struct{}{}, err)
}

func (m *SearchMessage) handle(e Engine, logger *slog.Logger) {
	hits, err := guard(func() ([]store.Hit, error) {
		return e.Search(m.reply.engineContext(), m.Query, m.Limit)
	})
	m.reply.deliver(logger, m.kind(), hits, err)
}

func (m *DeleteMessage) handle(e Engine, logger *slog.Logger) {
	_, err := guard(func() (struct{}, error) {
		return struct{}{}, e.Delete(m.reply.engineContext(), m.ID)
	})
	m.reply.deliver(logger, m.kind(), struct{}{}, err)
}

func (m *StatsMessage) handle(e Engine, logger *slog.Logger) {
	stats, err := guard(func() (Stats, error) {
		n, err := e.DocCount()
		return Stats{Documents: n}, err
	})
	m.reply.deliver(logger, m.kind(), stats, err)
}

type result[T any] struct {
	val T
	err error
}

// reply is a one-shot, unbuffered reply channel bound to the caller's
// context. The caller stops listening when its context is done.
type reply[T any] struct {
	ctx context.Context
	ch  chan result[T]
}

func newReply[T any](ctx context.Context) reply[T] {
	return reply[T]{ctx: ctx, ch: make(chan result[T])}
}

// engineContext keeps the caller's values but not its cancellation: once
// started, an engine operation runs to completion.
func (r reply[T]) engineContext() context.Context {
	return context.WithoutCancel(r.ctx)
}

func (r reply[T]) deliver(logger *slog.Logger, kind string, val T, err error) {
	select {
	case r.ch <- result[T]{val: val, err: err}:
	case <-r.ctx.Done():
		logger.Warn("receiver dropped",
			slog.String("message", kind),
			slog.String("reason", r.ctx.Err().Error()))
	}
}

// guard turns a panic inside the engine into an error so the caller still
// gets a reply and the loop keeps running.
func guard[T any](fn func() (T, error)) (val T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = zerrors.InternalError(fmt.Sprintf("engine panic: %v", p), nil)
		}
	}()
	return fn()
}
