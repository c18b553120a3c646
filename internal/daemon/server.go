package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/zeno-search/zeno/internal/doc"
	"github.com/zeno-search/zeno/internal/ingest"
	"github.com/zeno-search/zeno/internal/store"
	"github.com/zeno-search/zeno/pkg/version"
)

// Handler is what the daemon needs from ingest.Service.
type Handler interface {
	IndexURL(ctx context.Context, req ingest.IndexURLRequest) (doc.Document, error)
	Search(ctx context.Context, query string, limit uint) ([]store.Hit, error)
	Stats(ctx context.Context) (ingest.Stats, error)
}

var _ Handler = (*ingest.Service)(nil)

// ErrAlreadyRunning is returned when another process answers on the socket.
var ErrAlreadyRunning = errors.New("daemon already running")

// Server listens on a unix socket and handles RPC requests.
type Server struct {
	socketPath string
	timeout    time.Duration
	handler    Handler
	logger     *slog.Logger
	started    time.Time
	ready      chan struct{}

	mu       sync.Mutex
	listener net.Listener
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for cfg. A nil logger uses slog.Default().
func NewServer(cfg Config, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Server{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
		handler:    handler,
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Ready is closed once the socket accepts connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// ListenAndServe serves until ctx is done. A stale socket file is removed;
// a live one is ErrAlreadyRunning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if conn, err := net.DialTimeout("unix", s.socketPath, time.Second); err == nil {
		_ = conn.Close()
		return fmt.Errorf("%w on %s", ErrAlreadyRunning, s.socketPath)
	}
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("daemon listening", slog.String("socket", s.socketPath))

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closing() {
				break
			}
			s.logger.Error("daemon accept failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	s.logger.Info("daemon stopped")
	return nil
}

func (s *Server) closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// handleConnection answers one request per connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		s.logger.Warn("daemon deadline failed", slog.String("error", err.Error()))
	}

	encoder := json.NewEncoder(conn)

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := encoder.Encode(s.handleRequest(callCtx, req)); err != nil {
		s.logger.Debug("daemon reply failed", slog.String("method", req.Method), slog.String("error", err.Error()))
	}
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != jsonrpcVersion {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "jsonrpc must be \"2.0\"")
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})
	case MethodStatus:
		return s.handleStatus(ctx, req)
	case MethodSearch:
		return s.handleSearch(ctx, req)
	case MethodIndex:
		return s.handleIndex(ctx, req)
	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func decodeParams(req Request, v any) *Response {
	if len(req.Params) == 0 {
		resp := NewErrorResponse(req.ID, ErrCodeInvalidParams, "params required")
		return &resp
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		resp := NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
		return &resp
	}
	return nil
}

func (s *Server) handleSearch(ctx context.Context, req Request) Response {
	var params SearchParams
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	if err := params.Validate(); err != nil {
		return errorResponse(req.ID, err)
	}

	hits, err := s.handler.Search(ctx, params.Query, params.Limit)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	if hits == nil {
		hits = []store.Hit{}
	}
	return NewSuccessResponse(req.ID, SearchResult{Hits: hits})
}

func (s *Server) handleIndex(ctx context.Context, req Request) Response {
	var params IndexParams
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}

	d, err := s.handler.IndexURL(ctx, params)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return NewSuccessResponse(req.ID, IndexResult{ID: d.ID, URL: d.URL, Title: d.Title.String()})
}

func (s *Server) handleStatus(ctx context.Context, req Request) Response {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	status := StatusResult{
		Running: true,
		PID:     os.Getpid(),
		Uptime:  time.Since(started).Round(time.Second).String(),
		Version: version.Short(),
	}

	stats, err := s.handler.Stats(ctx)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	status.Documents = stats.Documents
	status.Registered = stats.Registered
	return NewSuccessResponse(req.ID, status)
}

// Close stops accepting connections. In-flight requests finish.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
