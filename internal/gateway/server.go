// Package gateway is zeno's HTTP API.
//
// Handlers decode and validate requests, hand them to the ingest service
// with a bounded wait, and map results and errors to HTTP responses. The
// gateway never retries.
package gateway

import (
	"context"
	"log/slog"
	"net"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/zeno-search/zeno/internal/config"
	"github.com/zeno-search/zeno/internal/doc"
	"github.com/zeno-search/zeno/internal/ingest"
	"github.com/zeno-search/zeno/internal/store"
)

// Service is what the gateway needs from ingest.Service.
type Service interface {
	IndexURL(ctx context.Context, req ingest.IndexURLRequest) (doc.Document, error)
	Search(ctx context.Context, query string, limit uint) ([]store.Hit, error)
	List(ctx context.Context, limit int) ([]store.Record, error)
	Delete(ctx context.Context, id doc.ID) error
	Stats(ctx context.Context) (ingest.Stats, error)
}

var _ Service = (*ingest.Service)(nil)

// Options configures the gateway.
type Options struct {
	RequestTimeout time.Duration
	DefaultLimit   uint
	MaxLimit       uint
	Logger         *slog.Logger
}

// OptionsFromConfig builds Options from the server configuration.
func OptionsFromConfig(c config.ServerConfig) Options {
	return Options{
		RequestTimeout: c.RequestTimeout,
		DefaultLimit:   c.DefaultLimit,
		MaxLimit:       c.MaxLimit,
	}
}

// Server serves the HTTP API.
type Server struct {
	app       *fiber.App
	svc       Service
	opts      Options
	validator *validator.Validate
	logger    *slog.Logger
}

const (
	headerRequestID = "X-Request-ID"
	localRequestID  = "request_id"
	shutdownTimeout = 5 * time.Second
)

// New creates a Server with all routes registered.
func New(svc Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.DefaultLimit == 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	s := &Server{
		svc:       svc,
		opts:      opts,
		validator: v,
		logger:    opts.Logger,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "zeno",
		ErrorHandler:          s.errorHandler,
		DisableStartupMessage: true,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(s.requestIDMiddleware, s.logMiddleware)

	s.app.Get("/", s.handleRoot)
	s.app.Post("/scrape", s.handleScrape)
	s.app.Post("/search", s.handleSearch)
	s.app.Get("/documents", s.handleListDocuments)
	s.app.Delete("/documents/:id", s.handleDeleteDocument)
	s.app.Get("/stats", s.handleStats)
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- s.app.Listener(ln) }()

	s.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return <-errc
}

func (s *Server) requestIDMiddleware(c *fiber.Ctx) error {
	id := c.Get(headerRequestID)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	c.Locals(localRequestID, id)
	c.Set(headerRequestID, id)
	return c.Next()
}

func (s *Server) logMiddleware(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		slog.String("request_id", requestID(c)),
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Duration("elapsed", time.Since(start)))
	return err
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(localRequestID).(string)
	return id
}

// callContext bounds how long a handler waits for the service.
func (s *Server) callContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), s.opts.RequestTimeout)
}
