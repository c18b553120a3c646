package daemon

import (
	"encoding/json"
	"strconv"

	"github.com/zeno-search/zeno/internal/doc"
	zerrors "github.com/zeno-search/zeno/internal/errors"
	"github.com/zeno-search/zeno/internal/ingest"
	"github.com/zeno-search/zeno/internal/store"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing   = "ping"
	MethodStatus = "status"
	MethodSearch = "search"
	MethodIndex  = "index"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrCodeZeno marks an error raised by zeno itself. Its Data is an ErrorData
// carrying the zeno error code.
const ErrCodeZeno = -32001

const jsonrpcVersion = "2.0"

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData carries a zeno error across the socket.
type ErrorData struct {
	Code       string `json:"code"`
	Suggestion string `json:"suggestion,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, ErrCodeInternalError, "failed to encode result")
	}
	return Response{JSONRPC: jsonrpcVersion, Result: raw, ID: id}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: jsonrpcVersion,
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}

// errorResponse maps err to a response, keeping zeno codes intact.
func errorResponse(id string, err error) Response {
	ze, ok := zerrors.As(err)
	if !ok {
		return NewErrorResponse(id, ErrCodeInternalError, err.Error())
	}
	resp := NewErrorResponse(id, ErrCodeZeno, ze.Message)
	resp.Error.Data = &ErrorData{Code: ze.Code, Suggestion: ze.Suggestion, Retryable: ze.Retryable}
	return resp
}

// Err converts a response error back into a Go error. Zeno errors keep
// their code, so callers can use the zerrors predicates.
func (e *Error) Err() error {
	if e == nil {
		return nil
	}
	if e.Code == ErrCodeZeno && e.Data != nil {
		ze := zerrors.New(e.Data.Code, e.Message, nil)
		ze.Retryable = e.Data.Retryable
		if e.Data.Suggestion != "" {
			ze = ze.WithSuggestion(e.Data.Suggestion)
		}
		return ze
	}
	return zerrors.New(zerrors.ErrCodeInternal, e.Message, nil).WithDetail("rpc_code", strconv.Itoa(e.Code))
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	Query string `json:"query"`
	// Limit of 0 returns nothing.
	Limit uint `json:"limit"`
}

// Validate checks that required fields are present.
func (p SearchParams) Validate() error {
	if p.Query == "" {
		return zerrors.EmptyField("query")
	}
	return nil
}

// SearchResult is the result of the search method.
type SearchResult struct {
	Hits []store.Hit `json:"hits"`
}

// IndexParams are the parameters for the index method.
type IndexParams = ingest.IndexURLRequest

// IndexResult is the result of the index method.
type IndexResult struct {
	ID    doc.ID `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running    bool   `json:"running"`
	PID        int    `json:"pid"`
	Uptime     string `json:"uptime"`
	Version    string `json:"version"`
	Documents  uint64 `json:"documents"`
	Registered int    `json:"registered"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
