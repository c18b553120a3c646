// Package mcp exposes zeno's index to AI clients over the Model Context
// Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	zerrors "github.com/zeno-search/zeno/internal/errors"
)

// Custom MCP error codes for zeno.
const (
	// ErrCodeIndexUnavailable indicates the index could not be read or the
	// coordinator is gone.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeFetchFailed indicates a page could not be fetched or extracted.
	ErrCodeFetchFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeNotFound indicates a document does not exist.
	ErrCodeNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	if ze, ok := zerrors.As(err); ok {
		return mapZenoError(ze)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

func mapZenoError(ze *zerrors.ZenoError) *MCPError {
	message := ze.Message
	if ze.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ze.Message, ze.Suggestion)
	}

	switch ze.Category {
	case zerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case zerrors.CategoryNetwork:
		if ze.Code == zerrors.ErrCodeFetchTimeout {
			return &MCPError{Code: ErrCodeTimeout, Message: message}
		}
		return &MCPError{Code: ErrCodeFetchFailed, Message: message}
	case zerrors.CategoryIO:
		switch ze.Code {
		case zerrors.ErrCodeNotFound:
			return &MCPError{Code: ErrCodeNotFound, Message: message}
		case zerrors.ErrCodeExtractFailed:
			return &MCPError{Code: ErrCodeFetchFailed, Message: message}
		default:
			return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
		}
	}

	if ze.Code == zerrors.ErrCodeChannelClosed {
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	}
	return &MCPError{Code: ErrCodeInternalError, Message: message}
}
