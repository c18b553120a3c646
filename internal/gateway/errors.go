package gateway

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	zerrors "github.com/zeno-search/zeno/internal/errors"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Code       string            `json:"code"`
	Message    string            `json:"error"`
	Suggestion string            `json:"suggestion,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
}

// fieldErrors is returned by request validation.
type fieldErrors map[string]string

func (fieldErrors) Error() string { return "validation failed" }

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case stderrors.As(err, new(fieldErrors)):
		return fiber.StatusBadRequest
	case zerrors.IsValidation(err), zerrors.IsQuerySyntax(err):
		return fiber.StatusBadRequest
	case zerrors.IsTimestampOverflow(err):
		return fiber.StatusUnprocessableEntity
	case zerrors.IsNotFound(err):
		return fiber.StatusNotFound
	case zerrors.GetCategory(err) == zerrors.CategoryNetwork,
		zerrors.GetCode(err) == zerrors.ErrCodeExtractFailed:
		return fiber.StatusBadGateway
	case zerrors.IsChannelClosed(err):
		return fiber.StatusServiceUnavailable
	case stderrors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case stderrors.As(err, &fe):
		return fe.Code
	default:
		return fiber.StatusInternalServerError
	}
}

func bodyFor(err error, status int) ErrorBody {
	var fields fieldErrors
	if stderrors.As(err, &fields) {
		return ErrorBody{Code: zerrors.ErrCodeInvalidInput, Message: fields.Error(), Fields: fields}
	}
	if zerr, ok := zerrors.As(err); ok {
		return ErrorBody{Code: zerr.Code, Message: zerr.Message, Suggestion: zerr.Suggestion}
	}
	if status == fiber.StatusGatewayTimeout {
		return ErrorBody{Code: "TIMEOUT", Message: "request timed out"}
	}
	var fe *fiber.Error
	if stderrors.As(err, &fe) {
		return ErrorBody{Code: "HTTP_" + strconv.Itoa(fe.Code), Message: fe.Message}
	}
	return ErrorBody{Code: zerrors.ErrCodeInternal, Message: "internal error"}
}

// errorHandler is the fiber ErrorHandler. Server errors are logged with
// their cause; client errors only at debug level.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	body := bodyFor(err, status)
	body.RequestID = requestID(c)

	attrs := []any{
		slog.String("request_id", body.RequestID),
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request_failed", attrs...)
	} else {
		s.logger.Debug("request_rejected", attrs...)
	}
	return c.Status(status).JSON(body)
}

// validate checks v against its struct tags.
func (s *Server) validate(v any) error {
	err := s.validator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return zerrors.ValidationError("invalid request", err)
	}
	fields := make(fieldErrors, len(verrs))
	for _, e := range verrs {
		fields[e.Field()] = "failed on '" + e.Tag() + "' tag"
	}
	return fields
}
