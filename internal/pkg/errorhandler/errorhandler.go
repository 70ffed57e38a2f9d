package errorhandler

import (
	"context"
	"net/http"

	"github.com/petcare/petcare-api/internal/pkg/logger"
	"github.com/petcare/petcare-api/internal/pkg/response"
)

// Internal logs err with the request-scoped logger and answers 500 without
// leaking the error to the client.
func Internal(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	logger.FromContext(ctx).Error().
		Err(err).
		Int("status_code", http.StatusInternalServerError).
		Msg(msg)

	response.InternalError(w)
}

// HandleError logs and sends a formatted error response.
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	event := logger.FromContext(ctx).Warn()
	if status >= http.StatusInternalServerError {
		event = logger.FromContext(ctx).Error()
	}
	event.
		Err(err).
		Str("error_code", code).
		Int("status_code", status).
		Msg(message)

	response.Error(w, status, code, message)
}

// HandlePanic logs a recovered panic with its stack trace.
func HandlePanic(ctx context.Context, w http.ResponseWriter, recovered interface{}, stack []byte) {
	logger.FromContext(ctx).Error().
		Interface("panic", recovered).
		Str("stack", string(stack)).
		Msg("Panic recovered")

	response.InternalError(w)
}
