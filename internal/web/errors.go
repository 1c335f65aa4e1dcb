package web

// Every API error is logged with its technical text and request id, then
// returned as {error, message, action, code} with the message and action
// taken from ingest.MapError.

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/catalog/internal/ingest"
	"github.com/JonMunkholm/catalog/internal/ledger"
	"github.com/JonMunkholm/catalog/internal/logging"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var errBadRequest = errors.New("bad request")

// respondError logs err and writes its user-facing form. A zero status is
// derived from the error.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := ingest.MapError(err)

	// Server errors outside the table are unexpected and need a look.
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError && !ingest.IsUserFacing(err) {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	body := ErrorResponse{Error: msg.Message, Message: msg.Message, Action: msg.Action, Code: msg.Code}
	if errors.Is(err, errBadRequest) {
		// Request-shape errors describe themselves better than the table.
		body = ErrorResponse{Error: err.Error(), Message: err.Error(), Code: "REQ001"}
	}
	writeJSON(w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, ledger.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrUnknownKind), errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrTooManyBatches):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
