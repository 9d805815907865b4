package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "lifebank/pkg/domain-errors"
	"lifebank/pkg/requestcontext"
)

// writeJSON renders a response body. Encoding failures at this point can only
// be logged; the status line is already gone.
func writeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ErrorContext(r.Context(), "response encoding failed",
			slog.String("request_id", requestcontext.RequestID(r.Context())),
			slog.Any("error", err))
	}
}

type errorEnvelope struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// writeError maps a domain error onto its HTTP status and envelope. Internal
// details never leak: anything without a code reads as a plain internal
// error.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", requestcontext.RequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		message = "internal error"
	}

	writeJSON(w, r, logger, status, errorEnvelope{
		Error:            string(code),
		ErrorDescription: message,
	})
}
