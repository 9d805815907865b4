package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifebank/internal/match"
	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
)

// MatchHandler exposes match creation (staff) and the unauthenticated donor
// confirmation endpoint.
type MatchHandler struct {
	service *match.Service
	logger  *slog.Logger
}

func NewMatchHandler(service *match.Service, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{service: service, logger: logger}
}

type createMatchBody struct {
	DonorID   string `json:"donor_id"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createMatchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, h.logger, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	donorID, err := id.ParseDonorID(body.DonorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var requestID *id.RequestID
	if body.RequestID != "" {
		parsed, err := id.ParseRequestID(body.RequestID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		requestID = &parsed
	}

	m, err := h.service.Create(r.Context(), donorID, requestID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusCreated, m)
}

// Confirm resolves a donor's confirmation link. The response is always 200
// with an outcome body: races and repeats are informational, not errors, and
// the donor-facing page renders the message either way.
func (h *MatchHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeJSON(w, r, h.logger, http.StatusOK, match.Outcome{
			Status:  match.ConfirmError,
			Message: "this confirmation link is not recognised",
		})
		return
	}
	outcome := h.service.Confirm(r.Context(), token)
	writeJSON(w, r, h.logger, http.StatusOK, outcome)
}
