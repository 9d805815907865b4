package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifebank/internal/allocation"
	"lifebank/internal/request"
	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
)

// RequestHandler exposes the need request lifecycle and allocation trigger.
type RequestHandler struct {
	service   *request.Service
	allocator *allocation.Allocator
	logger    *slog.Logger
}

func NewRequestHandler(service *request.Service, allocator *allocation.Allocator, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{service: service, allocator: allocator, logger: logger}
}

type createRequestBody struct {
	BloodType   string `json:"blood_type"`
	Component   string `json:"component"`
	UnitsNeeded int    `json:"units_needed"`
	Reason      string `json:"reason"`
}

func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, h.logger, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	bloodType, err := id.ParseBloodType(body.BloodType)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	component, err := id.ParseComponent(body.Component)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	req, err := h.service.Create(r.Context(), bloodType, component, body.UnitsNeeded, body.Reason)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusCreated, req)
}

func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	var status request.RequestStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := request.ParseRequestStatus(raw)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		status = parsed
	}
	reqs, err := h.service.List(r.Context(), status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if reqs == nil {
		reqs = []*request.NeedRequest{}
	}
	writeJSON(w, r, h.logger, http.StatusOK, map[string]any{"requests": reqs})
}

func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req, err := h.service.Get(r.Context(), requestID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, req)
}

// Allocate triggers unit selection and reservation for an open request.
func (h *RequestHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	reserved, err := h.allocator.Allocate(r.Context(), requestID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, map[string]any{"reserved_units": reserved})
}

type setStatusBody struct {
	Status string `json:"status"`
}

func (h *RequestHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var body setStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, h.logger, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	status, err := request.ParseRequestStatus(body.Status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	req, err := h.service.SetStatus(r.Context(), requestID, status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, req)
}

func (h *RequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), requestID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
