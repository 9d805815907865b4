package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lifebank/internal/inventory"
	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
)

// InventoryHandler exposes unit intake, removal and the stock summary.
type InventoryHandler struct {
	service *inventory.Service
	logger  *slog.Logger
}

func NewInventoryHandler(service *inventory.Service, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{service: service, logger: logger}
}

type addUnitRequest struct {
	BloodType string     `json:"blood_type"`
	Component string     `json:"component"`
	VolumeML  int        `json:"volume_ml"`
	AddedAt   *time.Time `json:"added_at,omitempty"`
}

func (h *InventoryHandler) Add(w http.ResponseWriter, r *http.Request) {
	var body addUnitRequest
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
	addedAt := time.Time{}
	if body.AddedAt != nil {
		addedAt = *body.AddedAt
	}

	unit, err := h.service.Add(r.Context(), bloodType, component, body.VolumeML, addedAt)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusCreated, unit)
}

func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	unitID, err := id.ParseUnitID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	unit, err := h.service.Get(r.Context(), unitID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, unit)
}

func (h *InventoryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	unitID, err := id.ParseUnitID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.service.Remove(r.Context(), unitID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InventoryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Summary(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, map[string]any{"summary": rows})
}
