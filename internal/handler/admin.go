package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"signagehub/internal/httputil"
	"signagehub/internal/logging"
	"signagehub/internal/model"
	"signagehub/internal/realtime"
	"signagehub/internal/transport/http/middleware"
)

// AdminHandler groups the staff endpoints. Every route runs behind middleware.StaffAuth.
type AdminHandler struct {
	registrar Registrar
	displays  DisplayOps
	settings  SettingsUpdater
	logger    logging.Logger
}

func NewAdminHandler(registrar Registrar, displays DisplayOps, settings SettingsUpdater, logger logging.Logger) *AdminHandler {
	return &AdminHandler{registrar: registrar, displays: displays, settings: settings, logger: logger}
}

type refreshResponse struct {
	RefreshNonce int64 `json:"refreshNonce"`
}

type publishEventRequest struct {
	Type realtime.EventType `json:"type"`
}

// IssuePairingCode returns a new code; it is shown exactly once
// POST /admin/pairing-codes
func (h *AdminHandler) IssuePairingCode(w http.ResponseWriter, r *http.Request) {
	staffID, _ := middleware.GetStaffIDFromContext(r.Context())

	code, err := h.registrar.IssuePairingCode(r.Context(), staffID)
	if err != nil {
		httputil.WriteServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, code)
}

// RequestRefresh forces a display to reload its manifest
// POST /admin/displays/{displayId}/refresh
func (h *AdminHandler) RequestRefresh(w http.ResponseWriter, r *http.Request) {
	nonce, err := h.displays.RequestRefresh(r.Context(), chi.URLParam(r, "displayId"))
	if err != nil {
		httputil.WriteServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, refreshResponse{RefreshNonce: nonce})
}

// PublishEvent relays a change notification to one display
// POST /admin/displays/{displayId}/events
func (h *AdminHandler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var req publishEventRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if err := h.displays.Notify(r.Context(), chi.URLParam(r, "displayId"), req.Type); err != nil {
		httputil.WriteServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// RevokeKey
// POST /admin/displays/{displayId}/keys/{keyId}/revoke
func (h *AdminHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	err := h.displays.RevokeKey(r.Context(), chi.URLParam(r, "displayId"), chi.URLParam(r, "keyId"))
	if err != nil {
		httputil.WriteServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetScrollSpeed
// PUT /admin/settings/scroll-speed
func (h *AdminHandler) SetScrollSpeed(w http.ResponseWriter, r *http.Request) {
	var req model.ScrollSpeedRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	settings, err := h.settings.SetScrollSpeed(r.Context(), req.Value)
	if err != nil {
		httputil.WriteServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settings)
}
