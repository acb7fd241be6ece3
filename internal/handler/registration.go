package handler

import (
	"net/http"

	"signagehub/internal/httputil"
	"signagehub/internal/logging"
	"signagehub/internal/model"
)

// RegistrationHandler serves the unauthenticated pairing endpoints.
type RegistrationHandler struct {
	registrar Registrar
	logger    logging.Logger
}

func NewRegistrationHandler(registrar Registrar, logger logging.Logger) *RegistrationHandler {
	return &RegistrationHandler{registrar: registrar, logger: logger}
}

// OpenSession redeems a pairing code
// POST /registration-sessions
func (h *RegistrationHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req model.OpenSessionRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	resp, err := h.registrar.OpenSession(r.Context(), req.RegistrationCode)
	if err != nil {
		httputil.WriteServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// Register enrolls a display and its public key
// POST /registrations
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	resp, err := h.registrar.Register(r.Context(), &req)
	if err != nil {
		httputil.WriteServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}
