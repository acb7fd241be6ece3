package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"signagehub/internal/httputil"
	"signagehub/internal/logging"
	"signagehub/internal/model"
)

type ChallengeHandler struct {
	challenger Challenger
	logger     logging.Logger
}

func NewChallengeHandler(challenger Challenger, logger logging.Logger) *ChallengeHandler {
	return &ChallengeHandler{challenger: challenger, logger: logger}
}

// Create issues an activation challenge
// POST /auth/challenges
func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateChallengeRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	resp, err := h.challenger.CreateChallenge(r.Context(), &req)
	if err != nil {
		httputil.WriteServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// Verify answers a challenge and activates the display
// POST /auth/challenges/{challengeToken}/verify
func (h *ChallengeHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req model.VerifyChallengeRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if err := h.challenger.VerifyChallenge(r.Context(), chi.URLParam(r, "challengeToken"), &req); err != nil {
		httputil.WriteServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
