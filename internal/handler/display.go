package handler

import (
	"net/http"
	"strconv"
	"time"

	"signagehub/internal/httputil"
	"signagehub/internal/logging"
	"signagehub/internal/realtime"
	"signagehub/internal/transport/http/middleware"
)

// streamBuffer is how many events a slow stream may fall behind before events are dropped.
const streamBuffer = 16

// DisplayHandler serves the signed display endpoints. Every route runs behind
// middleware.DisplaySignature.
type DisplayHandler struct {
	manifests ManifestBuilder
	displays  DisplayOps
	hub       Subscriber
	logger    logging.Logger
}

func NewDisplayHandler(manifests ManifestBuilder, displays DisplayOps, hub Subscriber, logger logging.Logger) *DisplayHandler {
	return &DisplayHandler{manifests: manifests, displays: displays, hub: hub, logger: logger}
}

// Manifest returns what the display should play right now
// GET /displays/{displaySlug}/manifest
func (h *DisplayHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	display, ok := middleware.DisplayFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w)
		return
	}

	manifest, err := h.manifests.Build(r.Context(), display)
	if err != nil {
		httputil.WriteServiceError(w, r, h.logger, err)
		return
	}
	w.Header().Set("ETag", strconv.Quote(manifest.PlaylistVersion))
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, manifest)
}

// Heartbeat records liveness
// POST /displays/{displaySlug}/heartbeat
func (h *DisplayHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	display, ok := middleware.DisplayFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w)
		return
	}

	if err := h.displays.Heartbeat(r.Context(), display); err != nil {
		httputil.WriteServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stream holds an SSE connection open until the client goes away
// GET /displays/{displaySlug}/stream
func (h *DisplayHandler) Stream(w http.ResponseWriter, r *http.Request) {
	display, ok := middleware.DisplayFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w)
		return
	}

	// streams outlive any server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sse, err := realtime.NewSSEWriter(w)
	if err != nil {
		h.logger.WithError(err).Error("stream unavailable")
		httputil.WriteInternalError(w)
		return
	}

	log := h.logger.WithField("display_id", display.ID)
	events := make(chan realtime.Event, streamBuffer)
	unsubscribe := h.hub.Subscribe(display.ID, func(e realtime.Event) {
		select {
		case events <- e:
		default:
			log.WithField("type", e.Type).Warn("stream buffer full, event dropped")
		}
	})
	defer unsubscribe()

	log.Info("stream opened")
	defer log.Info("stream closed")

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if err := sse.Write(e); err != nil {
				log.WithError(err).Debug("stream write failed")
				return
			}
		}
	}
}
