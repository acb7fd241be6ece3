package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"signagehub/internal/httputil"
	"signagehub/internal/logging"
	"signagehub/internal/model"
	"signagehub/internal/service"
)

const (
	displayKey contextKey = "display"

	// maxSignedBodyBytes bounds the body read for hashing.
	maxSignedBodyBytes = 64 << 10
)

// RequestVerifier authenticates a signed display request.
type RequestVerifier interface {
	Verify(ctx context.Context, req *service.SignedRequest) (*model.Display, error)
}

// DisplaySignature authenticates requests under /displays/{displaySlug}. The body is
// read once for hashing and restored for the handler.
func DisplaySignature(verifier RequestVerifier, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body []byte
			if r.Body != nil {
				var err error
				body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxSignedBodyBytes))
				if err != nil {
					httputil.WriteBadRequest(w, "request body too large")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			signed := service.SignedRequestFromHTTP(r, chi.URLParam(r, "displaySlug"), body)
			display, err := verifier.Verify(r.Context(), signed)
			if err != nil {
				httputil.WriteServiceError(w, r, logger, err)
				return
			}

			ctx := context.WithValue(r.Context(), displayKey, display)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DisplayFromContext returns the display authenticated by DisplaySignature.
func DisplayFromContext(ctx context.Context) (*model.Display, bool) {
	d, ok := ctx.Value(displayKey).(*model.Display)
	return d, ok
}
