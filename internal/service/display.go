package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"signagehub/internal/clock"
	"signagehub/internal/logging"
	"signagehub/internal/model"
	"signagehub/internal/queue"
	"signagehub/internal/realtime"
	"signagehub/internal/repository"
)

// DisplayService handles liveness and the staff actions that notify displays.
type DisplayService struct {
	displays   repository.DisplayRepository
	keys       repository.DisplayKeyRepository
	publisher  queue.Publisher
	clock      clock.Clock
	pushOnBeat bool
	logger     logging.Logger
}

func NewDisplayService(
	displays repository.DisplayRepository,
	keys repository.DisplayKeyRepository,
	publisher queue.Publisher,
	clk clock.Clock,
	heartbeatPushManifest bool,
	logger logging.Logger,
) *DisplayService {
	return &DisplayService{
		displays:   displays,
		keys:       keys,
		publisher:  publisher,
		clock:      clk,
		pushOnBeat: heartbeatPushManifest,
		logger:     logger,
	}
}

// Heartbeat records liveness and, when enabled, nudges the display's streams to re-fetch.
func (s *DisplayService) Heartbeat(ctx context.Context, display *model.Display) error {
	now := s.clock.Now()
	if err := s.displays.TouchLastSeen(ctx, display.ID, now); err != nil {
		return err
	}
	if !s.pushOnBeat {
		return nil
	}
	s.publish(ctx, realtime.NewEvent(realtime.EventManifestUpdated, display.ID, nil, now))
	return nil
}

// RequestRefresh bumps the refresh nonce, which changes the playlist version, and tells the display.
func (s *DisplayService) RequestRefresh(ctx context.Context, displayID string) (int64, error) {
	if _, err := uuid.Parse(displayID); err != nil {
		return 0, model.ErrDisplayNotFound
	}
	nonce, err := s.displays.IncrementRefreshNonce(ctx, displayID)
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(logging.Fields{"display_id": displayID, "refresh_nonce": nonce}).Info("refresh requested")
	s.publish(ctx, realtime.NewEvent(realtime.EventRefresh, displayID, map[string]int64{"refreshNonce": nonce}, s.clock.Now()))
	return nonce, nil
}

// Notify forwards a change notification from the CRUD collaborators to one display.
func (s *DisplayService) Notify(ctx context.Context, displayID string, eventType realtime.EventType) error {
	if !realtime.ValidAdminEvent(eventType) {
		return model.NewValidationError("unsupported event type " + string(eventType))
	}
	if _, err := uuid.Parse(displayID); err != nil {
		return model.ErrDisplayNotFound
	}
	if _, err := s.displays.GetByID(ctx, displayID); err != nil {
		return err
	}
	s.publish(ctx, realtime.NewEvent(eventType, displayID, nil, s.clock.Now()))
	return nil
}

// RevokeKey flips a key to revoked. Revocation takes effect on the display's next signed request.
func (s *DisplayService) RevokeKey(ctx context.Context, displayID, keyID string) error {
	if _, err := uuid.Parse(displayID); err != nil {
		return model.ErrKeyNotFound
	}
	if _, err := uuid.Parse(keyID); err != nil {
		return model.ErrKeyNotFound
	}
	if err := s.keys.Revoke(ctx, displayID, keyID); err != nil {
		return err
	}
	s.logger.WithFields(logging.Fields{"display_id": displayID, "key_id": keyID}).Info("display key revoked")
	return nil
}

// publish is best effort. A failed relay is logged; local delivery already happened.
func (s *DisplayService) publish(ctx context.Context, e realtime.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WithFields(logging.Fields{"type": e.Type, "display_id": e.DisplayID}).WithError(err).Warn("event publish failed")
	}
}
