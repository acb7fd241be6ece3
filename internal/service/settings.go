package service

import (
	"context"
	"strconv"

	"signagehub/internal/clock"
	"signagehub/internal/logging"
	"signagehub/internal/model"
	"signagehub/internal/queue"
	"signagehub/internal/realtime"
	"signagehub/internal/repository"
)

const maxScrollSpeed = 1000

type SettingsService struct {
	settings  repository.SettingRepository
	publisher queue.Publisher
	clock     clock.Clock
	logger    logging.Logger
}

func NewSettingsService(settings repository.SettingRepository, publisher queue.Publisher, clk clock.Clock, logger logging.Logger) *SettingsService {
	return &SettingsService{settings: settings, publisher: publisher, clock: clk, logger: logger}
}

// SetScrollSpeed stores the value and tells every connected display its manifest version changed.
func (s *SettingsService) SetScrollSpeed(ctx context.Context, value int) (model.RuntimeSettings, error) {
	if value <= 0 || value > maxScrollSpeed {
		return model.RuntimeSettings{}, model.NewValidationError("value must be between 1 and " + strconv.Itoa(maxScrollSpeed))
	}
	if err := s.settings.Set(ctx, model.SettingScrollSpeed, strconv.Itoa(value)); err != nil {
		return model.RuntimeSettings{}, err
	}

	settings := model.RuntimeSettings{ScrollSpeed: value}
	s.logger.WithField("scroll_speed", value).Info("runtime settings updated")

	event := realtime.NewEvent(realtime.EventSettingsUpdated, "", settings, s.clock.Now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).Warn("settings broadcast failed")
	}
	return settings, nil
}
