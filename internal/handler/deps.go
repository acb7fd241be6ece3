package handler

import (
	"context"

	"signagehub/internal/model"
	"signagehub/internal/realtime"
)

// Registrar is implemented by service.RegistrationService.
type Registrar interface {
	OpenSession(ctx context.Context, code string) (*model.OpenSessionResponse, error)
	Register(ctx context.Context, req *model.RegisterRequest) (*model.RegisterResponse, error)
	IssuePairingCode(ctx context.Context, issuedBy string) (*model.IssuedPairingCode, error)
}

// Challenger is implemented by service.ChallengeService.
type Challenger interface {
	CreateChallenge(ctx context.Context, req *model.CreateChallengeRequest) (*model.CreateChallengeResponse, error)
	VerifyChallenge(ctx context.Context, token string, req *model.VerifyChallengeRequest) error
}

// ManifestBuilder is implemented by service.ManifestService.
type ManifestBuilder interface {
	Build(ctx context.Context, display *model.Display) (*model.Manifest, error)
}

// DisplayOps is implemented by service.DisplayService.
type DisplayOps interface {
	Heartbeat(ctx context.Context, display *model.Display) error
	RequestRefresh(ctx context.Context, displayID string) (int64, error)
	Notify(ctx context.Context, displayID string, eventType realtime.EventType) error
	RevokeKey(ctx context.Context, displayID, keyID string) error
}

// SettingsUpdater is implemented by service.SettingsService.
type SettingsUpdater interface {
	SetScrollSpeed(ctx context.Context, value int) (model.RuntimeSettings, error)
}

// Subscriber is implemented by realtime.Hub.
type Subscriber interface {
	Subscribe(displayID string, fn func(realtime.Event)) (unsubscribe func())
}
