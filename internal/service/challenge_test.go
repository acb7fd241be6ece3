package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"signagehub/internal/clock"
	"signagehub/internal/logging"
	"signagehub/internal/model"
	"signagehub/internal/signature"
	"signagehub/internal/testutil"
)

type challengeFixture struct {
	store   *memoryStore
	clock   *clock.Fake
	svc     *ChallengeService
	key     *testutil.DeviceKey
	display model.Display
	keyID   string
}

func newChallengeFixture(t *testing.T, state model.RegistrationState) *challengeFixture {
	t.Helper()
	store := newMemoryStore()
	clk := clock.NewFake(testNow)
	key := testutil.NewEd25519Key(t)

	d := model.Display{ID: uuid.NewString(), Slug: "reception", State: state}
	k := model.DisplayKey{
		ID:        uuid.NewString(),
		DisplayID: d.ID,
		Algorithm: key.Algorithm,
		PublicKey: key.PublicKeyPEM,
		Status:    model.KeyStatusActive,
	}
	store.addDisplay(d, k)

	svc, err := NewChallengeService(memoryDisplays{store}, memoryKeys{store}, newMemoryLedger(),
		clk, "test-challenge-secret", 2*time.Minute, logging.Discard(), nil)
	if err != nil {
		t.Fatalf("NewChallengeService: %v", err)
	}
	return &challengeFixture{store: store, clock: clk, svc: svc, key: key, display: d, keyID: k.ID}
}

func (f *challengeFixture) issue(t *testing.T) string {
	t.Helper()
	resp, err := f.svc.CreateChallenge(context.Background(), &model.CreateChallengeRequest{
		DisplaySlug: f.display.Slug,
		KeyID:       f.keyID,
	})
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	return resp.ChallengeToken
}

func (f *challengeFixture) answer(t *testing.T, token string) *model.VerifyChallengeRequest {
	t.Helper()
	return &model.VerifyChallengeRequest{
		DisplaySlug: f.display.Slug,
		KeyID:       f.keyID,
		Signature:   f.key.Sign(t, signature.ChallengePayload(token, f.display.Slug, f.keyID)),
	}
}

func TestNewChallengeService_RequiresSecret(t *testing.T) {
	_, err := NewChallengeService(nil, nil, nil, clock.System(), "", time.Minute, logging.Discard(), nil)
	if err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestChallengeService_ActivatesRegisteredDisplay(t *testing.T) {
	// ARRANGE
	f := newChallengeFixture(t, model.StateRegistered)
	token := f.issue(t)

	// ACT
	err := f.svc.VerifyChallenge(context.Background(), token, f.answer(t, token))

	// ASSERT
	if err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}
	d := f.store.display(f.display.ID)
	if d.State != model.StateActive {
		t.Errorf("state = %s, want active", d.State)
	}
	if d.LastSeenAt == nil || !d.LastSeenAt.Equal(testNow) {
		t.Errorf("lastSeenAt = %v, want %v", d.LastSeenAt, testNow)
	}
	transitions, _ := f.store.ListTransitions(context.Background(), f.display.ID)
	if len(transitions) != 1 {
		t.Fatalf("transitions = %d, want 1", len(transitions))
	}
	if tr := transitions[0]; tr.FromState != model.StateRegistered || tr.ToState != model.StateActive || tr.Reason != model.ReasonChallenge {
		t.Errorf("transition = %+v", tr)
	}
}

func TestChallengeService_ActiveDisplayOnlyTouchesLastSeen(t *testing.T) {
	f := newChallengeFixture(t, model.StateActive)
	token := f.issue(t)
	f.clock.Advance(30 * time.Second)

	if err := f.svc.VerifyChallenge(context.Background(), token, f.answer(t, token)); err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}

	d := f.store.display(f.display.ID)
	if d.State != model.StateActive || d.LastSeenAt == nil || !d.LastSeenAt.Equal(testNow.Add(30*time.Second)) {
		t.Errorf("display = %+v", d)
	}
	if transitions, _ := f.store.ListTransitions(context.Background(), f.display.ID); len(transitions) != 0 {
		t.Errorf("no transition expected for an active display, got %d", len(transitions))
	}
}

func TestChallengeService_TokenIsSingleUse(t *testing.T) {
	f := newChallengeFixture(t, model.StateRegistered)
	token := f.issue(t)
	req := f.answer(t, token)

	if err := f.svc.VerifyChallenge(context.Background(), token, req); err != nil {
		t.Fatalf("first VerifyChallenge: %v", err)
	}
	if err := f.svc.VerifyChallenge(context.Background(), token, req); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("replay: got %v, want ErrUnauthorized", err)
	}
}

func TestChallengeService_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		state  model.RegistrationState
		mutate func(t *testing.T, f *challengeFixture, token *string, req *model.VerifyChallengeRequest)
	}{
		{
			name:  "expired token",
			state: model.StateRegistered,
			mutate: func(_ *testing.T, f *challengeFixture, _ *string, _ *model.VerifyChallengeRequest) {
				f.clock.Advance(3 * time.Minute)
			},
		},
		{
			name:  "slug does not match token",
			state: model.StateRegistered,
			mutate: func(_ *testing.T, _ *challengeFixture, _ *string, req *model.VerifyChallengeRequest) {
				req.DisplaySlug = "someone-else"
			},
		},
		{
			name:  "tampered token",
			state: model.StateRegistered,
			mutate: func(_ *testing.T, _ *challengeFixture, token *string, _ *model.VerifyChallengeRequest) {
				*token += "x"
			},
		},
		{
			name:  "signature from another key",
			state: model.StateRegistered,
			mutate: func(t *testing.T, f *challengeFixture, token *string, req *model.VerifyChallengeRequest) {
				other := testutil.NewEd25519Key(t)
				req.Signature = other.Sign(t, signature.ChallengePayload(*token, f.display.Slug, f.keyID))
			},
		},
		{
			name:  "unregistered display",
			state: model.StateUnregistered,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChallengeFixture(t, model.StateRegistered)
			token := f.issue(t)
			req := f.answer(t, token)
			if tt.state == model.StateUnregistered {
				// a display demoted after issuance can never be activated
				f.store.mu.Lock()
				f.store.displays[f.display.ID].State = model.StateUnregistered
				f.store.mu.Unlock()
			}
			if tt.mutate != nil {
				tt.mutate(t, f, &token, req)
			}

			err := f.svc.VerifyChallenge(context.Background(), token, req)

			if !errors.Is(err, model.ErrUnauthorized) {
				t.Fatalf("got %v, want ErrUnauthorized", err)
			}
			if d := f.store.display(f.display.ID); d.State == model.StateActive {
				t.Error("display must not be activated")
			}
		})
	}
}

func TestChallengeService_CreateChallenge_UnregisteredDisplay(t *testing.T) {
	f := newChallengeFixture(t, model.StateUnregistered)

	_, err := f.svc.CreateChallenge(context.Background(), &model.CreateChallengeRequest{
		DisplaySlug: f.display.Slug,
		KeyID:       f.keyID,
	})
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}

func TestChallengeService_CreateChallenge_UnknownKey(t *testing.T) {
	f := newChallengeFixture(t, model.StateRegistered)

	for _, keyID := range []string{"not-a-uuid", uuid.NewString()} {
		_, err := f.svc.CreateChallenge(context.Background(), &model.CreateChallengeRequest{
			DisplaySlug: f.display.Slug,
			KeyID:       keyID,
		})
		if !errors.Is(err, model.ErrUnauthorized) {
			t.Errorf("key %q: got %v, want ErrUnauthorized", keyID, err)
		}
	}
}

func TestChallengeService_ConcurrentVerifyActivatesOnce(t *testing.T) {
	f := newChallengeFixture(t, model.StateRegistered)
	token := f.issue(t)
	req := f.answer(t, token)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := *req
			if err := f.svc.VerifyChallenge(context.Background(), token, &r); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Fatalf("successes = %d, want 1", successes.Load())
	}
	if transitions, _ := f.store.ListTransitions(context.Background(), f.display.ID); len(transitions) != 1 {
		t.Errorf("transitions = %d, want exactly 1", len(transitions))
	}
}
