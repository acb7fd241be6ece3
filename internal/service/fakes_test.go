package service

import (
	"context"
	"sync"
	"time"

	"signagehub/internal/model"
	"signagehub/internal/realtime"
	"signagehub/internal/repository"
)

// =============================================================================
// IN-MEMORY CREDENTIAL STORE
// =============================================================================
//
// memoryStore implements the display, key and credential repositories over maps
// guarded by one mutex, which gives the same single-winner behaviour the Postgres
// row locks provide.

type memoryStore struct {
	mu          sync.Mutex
	displays    map[string]*model.Display
	keys        map[string]*model.DisplayKey
	codes       map[string]*model.PairingCode
	sessions    map[string]*model.PairingSession
	transitions []model.DisplayStateTransition

	createCodeFn func(code *model.PairingCode) error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		displays: make(map[string]*model.Display),
		keys:     make(map[string]*model.DisplayKey),
		codes:    make(map[string]*model.PairingCode),
		sessions: make(map[string]*model.PairingSession),
	}
}

// --- CredentialStore ---

func (m *memoryStore) CreatePairingCode(_ context.Context, code *model.PairingCode, now time.Time) error {
	if m.createCodeFn != nil {
		if err := m.createCodeFn(code); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.CodeHash == code.CodeHash && c.UsedAt == nil && c.ExpiresAt.After(now) {
			return repository.ErrPairingCodeCollision
		}
	}
	code.CreatedAt = now
	cp := *code
	m.codes[code.ID] = &cp
	return nil
}

func (m *memoryStore) OpenSession(_ context.Context, codeHash string, now time.Time, session *model.PairingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.CodeHash == codeHash && c.UsedAt == nil && c.ExpiresAt.After(now) {
			used := now
			c.UsedAt = &used
			session.PairingCodeID = c.ID
			session.State = model.SessionOpen
			session.CreatedAt = now
			cp := *session
			m.sessions[session.ID] = &cp
			return nil
		}
	}
	return model.ErrInvalidPairingCode
}

func (m *memoryStore) GetSession(_ context.Context, id string) (*model.PairingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryStore) Register(_ context.Context, p repository.RegistrationParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[p.SessionID]
	if !ok {
		return model.ErrSessionNotFound
	}
	if !s.IsOpenAt(p.Now) {
		return model.ErrSessionClosed
	}
	for _, d := range m.displays {
		if d.Slug == p.Display.Slug {
			return model.ErrSlugTaken
		}
		if d.Fingerprint == p.Display.Fingerprint && d.Output == p.Display.Output {
			return model.ErrFingerprintTaken
		}
	}
	d := *p.Display
	d.CreatedAt, d.UpdatedAt = p.Now, p.Now
	m.displays[d.ID] = &d
	k := *p.Key
	k.CreatedAt = p.Now
	m.keys[k.ID] = &k
	s.State = model.SessionCompleted
	m.transitions = append(m.transitions, *p.Transition)
	return nil
}

func (m *memoryStore) ListTransitions(_ context.Context, displayID string) ([]model.DisplayStateTransition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DisplayStateTransition
	for _, t := range m.transitions {
		if t.DisplayID == displayID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryStore) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

// --- DisplayRepository ---

type memoryDisplays struct{ *memoryStore }

func (m memoryDisplays) GetByID(_ context.Context, id string) (*model.Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.displays[id]
	if !ok {
		return nil, model.ErrDisplayNotFound
	}
	cp := *d
	return &cp, nil
}

func (m memoryDisplays) GetBySlug(_ context.Context, slug string) (*model.Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.displays {
		if d.Slug == slug {
			cp := *d
			return &cp, nil
		}
	}
	return nil, model.ErrDisplayNotFound
}

func (m memoryDisplays) Activate(_ context.Context, displayID string, t *model.DisplayStateTransition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.displays[displayID]
	if !ok || d.State != model.StateRegistered {
		return false, nil
	}
	d.State = model.StateActive
	seen := t.CreatedAt
	d.LastSeenAt = &seen
	m.transitions = append(m.transitions, *t)
	return true, nil
}

func (m memoryDisplays) TouchLastSeen(_ context.Context, displayID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.displays[displayID]; ok {
		d.LastSeenAt = &at
	}
	return nil
}

func (m memoryDisplays) IncrementRefreshNonce(_ context.Context, displayID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.displays[displayID]
	if !ok {
		return 0, model.ErrDisplayNotFound
	}
	d.RefreshNonce++
	return d.RefreshNonce, nil
}

// --- DisplayKeyRepository ---

type memoryKeys struct{ *memoryStore }

func (m memoryKeys) GetByID(_ context.Context, id string) (*model.DisplayKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return nil, model.ErrKeyNotFound
	}
	cp := *k
	return &cp, nil
}

func (m memoryKeys) Revoke(_ context.Context, displayID, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[keyID]
	if !ok || k.DisplayID != displayID {
		return model.ErrKeyNotFound
	}
	k.Status = model.KeyStatusRevoked
	return nil
}

// addDisplay seeds a display and one active key directly.
func (m *memoryStore) addDisplay(d model.Display, k model.DisplayKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.displays[d.ID] = &d
	m.keys[k.ID] = &k
}

func (m *memoryStore) display(id string) model.Display {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.displays[id]
}

// =============================================================================
// NONCE LEDGER
// =============================================================================

type memoryLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{seen: make(map[string]time.Time)}
}

func (l *memoryLedger) Consume(_ context.Context, displayID, nonce string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := displayID + "|" + nonce
	if _, ok := l.seen[key]; ok {
		return model.ErrNonceReplayed
	}
	l.seen[key] = expiresAt
	return nil
}

// =============================================================================
// READ MODELS
// =============================================================================

type mockScheduleRepository struct {
	listFn func(ctx context.Context, displayID string) ([]model.Schedule, error)
}

func (m *mockScheduleRepository) ListByDisplay(ctx context.Context, displayID string) ([]model.Schedule, error) {
	if m.listFn != nil {
		return m.listFn(ctx, displayID)
	}
	return nil, nil
}

type mockPlaylistRepository struct {
	playlists map[string]*model.Playlist
	items     map[string][]model.PlaylistItem
}

func (m *mockPlaylistRepository) GetByID(_ context.Context, id string) (*model.Playlist, error) {
	p, ok := m.playlists[id]
	if !ok {
		return nil, model.ErrPlaylistNotFound
	}
	return p, nil
}

func (m *mockPlaylistRepository) ListItems(_ context.Context, playlistID string) ([]model.PlaylistItem, error) {
	return append([]model.PlaylistItem(nil), m.items[playlistID]...), nil
}

type mockContentRepository struct {
	contents map[string]model.Content
	calls    int
}

func (m *mockContentRepository) GetByIDs(_ context.Context, ids []string) ([]model.Content, error) {
	m.calls++
	var out []model.Content
	for _, id := range ids {
		if c, ok := m.contents[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockSettingRepository struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *mockSettingRepository) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockSettingRepository) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

// =============================================================================
// PUBLISHER
// =============================================================================

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) published() []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Event(nil), p.events...)
}
