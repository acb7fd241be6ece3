package database

// Constraint names inspected by the repository conflict mapper.
const (
	ConstraintDisplaySlug        = "displays_slug_key"
	ConstraintDisplayFingerprint = "displays_fingerprint_output_key"
	ConstraintSessionCode        = "pairing_sessions_pairing_code_id_key"
	ConstraintAuthNonce          = "auth_nonces_pkey"
)

// Schema holds the DDL for the credential store and the read models this service queries.
// Schedules, playlists and content are owned by the CRUD collaborators; the tables are
// declared here so a fresh database can serve manifests.
const Schema = `
CREATE TABLE IF NOT EXISTS displays (
    id                 UUID PRIMARY KEY,
    name               TEXT NOT NULL,
    slug               TEXT NOT NULL,
    fingerprint        TEXT NOT NULL,
    resolution_width   INTEGER NOT NULL,
    resolution_height  INTEGER NOT NULL,
    output             TEXT NOT NULL,
    orientation        TEXT NOT NULL DEFAULT 'landscape',
    registration_state TEXT NOT NULL CHECK (registration_state IN ('unregistered', 'registered', 'active')),
    last_seen_at       TIMESTAMPTZ,
    refresh_nonce      BIGINT NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT displays_slug_key UNIQUE (slug),
    CONSTRAINT displays_fingerprint_output_key UNIQUE (fingerprint, output)
);

CREATE TABLE IF NOT EXISTS display_keys (
    id         UUID PRIMARY KEY,
    display_id UUID NOT NULL REFERENCES displays(id) ON DELETE CASCADE,
    algorithm  TEXT NOT NULL,
    public_key TEXT NOT NULL,
    status     TEXT NOT NULL CHECK (status IN ('active', 'revoked')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_display_keys_display ON display_keys(display_id);

CREATE TABLE IF NOT EXISTS pairing_codes (
    id         UUID PRIMARY KEY,
    code_hash  TEXT NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    used_at    TIMESTAMPTZ,
    issued_by  TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_pairing_codes_hash ON pairing_codes(code_hash) WHERE used_at IS NULL;

CREATE TABLE IF NOT EXISTS pairing_sessions (
    id                   UUID PRIMARY KEY,
    pairing_code_id      UUID NOT NULL REFERENCES pairing_codes(id),
    challenge_nonce      TEXT NOT NULL,
    challenge_expires_at TIMESTAMPTZ NOT NULL,
    state                TEXT NOT NULL CHECK (state IN ('open', 'completed')),
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT pairing_sessions_pairing_code_id_key UNIQUE (pairing_code_id)
);

CREATE TABLE IF NOT EXISTS auth_nonces (
    display_id UUID NOT NULL,
    nonce      TEXT NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    CONSTRAINT auth_nonces_pkey PRIMARY KEY (display_id, nonce)
);
CREATE INDEX IF NOT EXISTS idx_auth_nonces_expiry ON auth_nonces(expires_at);

CREATE TABLE IF NOT EXISTS display_state_transitions (
    id         UUID PRIMARY KEY,
    display_id UUID NOT NULL REFERENCES displays(id) ON DELETE CASCADE,
    from_state TEXT NOT NULL,
    to_state   TEXT NOT NULL,
    reason     TEXT NOT NULL,
    actor      TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS runtime_settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS contents (
    id        UUID PRIMARY KEY,
    title     TEXT NOT NULL,
    type      TEXT NOT NULL,
    mime_type TEXT NOT NULL,
    file_key  TEXT NOT NULL,
    checksum  TEXT NOT NULL,
    file_size BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS playlists (
    id         UUID PRIMARY KEY,
    name       TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS playlist_items (
    id          UUID PRIMARY KEY,
    playlist_id UUID NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
    content_id  UUID NOT NULL,
    sequence    INTEGER NOT NULL,
    duration    INTEGER NOT NULL,
    UNIQUE (playlist_id, sequence)
);

CREATE TABLE IF NOT EXISTS schedules (
    id          UUID PRIMARY KEY,
    series_id   UUID NOT NULL,
    playlist_id UUID NOT NULL,
    display_id  UUID NOT NULL REFERENCES displays(id) ON DELETE CASCADE,
    start_time  TEXT NOT NULL,
    end_time    TEXT NOT NULL,
    day_of_week SMALLINT CHECK (day_of_week BETWEEN 0 AND 6),
    start_date  TEXT,
    end_date    TEXT,
    priority    INTEGER NOT NULL DEFAULT 0,
    is_active   BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_schedules_display ON schedules(display_id);
`
