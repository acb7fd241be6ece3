package model

import (
	"errors"
	"time"
)

// Runtime setting keys and their fallbacks
const (
	SettingScrollSpeed = "scroll_speed"

	DefaultScrollSpeed = 24
)

// RuntimeSettings is the settings snapshot delivered with every manifest.
type RuntimeSettings struct {
	ScrollSpeed int `json:"scrollSpeed"`
}

// ManifestItem is one resolved, playable entry.
type ManifestItem struct {
	ID        string `json:"id"`
	Sequence  int    `json:"sequence"`
	Duration  int    `json:"duration"`
	ContentID string `json:"contentId"`
	Checksum  string `json:"checksum"`
	Type      string `json:"type"`
	MimeType  string `json:"mimeType"`
	Title     string `json:"title"`
	URL       string `json:"url"`
}

// Manifest is derived per request and never persisted.
type Manifest struct {
	PlaylistID      *string         `json:"playlistId"`
	PlaylistVersion string          `json:"playlistVersion"`
	GeneratedAt     time.Time       `json:"generatedAt"`
	RuntimeSettings RuntimeSettings `json:"runtimeSettings"`
	Items           []ManifestItem  `json:"items"`
}

// ScrollSpeedRequest is the request body for PUT /admin/settings/scroll-speed
type ScrollSpeedRequest struct {
	Value int `json:"value"`
}

// ErrManifestIntegrity wraps referential failures discovered while building a manifest
var ErrManifestIntegrity = errors.New("manifest integrity error")
