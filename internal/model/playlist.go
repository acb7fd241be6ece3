package model

import (
	"errors"
	"time"
)

// Playlist is an ordered set of content items.
type Playlist struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// PlaylistItem places one content record at a sequence position.
type PlaylistItem struct {
	ID         string `db:"id" json:"id"`
	PlaylistID string `db:"playlist_id" json:"playlistId"`
	ContentID  string `db:"content_id" json:"contentId"`
	Sequence   int    `db:"sequence" json:"sequence"`
	Duration   int    `db:"duration" json:"duration"` // seconds
}

// Content is an uploaded media record; FileKey addresses it in object storage.
type Content struct {
	ID       string `db:"id" json:"id"`
	Title    string `db:"title" json:"title"`
	Type     string `db:"type" json:"type"`
	MimeType string `db:"mime_type" json:"mimeType"`
	FileKey  string `db:"file_key" json:"-"`
	Checksum string `db:"checksum" json:"checksum"`
	FileSize int64  `db:"file_size" json:"fileSize"`
}

var (
	// ErrPlaylistNotFound means a schedule points at a playlist that does not exist
	ErrPlaylistNotFound = errors.New("playlist not found")

	// ErrContentNotFound means a playlist item points at missing content
	ErrContentNotFound = errors.New("content not found")
)
