package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"signagehub/internal/model"
)

type playlistRepository struct {
	db *sqlx.DB
}

// NewPlaylistRepository creates a read-only playlist repository
func NewPlaylistRepository(db *sqlx.DB) PlaylistRepository {
	return &playlistRepository{db: db}
}

func (r *playlistRepository) GetByID(ctx context.Context, id string) (*model.Playlist, error) {
	var p model.Playlist
	err := r.db.GetContext(ctx, &p, `SELECT id, name, updated_at FROM playlists WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrPlaylistNotFound
		}
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	return &p, nil
}

func (r *playlistRepository) ListItems(ctx context.Context, playlistID string) ([]model.PlaylistItem, error) {
	query := `
		SELECT id, playlist_id, content_id, sequence, duration
		FROM playlist_items
		WHERE playlist_id = $1
		ORDER BY sequence ASC
	`
	var items []model.PlaylistItem
	if err := r.db.SelectContext(ctx, &items, query, playlistID); err != nil {
		return nil, fmt.Errorf("failed to list playlist items: %w", err)
	}
	return items, nil
}

type contentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a read-only content repository
func NewContentRepository(db *sqlx.DB) ContentRepository {
	return &contentRepository{db: db}
}

// GetByIDs uses ANY($1) so the whole playlist resolves in one round-trip.
func (r *contentRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Content, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, title, type, mime_type, file_key, checksum, file_size
		FROM contents
		WHERE id = ANY($1)
	`
	var contents []model.Content
	if err := r.db.SelectContext(ctx, &contents, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get contents: %w", err)
	}
	return contents, nil
}
