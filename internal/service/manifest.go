package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"signagehub/internal/clock"
	"signagehub/internal/logging"
	"signagehub/internal/model"
	"signagehub/internal/repository"
)

const defaultPresignWorkers = 8

type ManifestConfig struct {
	Location       *time.Location
	ContentURLTTL  time.Duration
	PresignWorkers int
}

// ManifestService derives the manifest a display should be playing right now.
type ManifestService struct {
	schedules repository.ScheduleRepository
	playlists repository.PlaylistRepository
	contents  repository.ContentRepository
	settings  repository.SettingRepository
	storage   ContentStorage
	clock     clock.Clock
	cfg       ManifestConfig
	logger    logging.Logger
	recorder  Recorder
}

func NewManifestService(
	schedules repository.ScheduleRepository,
	playlists repository.PlaylistRepository,
	contents repository.ContentRepository,
	settings repository.SettingRepository,
	storage ContentStorage,
	clk clock.Clock,
	cfg ManifestConfig,
	logger logging.Logger,
	recorder Recorder,
) *ManifestService {
	if cfg.PresignWorkers <= 0 {
		cfg.PresignWorkers = defaultPresignWorkers
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ManifestService{
		schedules: schedules,
		playlists: playlists,
		contents:  contents,
		settings:  settings,
		storage:   storage,
		clock:     clk,
		cfg:       cfg,
		logger:    logger,
		recorder:  recorderOrNop(recorder),
	}
}

// Build resolves the display's active schedule into a manifest. Missing playlists or
// content and any presign failure fail the whole build.
func (s *ManifestService) Build(ctx context.Context, display *model.Display) (manifest *model.Manifest, err error) {
	start := time.Now()
	defer func() { s.recorder.ObserveManifestBuild(time.Since(start), err) }()

	now := s.clock.Now()
	settings, err := s.RuntimeSettings(ctx)
	if err != nil {
		return nil, err
	}

	schedules, err := s.schedules.ListByDisplay(ctx, display.ID)
	if err != nil {
		return nil, err
	}

	manifest = &model.Manifest{
		GeneratedAt:     now,
		RuntimeSettings: settings,
		Items:           []model.ManifestItem{},
	}

	for i := range schedules {
		if !schedules[i].IsActive {
			continue
		}
		if verr := schedules[i].Validate(); verr != nil {
			s.logger.WithError(verr).WithFields(logging.Fields{
				"display_id":  display.ID,
				"schedule_id": schedules[i].ID,
			}).Warn("skipping invalid schedule")
		}
	}

	active := SelectActiveSchedule(schedules, now, s.cfg.Location)
	if active == nil {
		manifest.PlaylistVersion, err = PlaylistVersion(nil, display.RefreshNonce, settings, nil)
		return manifest, err
	}

	playlist, err := s.playlists.GetByID(ctx, active.PlaylistID)
	if err != nil {
		if errors.Is(err, model.ErrPlaylistNotFound) {
			return nil, s.integrityError(display, "schedule %s references missing playlist %s", active.ID, active.PlaylistID)
		}
		return nil, err
	}

	items, err := s.playlists.ListItems(ctx, playlist.ID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Sequence < items[j].Sequence })

	contents, err := s.loadContents(ctx, items)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if _, ok := contents[item.ContentID]; !ok {
			return nil, s.integrityError(display, "playlist %s item %s references missing content %s", playlist.ID, item.ID, item.ContentID)
		}
	}

	resolved, err := s.presignItems(ctx, items, contents)
	if err != nil {
		return nil, err
	}

	playlistID := playlist.ID
	manifest.PlaylistID = &playlistID
	manifest.Items = resolved
	manifest.PlaylistVersion, err = PlaylistVersion(&playlistID, display.RefreshNonce, settings, resolved)
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

// RuntimeSettings reads the settings snapshot, falling back to defaults for absent
// or non-positive values.
func (s *ManifestService) RuntimeSettings(ctx context.Context) (model.RuntimeSettings, error) {
	settings := model.RuntimeSettings{ScrollSpeed: model.DefaultScrollSpeed}

	raw, found, err := s.settings.Get(ctx, model.SettingScrollSpeed)
	if err != nil {
		return settings, err
	}
	if found {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			settings.ScrollSpeed = v
		}
	}
	return settings, nil
}

// loadContents fetches every referenced content record in one query.
func (s *ManifestService) loadContents(ctx context.Context, items []model.PlaylistItem) (map[string]model.Content, error) {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ContentID]; ok {
			continue
		}
		seen[item.ContentID] = struct{}{}
		ids = append(ids, item.ContentID)
	}

	records, err := s.contents.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Content, len(records))
	for _, c := range records {
		byID[c.ID] = c
	}
	return byID, nil
}

// presignItems resolves download URLs with bounded concurrency. Each worker writes
// into its item's own slot so the output keeps playlist order.
func (s *ManifestService) presignItems(ctx context.Context, items []model.PlaylistItem, contents map[string]model.Content) ([]model.ManifestItem, error) {
	out := make([]model.ManifestItem, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.PresignWorkers)
	for i, item := range items {
		content := contents[item.ContentID]
		g.Go(func() error {
			url, err := s.storage.GetPresignedDownloadURL(gctx, content.FileKey, s.cfg.ContentURLTTL)
			if err != nil {
				return fmt.Errorf("presign playlist item %s: %w", item.ID, err)
			}
			out[i] = model.ManifestItem{
				ID:        item.ID,
				Sequence:  item.Sequence,
				Duration:  item.Duration,
				ContentID: content.ID,
				Checksum:  content.Checksum,
				Type:      content.Type,
				MimeType:  content.MimeType,
				Title:     content.Title,
				URL:       url,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ManifestService) integrityError(display *model.Display, format string, args ...any) error {
	detail := fmt.Sprintf(format, args...)
	s.logger.WithFields(logging.Fields{"display_id": display.ID, "detail": detail}).Error("manifest integrity failure")
	return fmt.Errorf("%w: %s", model.ErrManifestIntegrity, detail)
}

// versionDocument fixes the field order of the hashed JSON.
type versionDocument struct {
	PlaylistID   *string       `json:"playlistId"`
	RefreshNonce int64         `json:"refreshNonce"`
	ScrollSpeed  int           `json:"scrollSpeed"`
	Items        []versionItem `json:"items"`
}

type versionItem struct {
	ID        string `json:"id"`
	Sequence  int    `json:"sequence"`
	Duration  int    `json:"duration"`
	ContentID string `json:"contentId"`
	Checksum  string `json:"checksum"`
}

// PlaylistVersion hashes everything that should change what a display plays.
// Presigned URLs are left out because they change on every request.
func PlaylistVersion(playlistID *string, refreshNonce int64, settings model.RuntimeSettings, items []model.ManifestItem) (string, error) {
	doc := versionDocument{
		PlaylistID:   playlistID,
		RefreshNonce: refreshNonce,
		ScrollSpeed:  settings.ScrollSpeed,
		Items:        make([]versionItem, len(items)),
	}
	for i, item := range items {
		doc.Items[i] = versionItem{
			ID:        item.ID,
			Sequence:  item.Sequence,
			Duration:  item.Duration,
			ContentID: item.ContentID,
			Checksum:  item.Checksum,
		}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal version document: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
