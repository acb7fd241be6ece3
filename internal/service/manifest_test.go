package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"signagehub/internal/clock"
	"signagehub/internal/logging"
	"signagehub/internal/model"
)

type mockStorage struct {
	presignFn func(ctx context.Context, key string, expiresIn time.Duration) (string, error)
	signed    atomic.Int64
}

func (m *mockStorage) Upload(context.Context, string, io.Reader, string) error { return nil }
func (m *mockStorage) Delete(context.Context, string) error                    { return nil }

func (m *mockStorage) GetPresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	if m.presignFn != nil {
		return m.presignFn(ctx, key, expiresIn)
	}
	return fmt.Sprintf("https://cdn.test/%s?sig=%d", key, m.signed.Add(1)), nil
}

type manifestFixture struct {
	schedules *mockScheduleRepository
	playlists *mockPlaylistRepository
	contents  *mockContentRepository
	settings  *mockSettingRepository
	storage   *mockStorage
	clock     *clock.Fake
	display   *model.Display
}

// newManifestFixture seeds one all-day schedule pointing at a playlist of n items.
func newManifestFixture(n int) *manifestFixture {
	f := &manifestFixture{
		playlists: &mockPlaylistRepository{
			playlists: map[string]*model.Playlist{"pl-1": {ID: "pl-1", Name: "Morning loop"}},
			items:     map[string][]model.PlaylistItem{},
		},
		contents: &mockContentRepository{contents: map[string]model.Content{}},
		settings: &mockSettingRepository{},
		storage:  &mockStorage{},
		clock:    clock.NewFake(testNow),
		display:  &model.Display{ID: "d-1", Slug: "hall", State: model.StateActive},
	}
	f.schedules = &mockScheduleRepository{listFn: func(context.Context, string) ([]model.Schedule, error) {
		return []model.Schedule{{
			ID: "sch-1", PlaylistID: "pl-1", DisplayID: "d-1",
			StartTime: "00:00", EndTime: "23:59:59", Priority: 1, IsActive: true,
		}}, nil
	}}
	for i := 0; i < n; i++ {
		contentID := fmt.Sprintf("c-%02d", i)
		f.playlists.items["pl-1"] = append(f.playlists.items["pl-1"], model.PlaylistItem{
			ID: fmt.Sprintf("it-%02d", i), PlaylistID: "pl-1", ContentID: contentID, Sequence: i + 1, Duration: 10,
		})
		f.contents.contents[contentID] = model.Content{
			ID: contentID, Title: "Slide " + contentID, Type: "image", MimeType: "image/png",
			FileKey: "media/" + contentID + ".png", Checksum: "sum-" + contentID,
		}
	}
	return f
}

func (f *manifestFixture) service(workers int) *ManifestService {
	return NewManifestService(f.schedules, f.playlists, f.contents, f.settings, f.storage, f.clock,
		ManifestConfig{Location: time.UTC, ContentURLTTL: time.Hour, PresignWorkers: workers},
		logging.Discard(), nil)
}

func TestManifestService_Build_NoActiveSchedule(t *testing.T) {
	f := newManifestFixture(0)
	f.schedules.listFn = func(context.Context, string) ([]model.Schedule, error) { return nil, nil }

	m, err := f.service(4).Build(context.Background(), f.display)

	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.PlaylistID != nil || len(m.Items) != 0 || m.Items == nil {
		t.Errorf("manifest = %+v, want empty non-nil items and no playlist", m)
	}
	if m.PlaylistVersion == "" || m.RuntimeSettings.ScrollSpeed != model.DefaultScrollSpeed {
		t.Errorf("version %q settings %+v", m.PlaylistVersion, m.RuntimeSettings)
	}
	if !m.GeneratedAt.Equal(testNow) {
		t.Errorf("generatedAt = %v", m.GeneratedAt)
	}
}

func TestManifestService_Build_ResolvesItemsInOrder(t *testing.T) {
	// ARRANGE
	f := newManifestFixture(12)
	// reverse the stored order; sequence decides
	items := f.playlists.items["pl-1"]
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	// earlier items finish last
	f.storage.presignFn = func(_ context.Context, key string, _ time.Duration) (string, error) {
		var n int
		fmt.Sscanf(key, "media/c-%d.png", &n)
		time.Sleep(time.Duration(12-n) * time.Millisecond)
		return "https://cdn.test/" + key, nil
	}

	// ACT
	m, err := f.service(4).Build(context.Background(), f.display)

	// ASSERT
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.PlaylistID == nil || *m.PlaylistID != "pl-1" {
		t.Fatalf("playlistId = %v", m.PlaylistID)
	}
	if len(m.Items) != 12 {
		t.Fatalf("items = %d, want 12", len(m.Items))
	}
	for i, item := range m.Items {
		wantContent := fmt.Sprintf("c-%02d", i)
		if item.Sequence != i+1 || item.ContentID != wantContent {
			t.Errorf("item %d = seq %d content %s, want seq %d content %s", i, item.Sequence, item.ContentID, i+1, wantContent)
		}
		if item.URL != "https://cdn.test/media/"+wantContent+".png" {
			t.Errorf("item %d url = %s", i, item.URL)
		}
		if item.Checksum != "sum-"+wantContent || item.MimeType != "image/png" {
			t.Errorf("item %d = %+v", i, item)
		}
	}
}

func TestManifestService_Build_BoundsPresignConcurrency(t *testing.T) {
	f := newManifestFixture(20)
	var inFlight, peak atomic.Int32
	f.storage.presignFn = func(_ context.Context, key string, _ time.Duration) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return "https://cdn.test/" + key, nil
	}

	if _, err := f.service(3).Build(context.Background(), f.display); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
	if f.contents.calls != 1 {
		t.Errorf("content lookups = %d, want a single batched call", f.contents.calls)
	}
}

func TestManifestService_Build_VersionIgnoresURLs(t *testing.T) {
	f := newManifestFixture(3)
	svc := f.service(2)

	first, err := svc.Build(context.Background(), f.display)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	f.clock.Advance(time.Minute)
	second, err := svc.Build(context.Background(), f.display)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if first.Items[0].URL == second.Items[0].URL {
		t.Fatal("fixture should presign a different URL every build")
	}
	if first.PlaylistVersion != second.PlaylistVersion {
		t.Errorf("version changed between identical builds: %s != %s", first.PlaylistVersion, second.PlaylistVersion)
	}
}

func TestManifestService_Build_VersionInputs(t *testing.T) {
	f := newManifestFixture(3)
	svc := f.service(2)
	base, err := svc.Build(context.Background(), f.display)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(f *manifestFixture)
	}{
		{"refresh nonce", func(f *manifestFixture) { f.display.RefreshNonce++ }},
		{"scroll speed", func(f *manifestFixture) { f.settings.Set(context.Background(), model.SettingScrollSpeed, "48") }},
		{"content checksum", func(f *manifestFixture) {
			c := f.contents.contents["c-01"]
			c.Checksum = "changed"
			f.contents.contents["c-01"] = c
		}},
		{"item duration", func(f *manifestFixture) { f.playlists.items["pl-1"][2].Duration = 30 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newManifestFixture(3)
			tt.mutate(f)

			m, err := f.service(2).Build(context.Background(), f.display)

			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if m.PlaylistVersion == base.PlaylistVersion {
				t.Error("version should change")
			}
		})
	}
}

func TestManifestService_Build_IntegrityErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *manifestFixture)
	}{
		{"missing playlist", func(f *manifestFixture) { delete(f.playlists.playlists, "pl-1") }},
		{"missing content", func(f *manifestFixture) { delete(f.contents.contents, "c-02") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newManifestFixture(4)
			tt.mutate(f)
			var presigned atomic.Int32
			f.storage.presignFn = func(_ context.Context, key string, _ time.Duration) (string, error) {
				presigned.Add(1)
				return key, nil
			}

			m, err := f.service(2).Build(context.Background(), f.display)

			if !errors.Is(err, model.ErrManifestIntegrity) {
				t.Fatalf("got %v, want ErrManifestIntegrity", err)
			}
			if m != nil {
				t.Error("no partial manifest on integrity failure")
			}
			if presigned.Load() != 0 {
				t.Error("integrity is checked before any presign")
			}
		})
	}
}

func TestManifestService_Build_PresignFailureFailsBuild(t *testing.T) {
	f := newManifestFixture(6)
	f.storage.presignFn = func(_ context.Context, key string, _ time.Duration) (string, error) {
		if strings.Contains(key, "c-03") {
			return "", errors.New("r2 unavailable")
		}
		return key, nil
	}

	m, err := f.service(2).Build(context.Background(), f.display)

	if err == nil || !strings.Contains(err.Error(), "r2 unavailable") {
		t.Fatalf("got %v, want presign error", err)
	}
	if m != nil {
		t.Error("no partial manifest on presign failure")
	}
}

func TestManifestService_Build_DuplicateContentLoadedOnce(t *testing.T) {
	f := newManifestFixture(2)
	f.playlists.items["pl-1"] = append(f.playlists.items["pl-1"], model.PlaylistItem{
		ID: "it-repeat", PlaylistID: "pl-1", ContentID: "c-00", Sequence: 3, Duration: 5,
	})
	var mu sync.Mutex
	keys := map[string]int{}
	f.storage.presignFn = func(_ context.Context, key string, _ time.Duration) (string, error) {
		mu.Lock()
		keys[key]++
		mu.Unlock()
		return key, nil
	}

	m, err := f.service(2).Build(context.Background(), f.display)

	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(m.Items) != 3 || m.Items[2].ContentID != "c-00" {
		t.Errorf("items = %+v", m.Items)
	}
	if keys["media/c-00.png"] != 2 {
		t.Errorf("repeated content presigned %d times, want once per item", keys["media/c-00.png"])
	}
}

func TestManifestService_RuntimeSettings(t *testing.T) {
	tests := []struct {
		stored string
		want   int
	}{
		{"", model.DefaultScrollSpeed},
		{"36", 36},
		{"fast", model.DefaultScrollSpeed},
		{"-4", model.DefaultScrollSpeed},
	}
	for _, tt := range tests {
		f := newManifestFixture(0)
		if tt.stored != "" {
			f.settings.Set(context.Background(), model.SettingScrollSpeed, tt.stored)
		}

		got, err := f.service(1).RuntimeSettings(context.Background())

		if err != nil {
			t.Fatalf("RuntimeSettings: %v", err)
		}
		if got.ScrollSpeed != tt.want {
			t.Errorf("stored %q: scroll speed = %d, want %d", tt.stored, got.ScrollSpeed, tt.want)
		}
	}
}

func TestPlaylistVersion_Deterministic(t *testing.T) {
	id := "pl-9"
	items := []model.ManifestItem{{ID: "a", Sequence: 1, Duration: 5, ContentID: "c", Checksum: "x", URL: "u1"}}
	other := []model.ManifestItem{{ID: "a", Sequence: 1, Duration: 5, ContentID: "c", Checksum: "x", URL: "u2"}}

	v1, _ := PlaylistVersion(&id, 3, model.RuntimeSettings{ScrollSpeed: 24}, items)
	v2, _ := PlaylistVersion(&id, 3, model.RuntimeSettings{ScrollSpeed: 24}, other)
	empty, _ := PlaylistVersion(nil, 3, model.RuntimeSettings{ScrollSpeed: 24}, nil)

	if v1 != v2 {
		t.Error("version must not depend on URLs")
	}
	if len(v1) != 64 {
		t.Errorf("version %q is not a hex SHA-256", v1)
	}
	if empty == v1 {
		t.Error("empty manifest must hash differently")
	}
}

func TestManifestService_Build_SkipsAndLogsInvalidSchedules(t *testing.T) {
	// ARRANGE
	f := newManifestFixture(2)
	f.schedules.listFn = func(context.Context, string) ([]model.Schedule, error) {
		return []model.Schedule{
			{ID: "sch-bad", PlaylistID: "pl-missing", StartTime: "22:00", EndTime: "06:00", Priority: 99, IsActive: true},
			{ID: "sch-1", PlaylistID: "pl-1", StartTime: "00:00", EndTime: "24:00", Priority: 1, IsActive: true},
		}, nil
	}
	logger, hook := logtest.NewNullLogger()
	svc := NewManifestService(f.schedules, f.playlists, f.contents, f.settings, f.storage, f.clock,
		ManifestConfig{Location: time.UTC, ContentURLTTL: time.Hour, PresignWorkers: 2}, logger, nil)

	// ACT
	m, err := svc.Build(context.Background(), f.display)

	// ASSERT
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.PlaylistID == nil || *m.PlaylistID != "pl-1" {
		t.Fatalf("playlistId = %v, want pl-1", m.PlaylistID)
	}
	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Data["schedule_id"] == "sch-bad" {
			warned = true
		}
	}
	if !warned {
		t.Error("invalid schedule should be logged")
	}
}
