package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/db"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
)

// setupTestStore creates a test database and store for each test.
func setupTestStore(t *testing.T) (*SQLiteStore, func()) {
	t.Helper()
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	d, err := db.Init(dbPath)
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}

	store := NewSQLiteStore(d)
	cleanup := func() { d.Close() }
	return store, cleanup
}

func fp(f float64) *float64 { return &f }
func ip(i int) *int         { return &i }

// =============================================================================
// AudioStore Tests
// =============================================================================

func TestAudioStore_SaveAndGet(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	a := &model.AudioAsset{
		Text:                "Phở bò Nam Định",
		FoodName:            "Phở bò",
		MimeType:            "audio/mpeg",
		FileName:            "pho.mp3",
		Latitude:            fp(10.0),
		Longitude:           fp(106.0),
		TriggerRadiusMeters: fp(30),
		Priority:            ip(5),
	}
	if err := s.SaveAudio(ctx, a); err != nil {
		t.Fatalf("SaveAudio failed: %v", err)
	}
	if a.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	got, err := s.GetAudio(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAudio failed: %v", err)
	}
	if got.FoodName != "Phở bò" || got.MimeType != "audio/mpeg" {
		t.Errorf("unexpected row %+v", got)
	}
	if got.Latitude == nil || *got.Latitude != 10.0 {
		t.Errorf("latitude = %v", got.Latitude)
	}
	if got.Accuracy != nil {
		t.Errorf("expected nil accuracy, got %v", *got.Accuracy)
	}
	if got.Priority == nil || *got.Priority != 5 {
		t.Errorf("priority = %v", got.Priority)
	}

	// Update in place
	got.FoodName = "Phở gà"
	got.Latitude = nil
	if err := s.SaveAudio(ctx, got); err != nil {
		t.Fatal(err)
	}
	again, err := s.GetAudio(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.FoodName != "Phở gà" || again.Latitude != nil {
		t.Errorf("update not applied: %+v", again)
	}
}

func TestAudioStore_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	if _, err := s.GetAudio(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAudioStore_ListNewestFirst(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		a := &model.AudioAsset{Text: "clip", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.SaveAudio(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListAudios(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(list))
	}
	if list[0].ID != 3 || list[2].ID != 1 {
		t.Errorf("expected newest first, got ids %d..%d", list[0].ID, list[2].ID)
	}
}

// =============================================================================
// NarrationLogStore Tests
// =============================================================================

func TestNarrationLogStore_LastPlayedBefore(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(time.Now().UnixMilli())

	tests := []struct {
		name     string
		setup    func(s *SQLiteStore)
		device   string
		audioID  int64
		wantOK   bool
		wantTime time.Time
	}{
		{
			name:   "no rows",
			setup:  func(s *SQLiteStore) {},
			device: "dev-a", audioID: 1,
			wantOK: false,
		},
		{
			name: "latest of several",
			setup: func(s *SQLiteStore) {
				for _, ago := range []time.Duration{10 * time.Minute, 2 * time.Minute, 30 * time.Minute} {
					_ = s.SaveNarrationLog(ctx, &model.NarrationLog{DeviceID: "dev-a", AudioID: 1, PlayedAt: now.Add(-ago), Status: model.StatusPlaying})
				}
			},
			device: "dev-a", audioID: 1,
			wantOK: true, wantTime: now.Add(-2 * time.Minute),
		},
		{
			name: "future rows ignored",
			setup: func(s *SQLiteStore) {
				_ = s.SaveNarrationLog(ctx, &model.NarrationLog{DeviceID: "dev-a", AudioID: 1, PlayedAt: now.Add(time.Minute), Status: model.StatusPlaying})
			},
			device: "dev-a", audioID: 1,
			wantOK: false,
		},
		{
			name: "other device and audio ignored",
			setup: func(s *SQLiteStore) {
				_ = s.SaveNarrationLog(ctx, &model.NarrationLog{DeviceID: "dev-b", AudioID: 1, PlayedAt: now.Add(-time.Minute), Status: model.StatusPlaying})
				_ = s.SaveNarrationLog(ctx, &model.NarrationLog{DeviceID: "dev-a", AudioID: 2, PlayedAt: now.Add(-time.Minute), Status: model.StatusPlaying})
			},
			device: "dev-a", audioID: 1,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, cleanup := setupTestStore(t)
			defer cleanup()
			tt.setup(s)

			got, ok, err := s.LastPlayedBefore(ctx, tt.device, tt.audioID, now)
			if err != nil {
				t.Fatalf("LastPlayedBefore failed: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.wantTime) {
				t.Errorf("got %v, want %v", got, tt.wantTime)
			}
		})
	}
}

func TestNarrationLogStore_ListPaged(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	named := &model.AudioAsset{FoodName: "Bánh mì", Text: "ignored"}
	long := &model.AudioAsset{Text: strings.Repeat("x", 60)}
	for _, a := range []*model.AudioAsset{named, long} {
		if err := s.SaveAudio(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	start := time.Now().Add(-time.Hour)
	dur := 12
	for i := 0; i < 5; i++ {
		audio := named.ID
		if i%2 == 1 {
			audio = long.ID
		}
		l := &model.NarrationLog{
			DeviceID: "dev-a",
			AudioID:  audio,
			PlayedAt: start.Add(time.Duration(i) * time.Minute),
			Status:   model.StatusCompleted,
		}
		if i == 4 {
			l.DurationSeconds = &dur
		}
		if err := s.SaveNarrationLog(ctx, l); err != nil {
			t.Fatal(err)
		}
	}

	page, total, err := s.ListNarrationLogs(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Fatalf("page len = %d, want 2", len(page))
	}
	// Newest first: i=4 (named), then i=3 (long)
	if page[0].AudioName != "Bánh mì" {
		t.Errorf("AudioName = %q", page[0].AudioName)
	}
	if page[0].DurationSeconds == nil || *page[0].DurationSeconds != 12 {
		t.Errorf("DurationSeconds = %v", page[0].DurationSeconds)
	}
	if page[1].AudioName != strings.Repeat("x", 50)+"..." {
		t.Errorf("expected truncated name, got %q", page[1].AudioName)
	}
	if page[1].DurationSeconds != nil {
		t.Errorf("expected nil duration")
	}

	last, _, err := s.ListNarrationLogs(ctx, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 1 {
		t.Errorf("last page len = %d, want 1", len(last))
	}
}
