package store

import (
	"context"
	"errors"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// AudioStore is the narration catalogue served to clients as POIs.
type AudioStore interface {
	ListAudios(ctx context.Context) ([]model.AudioAsset, error)
	GetAudio(ctx context.Context, id int64) (*model.AudioAsset, error)
	// SaveAudio inserts when a.ID is zero, otherwise replaces the row with that id.
	SaveAudio(ctx context.Context, a *model.AudioAsset) error
}

// NarrationLogStore persists playback lifecycle records.
type NarrationLogStore interface {
	SaveNarrationLog(ctx context.Context, l *model.NarrationLog) error
	// LastPlayedBefore returns the newest playedAt for (deviceID, audioID) strictly before t.
	LastPlayedBefore(ctx context.Context, deviceID string, audioID int64, t time.Time) (time.Time, bool, error)
	// ListNarrationLogs returns one page, newest first, and the total row count.
	ListNarrationLogs(ctx context.Context, offset, limit int) ([]model.NarrationLog, int, error)
}
