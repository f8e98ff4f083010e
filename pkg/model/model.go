package model

import (
	"math"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/geo"
)

// AudioAsset is one catalogue item as served by the POI data source.
// Only ID is mandatory; coordinates, radius and priority are optional.
type AudioAsset struct {
	ID                  int64     `json:"id"`
	Text                string    `json:"text,omitempty"`
	Voice               string    `json:"voice,omitempty"`
	FileName            string    `json:"fileName,omitempty"`
	MimeType            string    `json:"mimeType,omitempty"`
	FileSize            int64     `json:"fileSize,omitempty"`
	FoodName            string    `json:"foodName,omitempty"`
	Price               *float64  `json:"price,omitempty"`
	Description         string    `json:"description,omitempty"`
	ImageURL            string    `json:"imageUrl,omitempty"`
	Latitude            *float64  `json:"latitude"`
	Longitude           *float64  `json:"longitude"`
	Accuracy            *float64  `json:"accuracy,omitempty"`
	TriggerRadiusMeters *float64  `json:"triggerRadiusMeters,omitempty"`
	Priority            *int      `json:"priority,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

// DisplayName returns the food name, falling back to the narration text cut at maxLen runes.
func (a *AudioAsset) DisplayName(maxLen int) string {
	if a.FoodName != "" {
		return a.FoodName
	}
	r := []rune(a.Text)
	if maxLen > 0 && len(r) > maxLen {
		return string(r[:maxLen]) + "..."
	}
	return a.Text
}

// POI is a geofenced narration trigger. It is immutable once loaded.
type POI struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Radius   float64 `json:"radius"` // meters
	Priority int     `json:"priority"`
	AudioID  int64   `json:"audio_id"`
}

// Point returns the POI center.
func (p *POI) Point() geo.Point {
	return geo.Point{Lat: p.Lat, Lon: p.Lon}
}

// HasCoords reports whether both coordinates are usable.
func (p *POI) HasCoords() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon)
}

// TriggerKind tells whether playback was started by the user or by the geofence.
type TriggerKind string

const (
	TriggerUser TriggerKind = "user"
	TriggerAuto TriggerKind = "auto"
)

// PlaybackStatus is the lifecycle status reported to the narration log.
type PlaybackStatus string

const (
	StatusPlaying   PlaybackStatus = "PLAYING"
	StatusCompleted PlaybackStatus = "COMPLETED"
	StatusSkipped   PlaybackStatus = "SKIPPED"
)

// Valid reports whether s is one of the known statuses.
func (s PlaybackStatus) Valid() bool {
	switch s {
	case StatusPlaying, StatusCompleted, StatusSkipped:
		return true
	}
	return false
}

// NarrationLog is one persisted playback lifecycle record.
type NarrationLog struct {
	ID              int64          `json:"id"`
	DeviceID        string         `json:"deviceId"`
	AudioID         int64          `json:"ttsAudioId"`
	AudioName       string         `json:"ttsAudioName,omitempty"`
	PlayedAt        time.Time      `json:"playedAt"`
	DurationSeconds *int           `json:"durationSeconds"`
	Status          PlaybackStatus `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
}
