// Package gate asks whether an automatic narration may play now, so a POI is
// not narrated again every time GPS jitter re-resolves it.
package gate

import (
	"context"
	"errors"
	"time"
)

// Reasons returned with a decision.
const (
	ReasonRecentlyPlayed = "RECENTLY_PLAYED"
	ReasonGateOff        = "GATE_OFF"
)

// ErrUnknownAudio is returned when the checked audio id does not exist.
var ErrUnknownAudio = errors.New("unknown audio id")

// Request is the check-narration payload.
type Request struct {
	DeviceID        string `json:"deviceId"`
	AudioID         int64  `json:"ttsAudioId"`
	ClientTimestamp int64  `json:"clientTimestamp"` // epoch millis
}

// NewRequest stamps a check for audioID at t.
func NewRequest(deviceID string, audioID int64, t time.Time) Request {
	return Request{DeviceID: deviceID, AudioID: audioID, ClientTimestamp: t.UnixMilli()}
}

// Decision is the check-narration answer.
type Decision struct {
	ShouldPlay bool   `json:"shouldPlay"`
	Reason     string `json:"reason,omitempty"`
}

// Gate decides whether automatic playback is still warranted.
type Gate interface {
	Check(ctx context.Context, req Request) (Decision, error)
}

// Always approves every request. It backs the "off" gate mode.
type Always struct{}

// Check implements Gate.
func (Always) Check(context.Context, Request) (Decision, error) {
	return Decision{ShouldPlay: true, Reason: ReasonGateOff}, nil
}
