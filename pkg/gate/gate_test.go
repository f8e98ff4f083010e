package gate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/config"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/db"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/metrics"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/request"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/store"
)

func testClient() *request.Client {
	return request.New(nil, nil, request.ClientConfig{
		Name:      "gate",
		Retries:   1,
		Timeout:   2 * time.Second,
		BaseDelay: time.Millisecond,
		MaxDelay:  time.Millisecond,
	})
}

func TestNewRequest(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	req := NewRequest("web-1-abc", 7, ts)
	assert.Equal(t, Request{DeviceID: "web-1-abc", AudioID: 7, ClientTimestamp: 1700000000123}, req)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"deviceId":"web-1-abc","ttsAudioId":7,"clientTimestamp":1700000000123}`, string(raw))
}

func TestClient_Check(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    Decision
		wantErr bool
	}{
		{name: "Plain", status: 200, body: `{"shouldPlay":true}`, want: Decision{ShouldPlay: true}},
		{name: "Envelope", status: 200, body: `{"statusCode":200,"message":"ok","data":{"shouldPlay":false,"reason":"RECENTLY_PLAYED"}}`, want: Decision{ShouldPlay: false, Reason: ReasonRecentlyPlayed}},
		{name: "BadRequest", status: 400, body: `{"message":"unknown"}`, wantErr: true},
		{name: "Garbage", status: 200, body: `<html>`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Request
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(testClient(), srv.URL+"/api/v1/app/narration/check")
			d, err := c.Check(context.Background(), NewRequest("dev", 7, time.UnixMilli(42)))
			assert.Equal(t, int64(7), got.AudioID)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestAlways(t *testing.T) {
	d, err := Always{}.Check(context.Background(), Request{})
	require.NoError(t, err)
	assert.True(t, d.ShouldPlay)
}

func setupService(t *testing.T) (*Service, *store.SQLiteStore, int64) {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "gate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	st := store.NewSQLiteStore(d)
	a := &model.AudioAsset{Text: "Bánh mì Huỳnh Hoa", FoodName: "Bánh mì"}
	require.NoError(t, st.SaveAudio(context.Background(), a))
	return NewService(st, FixedCooldown(5*time.Minute)), st, a.ID
}

func TestService_Check(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		playedAt []time.Time
		want     Decision
	}{
		{name: "NeverPlayed", want: Decision{ShouldPlay: true}},
		{name: "WithinCooldown", playedAt: []time.Time{now.Add(-2 * time.Minute)}, want: Decision{ShouldPlay: false, Reason: ReasonRecentlyPlayed}},
		{name: "CooldownElapsed", playedAt: []time.Time{now.Add(-6 * time.Minute)}, want: Decision{ShouldPlay: true}},
		{name: "ExactlyAtCooldown", playedAt: []time.Time{now.Add(-5 * time.Minute)}, want: Decision{ShouldPlay: false, Reason: ReasonRecentlyPlayed}},
		{name: "FutureLogIgnored", playedAt: []time.Time{now.Add(time.Minute)}, want: Decision{ShouldPlay: true}},
		{name: "NewestWins", playedAt: []time.Time{now.Add(-time.Hour), now.Add(-time.Minute)}, want: Decision{ShouldPlay: false, Reason: ReasonRecentlyPlayed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, audioID := setupService(t)
			svc.now = func() time.Time { return now }
			for _, p := range tt.playedAt {
				require.NoError(t, st.SaveNarrationLog(ctx, &model.NarrationLog{
					DeviceID: "dev", AudioID: audioID, PlayedAt: p, Status: model.StatusPlaying,
				}))
			}
			d, err := svc.Check(ctx, NewRequest("dev", audioID, now))
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)

			// Other devices are unaffected
			d, err = svc.Check(ctx, NewRequest("other", audioID, now))
			require.NoError(t, err)
			assert.True(t, d.ShouldPlay)
		})
	}
}

func TestService_UnknownAudio(t *testing.T) {
	svc, _, _ := setupService(t)
	_, err := svc.Check(context.Background(), NewRequest("dev", 999, time.Now()))
	assert.ErrorIs(t, err, ErrUnknownAudio)
}

type stubGate struct {
	d   Decision
	err error
}

func (s stubGate) Check(context.Context, Request) (Decision, error) { return s.d, s.err }

func TestPolicy_Allow(t *testing.T) {
	failing := stubGate{err: errors.New("connection refused")}
	tests := []struct {
		name    string
		gate    Gate
		policy  string
		want    bool
		counter string
	}{
		{name: "Approved", gate: stubGate{d: Decision{ShouldPlay: true}}, policy: config.FailClosed, want: true, counter: "gate.play"},
		{name: "Denied", gate: stubGate{d: Decision{Reason: ReasonRecentlyPlayed}}, policy: config.FailOpen, want: false, counter: "gate.deny"},
		{name: "FailClosed", gate: failing, policy: config.FailClosed, want: false, counter: "gate.error_closed"},
		{name: "FailOpen", gate: failing, policy: config.FailOpen, want: true, counter: "gate.error_open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New(false)
			p := NewPolicy(tt.gate, func(context.Context) string { return tt.policy }, m)
			assert.Equal(t, tt.want, p.Allow(context.Background(), Request{AudioID: 1}))
			assert.Equal(t, int64(1), m.Snapshot()[tt.counter])
		})
	}
}

func TestPolicy_DefaultsToFailClosed(t *testing.T) {
	p := NewPolicy(stubGate{err: errors.New("boom")}, nil, nil)
	assert.False(t, p.Allow(context.Background(), Request{}))
}
