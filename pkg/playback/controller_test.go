package playback

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/audio"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
)

type fakeOutput struct {
	plays []uint64
	audio []int64
	stops int
}

func (o *fakeOutput) Play(token uint64, audioID int64) {
	o.plays = append(o.plays, token)
	o.audio = append(o.audio, audioID)
}

func (o *fakeOutput) Stop() { o.stops++ }

func (o *fakeOutput) lastToken() uint64 { return o.plays[len(o.plays)-1] }

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func setup() (*Controller, *fakeOutput, *clock, *[]Event) {
	out := &fakeOutput{}
	clk := &clock{t: time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC)}
	c := NewController(out)
	c.now = clk.now
	var events []Event
	c.OnEvent(func(e Event) { events = append(events, e) })
	return c, out, clk, &events
}

func poi(id int64) model.POI {
	return model.POI{ID: id, AudioID: id, Name: "POI", Radius: 30, Priority: 1000 - int(id)}
}

func started(out *fakeOutput, d time.Duration) audio.Event {
	return audio.Event{Token: out.lastToken(), Kind: audio.EventStarted, Duration: d}
}

func TestController_AutoPlayToCompletion(t *testing.T) {
	c, out, clk, events := setup()

	require.True(t, c.RequestPlay(poi(7), model.TriggerAuto))
	assert.Equal(t, StateLoading, c.State())
	assert.Equal(t, []int64{7}, out.audio)

	c.HandleMedia(started(out, 42*time.Second))
	assert.Equal(t, StatePlaying, c.State())
	require.Len(t, *events, 1)
	assert.Equal(t, model.StatusPlaying, (*events)[0].Status)
	assert.Nil(t, (*events)[0].DurationSeconds)
	assert.Equal(t, model.TriggerAuto, (*events)[0].Session.Kind)

	clk.advance(40 * time.Second)
	c.HandleMedia(audio.Event{Token: out.lastToken(), Kind: audio.EventEnded, Duration: 42 * time.Second})
	assert.Equal(t, StateIdle, c.State())
	require.Len(t, *events, 2)
	done := (*events)[1]
	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.DurationSeconds)
	assert.Equal(t, 42, *done.DurationSeconds, "completion reports the media duration")
	assert.False(t, c.Snapshot().UserPaused)
}

func TestController_CompletedFallsBackToElapsed(t *testing.T) {
	c, out, clk, events := setup()
	c.RequestPlay(poi(1), model.TriggerUser)
	c.HandleMedia(started(out, 0))
	clk.advance(13 * time.Second)
	c.HandleMedia(audio.Event{Token: out.lastToken(), Kind: audio.EventEnded})

	assert.Equal(t, 13, *(*events)[1].DurationSeconds)
}

func TestController_UserPause(t *testing.T) {
	c, out, clk, events := setup()
	c.RequestPlay(poi(7), model.TriggerAuto)
	c.HandleMedia(started(out, time.Minute))
	clk.advance(12400 * time.Millisecond)

	c.UserPause()
	assert.Equal(t, StatePausedByUser, c.State())
	assert.True(t, c.Snapshot().UserPaused)
	assert.Equal(t, 1, out.stops)

	require.Len(t, *events, 2)
	skipped := (*events)[1]
	assert.Equal(t, model.StatusSkipped, skipped.Status)
	assert.Equal(t, 12, *skipped.DurationSeconds)
	_, open := c.Current()
	assert.False(t, open)
}

func TestController_UserPauseSuppressesAuto(t *testing.T) {
	c, out, _, _ := setup()
	c.UserPause()
	assert.Equal(t, StatePausedByUser, c.State())

	// Automatic requests for any POI are no-ops
	assert.False(t, c.RequestPlay(poi(1), model.TriggerAuto))
	assert.False(t, c.RequestPlay(poi(2), model.TriggerAuto))
	assert.Empty(t, out.plays)

	// A manual request for any POI loads and clears the flag
	assert.True(t, c.RequestPlay(poi(3), model.TriggerUser))
	assert.Equal(t, StateLoading, c.State())
	assert.False(t, c.Snapshot().UserPaused)
}

func TestController_LeftRadius(t *testing.T) {
	c, out, clk, events := setup()
	c.RequestPlay(poi(7), model.TriggerAuto)
	c.HandleMedia(started(out, time.Minute))
	clk.advance(5 * time.Second)

	assert.False(t, c.NotifyLeftRadius(8), "another POI leaving is irrelevant")
	assert.Equal(t, StatePlaying, c.State())

	assert.True(t, c.NotifyLeftRadius(7))
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Snapshot().UserPaused)
	assert.Equal(t, model.StatusSkipped, (*events)[1].Status)
	assert.Equal(t, 5, *(*events)[1].DurationSeconds)

	// Auto play stays enabled
	assert.True(t, c.RequestPlay(poi(9), model.TriggerAuto))
}

func TestController_LeftRadiusWhileLoading(t *testing.T) {
	c, out, _, events := setup()
	c.RequestPlay(poi(7), model.TriggerAuto)
	assert.True(t, c.NotifyLeftRadius(7))
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, out.stops)
	assert.Empty(t, *events)
}

func TestController_MediaError(t *testing.T) {
	tests := []struct {
		name      string
		kind      model.TriggerKind
		wantError bool
	}{
		{name: "AutoIsSilent", kind: model.TriggerAuto, wantError: false},
		{name: "UserIsSurfaced", kind: model.TriggerUser, wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out, _, events := setup()
			c.RequestPlay(poi(1), tt.kind)
			c.HandleMedia(audio.Event{Token: out.lastToken(), Kind: audio.EventError, Err: errors.New("decode failed")})

			assert.Equal(t, StateIdle, c.State())
			assert.Empty(t, *events, "no session was opened")
			assert.Equal(t, tt.wantError, c.Snapshot().LastError != "")
		})
	}
}

func TestController_MediaErrorWhilePlaying(t *testing.T) {
	c, out, _, events := setup()
	c.RequestPlay(poi(1), model.TriggerAuto)
	c.HandleMedia(started(out, time.Minute))
	c.HandleMedia(audio.Event{Token: out.lastToken(), Kind: audio.EventError, Err: errors.New("device lost")})

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, model.StatusSkipped, (*events)[1].Status)
}

func TestController_StaleMediaEvents(t *testing.T) {
	c, out, _, events := setup()
	c.RequestPlay(poi(1), model.TriggerUser)
	first := out.lastToken()
	c.RequestPlay(poi(2), model.TriggerUser) // last request wins

	c.HandleMedia(audio.Event{Token: first, Kind: audio.EventStarted})
	assert.Equal(t, StateLoading, c.State())
	assert.Empty(t, *events)

	c.HandleMedia(started(out, time.Minute))
	sess, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, int64(2), sess.POI.ID)
}

func TestController_UserPreemptsAutoDoesNot(t *testing.T) {
	c, out, clk, events := setup()
	c.RequestPlay(poi(1), model.TriggerAuto)
	c.HandleMedia(started(out, time.Minute))

	assert.False(t, c.RequestPlay(poi(2), model.TriggerAuto))
	sess, _ := c.Current()
	assert.Equal(t, int64(1), sess.POI.ID)

	clk.advance(3 * time.Second)
	assert.True(t, c.RequestPlay(poi(2), model.TriggerUser))
	require.Len(t, *events, 2)
	assert.Equal(t, model.StatusSkipped, (*events)[1].Status)
	assert.Equal(t, int64(1), (*events)[1].Session.POI.ID)
	assert.Equal(t, StateLoading, c.State())
	_, open := c.Current()
	assert.False(t, open)
}

func TestController_Teardown(t *testing.T) {
	c, out, _, events := setup()
	c.RequestPlay(poi(1), model.TriggerAuto)
	c.HandleMedia(started(out, time.Minute))
	token := out.lastToken()

	c.Teardown()
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, model.StatusSkipped, (*events)[1].Status)
	assert.Equal(t, 1, out.stops)

	// Late events from the detached source change nothing
	c.HandleMedia(audio.Event{Token: token, Kind: audio.EventEnded})
	assert.Len(t, *events, 2)
}

// Random command sequences never leave more than one session open, and the
// open session always matches the Playing state.
func TestController_SingleSessionInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	c, out, clk, events := setup()

	open := 0
	c.OnEvent(func(e Event) {
		switch e.Status {
		case model.StatusPlaying:
			open++
		default:
			open--
		}
		assert.LessOrEqual(t, open, 1)
		assert.GreaterOrEqual(t, open, 0)
	})

	for i := 0; i < 5000; i++ {
		clk.advance(time.Duration(rng.Intn(5000)) * time.Millisecond)
		id := int64(rng.Intn(4) + 1)
		switch rng.Intn(8) {
		case 0:
			c.RequestPlay(poi(id), model.TriggerAuto)
		case 1:
			c.RequestPlay(poi(id), model.TriggerUser)
		case 2:
			c.UserPause()
		case 3:
			c.NotifyLeftRadius(id)
		case 4, 5:
			if len(out.plays) > 0 {
				// Sometimes deliver for an older token
				tok := out.plays[rng.Intn(len(out.plays))]
				c.HandleMedia(audio.Event{Token: tok, Kind: audio.EventStarted, Duration: time.Minute})
			}
		case 6:
			if len(out.plays) > 0 {
				c.HandleMedia(audio.Event{Token: out.lastToken(), Kind: audio.EventEnded})
			}
		case 7:
			if len(out.plays) > 0 {
				c.HandleMedia(audio.Event{Token: out.lastToken(), Kind: audio.EventError, Err: errors.New("x")})
			}
		}

		snap := c.Snapshot()
		assert.Equal(t, snap.State == StatePlaying, snap.Session != nil, "step %d", i)
		assert.Equal(t, snap.State == StateLoading, snap.Pending != nil, "step %d", i)
		if snap.UserPaused {
			assert.Equal(t, StatePausedByUser, snap.State, "step %d", i)
		}
	}
	assert.NotEmpty(t, *events)
}
