package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSpeaker drains streamers on a goroutine at roughly real time / 10.
type fakeSpeaker struct {
	mu      sync.Mutex
	initErr error
	inits   int
	gen     int
	clears  int
}

func (s *fakeSpeaker) Init(sr beep.SampleRate, bufferSize int) error {
	s.inits++
	return s.initErr
}

func (s *fakeSpeaker) Play(streamers ...beep.Streamer) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	go func() {
		buf := make([][2]float64, 512)
		for _, st := range streamers {
			for {
				s.mu.Lock()
				if s.gen != gen {
					s.mu.Unlock()
					return
				}
				n, ok := st.Stream(buf)
				s.mu.Unlock()
				if !ok || n == 0 {
					break
				}
				time.Sleep(time.Millisecond)
			}
		}
	}()
}

func (s *fakeSpeaker) Clear() {
	s.mu.Lock()
	s.gen++
	s.clears++
	s.mu.Unlock()
}

func (s *fakeSpeaker) Lock()   { s.mu.Lock() }
func (s *fakeSpeaker) Unlock() { s.mu.Unlock() }

type mapFetcher struct {
	clips map[int64][]byte
	delay time.Duration
}

func (f *mapFetcher) Fetch(ctx context.Context, id int64) ([]byte, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	data, ok := f.clips[id]
	if !ok {
		return nil, ErrClipNotFound
	}
	return data, nil
}

// testClip renders n samples of silence as a mono 16-bit WAV.
func testClip(t *testing.T, n int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	left := n
	silence := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if left <= 0 {
			return 0, false
		}
		k := min(len(samples), left)
		for i := range samples[:k] {
			samples[i] = [2]float64{}
		}
		left -= k
		return k, true
	})
	require.NoError(t, wav.Encode(f, silence, beep.Format{SampleRate: 44100, NumChannels: 1, Precision: 2}))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []EventKind
	for _, e := range l.events {
		out = append(out, e.Kind)
	}
	return out
}

func (l *eventLog) last() Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

func TestDecode(t *testing.T) {
	clip := testClip(t, 4410)
	d, err := Duration(clip)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, d)

	_, _, err = Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyClip)

	_, _, err = Decode([]byte("definitely not audio"))
	assert.Error(t, err)
}

func TestManager_PlayToEnd(t *testing.T) {
	sp := &fakeSpeaker{}
	m := New(&mapFetcher{clips: map[int64][]byte{7: testClip(t, 4410)}}, sp, 44100)
	log := &eventLog{}
	m.SetSink(log.add)

	m.Play(1, 7)
	require.Eventually(t, func() bool { return len(log.kinds()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []EventKind{EventStarted, EventEnded}, log.kinds())

	ended := log.last()
	assert.Equal(t, uint64(1), ended.Token)
	assert.Equal(t, int64(7), ended.AudioID)
	assert.Equal(t, 100*time.Millisecond, ended.Duration)
	assert.False(t, m.IsPlaying())
	assert.Equal(t, 1, sp.inits)
}

func TestManager_FetchError(t *testing.T) {
	m := New(&mapFetcher{clips: map[int64][]byte{}}, &fakeSpeaker{}, 44100)
	log := &eventLog{}
	m.SetSink(log.add)

	m.Play(3, 99)
	require.Eventually(t, func() bool { return len(log.kinds()) == 1 }, time.Second, 5*time.Millisecond)
	e := log.last()
	assert.Equal(t, EventError, e.Kind)
	assert.Equal(t, uint64(3), e.Token)
	assert.ErrorIs(t, e.Err, ErrClipNotFound)
}

func TestManager_SpeakerUnavailable(t *testing.T) {
	sp := &fakeSpeaker{initErr: errors.New("no device")}
	m := New(&mapFetcher{clips: map[int64][]byte{1: testClip(t, 441)}}, sp, 44100)
	log := &eventLog{}
	m.SetSink(log.add)

	m.Play(1, 1)
	require.Eventually(t, func() bool { return len(log.kinds()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, EventError, log.last().Kind)
}

func TestManager_LastRequestWins(t *testing.T) {
	long := testClip(t, 44100*5)
	f := &mapFetcher{clips: map[int64][]byte{1: long, 2: testClip(t, 441)}, delay: 20 * time.Millisecond}
	m := New(f, &fakeSpeaker{}, 44100)
	log := &eventLog{}
	m.SetSink(log.add)

	m.Play(1, 1)
	m.Play(2, 2) // cancels the first load

	require.Eventually(t, func() bool { return len(log.kinds()) == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	log.mu.Lock()
	defer log.mu.Unlock()
	for _, e := range log.events {
		assert.Equal(t, uint64(2), e.Token, "events of a superseded source must not surface")
	}
}

func TestManager_StopSilencesEvents(t *testing.T) {
	sp := &fakeSpeaker{}
	m := New(&mapFetcher{clips: map[int64][]byte{1: testClip(t, 44100*5)}}, sp, 44100)
	log := &eventLog{}
	m.SetSink(log.add)

	m.Play(1, 1)
	require.Eventually(t, func() bool { return m.IsPlaying() }, time.Second, 5*time.Millisecond)

	m.Stop()
	assert.False(t, m.IsPlaying())
	assert.Equal(t, 0, int(m.Duration()))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []EventKind{EventStarted}, log.kinds())
	assert.GreaterOrEqual(t, sp.clears, 1)
}

func TestManager_Volume(t *testing.T) {
	m := New(&mapFetcher{}, &fakeSpeaker{}, 0)
	assert.Equal(t, 1.0, m.Volume())

	tests := []struct {
		in, want float64
	}{
		{0.5, 0.5},
		{-0.5, 0},
		{1.5, 1},
	}
	for _, tt := range tests {
		m.SetVolume(tt.in)
		assert.Equal(t, tt.want, m.Volume())
	}

	exp, silent := gain(0)
	assert.True(t, silent)
	assert.Equal(t, -10.0, exp)
	exp, silent = gain(0.5)
	assert.False(t, silent)
	assert.Equal(t, -1.0, exp)
	exp, _ = gain(1)
	assert.Equal(t, 0.0, exp)
}
