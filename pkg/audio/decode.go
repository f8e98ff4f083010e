package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// ErrEmptyClip is returned for a zero-length clip.
var ErrEmptyClip = errors.New("empty audio clip")

// Decode decodes clip bytes, trying MP3 first and WAV second.
func Decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if len(data) == 0 {
		return nil, beep.Format{}, ErrEmptyClip
	}

	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err == nil {
		return streamer, format, nil
	}

	streamer, format, werr := wav.Decode(bytes.NewReader(data))
	if werr != nil {
		return nil, beep.Format{}, fmt.Errorf("unsupported audio format (mp3: %v, wav: %w)", err, werr)
	}
	return streamer, format, nil
}

// Duration returns the playing time of clip bytes.
func Duration(data []byte) (time.Duration, error) {
	s, format, err := Decode(data)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return format.SampleRate.D(s.Len()), nil
}
