package audio

import (
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Speaker is the process-wide sound device.
type Speaker interface {
	Init(sr beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

// SystemSpeaker drives the real device through beep/speaker.
type SystemSpeaker struct{}

func (SystemSpeaker) Init(sr beep.SampleRate, bufferSize int) error { return speaker.Init(sr, bufferSize) }
func (SystemSpeaker) Play(s ...beep.Streamer)                       { speaker.Play(s...) }
func (SystemSpeaker) Clear()                                        { speaker.Clear() }
func (SystemSpeaker) Lock()                                         { speaker.Lock() }
func (SystemSpeaker) Unlock()                                       { speaker.Unlock() }
