// Package audio provides callback-driven PCM capture and playback units, a
// PortAudio backend, a null backend for headless use and a silence gate.
package audio

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrRunning    = errors.New("audio: already running")
	ErrBadFormat  = errors.New("audio: invalid format")
	ErrNoBackend  = errors.New("audio: unknown backend")
	ErrNotRunning = errors.New("audio: not running")
)

// Backend names accepted by Open.
const (
	BackendPortAudio = "portaudio"
	BackendNull      = "null"
)

// Format describes an interleaved int16 PCM stream.
type Format struct {
	Channels       int
	SampleRate     int
	FramesPerBlock int // frames delivered per callback
}

// DefaultFormat is mono 16 kHz in 20ms blocks.
var DefaultFormat = Format{Channels: 1, SampleRate: 16000, FramesPerBlock: 320}

// Validate checks f for usable values.
func (f Format) Validate() error {
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("%w: channels %d", ErrBadFormat, f.Channels)
	}
	if f.SampleRate < 8000 || f.SampleRate > 192000 {
		return fmt.Errorf("%w: sample rate %d", ErrBadFormat, f.SampleRate)
	}
	if f.FramesPerBlock < 1 {
		return fmt.Errorf("%w: frames per block %d", ErrBadFormat, f.FramesPerBlock)
	}
	return nil
}

// BlockSamples is the number of int16 values in one block.
func (f Format) BlockSamples() int { return f.Channels * f.FramesPerBlock }

// Capturer delivers captured blocks to a callback running on the audio
// thread. The callback must copy the block if it keeps it.
type Capturer interface {
	Start(onBlock func(block []int16)) error
	Stop() error
}

// Player pulls blocks to play. fill must write exactly len(out) samples,
// padding with silence when starved.
type Player interface {
	Start(fill func(out []int16)) error
	Stop() error
}

// Backend opens capture and playback units.
type Backend interface {
	NewCapturer(f Format) (Capturer, error)
	NewPlayer(f Format) (Player, error)
	Close() error
}

// Open returns the named backend. Device names may be empty for the system
// default and are ignored by the null backend.
func Open(name, inputDevice, outputDevice string) (Backend, error) {
	switch name {
	case BackendPortAudio, "":
		b, err := NewPortAudio(inputDevice, outputDevice)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendNull:
		return NewNull(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoBackend, name)
}

// RMS computes the root mean square of a block.
func RMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
