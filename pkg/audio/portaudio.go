package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioBackend opens callback streams on PortAudio devices.
type PortAudioBackend struct {
	inputDevice  string // empty = default
	outputDevice string // empty = default
}

// NewPortAudio initializes PortAudio (waiting for PreInitAudio if it was
// started) and returns a backend bound to the named devices.
func NewPortAudio(inputDevice, outputDevice string) (*PortAudioBackend, error) {
	if err := WaitPreInit(); err != nil {
		return nil, fmt.Errorf("audio: init portaudio: %w", err)
	}
	return &PortAudioBackend{inputDevice: inputDevice, outputDevice: outputDevice}, nil
}

func (b *PortAudioBackend) NewCapturer(f Format) (Capturer, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &paCapturer{format: f, deviceName: b.inputDevice}, nil
}

func (b *PortAudioBackend) NewPlayer(f Format) (Player, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &paPlayer{format: f, deviceName: b.outputDevice}, nil
}

// Close releases PortAudio.
func (b *PortAudioBackend) Close() error {
	return portaudio.Terminate()
}

// paCapturer captures from an input device.
type paCapturer struct {
	format     Format
	deviceName string

	mu     sync.Mutex
	stream *portaudio.Stream
}

func (c *paCapturer) Start(onBlock func(block []int16)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return ErrRunning
	}

	var input *portaudio.DeviceInfo
	if c.deviceName != "" {
		input = FindDevice(c.deviceName)
	}
	if input == nil {
		var err error
		input, err = portaudio.DefaultInputDevice()
		if err != nil {
			return fmt.Errorf("audio: no input device: %w", err)
		}
	}

	// Build input-only stream parameters
	params := portaudio.LowLatencyParameters(input, nil)
	params.Input.Channels = c.format.Channels
	params.Output.Device = nil
	params.Output.Channels = 0
	params.SampleRate = float64(c.format.SampleRate)
	params.FramesPerBuffer = c.format.FramesPerBlock

	stream, err := portaudio.OpenStream(params, func(in []int16) { onBlock(in) })
	if err != nil {
		return fmt.Errorf("audio: open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("audio: start capture: %w", err)
	}

	c.stream = stream
	slog.Debug("audio capture started", "device", input.Name,
		"rate", c.format.SampleRate, "channels", c.format.Channels)
	return nil
}

func (c *paCapturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return stopStream(&c.stream)
}

// paPlayer plays to an output device.
type paPlayer struct {
	format     Format
	deviceName string

	mu     sync.Mutex
	stream *portaudio.Stream
}

func (p *paPlayer) Start(fill func(out []int16)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		return ErrRunning
	}

	var output *portaudio.DeviceInfo
	if p.deviceName != "" {
		output = FindDevice(p.deviceName)
	}
	if output == nil {
		var err error
		output, err = portaudio.DefaultOutputDevice()
		if err != nil {
			return fmt.Errorf("audio: no output device: %w", err)
		}
	}

	// Build output-only stream parameters
	params := portaudio.LowLatencyParameters(nil, output)
	params.Output.Channels = p.format.Channels
	params.Input.Device = nil
	params.Input.Channels = 0
	params.SampleRate = float64(p.format.SampleRate)
	params.FramesPerBuffer = p.format.FramesPerBlock

	stream, err := portaudio.OpenStream(params, func(out []int16) { fill(out) })
	if err != nil {
		return fmt.Errorf("audio: open playback stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("audio: start playback: %w", err)
	}

	p.stream = stream
	slog.Debug("audio playback started", "device", output.Name,
		"rate", p.format.SampleRate, "channels", p.format.Channels)
	return nil
}

func (p *paPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return stopStream(&p.stream)
}

func stopStream(s **portaudio.Stream) error {
	if *s == nil {
		return nil
	}
	stream := *s
	*s = nil
	if err := stream.Stop(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("audio: stop stream: %w", err)
	}
	return stream.Close()
}
