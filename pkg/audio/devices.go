package audio

import (
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	preInitOnce sync.Once
	preInitDone = make(chan struct{})
	preInitErr  error
)

// PreInitAudio starts PortAudio initialization in the background so slow
// device enumeration overlaps with connecting and logging in. NewPortAudio
// waits for it.
func PreInitAudio() {
	preInitOnce.Do(func() {
		go func() {
			slog.Debug("pre-initializing PortAudio...")
			if err := portaudio.Initialize(); err != nil {
				preInitErr = err
				slog.Error("pre-init portaudio failed", "err", err)
			}
			slog.Debug("PortAudio pre-init complete")
			close(preInitDone)
		}()
	})
}

// WaitPreInit blocks until the background PreInitAudio completes.
// If PreInitAudio was never called, it triggers it now (blocking).
func WaitPreInit() error {
	PreInitAudio() // ensure the init goroutine has been launched
	<-preInitDone
	return preInitErr
}

// DeviceEntry holds basic info about an audio device.
type DeviceEntry struct {
	Name              string
	MaxInputs         int
	MaxOutputs        int
	DefaultSampleRate float64
	IsDefaultInput    bool
	IsDefaultOutput   bool
}

// ListDevices returns every PortAudio device with its default flags.
func ListDevices() ([]DeviceEntry, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	defer func() { _ = portaudio.Terminate() }()

	defaultIn, _ := portaudio.DefaultInputDevice()
	defaultOut, _ := portaudio.DefaultOutputDevice()
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	result := make([]DeviceEntry, 0, len(devices))
	for _, d := range devices {
		result = append(result, DeviceEntry{
			Name:              d.Name,
			MaxInputs:         d.MaxInputChannels,
			MaxOutputs:        d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefaultInput:    defaultIn != nil && d.Name == defaultIn.Name,
			IsDefaultOutput:   defaultOut != nil && d.Name == defaultOut.Name,
		})
	}
	return result, nil
}

// FindDevice returns the *portaudio.DeviceInfo matching by name, or nil.
func FindDevice(name string) *portaudio.DeviceInfo {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil
	}
	for _, d := range devices {
		if d.Name == name {
			return d
		}
	}
	return nil
}
