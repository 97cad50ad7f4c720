package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// NullBackend runs capture and playback units without hardware. Capturers
// deliver silent blocks and players pull and discard blocks, both at the
// real-time pace of their format.
type NullBackend struct {
	played atomic.Int64
}

// NewNull returns a null backend.
func NewNull() *NullBackend { return &NullBackend{} }

func (b *NullBackend) NewCapturer(f Format) (Capturer, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &nullUnit{format: f}, nil
}

func (b *NullBackend) NewPlayer(f Format) (Player, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &nullUnit{format: f, played: &b.played}, nil
}

// Played returns the number of samples every player of b has pulled.
func (b *NullBackend) Played() int64 { return b.played.Load() }

func (b *NullBackend) Close() error { return nil }

type nullUnit struct {
	format Format
	played *atomic.Int64

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func (u *nullUnit) Start(cb func(block []int16)) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stop != nil {
		return ErrRunning
	}
	u.stop = make(chan struct{})
	u.done = make(chan struct{})
	go u.run(cb, u.stop, u.done)
	return nil
}

func (u *nullUnit) run(cb func([]int16), stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := time.Duration(u.format.FramesPerBlock) * time.Second / time.Duration(u.format.SampleRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	block := make([]int16, u.format.BlockSamples())
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			clear(block)
			cb(block)
			if u.played != nil {
				u.played.Add(int64(len(block)))
			}
		}
	}
}

// Stop halts the unit and waits for its callback to return.
func (u *nullUnit) Stop() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stop == nil {
		return nil
	}
	close(u.stop)
	<-u.done
	u.stop, u.done = nil, nil
	return nil
}
