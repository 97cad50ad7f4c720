package client

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/gowhisper/pkg/audio"
	"github.com/NicolasHaas/gowhisper/pkg/server"
	"github.com/NicolasHaas/gowhisper/pkg/transport"
)

var testFormat = audio.Format{Channels: 1, SampleRate: 8000, FramesPerBlock: 4}

func testOptions() Options {
	return Options{PollInterval: time.Millisecond, Format: testFormat}
}

// spyTransport records sends and serves queued inbound messages.
type spyTransport struct {
	mu     sync.Mutex
	sent   [][]byte
	inbox  [][]byte
	closed bool
}

func (s *spyTransport) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return transport.ErrClosed
	}
	s.sent = append(s.sent, data)
	return nil
}

func (s *spyTransport) Poll() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inbox) > 0 {
		data := s.inbox[0]
		s.inbox = s.inbox[1:]
		return data, true, nil
	}
	if s.closed {
		return nil, false, transport.ErrClosed
	}
	return nil, false, nil
}

func (s *spyTransport) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *spyTransport) push(data []byte) {
	s.mu.Lock()
	s.inbox = append(s.inbox, data)
	s.mu.Unlock()
}

func (s *spyTransport) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// fakeBackend hands out capturers driven by emit and players that pull
// continuously in the background.
type fakeBackend struct {
	mu        sync.Mutex
	capturers []*fakeCapturer
	players   []*fakePlayer
}

func (b *fakeBackend) NewCapturer(f audio.Format) (audio.Capturer, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	c := &fakeCapturer{}
	b.mu.Lock()
	b.capturers = append(b.capturers, c)
	b.mu.Unlock()
	return c, nil
}

func (b *fakeBackend) NewPlayer(f audio.Format) (audio.Player, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	p := &fakePlayer{format: f}
	b.mu.Lock()
	b.players = append(b.players, p)
	b.mu.Unlock()
	return p, nil
}

func (b *fakeBackend) Close() error { return nil }

// capturer returns the most recent capturer.
func (b *fakeBackend) capturer(t *testing.T) *fakeCapturer {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.capturers)
	return b.capturers[len(b.capturers)-1]
}

func (b *fakeBackend) playerList() []*fakePlayer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.players)
}

type fakeCapturer struct {
	mu      sync.Mutex
	onBlock func([]int16)
	stopped bool
}

func (c *fakeCapturer) Start(onBlock func([]int16)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onBlock != nil {
		return audio.ErrRunning
	}
	c.onBlock = onBlock
	return nil
}

func (c *fakeCapturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	return nil
}

// emit delivers block as if the device had captured it.
func (c *fakeCapturer) emit(block []int16) {
	c.mu.Lock()
	cb, stopped := c.onBlock, c.stopped
	c.mu.Unlock()
	if cb != nil && !stopped {
		cb(block)
	}
}

func (c *fakeCapturer) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

type fakePlayer struct {
	format audio.Format

	mu      sync.Mutex
	played  []int16
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

func (p *fakePlayer) Start(fill func([]int16)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return audio.ErrRunning
	}
	p.stop, p.done = make(chan struct{}), make(chan struct{})
	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		out := make([]int16, p.format.BlockSamples())
		for {
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
			}
			fill(out)
			p.mu.Lock()
			p.played = append(p.played, out...)
			p.mu.Unlock()
		}
	}(p.stop, p.done)
	return nil
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stopped = true
	p.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

// audible returns every non-silent sample played so far.
func (p *fakePlayer) audible() []int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []int16
	for _, s := range p.played {
		if s != 0 {
			out = append(out, s)
		}
	}
	return out
}

func (p *fakePlayer) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// startServer runs a server over the memory transport for the test.
func startServer(t *testing.T) *transport.MemoryServer {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.MetricsAddr = ""
	cfg.SeedDemo = false

	mem := transport.NewMemory()
	srv, err := server.New(cfg, server.Dependencies{Transport: mem})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return mem
}

// connect attaches a client to mem and closes it when the test ends.
func connect(t *testing.T, mem *transport.MemoryServer, backend audio.Backend) *Client {
	t.Helper()
	c := New(mem.Dial(), backend, testOptions())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
