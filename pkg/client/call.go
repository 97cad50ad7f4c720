package client

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NicolasHaas/gowhisper/pkg/audio"
	"github.com/NicolasHaas/gowhisper/pkg/model"
	"github.com/NicolasHaas/gowhisper/pkg/protocol"
)

// call is one active group call: a capture unit feeding an outbound queue
// drained to the network, and one playback unit per remote sender.
type call struct {
	group   string
	format  audio.Format
	backend audio.Backend
	poll    time.Duration
	send    func(samples []int16) error

	capture  audio.Capturer
	outbound *SampleQueue
	gate     *audio.Gate // nil = send every block

	active    atomic.Bool
	rejected  atomic.Bool
	drainDone chan struct{}
	sent      atomic.Int64

	peersMu sync.Mutex
	peers   map[string]*peerUnit
}

// peerUnit plays one sender's stream.
type peerUnit struct {
	queue  *SampleQueue
	player audio.Player // nil if the device could not be opened
}

func (p *peerUnit) fill(out []int16) {
	n := p.queue.Fill(out)
	clear(out[n:])
}

// StartCall begins streaming captured audio to group and playing every other
// member's audio as it arrives.
func (c *Client) StartCall(group string) error {
	creds, err := c.credentials()
	if err != nil {
		return err
	}
	group = strings.TrimSpace(group)
	if err := required("group", group); err != nil {
		return err
	}
	if c.backend == nil {
		return ErrNoAudio
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()
	if c.call != nil {
		return ErrCallActive
	}

	cl := &call{
		group:     group,
		format:    c.opts.Format,
		backend:   c.backend,
		poll:      c.opts.PollInterval,
		outbound:  NewSampleQueue(),
		drainDone: make(chan struct{}),
		peers:     make(map[string]*peerUnit),
		send: func(samples []int16) error {
			return c.send(&protocol.CallDataRequest{Credentials: creds, Group: group, Samples: samples})
		},
	}
	if c.opts.GateThreshold > 0 {
		cl.gate = audio.NewGate(c.opts.GateThreshold, 15, 3) // hold ~300ms, pre-buffer ~60ms at 20ms blocks
	}

	capture, err := c.backend.NewCapturer(cl.format)
	if err != nil {
		return err
	}
	cl.capture = capture
	cl.active.Store(true)
	if err := capture.Start(cl.outbound.Push); err != nil {
		cl.active.Store(false)
		return err
	}
	go cl.drain()

	c.call = cl
	slog.Info("call started", "group", group, "rate", cl.format.SampleRate, "channels", cl.format.Channels)
	return nil
}

// StopCall hangs up: capture stops, queued outbound audio is flushed and
// every peer playback unit is stopped and discarded.
func (c *Client) StopCall() error {
	c.callMu.Lock()
	cl := c.call
	c.call = nil
	c.callMu.Unlock()
	if cl == nil {
		return ErrNoCall
	}

	err := cl.stop()
	slog.Info("call ended", "group", cl.group, "blocks_sent", cl.sent.Load())
	return err
}

// callRejected ends the active call when the server refuses its audio.
// Responses carry no group, so only the first failure per call counts and
// failures with no call active are ignored.
func (c *Client) callRejected(code model.StatusCode) {
	c.callMu.Lock()
	cl := c.call
	c.callMu.Unlock()
	if cl == nil || cl.rejected.Swap(true) {
		slog.Debug("call_data rejected", "status", code)
		return
	}

	slog.Warn("call rejected by server", "group", cl.group, "status", code)
	go func() {
		c.callMu.Lock()
		if c.call != cl {
			c.callMu.Unlock()
			return
		}
		c.call = nil
		c.callMu.Unlock()

		if err := cl.stop(); err != nil {
			slog.Warn("stop rejected call", "group", cl.group, "err", err)
		}
		if c.OnCallRejected != nil {
			c.OnCallRejected(cl.group, code)
		}
	}()
}

// InCall returns the group of the active call.
func (c *Client) InCall() (string, bool) {
	c.callMu.Lock()
	defer c.callMu.Unlock()
	if c.call == nil {
		return "", false
	}
	return c.call.group, true
}

// CallPeers lists the senders with a playback unit in the active call.
func (c *Client) CallPeers() []string {
	c.callMu.Lock()
	cl := c.call
	c.callMu.Unlock()
	if cl == nil {
		return nil
	}
	return cl.peerNames()
}

func (cl *call) drain() {
	defer close(cl.drainDone)
	for cl.active.Load() {
		block, ok := cl.outbound.Pop()
		if !ok {
			time.Sleep(cl.poll)
			continue
		}
		cl.transmit(block)
	}
}

func (cl *call) transmit(block []int16) {
	blocks := [][]int16{block}
	if cl.gate != nil {
		blocks = cl.gate.Process(block)
	}
	for _, b := range blocks {
		if err := cl.send(b); err != nil {
			slog.Warn("call_data send failed", "group", cl.group, "err", err)
			return
		}
		cl.sent.Add(1)
	}
}

// receive queues samples from sender, opening its playback unit on first
// arrival.
func (cl *call) receive(sender string, samples []int16) {
	cl.peersMu.Lock()
	if !cl.active.Load() {
		cl.peersMu.Unlock()
		return
	}
	p, ok := cl.peers[sender]
	if !ok {
		p = &peerUnit{queue: NewSampleQueue()}
		player, err := cl.backend.NewPlayer(cl.format)
		if err == nil {
			err = player.Start(p.fill)
		}
		if err != nil {
			slog.Warn("open playback for peer failed", "sender", sender, "err", err)
		} else {
			p.player = player
			slog.Debug("peer joined call audio", "sender", sender)
		}
		cl.peers[sender] = p
	}
	cl.peersMu.Unlock()

	if p.player != nil {
		p.queue.Push(samples)
	}
}

func (cl *call) stop() error {
	cl.active.Store(false)
	err := cl.capture.Stop()
	<-cl.drainDone

	for {
		block, ok := cl.outbound.Pop()
		if !ok {
			break
		}
		cl.transmit(block)
	}

	cl.peersMu.Lock()
	peers := cl.peers
	cl.peers = make(map[string]*peerUnit)
	cl.peersMu.Unlock()

	for sender, p := range peers {
		if p.player == nil {
			continue
		}
		if perr := p.player.Stop(); perr != nil {
			slog.Warn("stop peer playback", "sender", sender, "err", perr)
		}
	}
	return err
}

func (cl *call) peerNames() []string {
	cl.peersMu.Lock()
	defer cl.peersMu.Unlock()
	names := make([]string, 0, len(cl.peers))
	for name := range cl.peers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
