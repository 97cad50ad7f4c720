package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/NicolasHaas/gowhisper/pkg/model"
)

// inboxSize bounds the packets waiting for the server loop. Reader goroutines
// block when it is full.
const inboxSize = 256

// peer is one accepted connection as seen by a hub.
type peer interface {
	send(data []byte) error
	close() error
}

// hub tracks the live connections of a server transport and funnels their
// reads into a single inbox.
type hub struct {
	mu    sync.RWMutex
	conns map[model.Identity]peer

	inbox     chan Packet
	done      chan struct{}
	closeOnce sync.Once
}

func newHub() *hub {
	return &hub{
		conns: make(map[model.Identity]peer),
		inbox: make(chan Packet, inboxSize),
		done:  make(chan struct{}),
	}
}

// add registers p under a fresh identity.
func (h *hub) add(p peer) model.Identity {
	id := model.Identity(uuid.NewString())
	h.mu.Lock()
	h.conns[id] = p
	h.mu.Unlock()
	slog.Debug("connection opened", "identity", id)
	return id
}

// remove forgets id and queues a Closed packet for it.
func (h *hub) remove(id model.Identity) {
	h.mu.Lock()
	p, ok := h.conns[id]
	delete(h.conns, id)
	h.mu.Unlock()
	if !ok {
		return
	}
	_ = p.close()
	slog.Debug("connection closed", "identity", id)
	h.push(Packet{From: id, Closed: true})
}

// deliver queues data received from id. It reports false once the hub is
// shut down.
func (h *hub) deliver(id model.Identity, data []byte) bool {
	return h.push(Packet{From: id, Data: data})
}

func (h *hub) push(p Packet) bool {
	select {
	case h.inbox <- p:
		return true
	case <-h.done:
		return false
	}
}

func (h *hub) Receive(ctx context.Context) (Packet, error) {
	select {
	case p := <-h.inbox:
		return p, nil
	case <-ctx.Done():
		return Packet{}, ctx.Err()
	case <-h.done:
		return Packet{}, ErrClosed
	}
}

func (h *hub) SendTo(id model.Identity, data []byte) error {
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	h.mu.RLock()
	p, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownIdentity
	}
	return p.send(data)
}

// shutdown closes every connection and unblocks Receive.
func (h *hub) shutdown() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		conns := h.conns
		h.conns = make(map[model.Identity]peer)
		h.mu.Unlock()
		for _, p := range conns {
			_ = p.close()
		}
	})
}

// clientInbox is the receive side of a stream client: a reader goroutine fills it
// and Poll drains it without blocking.
type clientInbox struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func newClientInbox() *clientInbox {
	return &clientInbox{
		ch:   make(chan []byte, inboxSize),
		done: make(chan struct{}),
	}
}

func (in *clientInbox) put(data []byte) bool {
	select {
	case in.ch <- data:
		return true
	case <-in.done:
		return false
	}
}

func (in *clientInbox) poll() ([]byte, bool, error) {
	select {
	case b := <-in.ch:
		return b, true, nil
	default:
	}
	select {
	case <-in.done:
		return nil, false, ErrClosed
	default:
		return nil, false, nil
	}
}

func (in *clientInbox) close() {
	in.once.Do(func() { close(in.done) })
}
