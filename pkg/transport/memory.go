package transport

import (
	"slices"
	"sync"

	"github.com/NicolasHaas/gowhisper/pkg/model"
)

// MemoryServer is an in-process transport. Clients are attached with Dial.
type MemoryServer struct {
	*hub
}

// NewMemory returns an empty in-process server.
func NewMemory() *MemoryServer {
	return &MemoryServer{hub: newHub()}
}

func (s *MemoryServer) Addr() string { return "memory" }

func (s *MemoryServer) Close() error {
	s.shutdown()
	return nil
}

// Dial attaches a new client connection.
func (s *MemoryServer) Dial() *MemoryClient {
	c := &MemoryClient{server: s}
	c.id = s.add(memoryPeer{c})
	return c
}

// MemoryClient is one connection to a MemoryServer. Its receive queue is
// unbounded.
type MemoryClient struct {
	server *MemoryServer
	id     model.Identity

	mu     sync.Mutex
	queue  [][]byte
	closed bool
}

// Identity returns the identity the server assigned to c.
func (c *MemoryClient) Identity() model.Identity { return c.id }

func (c *MemoryClient) Send(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	if !c.server.deliver(c.id, slices.Clone(data)) {
		return ErrClosed
	}
	return nil
}

func (c *MemoryClient) Poll() ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		data := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]
		return data, true, nil
	}
	if c.closed {
		return nil, false, ErrClosed
	}
	return nil, false, nil
}

// Close detaches c; the server receives a Closed packet for its identity.
func (c *MemoryClient) Close() error {
	c.server.remove(c.id)
	c.markClosed()
	return nil
}

func (c *MemoryClient) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

type memoryPeer struct{ c *MemoryClient }

func (p memoryPeer) send(data []byte) error {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	if p.c.closed {
		return ErrClosed
	}
	p.c.queue = append(p.c.queue, slices.Clone(data))
	return nil
}

func (p memoryPeer) close() error {
	p.c.markClosed()
	return nil
}
