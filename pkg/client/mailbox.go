package client

import (
	"context"
	"sync"

	"github.com/NicolasHaas/gowhisper/pkg/protocol"
)

// Mailbox pairs one outstanding request with the next response carrying the
// same action. Responses carry no correlation ID, so only one request may be
// in flight at a time; a second Open fails with ErrRequestInFlight.
type Mailbox struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  protocol.Action // "" when idle
	resp     *protocol.Response
	arrivals uint64
	closed   bool
}

// NewMailbox returns an idle mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Open reserves the slot for action.
func (m *Mailbox) Open(action protocol.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.pending != "" {
		return ErrRequestInFlight
	}
	m.pending = action
	m.resp = nil
	return nil
}

// Deliver hands resp to the waiter if it answers the pending action and
// reports whether it was taken.
func (m *Mailbox) Deliver(resp *protocol.Response) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == "" || m.pending != resp.Action || m.resp != nil {
		return false
	}
	m.resp = resp
	m.arrivals++
	m.cond.Broadcast()
	return true
}

// Wait blocks until the pending request is answered, the mailbox is closed or
// ctx ends. The slot is released in every case.
func (m *Mailbox) Wait(ctx context.Context) (*protocol.Response, error) {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for m.resp == nil && !m.closed && ctx.Err() == nil {
		m.cond.Wait()
	}

	resp := m.resp
	m.pending, m.resp = "", nil
	switch {
	case resp != nil:
		return resp, nil
	case m.closed:
		return nil, ErrClosed
	}
	return nil, ctx.Err()
}

// Cancel releases the slot without waiting.
func (m *Mailbox) Cancel() {
	m.mu.Lock()
	m.pending, m.resp = "", nil
	m.mu.Unlock()
}

// Pending returns the action awaiting a response, or "".
func (m *Mailbox) Pending() protocol.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Arrivals counts the responses delivered so far.
func (m *Mailbox) Arrivals() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.arrivals
}

// Close wakes every waiter with ErrClosed and rejects further requests.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}
