// Package transport moves opaque byte messages between clients and a server
// that addresses each live connection by a model.Identity.
//
// Stream transports (tls, ws) assign every accepted connection a random UUID
// identity; the memory transport does the same in-process.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/NicolasHaas/gowhisper/pkg/model"
)

// MaxFrameSize bounds one message on any transport (16 MiB).
const MaxFrameSize = 16 << 20

// Transport kinds accepted by Dial and the server config.
const (
	KindTLS = "tls"
	KindWS  = "ws"
)

var (
	ErrClosed          = errors.New("transport: closed")
	ErrUnknownIdentity = errors.New("transport: unknown identity")
	ErrFrameTooLarge   = errors.New("transport: frame too large")
)

// Packet is one inbound event on the server side. A Closed packet carries no
// data and reports that the connection behind From has gone away.
type Packet struct {
	From   model.Identity
	Data   []byte
	Closed bool
}

// Server is the server end of a transport.
type Server interface {
	// Receive blocks until a packet arrives, ctx ends, or the server is closed.
	Receive(ctx context.Context) (Packet, error)
	// SendTo writes one message to the connection behind id.
	SendTo(id model.Identity, data []byte) error
	Addr() string
	Close() error
}

// Client is the client end of a transport.
type Client interface {
	Send(data []byte) error
	// Poll returns the next message without blocking. ok is false when
	// nothing is queued. ErrClosed is returned once the connection is gone and
	// every queued message has been read.
	Poll() (data []byte, ok bool, err error)
	Close() error
}

// Dial connects a client of the given kind to addr (host:port).
func Dial(ctx context.Context, kind, addr string) (Client, error) {
	switch kind {
	case KindTLS:
		return DialTLS(ctx, addr)
	case KindWS:
		return DialWS(ctx, addr)
	}
	return nil, fmt.Errorf("transport: unknown kind %q", kind)
}
