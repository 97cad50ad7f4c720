package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// TLSServer accepts TLS 1.3 connections carrying length-prefixed frames.
type TLSServer struct {
	*hub
	ln        net.Listener
	writeWait time.Duration
}

// ListenTLS starts accepting on addr with the given certificate. A peer that
// does not accept a frame within writeWait is disconnected.
func ListenTLS(addr string, cert tls.Certificate) (*TLSServer, error) {
	return listenTLS(addr, cert, writeWait)
}

func listenTLS(addr string, cert tls.Certificate, wait time.Duration) (*TLSServer, error) {
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}
	ln, err := tls.Listen("tcp", addr, tlsCfg)
	if err != nil {
		return nil, fmt.Errorf("transport: listen tls: %w", err)
	}

	s := &TLSServer{hub: newHub(), ln: ln, writeWait: wait}
	go s.acceptLoop()
	return s, nil
}

func (s *TLSServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("accept error", "err", err)
			continue
		}
		go s.serveConn(conn)
	}
}

func (s *TLSServer) serveConn(conn net.Conn) {
	p := &streamPeer{conn: conn, wait: s.writeWait}
	id := s.add(p)
	defer s.remove(id)

	slog.Debug("tls connection", "identity", id, "remote", conn.RemoteAddr().String())
	r := bufio.NewReader(conn)
	for {
		data, err := readFrame(r)
		if err != nil {
			slog.Debug("tls read ended", "identity", id, "err", err)
			return
		}
		if !s.deliver(id, data) {
			return
		}
	}
}

func (s *TLSServer) Addr() string {
	return s.ln.Addr().String()
}

func (s *TLSServer) Close() error {
	s.shutdown()
	return s.ln.Close()
}

// streamPeer serializes writes on a framed stream connection. A write that
// misses its deadline closes the connection, since a partial frame leaves the
// stream unusable.
type streamPeer struct {
	mu   sync.Mutex
	conn net.Conn
	wait time.Duration
}

func (p *streamPeer) send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(p.wait))
	err := writeFrame(p.conn, data)
	if err != nil && !errors.Is(err, ErrFrameTooLarge) {
		_ = p.conn.Close()
	}
	return err
}

func (p *streamPeer) close() error {
	return p.conn.Close()
}

// TLSClient is the client end of a TLS transport.
type TLSClient struct {
	peer *streamPeer
	in   *clientInbox
}

// DialTLS connects to a TLS server. Self-signed server certificates are
// accepted (trust on first use).
func DialTLS(ctx context.Context, addr string) (*TLSClient, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // servers generate self-signed certs
		MinVersion:         tls.VersionTLS13,
	}
	dialer := &tls.Dialer{Config: tlsCfg}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial tls: %w", err)
	}

	c := &TLSClient{peer: &streamPeer{conn: conn, wait: writeWait}, in: newClientInbox()}
	go c.readLoop()
	return c, nil
}

func (c *TLSClient) readLoop() {
	defer c.in.close()
	r := bufio.NewReader(c.peer.conn)
	for {
		data, err := readFrame(r)
		if err != nil {
			slog.Debug("tls client read ended", "err", err)
			return
		}
		if !c.in.put(data) {
			return
		}
	}
}

func (c *TLSClient) Send(data []byte) error {
	select {
	case <-c.in.done:
		return ErrClosed
	default:
	}
	return c.peer.send(data)
}

func (c *TLSClient) Poll() ([]byte, bool, error) {
	return c.in.poll()
}

func (c *TLSClient) Close() error {
	c.in.close()
	return c.peer.close()
}
