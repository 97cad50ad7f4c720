package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSPath is the endpoint the WebSocket transport serves.
const WSPath = "/ws"

// Time allowed to write a message to the peer.
const writeWait = 10 * time.Second

// WSServer accepts WebSocket connections carrying binary messages.
type WSServer struct {
	*hub
	ln  net.Listener
	srv *http.Server
}

// ListenWS starts an HTTP server on addr that upgrades requests on WSPath.
func ListenWS(addr string) (*WSServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen ws: %w", err)
	}

	s := &WSServer{hub: newHub(), ln: ln}
	mux := http.NewServeMux()
	mux.HandleFunc(WSPath, s.handleWebSocket)
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ws server error", "err", err)
		}
	}()
	return s, nil
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true // non-browser clients
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	p := &wsPeer{conn: conn}
	id := s.add(p)
	defer s.remove(id)

	slog.Debug("ws connection", "identity", id, "remote", r.RemoteAddr)
	conn.SetReadLimit(MaxFrameSize)
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws read error", "identity", id, "err", err)
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		if !s.deliver(id, data) {
			return
		}
	}
}

func (s *WSServer) Addr() string {
	return s.ln.Addr().String()
}

func (s *WSServer) Close() error {
	s.shutdown()
	return s.srv.Close()
}

type wsPeer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *wsPeer) send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		_ = p.conn.Close()
		return fmt.Errorf("transport: ws write: %w", err)
	}
	return nil
}

func (p *wsPeer) close() error {
	p.mu.Lock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	p.mu.Unlock()
	return p.conn.Close()
}

// WSClient is the client end of a WebSocket transport.
type WSClient struct {
	peer *wsPeer
	in   *clientInbox
}

// DialWS connects to ws://addr/ws.
func DialWS(ctx context.Context, addr string) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, "ws://"+addr+WSPath, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial ws: %w", err)
	}
	conn.SetReadLimit(MaxFrameSize)

	c := &WSClient{peer: &wsPeer{conn: conn}, in: newClientInbox()}
	go c.readLoop()
	return c, nil
}

func (c *WSClient) readLoop() {
	defer c.in.close()
	for {
		typ, data, err := c.peer.conn.ReadMessage()
		if err != nil {
			slog.Debug("ws client read ended", "err", err)
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		if !c.in.put(data) {
			return
		}
	}
}

func (c *WSClient) Send(data []byte) error {
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	select {
	case <-c.in.done:
		return ErrClosed
	default:
	}
	return c.peer.send(data)
}

func (c *WSClient) Poll() ([]byte, bool, error) {
	return c.in.poll()
}

func (c *WSClient) Close() error {
	c.in.close()
	return c.peer.close()
}
