package network

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"lanrace/protocol"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 25 * time.Second
	wsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	// LAN game, any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSConn carries one message per text frame.
type WSConn struct {
	ws        *websocket.Conn
	wmu       sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn) *WSConn {
	c := &WSConn{ws: ws, done: make(chan struct{})}

	// Basic timeouts + pong handling keep half-dead peers from lingering.
	ws.SetReadLimit(protocol.MaxLineBytes)
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	go c.pingLoop()
	return c
}

func (c *WSConn) pingLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.wmu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.wmu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *WSConn) ReadLine() ([]byte, error) {
	for {
		typ, msg, err := c.ws.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrClosed, err)
		}
		if typ != websocket.TextMessage || len(msg) == 0 {
			continue
		}
		return msg, nil
	}
}

func (c *WSConn) WriteLine(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return nil
}

func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *WSConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// DialWS connects to a host's /ws endpoint, e.g. "ws://10.0.0.2:8080/ws".
func DialWS(ctx context.Context, url string) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newWSConn(ws), nil
}

// WSListener turns upgraded HTTP requests into Conns. Mount it on a mux and
// Accept from it like any other Listener.
type WSListener struct {
	addr    string
	conns   chan Conn
	closed  chan struct{}
	closeMu sync.Once
}

func NewWSListener(addr string) *WSListener {
	return &WSListener{
		addr:   addr,
		conns:  make(chan Conn),
		closed: make(chan struct{}),
	}
}

func (l *WSListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("peer", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	c := newWSConn(ws)
	select {
	case l.conns <- c:
	case <-l.closed:
		_ = c.Close()
	case <-r.Context().Done():
		_ = c.Close()
	}
}

func (l *WSListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *WSListener) Addr() string {
	return l.addr
}

func (l *WSListener) Close() error {
	l.closeMu.Do(func() { close(l.closed) })
	return nil
}
