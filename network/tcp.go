package network

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"lanrace/protocol"
)

// StreamConn frames newline-delimited messages over any net.Conn.
type StreamConn struct {
	nc      net.Conn
	br      *bufio.Reader
	maxLine int

	// WriteTimeout bounds one WriteLine. Zero waits forever.
	WriteTimeout time.Duration

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func NewStreamConn(nc net.Conn) *StreamConn {
	return &StreamConn{
		nc:           nc,
		br:           bufio.NewReaderSize(nc, 4096),
		maxLine:      protocol.MaxLineBytes,
		WriteTimeout: 2 * time.Second,
	}
}

// Pipe returns two connected in-memory conns.
func Pipe() (*StreamConn, *StreamConn) {
	a, b := net.Pipe()
	return NewStreamConn(a), NewStreamConn(b)
}

// ReadLine returns the next non-blank line. A line longer than maxLine is
// discarded up to its newline and reading carries on with the next one.
func (c *StreamConn) ReadLine() ([]byte, error) {
	var line []byte
	oversize := false
	for {
		chunk, err := c.br.ReadSlice('\n')
		switch {
		case oversize:
		case len(line)+len(chunk) > c.maxLine+1:
			oversize = true
			line = nil
		default:
			line = append(line, chunk...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("%w: %w", ErrClosed, err)
		}

		if oversize {
			log.Warn().Str("peer", c.RemoteAddr()).Int("limit", c.maxLine).Msg("dropped oversize line")
			oversize = false
			continue
		}
		if len(bytes.TrimSpace(line)) == 0 {
			line = line[:0]
			continue
		}
		return bytes.TrimRight(line, "\r\n"), nil
	}
}

func (c *StreamConn) WriteLine(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.WriteTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	}
	buf := make([]byte, 0, len(b)+1)
	buf = append(buf, b...)
	buf = append(buf, '\n')
	if _, err := c.nc.Write(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return nil
}

func (c *StreamConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}

func (c *StreamConn) RemoteAddr() string {
	return c.nc.RemoteAddr().String()
}

type TCPListener struct {
	ln net.Listener
}

func ListenTCP(addr string) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &TCPListener{ln: ln}, nil
}

// Accept waits for the next peer. Cancelling ctx closes the listener.
func (l *TCPListener) Accept(ctx context.Context) (Conn, error) {
	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	nc, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept: %w", err)
	}
	return NewStreamConn(nc), nil
}

func (l *TCPListener) Addr() string {
	return l.ln.Addr().String()
}

// Port is the bound TCP port, useful after listening on ":0".
func (l *TCPListener) Port() int {
	if a, ok := l.ln.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

func (l *TCPListener) Close() error {
	return l.ln.Close()
}

// DialTCP connects to a host. timeout only bounds the connect.
func DialTCP(ctx context.Context, addr string, timeout time.Duration) (Conn, error) {
	d := net.Dialer{Timeout: timeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewStreamConn(nc), nil
}
