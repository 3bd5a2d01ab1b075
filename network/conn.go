package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"lanrace/protocol"
)

// ErrClosed is returned once the peer has gone away. It ends the session for
// that side; nothing reconnects.
var ErrClosed = errors.New("connection closed")

// Conn is a framed message stream to one peer. ReadLine blocks until a whole
// message arrives; WriteLine may be called from any goroutine.
type Conn interface {
	ReadLine() ([]byte, error)
	WriteLine([]byte) error
	Close() error
	RemoteAddr() string
}

// Listener hands out peer connections.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() string
	Close() error
}

// Send encodes msg and writes it as one line.
func Send(c Conn, msg protocol.Message) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := c.WriteLine(b); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type(), err)
	}
	return nil
}

// ReadMessages feeds every well-formed message from c to handle until the
// connection fails or ctx is done. Malformed lines are logged and skipped.
// The returned error wraps ErrClosed when the peer went away.
func ReadMessages(ctx context.Context, c Conn, handle func(protocol.Message)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		line, err := c.ReadLine()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		msg, err := protocol.Decode(line)
		if err != nil {
			log.Debug().Err(err).Str("peer", c.RemoteAddr()).Msg("dropping message")
			continue
		}
		handle(msg)
	}
}

// AcceptFirst waits on every listener and returns the first peer to arrive.
// The other accepts are cancelled; a peer that races in late is closed.
func AcceptFirst(ctx context.Context, lns ...Listener) (Conn, error) {
	if len(lns) == 0 {
		return nil, errors.New("accept: no listeners")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type accepted struct {
		conn Conn
		err  error
	}
	results := make(chan accepted, len(lns))
	for _, ln := range lns {
		go func() {
			c, err := ln.Accept(ctx)
			results <- accepted{c, err}
		}()
	}

	var firstErr error
	for i := range lns {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		cancel()
		go func(pending int) {
			for ; pending > 0; pending-- {
				if late := <-results; late.err == nil {
					_ = late.conn.Close()
				}
			}
		}(len(lns) - i - 1)
		return r.conn, nil
	}
	return nil, firstErr
}
