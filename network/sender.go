package network

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"lanrace/protocol"
	"lanrace/slot"
)

var ErrSendQueueFull = errors.New("send queue full")

// Sender owns all writes to one Conn so a slow peer never stalls the tick
// loop. Latest-only messages (snapshots, map previews) replace each other
// while waiting; queued messages are delivered in order and ahead of them.
type Sender struct {
	conn   Conn
	latest slot.Slot[[]byte]
	queue  chan []byte
	wake   chan struct{}
	done   chan struct{}
}

func NewSender(c Conn) *Sender {
	return &Sender{
		conn:  c,
		queue: make(chan []byte, 32),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Latest offers msg as the newest superseding message. It never blocks.
func (s *Sender) Latest(msg protocol.Message) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	s.latest.Store(b)
	s.notify()
	return nil
}

// Queue schedules msg for ordered delivery. Any latest-only message still
// waiting is discarded, since it predates msg.
func (s *Sender) Queue(msg protocol.Message) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case s.queue <- b:
	default:
		return ErrSendQueueFull
	}
	s.latest.Reset()
	s.notify()
	return nil
}

func (s *Sender) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run returns.
func (s *Sender) Done() <-chan struct{} {
	return s.done
}

// Run writes until ctx is done or the conn fails. On cancel it flushes
// whatever is still queued before returning.
func (s *Sender) Run(ctx context.Context) error {
	defer close(s.done)
	var sent uint64
	for {
		select {
		case b := <-s.queue:
			if err := s.conn.WriteLine(b); err != nil {
				return err
			}
			continue
		default:
		}

		if b, ver, ok := s.latest.LoadSince(sent); ok {
			sent = ver
			if err := s.conn.WriteLine(b); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			s.flush()
			return ctx.Err()
		case <-s.wake:
		case b := <-s.queue:
			if err := s.conn.WriteLine(b); err != nil {
				return err
			}
		}
	}
}

func (s *Sender) flush() {
	for {
		select {
		case b := <-s.queue:
			if err := s.conn.WriteLine(b); err != nil {
				log.Debug().Err(err).Str("peer", s.conn.RemoteAddr()).Msg("flush failed")
				return
			}
		default:
			return
		}
	}
}
