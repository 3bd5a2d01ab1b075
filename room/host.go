package room

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lanrace/game"
	"lanrace/network"
	"lanrace/protocol"
	"lanrace/slot"
)

// ErrPeerClosed ends a session whose peer went away. There is no reconnect.
var ErrPeerClosed = errors.New("peer closed the connection")

// Host runs the authoritative simulation for P1 (local controls) and P2 (the
// remote client's latest input), and streams a snapshot to the client every
// tick.
type Host struct {
	Inbox chan any

	*sim
	inputs    slot.Slot[protocol.Input]
	port      atomic.Int64
	connected atomic.Bool
}

func NewHost(cfg Config) *Host {
	h := &Host{Inbox: make(chan any, 16)}
	h.sim = newSim(cfg, discard{}, false)
	h.sim.remote = &h.inputs
	return h
}

// SetPort records the game port reported by Status.
func (h *Host) SetPort(port int) {
	h.port.Store(int64(port))
}

// Status is safe to call from any goroutine.
func (h *Host) Status() network.RoomStatus {
	st, _, _ := h.status.Load()
	st.Port = int(h.port.Load())
	st.Players = 1
	if h.connected.Load() {
		st.Players = 2
	}
	return st
}

// Serve waits for one client on any of lns, stops accepting, and runs the
// session.
func (h *Host) Serve(ctx context.Context, lns ...network.Listener) error {
	for _, ln := range lns {
		h.log.Info().Str("addr", ln.Addr()).Msg("waiting for client")
	}
	conn, err := network.AcceptFirst(ctx, lns...)
	for _, ln := range lns {
		_ = ln.Close()
	}
	if err != nil {
		return fmt.Errorf("wait for client: %w", err)
	}
	return h.Run(ctx, conn)
}

// Run plays matches with conn until a quit is decided, the peer drops, or
// ctx is cancelled. A dropped peer is reported as ErrPeerClosed.
func (h *Host) Run(ctx context.Context, conn network.Conn) error {
	h.log = h.log.With().Str("conn_id", uuid.NewString()).Str("peer", conn.RemoteAddr()).Logger()
	h.log.Info().Msg("client connected")
	h.connected.Store(true)
	defer h.connected.Store(false)
	defer conn.Close()

	sender := network.NewSender(conn)
	h.out = sender
	h.last = h.clock.Now()

	// The reader outlives the session loop so a final match result can be
	// flushed before the connection is closed.
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	rctx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	var g errgroup.Group
	g.Go(func() error {
		defer stopReading()
		err := sender.Run(sctx)
		if sctx.Err() != nil {
			return nil
		}
		cancel()
		return fmt.Errorf("%w: %w", ErrPeerClosed, err)
	})
	g.Go(func() error {
		err := network.ReadMessages(rctx, conn, func(msg protocol.Message) {
			h.handleMessage(sctx, msg)
		})
		if rctx.Err() != nil {
			return nil
		}
		select {
		case h.Inbox <- Leave{Err: err}:
		case <-sctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return h.loop(sctx)
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// handleMessage runs on the receive goroutine.
func (h *Host) handleMessage(ctx context.Context, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.Input:
		h.inputs.Store(m)
	case protocol.RematchVote:
		select {
		case h.Inbox <- Vote{Player: game.P2, Yes: m.Vote}:
		case <-ctx.Done():
		}
	default:
		h.log.Debug().Str("type", string(msg.Type())).Msg("unexpected message from client")
	}
}

func (h *Host) loop(ctx context.Context) error {
	ticker := h.clock.NewTicker(protocol.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-h.Inbox:
			if err := h.handleCommand(cmd); err != nil {
				return err
			}
		case <-ticker.Chan():
			if h.tick(h.clock.Now()) {
				return nil
			}
		}
	}
}

func (h *Host) handleCommand(cmd any) error {
	switch c := cmd.(type) {
	case Vote:
		h.castRemoteVote(c)
	case Leave:
		h.log.Warn().Err(c.Err).Msg("client left")
		return fmt.Errorf("%w: %w", ErrPeerClosed, c.Err)
	}
	return nil
}
