package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"lanrace/game"
	"lanrace/input"
	"lanrace/network"
	"lanrace/protocol"
	"lanrace/slot"
)

// ErrHostClosed ends a session whose host went away. There is no reconnect.
var ErrHostClosed = errors.New("host closed the connection")

type Config struct {
	Tuning game.Tuning
	// Controls drives the local car, which is P2 on the host.
	Controls input.Provider
	Clock    clockwork.Clock
	// OnTick, when set, receives the mirrored match and the estimated host
	// time after every tick. It runs on the tick goroutine.
	OnTick func(m *game.Match, hostNow float64)
}

type outbound interface {
	Latest(protocol.Message) error
	Queue(protocol.Message) error
}

type discard struct{}

// hostLeft is posted after the last message read from a host that dropped.
type hostLeft struct {
	err error
}

func (discard) Latest(protocol.Message) error { return nil }
func (discard) Queue(protocol.Message) error  { return nil }

// Client mirrors the host's match. It uploads the local controls every tick
// and renders whatever the newest snapshot says; it never simulates.
type Client struct {
	cfg   Config
	clock clockwork.Clock
	match *game.Match
	sync  TimeSync
	epoch time.Time
	out   outbound
	log   zerolog.Logger

	// states holds the newest snapshot; control carries map selection and
	// match results in arrival order.
	states   slot.Slot[*protocol.State]
	applied  uint64
	control  chan any
	emote    int
	voteSent bool
	closeErr error
}

func New(cfg Config) *Client {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Controls == nil {
		cfg.Controls = input.NewScripted()
	}
	c := &Client{
		cfg:     cfg,
		clock:   cfg.Clock,
		match:   game.NewMatch(game.MatchConfig{Tuning: cfg.Tuning}),
		epoch:   cfg.Clock.Now(),
		out:     discard{},
		control: make(chan any, 64),
		log:     log.With().Str("role", "client").Logger(),
	}
	c.match.Reset(false)
	return c
}

// Match is the mirrored state. Only the tick goroutine may touch it while
// Run is active.
func (c *Client) Match() *game.Match { return c.match }

func (c *Client) localTime(t time.Time) float64 {
	return t.Sub(c.epoch).Seconds()
}

// HostNow estimates the host clock at the current local time.
func (c *Client) HostNow() float64 {
	return c.sync.HostNow(c.localTime(c.clock.Now()))
}

// CountdownLeft is the countdown remaining on the host clock.
func (c *Client) CountdownLeft() (float64, bool) {
	return c.match.CountdownLeft(c.HostNow())
}

func (c *Client) ShowGo() bool {
	return c.match.ShowGo(c.HostNow())
}

// Run plays with the host on conn until the host decides quit, the local
// player quits, the host drops, or ctx is cancelled. A host that drops
// without deciding quit first is reported as ErrHostClosed.
func (c *Client) Run(ctx context.Context, conn network.Conn) error {
	c.log = c.log.With().Str("conn_id", uuid.NewString()).Str("host", conn.RemoteAddr()).Logger()
	c.log.Info().Msg("connected to host")
	defer conn.Close()

	sender := network.NewSender(conn)
	c.out = sender

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	rctx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	var g errgroup.Group
	g.Go(func() error {
		err := sender.Run(sctx)
		if sctx.Err() != nil {
			stopReading()
			return nil
		}
		// Closing ends the reader, which reports the drop after any
		// messages it already delivered.
		c.log.Debug().Err(err).Msg("send failed")
		_ = conn.Close()
		return nil
	})
	g.Go(func() error {
		err := network.ReadMessages(rctx, conn, func(msg protocol.Message) {
			c.handleMessage(sctx, msg)
		})
		if rctx.Err() != nil {
			return nil
		}
		c.post(sctx, hostLeft{err: err})
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return c.loop(sctx)
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// handleMessage runs on the receive goroutine.
func (c *Client) handleMessage(ctx context.Context, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.State:
		c.states.Store(m)
	case protocol.MapSelect:
		if !m.Start {
			select {
			case c.control <- m:
			default:
			}
			return
		}
		c.post(ctx, m)
	case protocol.MatchResult:
		c.post(ctx, m)
	default:
		c.log.Debug().Str("type", string(msg.Type())).Msg("unexpected message from host")
	}
}

func (c *Client) post(ctx context.Context, msg any) {
	select {
	case c.control <- msg:
	case <-ctx.Done():
	}
}

func (c *Client) loop(ctx context.Context) error {
	ticker := c.clock.NewTicker(protocol.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if c.tick(c.clock.Now()) {
				return c.closeErr
			}
		}
	}
}

// tick runs one client frame and reports whether the session has ended.
func (c *Client) tick(t time.Time) bool {
	local := c.localTime(t)
	frame := c.cfg.Controls.Poll()
	if frame.Quit {
		c.log.Info().Msg("quit")
		return true
	}
	if c.drainControl() {
		return true
	}

	m := c.match
	if m.Phase != game.PhaseMapSelect {
		c.sendInput(frame, m)
		if st, ver, ok := c.states.LoadSince(c.applied); ok {
			c.applied = ver
			if applyState(m, &c.sync, st, local) {
				finishAt := local
				m.FinishAt = &finishAt
				c.log.Info().Str("winner", m.Winner.String()).Msg("race finished")
			}
		}
		c.vote(frame, local)
	}

	if c.cfg.OnTick != nil {
		c.cfg.OnTick(m, c.sync.HostNow(local))
	}
	return false
}

// drainControl applies every pending map selection and match result in the
// order they arrived. It reports whether the session is over, either by the
// host's quit or by the host dropping; only the latter sets closeErr.
func (c *Client) drainControl() bool {
	for {
		select {
		case msg := <-c.control:
			switch m := msg.(type) {
			case protocol.MapSelect:
				c.selectMap(m)
			case protocol.MatchResult:
				if m.Action == protocol.ActionQuit {
					c.log.Info().Msg("host ended the session")
					return true
				}
				c.restart()
			case hostLeft:
				c.log.Warn().Err(m.err).Msg("host left")
				c.closeErr = fmt.Errorf("%w: %w", ErrHostClosed, m.err)
				return true
			}
		default:
			return false
		}
	}
}

func (c *Client) selectMap(ms protocol.MapSelect) {
	m := c.match
	if m.Phase != game.PhaseMapSelect {
		return
	}
	if ms.Map != m.MapID || m.Track == nil {
		m.SelectMap(ms.Map)
	}
	if !ms.Start {
		return
	}
	m.Reset(false)
	m.Start()
	c.sync.Reset()
	// Snapshots from before this round are stale.
	_, c.applied, _ = c.states.Load()
	c.log.Info().Int("map", m.MapID).Str("track", m.Track.Name).Msg("race starting")
}

func (c *Client) restart() {
	c.match.Reset(false)
	c.sync.Reset()
	c.voteSent = false
	c.emote = 0
	_, c.applied, _ = c.states.Load()
	c.log.Info().Msg("rematch accepted")
}

// sendInput uploads the local controls. A pending emote request goes out
// with the next input only and is cleared once sent.
func (c *Client) sendInput(frame input.Frame, m *game.Match) {
	if frame.Emote > 0 && m.Winner == game.NoPlayer {
		c.emote = frame.Emote
	}
	in := protocol.InputFrom(frame.P1, c.emote)
	var err error
	if c.emote > 0 {
		err = c.out.Queue(in)
	} else {
		err = c.out.Latest(in)
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("input not sent")
		return
	}
	c.emote = 0
}

// vote sends the local rematch choice once the result screen has been up
// long enough on the local clock.
func (c *Client) vote(frame input.Frame, local float64) {
	m := c.match
	if m.Winner == game.NoPlayer {
		return
	}
	if m.Phase == game.PhaseFinished && m.VotingOpen(local) {
		m.Phase = game.PhaseRematchVote
	}
	if frame.Vote == nil {
		return
	}
	if err := m.CastVote(game.P2, *frame.Vote, local); err != nil {
		c.log.Debug().Err(err).Msg("vote ignored")
		return
	}
	if err := c.out.Queue(protocol.RematchVote{Vote: *frame.Vote}); err != nil {
		c.log.Warn().Err(err).Msg("vote not sent")
		return
	}
	c.voteSent = true
}

// VoteSent reports whether this round's rematch vote has gone out.
func (c *Client) VoteSent() bool { return c.voteSent }
