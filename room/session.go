package room

import (
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lanrace/game"
	"lanrace/input"
	"lanrace/network"
	"lanrace/protocol"
	"lanrace/slot"
)

// Config is shared by Host and Local.
type Config struct {
	RoomID   string
	RoomName string
	Tuning   game.Tuning
	// Controls drives P1 (and P2 in local mode).
	Controls input.Provider
	Clock    clockwork.Clock
	Rand     *rand.Rand
	// OnTick, when set, receives the match after every tick. It runs on the
	// simulation goroutine and must not keep the pointer.
	OnTick func(m *game.Match, now float64)
}

// sim is the authoritative tick shared by host and local sessions.
type sim struct {
	cfg    Config
	clock  clockwork.Clock
	match  *game.Match
	out    Outbound
	solo   bool
	epoch  time.Time
	last   time.Time
	status slot.Slot[network.RoomStatus]
	log    zerolog.Logger

	// remote is P2's latest input; nil in local mode, where P2 comes from
	// the local provider.
	remote    *slot.Slot[protocol.Input]
	emoteSeen uint64
}

func newSim(cfg Config, out Outbound, solo bool) *sim {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Controls == nil {
		cfg.Controls = input.NewScripted()
	}
	now := cfg.Clock.Now()
	s := &sim{
		cfg:   cfg,
		clock: cfg.Clock,
		match: game.NewMatch(game.MatchConfig{Tuning: cfg.Tuning, Rand: cfg.Rand}),
		out:   out,
		solo:  solo,
		epoch: now,
		last:  now,
		log:   log.With().Str("room_id", cfg.RoomID).Logger(),
	}
	s.match.Reset(true)
	s.publishStatus()
	return s
}

// Match is owned by the tick goroutine; only read it from there, e.g. in a
// Provider or OnTick.
func (s *sim) Match() *game.Match { return s.match }

// hostTime is seconds on the authoritative clock.
func (s *sim) hostTime(t time.Time) float64 {
	return t.Sub(s.epoch).Seconds()
}

// tick advances the session by one frame and reports whether it has ended.
func (s *sim) tick(t time.Time) bool {
	now := s.hostTime(t)
	dt := t.Sub(s.last).Seconds()
	s.last = t
	frame := s.cfg.Controls.Poll()
	if frame.Quit {
		s.finish(protocol.ActionQuit)
		return true
	}

	m := s.match
	if m.Phase == game.PhaseMapSelect {
		s.chooseMap(frame)
		s.afterTick(now)
		return false
	}

	if m.Winner == game.NoPlayer {
		if frame.Emote > 0 {
			m.SetEmote(game.P1, frame.Emote, now)
		}
		s.remoteEmote(now)
	} else if frame.Vote != nil {
		if err := m.CastVote(game.P1, *frame.Vote, now); err != nil {
			s.log.Debug().Err(err).Msg("local vote ignored")
		}
	}

	in := [2]game.TickInput{frame.P1, frame.P2}
	if s.remote != nil {
		in[1] = game.TickInput{}
		if last, _, ok := s.remote.Load(); ok {
			in[1] = last.TickInput()
		}
	}
	prevPhase := m.Phase
	m.Step(now, dt, in)
	if m.Phase != prevPhase {
		s.log.Info().Str("phase", m.Phase.String()).Str("winner", m.Winner.String()).Msg("phase changed")
	}
	if err := s.out.Latest(protocol.Snapshot(m, now)); err != nil {
		s.log.Warn().Err(err).Msg("snapshot not sent")
	}

	ended := s.resolveVotes()
	s.afterTick(now)
	return ended
}

func (s *sim) chooseMap(frame input.Frame) {
	m := s.match
	if frame.MapChoice == nil {
		if err := s.out.Latest(protocol.MapSelect{Map: m.MapID}); err != nil {
			s.log.Warn().Err(err).Msg("map preview not sent")
		}
		return
	}
	m.SelectMap(*frame.MapChoice)
	m.Reset(true)
	m.Start()
	if err := s.out.Queue(protocol.MapSelect{Map: m.MapID, Start: true}); err != nil {
		s.log.Warn().Err(err).Msg("map start not sent")
	}
	s.log.Info().Int("map", m.MapID).Str("track", m.Track.Name).Msg("race starting")
}

// remoteEmote shows P2's emote request once per received input frame.
func (s *sim) remoteEmote(now float64) {
	if s.remote == nil {
		return
	}
	in, ver, ok := s.remote.LoadSince(s.emoteSeen)
	if !ok {
		return
	}
	s.emoteSeen = ver
	if in.EmoteReq > 0 {
		s.match.SetEmote(game.P2, in.EmoteReq, now)
	}
}

// castRemoteVote records P2's vote against the host clock.
func (s *sim) castRemoteVote(v Vote) {
	now := s.hostTime(s.clock.Now())
	if err := s.match.CastVote(v.Player, v.Yes, now); err != nil {
		s.log.Debug().Err(err).Str("player", v.Player.String()).Msg("remote vote ignored")
	}
}

func (s *sim) resolveVotes() bool {
	switch s.match.Outcome(s.solo) {
	case game.OutcomeRestart:
		if err := s.out.Queue(protocol.MatchResult{Action: protocol.ActionRestart}); err != nil {
			s.log.Warn().Err(err).Msg("restart not sent")
		}
		s.match.Reset(true)
		s.log.Info().Msg("rematch accepted")
		return false
	case game.OutcomeQuit:
		s.finish(protocol.ActionQuit)
		return true
	}
	return false
}

func (s *sim) finish(action string) {
	if err := s.out.Queue(protocol.MatchResult{Action: action}); err != nil {
		s.log.Warn().Err(err).Msg("match result not sent")
	}
	s.log.Info().Str("action", action).Msg("session over")
}

func (s *sim) afterTick(now float64) {
	s.publishStatus()
	if s.cfg.OnTick != nil {
		s.cfg.OnTick(s.match, now)
	}
}

func (s *sim) publishStatus() {
	s.status.Store(network.RoomStatus{
		RoomID:   s.cfg.RoomID,
		RoomName: s.cfg.RoomName,
		Phase:    s.match.Phase.String(),
		Map:      s.match.MapID,
	})
}
