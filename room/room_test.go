package room

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"lanrace/game"
	"lanrace/input"
	"lanrace/network"
	"lanrace/protocol"
)

type fakeOut struct {
	mu     sync.Mutex
	latest []protocol.Message
	queued []protocol.Message
}

func (f *fakeOut) Latest(m protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = append(f.latest, m)
	return nil
}

func (f *fakeOut) Queue(m protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, m)
	return nil
}

func (f *fakeOut) lastLatest() protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.latest) == 0 {
		return nil
	}
	return f.latest[len(f.latest)-1]
}

// driver ticks a session at 60Hz on the session's fake clock.
type driver struct {
	s     *sim
	clock *clockwork.FakeClock
}

func (d *driver) ticks(n int) bool {
	for i := 0; i < n; i++ {
		d.clock.Advance(protocol.TickInterval)
		if d.s.tick(d.clock.Now()) {
			return true
		}
	}
	return false
}

func (d *driver) seconds(sec float64) bool {
	return d.ticks(int(sec * protocol.SimTickHz))
}

func newTestHost(script *input.Scripted) (*Host, *fakeOut, *driver) {
	clock := clockwork.NewFakeClock()
	h := NewHost(Config{
		RoomID:   "TEST01",
		RoomName: "Test",
		Tuning:   game.TuningVersus,
		Controls: script,
		Clock:    clock,
		Rand:     rand.New(rand.NewPCG(3, 4)),
	})
	out := &fakeOut{}
	h.out = out
	return h, out, &driver{s: h.sim, clock: clock}
}

// startRace picks map 0 and runs through the countdown.
func startRace(t *testing.T, script *input.Scripted, d *driver) {
	t.Helper()
	script.Push(input.Choose(0))
	d.ticks(1)
	if d.s.match.Phase != game.PhaseCountdown {
		t.Fatalf("phase after choosing = %v, want countdown", d.s.match.Phase)
	}
	d.seconds(game.CountdownSeconds + 0.1)
	if !d.s.match.RaceStarted {
		t.Fatalf("race not started after countdown")
	}
}

func TestHostPreviewsMapUntilChosen(t *testing.T) {
	script := input.NewScripted()
	h, out, d := newTestHost(script)

	d.ticks(3)
	if len(out.latest) != 3 {
		t.Fatalf("sent %d previews in 3 ticks, want 3", len(out.latest))
	}
	if ms, ok := out.lastLatest().(protocol.MapSelect); !ok || ms.Start {
		t.Fatalf("preview = %+v, want map_select without start", out.lastLatest())
	}

	script.Push(input.Choose(2))
	d.ticks(1)
	if len(out.queued) != 1 {
		t.Fatalf("queued %d messages, want the start announcement", len(out.queued))
	}
	if ms := out.queued[0].(protocol.MapSelect); ms.Map != 2 || !ms.Start {
		t.Fatalf("start announcement = %+v", ms)
	}
	if h.match.MapID != 2 || h.match.Phase != game.PhaseCountdown {
		t.Fatalf("map %d phase %v after choosing", h.match.MapID, h.match.Phase)
	}

	d.ticks(1)
	st, ok := out.lastLatest().(*protocol.State)
	if !ok {
		t.Fatalf("last message = %T, want *protocol.State", out.lastLatest())
	}
	if st.StartAt == nil || st.RaceStarted {
		t.Fatalf("countdown snapshot start_at=%v race_started=%v", st.StartAt, st.RaceStarted)
	}
	if *st.StartAt-st.ServerTime < game.CountdownSeconds-1e-9 {
		t.Fatalf("start_at %v is not %vs after server_time %v", *st.StartAt, game.CountdownSeconds, st.ServerTime)
	}
}

func TestHostInvalidMapClampsToZero(t *testing.T) {
	script := input.NewScripted(input.Choose(9))
	h, out, d := newTestHost(script)
	d.ticks(1)
	if h.match.MapID != 0 {
		t.Fatalf("MapID = %d, want 0", h.match.MapID)
	}
	if ms := out.queued[0].(protocol.MapSelect); ms.Map != 0 {
		t.Fatalf("announced map %d, want 0", ms.Map)
	}
}

func TestHostRepeatsStaleRemoteInput(t *testing.T) {
	script := input.NewScripted()
	h, _, d := newTestHost(script)
	startRace(t, script, d)

	h.inputs.Store(protocol.Input{Throttle: true})
	prev := h.match.Cars[1].Speed
	for i := 0; i < 30; i++ {
		d.ticks(1)
		c := h.match.Cars[1]
		if c.Speed <= prev {
			t.Fatalf("tick %d: car2 speed %f did not grow from %f on repeated input", i, c.Speed, prev)
		}
		prev = c.Speed
	}
	if h.match.Cars[0].Speed != 0 {
		t.Fatalf("car1 moved without local input: speed %f", h.match.Cars[0].Speed)
	}
}

func TestHostAppliesRemoteEmoteOncePerFrame(t *testing.T) {
	script := input.NewScripted()
	h, _, d := newTestHost(script)
	startRace(t, script, d)

	h.inputs.Store(protocol.Input{EmoteReq: 4})
	d.ticks(1)
	if h.match.Cars[1].EmoteID != 4 {
		t.Fatalf("car2 emote = %d, want 4", h.match.Cars[1].EmoteID)
	}
	d.seconds(game.EmoteDuration + 0.1)
	if h.match.Cars[1].EmoteID != 0 {
		t.Fatalf("emote re-triggered from a stale frame: %d", h.match.Cars[1].EmoteID)
	}

	h.inputs.Store(protocol.Input{EmoteReq: 2})
	d.ticks(1)
	if h.match.Cars[1].EmoteID != 2 {
		t.Fatalf("car2 emote = %d, want 2", h.match.Cars[1].EmoteID)
	}
}

func TestHostSnapshotsEveryTick(t *testing.T) {
	script := input.NewScripted()
	_, out, d := newTestHost(script)
	startRace(t, script, d)

	before := len(out.latest)
	d.ticks(10)
	if got := len(out.latest) - before; got != 10 {
		t.Fatalf("sent %d snapshots in 10 ticks, want 10", got)
	}
}

// finishRace declares P1 the winner at the current host time.
func finishRace(d *driver) {
	m := d.s.match
	m.Winner = game.P1
	m.Phase = game.PhaseFinished
	d.ticks(1)
}

func TestHostRematchBothYesRestarts(t *testing.T) {
	script := input.NewScripted()
	h, out, d := newTestHost(script)
	startRace(t, script, d)
	finishRace(d)

	// votes before the result screen delay are refused
	h.castRemoteVote(Vote{Player: game.P2, Yes: true})
	if h.match.Votes[1] != game.VoteUnset {
		t.Fatalf("early remote vote recorded")
	}

	d.seconds(game.VoteDelaySeconds + 0.1)
	h.castRemoteVote(Vote{Player: game.P2, Yes: true})
	script.Push(input.VoteFrame(true))
	if d.ticks(1) {
		t.Fatalf("session ended on a rematch")
	}

	last := out.queued[len(out.queued)-1]
	if mr, ok := last.(protocol.MatchResult); !ok || mr.Action != protocol.ActionRestart {
		t.Fatalf("last queued = %+v, want restart", last)
	}
	m := h.match
	if m.Phase != game.PhaseMapSelect || m.Winner != game.NoPlayer || m.Votes != [2]game.Vote{} {
		t.Fatalf("match not reset: phase %v winner %v votes %v", m.Phase, m.Winner, m.Votes)
	}
	if len(m.Items) == 0 {
		t.Fatalf("restart did not respawn items")
	}
}

func TestHostRematchAnyNoQuits(t *testing.T) {
	script := input.NewScripted()
	h, out, d := newTestHost(script)
	startRace(t, script, d)
	finishRace(d)
	d.seconds(game.VoteDelaySeconds + 0.1)

	h.castRemoteVote(Vote{Player: game.P2, Yes: false})
	if !d.ticks(1) {
		t.Fatalf("session kept running after a no vote")
	}
	last := out.queued[len(out.queued)-1]
	if mr, ok := last.(protocol.MatchResult); !ok || mr.Action != protocol.ActionQuit {
		t.Fatalf("last queued = %+v, want quit", last)
	}
}

func TestHostWaitsForBothVotes(t *testing.T) {
	script := input.NewScripted()
	h, _, d := newTestHost(script)
	startRace(t, script, d)
	finishRace(d)
	d.seconds(game.VoteDelaySeconds + 0.1)

	script.Push(input.VoteFrame(true))
	if d.ticks(30) {
		t.Fatalf("session ended with one vote")
	}
	if h.match.Phase != game.PhaseRematchVote {
		t.Fatalf("phase = %v, want rematch_vote", h.match.Phase)
	}
}

func TestLocalSoloVoteRestarts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	script := input.NewScripted()
	l := NewLocal(Config{Tuning: game.TuningClassic, Controls: script, Clock: clock})
	d := &driver{s: l.sim, clock: clock}

	startRace(t, script, d)
	script.Push(input.Frame{P1: game.TickInput{Controls: game.Controls{Throttle: true}}, P2: game.TickInput{Controls: game.Controls{Brake: true}}})
	d.ticks(1)
	if l.match.Cars[0].Speed <= 0 || l.match.Cars[1].Speed >= 0 {
		t.Fatalf("local frame not routed to both cars: %f %f", l.match.Cars[0].Speed, l.match.Cars[1].Speed)
	}

	finishRace(d)
	d.seconds(game.VoteDelaySeconds + 0.1)
	script.Push(input.VoteFrame(true))
	if d.ticks(1) {
		t.Fatalf("local session ended on a yes vote")
	}
	if l.match.Phase != game.PhaseMapSelect {
		t.Fatalf("phase = %v, want map_select", l.match.Phase)
	}

	startRace(t, script, d)
	finishRace(d)
	d.seconds(game.VoteDelaySeconds + 0.1)
	script.Push(input.VoteFrame(false))
	if !d.ticks(1) {
		t.Fatalf("local session continued after a no vote")
	}
}

func TestHostRunOverPipe(t *testing.T) {
	clock := clockwork.NewFakeClock()
	script := input.NewScripted()
	h := NewHost(Config{RoomID: "PIPE01", Tuning: game.TuningVersus, Controls: script, Clock: clock})
	hostSide, clientSide := network.Pipe()
	defer clientSide.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, hostSide) }()

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("ticker never started: %v", err)
	}
	clock.Advance(protocol.TickInterval)

	line, err := clientSide.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	msg, err := protocol.Decode(line)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := msg.(protocol.MapSelect); !ok {
		t.Fatalf("first message = %T, want map preview", msg)
	}
	if st := h.Status(); st.Players != 2 || st.RoomID != "PIPE01" || st.Phase != "map_select" {
		t.Fatalf("status = %+v", st)
	}

	script.Push(input.Frame{Quit: true})
	clock.Advance(protocol.TickInterval)
	for {
		line, err := clientSide.ReadLine()
		if err != nil {
			t.Fatalf("connection closed before the quit result: %v", err)
		}
		msg, err := protocol.Decode(line)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if mr, ok := msg.(protocol.MatchResult); ok {
			if mr.Action != protocol.ActionQuit {
				t.Fatalf("action = %q, want quit", mr.Action)
			}
			break
		}
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v, want nil after quit", err)
		}
	case <-ctx.Done():
		t.Fatalf("Run did not return after quit")
	}
}

func TestHostRunReportsPeerClosed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := NewHost(Config{Tuning: game.TuningVersus, Clock: clock})
	hostSide, clientSide := network.Pipe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, hostSide) }()

	_ = clientSide.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrPeerClosed) {
			t.Fatalf("Run = %v, want ErrPeerClosed", err)
		}
	case <-ctx.Done():
		t.Fatalf("Run did not notice the closed peer")
	}
}

func TestHostServeTakesOneClient(t *testing.T) {
	clock := clockwork.NewFakeClock()
	script := input.NewScripted()
	h := NewHost(Config{RoomID: "SERVE1", Tuning: game.TuningVersus, Controls: script, Clock: clock})
	ln, err := network.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	h.SetPort(ln.Port())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx, ln) }()

	conn, err := network.DialTCP(ctx, ln.Addr(), time.Second)
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer conn.Close()

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("ticker never started: %v", err)
	}
	if st := h.Status(); st.Port != ln.Port() || st.Players != 2 {
		t.Fatalf("status = %+v", st)
	}
	if _, err := network.DialTCP(ctx, ln.Addr(), 200*time.Millisecond); err == nil {
		t.Fatalf("listener still accepting after the first client")
	}

	_ = conn.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrPeerClosed) {
			t.Fatalf("Serve = %v, want ErrPeerClosed", err)
		}
	case <-ctx.Done():
		t.Fatalf("Serve did not return")
	}
}
