package input

import (
	"math"

	"lanrace/game"
)

const (
	steerDeadband = 0.08 // radians
	brakeAngle    = 2.0
	brakeSpeed    = 150.0
)

// Autopilot drives cars at their next checkpoint, boosts as soon as it holds
// an item, picks MapID on the select screen and answers the rematch vote with
// Rematch. Match is read on the polling goroutine, which owns the match.
type Autopilot struct {
	Match func() *game.Match
	// Seats maps Frame.P1 and Frame.P2 to the cars they steer. NoPlayer
	// leaves a seat idle. Seats[0] also casts the vote.
	Seats   [2]game.Player
	MapID   int
	Rematch bool
}

func (a *Autopilot) Poll() Frame {
	m := a.Match()
	if m == nil {
		return Frame{}
	}
	switch m.Phase {
	case game.PhaseMapSelect:
		return Choose(a.MapID)
	case game.PhaseRematchVote:
		if p := a.Seats[0]; p != game.NoPlayer && m.Votes[p.Index()] == game.VoteUnset {
			return VoteFrame(a.Rematch)
		}
		return Frame{}
	case game.PhaseFinished:
		return Frame{}
	}

	var f Frame
	f.P1 = a.drive(m, a.Seats[0])
	f.P2 = a.drive(m, a.Seats[1])
	return f
}

func (a *Autopilot) drive(m *game.Match, p game.Player) game.TickInput {
	c := m.Car(p)
	if c == nil || m.Track == nil {
		return game.TickInput{}
	}
	next := m.Checkpoints[p.Index()]
	if next >= len(m.Track.Checkpoints) {
		return game.TickInput{}
	}
	return Steer(c, m.Track.Checkpoints[next].Center())
}

// Steer returns the controls that turn c toward target while driving.
func Steer(c *game.Car, target game.Vec) game.TickInput {
	want := math.Atan2(target.Y-c.Y, target.X-c.X)
	diff := math.Remainder(want-c.Angle, 2*math.Pi)

	var in game.TickInput
	in.Left = diff < -steerDeadband
	in.Right = diff > steerDeadband
	if math.Abs(diff) > brakeAngle && c.Speed > brakeSpeed {
		in.Brake = true
	} else {
		in.Throttle = true
	}
	in.Boost = c.HasItem
	return in
}
