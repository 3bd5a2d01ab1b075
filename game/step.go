package game

// Step advances the authoritative simulation by dt seconds ending at now.
// Before the countdown expires both cars are frozen on the grid, and once a
// winner exists no car moves again this match.
func (m *Match) Step(now, dt float64, in [2]TickInput) {
	if m.Phase == PhaseMapSelect {
		return
	}
	for _, c := range m.Cars {
		c.ExpireEmote(now)
	}
	if m.Phase == PhaseFinished || m.Phase == PhaseRematchVote {
		m.observeFinish(now)
		return
	}

	if m.StartAt == nil {
		startAt := now + CountdownSeconds
		m.StartAt = &startAt
		m.Phase = PhaseCountdown
	}
	if !m.RaceStarted {
		if now < *m.StartAt {
			return
		}
		goUntil := now + GoDisplaySeconds
		m.RaceStarted = true
		m.GoUntil = &goUntil
		m.Phase = PhaseRacing
	}

	m.tickSpawner(dt)
	for i, c := range m.Cars {
		m.stepCar(i, c, dt, in[i])
	}

	n := len(m.Track.Checkpoints)
	switch {
	case m.Checkpoints[0] >= n:
		m.Winner = P1
	case m.Checkpoints[1] >= n:
		m.Winner = P2
	}
	if m.Winner != NoPlayer {
		m.Phase = PhaseFinished
		m.observeFinish(now)
	}
}

func (m *Match) stepCar(i int, c *Car, dt float64, in TickInput) {
	from := Vec{X: c.X, Y: c.Y}
	c.Advance(dt, in.Controls)
	m.Track.Slide(c, from)
	m.pickup(c)
	if in.Boost {
		c.ActivateBoost()
	}
	if m.Track.CheckpointHit(c, m.Checkpoints[i]) {
		m.Checkpoints[i]++
	}
}

// Slide resolves the move from `from` to the car's current position one axis
// at a time: X first, reverted alone if it hits a wall, then Y likewise. A
// diagonal move into a wall keeps its free component.
func (t *Track) Slide(c *Car, from Vec) {
	to := Vec{X: c.X, Y: c.Y}

	c.X, c.Y = to.X, from.Y
	if t.CollidesWithWalls(c.AABB()) {
		c.X = from.X
	}
	c.Y = to.Y
	if t.CollidesWithWalls(c.AABB()) {
		c.Y = from.Y
	}
}
