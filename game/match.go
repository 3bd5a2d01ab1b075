package game

import (
	"errors"
	"math/rand/v2"
)

var (
	ErrNotFinished  = errors.New("match has no winner yet")
	ErrVoteTooEarly = errors.New("rematch voting has not opened")
	ErrBadPlayer    = errors.New("unknown player")
)

// MatchConfig fixes what a match is built from.
type MatchConfig struct {
	Tuning Tuning
	// Rand drives item placement. Nil seeds a fresh source.
	Rand *rand.Rand
}

// Match owns everything about one race session: track, cars, items,
// checkpoint progress, countdown times and rematch votes. The authoritative
// side mutates it through Step; a client overwrites its fields from
// snapshots. All times are host-clock seconds.
type Match struct {
	MapID       int
	Track       *Track
	Cars        [2]*Car
	Items       []Item
	Checkpoints [2]int
	Winner      Player

	StartAt     *float64
	GoUntil     *float64
	RaceStarted bool
	FinishAt    *float64
	Votes       [2]Vote
	Phase       Phase

	rng        *rand.Rand
	spawnTimer float64
}

func NewMatch(cfg MatchConfig) *Match {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	tr := LoadTrack(0)
	m := &Match{
		Track: tr,
		Cars: [2]*Car{
			NewCar(CarSpec{X: tr.Spawns[0].X, Y: tr.Spawns[0].Y, Angle: tr.SpawnAngle, Tuning: cfg.Tuning, Livery: LiveryP1}),
			NewCar(CarSpec{X: tr.Spawns[1].X, Y: tr.Spawns[1].Y, Angle: tr.SpawnAngle, Tuning: cfg.Tuning, Livery: LiveryP2}),
		},
		Phase: PhaseMapSelect,
		rng:   rng,
	}
	return m
}

func (m *Match) Car(p Player) *Car {
	if p != P1 && p != P2 {
		return nil
	}
	return m.Cars[p.Index()]
}

// SelectMap loads map id (clamped) and puts both cars back on the grid.
func (m *Match) SelectMap(id int) {
	id = ClampMapID(id)
	if m.Track == nil || m.MapID != id {
		m.MapID = id
		m.Track = LoadTrack(id)
	}
	m.placeCars()
}

func (m *Match) placeCars() {
	for i, c := range m.Cars {
		c.Place(m.Track.Spawns[i], m.Track.SpawnAngle)
	}
}

// Reset clears progress for a new round on the current map and returns to
// map selection. Only the authoritative side spawns items; a client waits for
// the host's item list.
func (m *Match) Reset(spawnItems bool) {
	m.Checkpoints = [2]int{}
	m.Winner = NoPlayer
	m.FinishAt = nil
	m.Votes = [2]Vote{}
	m.StartAt = nil
	m.GoUntil = nil
	m.RaceStarted = false
	m.Phase = PhaseMapSelect
	m.spawnTimer = 0
	m.placeCars()
	m.Items = nil
	if spawnItems {
		m.spawnInitialItems()
	}
}

// Start leaves map selection. The countdown itself is anchored on the next
// Step so it is measured on the authoritative clock.
func (m *Match) Start() {
	if m.Phase == PhaseMapSelect {
		m.Phase = PhaseCountdown
	}
}

// SetEmote shows an emote over p's car.
func (m *Match) SetEmote(p Player, id int, now float64) {
	if c := m.Car(p); c != nil {
		c.SetEmote(id, now)
	}
}

// CountdownLeft is the time until the start signal, or false before the
// countdown has been anchored.
func (m *Match) CountdownLeft(now float64) (float64, bool) {
	if m.StartAt == nil {
		return 0, false
	}
	return *m.StartAt - now, true
}

// ShowGo reports whether the transient GO banner is still up.
func (m *Match) ShowGo(now float64) bool {
	return m.RaceStarted && m.GoUntil != nil && now < *m.GoUntil
}
