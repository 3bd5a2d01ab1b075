package client

import (
	"lanrace/game"
	"lanrace/protocol"
)

// applyState overwrites the mirrored match with a host snapshot. Fields the
// snapshot does not carry keep their previous value. local is the receive
// time in local seconds. It reports whether a winner appeared.
func applyState(m *game.Match, sync *TimeSync, st *protocol.State, local float64) (newWinner bool) {
	if st.Has("server_time") {
		sync.Observe(st.ServerTime, local)
	}
	if st.Has("start_at") {
		m.StartAt = st.StartAt
	}
	if st.Has("go_until") {
		m.GoUntil = st.GoUntil
	}
	if st.Has("race_started") {
		m.RaceStarted = st.RaceStarted
	}
	if st.Has("map") && (st.Map != m.MapID || m.Track == nil) {
		m.SelectMap(st.Map)
	}
	if st.Has("cp1") {
		m.Checkpoints[0] = st.CP1
	}
	if st.Has("cp2") {
		m.Checkpoints[1] = st.CP2
	}
	if st.Has("winner") {
		w := game.NoPlayer
		if st.Winner != nil {
			w = game.ParsePlayer(*st.Winner)
		}
		newWinner = w != game.NoPlayer && m.Winner == game.NoPlayer
		m.Winner = w
	}
	if st.Has("items") {
		m.Items = m.Items[:0]
		for _, it := range st.Items {
			m.Items = append(m.Items, game.Item{Pos: game.Vec{X: it.X, Y: it.Y}})
		}
	}
	applyCar(m.Cars[0], st, "car1", &st.Car1)
	applyCar(m.Cars[1], st, "car2", &st.Car2)

	switch {
	case m.Winner != game.NoPlayer:
		if m.Phase < game.PhaseFinished {
			m.Phase = game.PhaseFinished
		}
	case m.RaceStarted:
		m.Phase = game.PhaseRacing
	default:
		m.Phase = game.PhaseCountdown
	}
	return newWinner
}

func applyCar(c *game.Car, st *protocol.State, key string, cs *protocol.CarState) {
	if st.Has(key + ".x") {
		c.X = cs.X
	}
	if st.Has(key + ".y") {
		c.Y = cs.Y
	}
	if st.Has(key + ".a") {
		c.Angle = cs.A
	}
	if st.Has(key + ".s") {
		c.Speed = cs.S
	}
	if st.Has(key + ".e") {
		c.EmoteID = cs.E
	}
	if st.Has(key + ".hi") {
		c.HasItem = cs.HI
	}
	if st.Has(key + ".bt") {
		c.BoostTimer = cs.BT
	}
}
