package protocol

import "lanrace/game"

// messages going out from the host.

type CarState struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	A  float64 `json:"a"`  // heading, radians
	S  float64 `json:"s"`  // speed
	E  int     `json:"e"`  // emote id, 0 none
	HI bool    `json:"hi"` // holding an item
	BT float64 `json:"bt"` // boost seconds left
}

type ItemPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is the full per-tick snapshot. StartAt, GoUntil and Winner encode as
// null when unset so a client can tell "cleared" from "not sent".
type State struct {
	ServerTime  float64   `json:"server_time"`
	StartAt     *float64  `json:"start_at"`
	GoUntil     *float64  `json:"go_until"`
	RaceStarted bool      `json:"race_started"`
	Map         int       `json:"map"`
	Items       []ItemPos `json:"items"`
	Car1        CarState  `json:"car1"`
	Car2        CarState  `json:"car2"`
	CP1         int       `json:"cp1"`
	CP2         int       `json:"cp2"`
	Winner      *string   `json:"winner"`

	// fields lists the keys present on a decoded snapshot. nil means every
	// field is present.
	fields map[string]bool
}

func (State) Type() Type { return TypeState }

// Has reports whether field was carried by the snapshot. Car fields are
// addressed as "car1.x", "car2.bt" and so on.
func (s *State) Has(field string) bool {
	return s.fields == nil || s.fields[field]
}

// Car returns the snapshot for p.
func (s *State) Car(p game.Player) *CarState {
	if p == game.P2 {
		return &s.Car2
	}
	return &s.Car1
}

func carState(c *game.Car) CarState {
	return CarState{
		X:  c.X,
		Y:  c.Y,
		A:  c.Angle,
		S:  c.Speed,
		E:  c.EmoteID,
		HI: c.HasItem,
		BT: c.BoostTimer,
	}
}

// Snapshot captures m at host time now.
func Snapshot(m *game.Match, now float64) *State {
	st := &State{
		ServerTime:  now,
		StartAt:     copyTime(m.StartAt),
		GoUntil:     copyTime(m.GoUntil),
		RaceStarted: m.RaceStarted,
		Map:         m.MapID,
		Items:       make([]ItemPos, 0, len(m.Items)),
		Car1:        carState(m.Cars[0]),
		Car2:        carState(m.Cars[1]),
		CP1:         m.Checkpoints[0],
		CP2:         m.Checkpoints[1],
	}
	for _, it := range m.Items {
		st.Items = append(st.Items, ItemPos{X: it.Pos.X, Y: it.Pos.Y})
	}
	if m.Winner != game.NoPlayer {
		w := m.Winner.String()
		st.Winner = &w
	}
	return st
}

func copyTime(t *float64) *float64 {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
