package protocol

import "time"

// Type is the discriminant carried in every message's "type" field.
type Type string

const (
	TypeMapSelect    Type = "map_select"
	TypeInput        Type = "input"
	TypeState        Type = "state"
	TypeRematchVote  Type = "rematch_vote"
	TypeMatchResult  Type = "match_result"
	TypeRoomAnnounce Type = "room_announce"
)

const (
	SimTickHz    = 60
	TickInterval = time.Second / SimTickHz

	// AnnounceInterval is how often a host advertises its room.
	AnnounceInterval = 500 * time.Millisecond
	DiscoveryPort    = 37020
	// DiscoverWindow is how long a joiner listens for announcements.
	DiscoverWindow = 1200 * time.Millisecond

	DefaultGamePort = 5000
	// MaxLineBytes bounds one framed message.
	MaxLineBytes = 1 << 20
)

const (
	ActionRestart = "restart"
	ActionQuit    = "quit"
)

// Message is one variant of the wire union.
type Message interface {
	Type() Type
}

// MapSelect announces the host's map choice. Start is set once, when the
// host leaves the select screen.
type MapSelect struct {
	Map   int  `json:"map"`
	Start bool `json:"start,omitempty"`
}

func (MapSelect) Type() Type { return TypeMapSelect }

type RematchVote struct {
	Vote bool `json:"vote"`
}

func (RematchVote) Type() Type { return TypeRematchVote }

type MatchResult struct {
	Action string `json:"action"`
}

func (MatchResult) Type() Type { return TypeMatchResult }

// RoomAnnounce is the discovery beacon. It never travels on a game
// connection.
type RoomAnnounce struct {
	RoomID   string  `json:"room_id"`
	RoomName string  `json:"room_name"`
	IP       string  `json:"ip"`
	Port     int     `json:"port"`
	TS       float64 `json:"ts"`
}

func (RoomAnnounce) Type() Type { return TypeRoomAnnounce }
