package room

import (
	"lanrace/game"
	"lanrace/protocol"
)

// Outbound is where a session writes to its peer. Snapshots and previews go
// through Latest; anything that must arrive goes through Queue.
type Outbound interface {
	Latest(protocol.Message) error
	Queue(protocol.Message) error
}

// Vote: rematch vote received from the remote player
type Vote struct {
	Player game.Player
	Yes    bool
}

// Leave: issued when the peer connection ends
type Leave struct {
	Err error
}

type discard struct{}

func (discard) Latest(protocol.Message) error { return nil }
func (discard) Queue(protocol.Message) error  { return nil }
