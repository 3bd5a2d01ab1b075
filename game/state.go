package game

// Player identifies a car slot. The zero value means nobody, which is also
// how an unset winner reads.
type Player int

const (
	NoPlayer Player = iota
	P1
	P2
)

// Index is the slot in per-car arrays. Only valid for P1 and P2.
func (p Player) Index() int {
	return int(p) - 1
}

func (p Player) String() string {
	switch p {
	case P1:
		return "P1"
	case P2:
		return "P2"
	default:
		return ""
	}
}

// ParsePlayer is the inverse of String. Unknown text is NoPlayer.
func ParsePlayer(s string) Player {
	switch s {
	case "P1":
		return P1
	case "P2":
		return P2
	default:
		return NoPlayer
	}
}

type Phase uint8

const (
	PhaseMapSelect Phase = iota
	PhaseCountdown
	PhaseRacing
	PhaseFinished
	PhaseRematchVote
)

func (p Phase) String() string {
	switch p {
	case PhaseMapSelect:
		return "map_select"
	case PhaseCountdown:
		return "countdown"
	case PhaseRacing:
		return "racing"
	case PhaseFinished:
		return "finished"
	case PhaseRematchVote:
		return "rematch_vote"
	default:
		return "unknown"
	}
}

type Vote uint8

const (
	VoteUnset Vote = iota
	VoteYes
	VoteNo
)

func VoteOf(yes bool) Vote {
	if yes {
		return VoteYes
	}
	return VoteNo
}

func (v Vote) String() string {
	switch v {
	case VoteYes:
		return "READY"
	case VoteNo:
		return "NO"
	default:
		return "Waiting..."
	}
}

// Outcome is what the authoritative side does with the rematch votes.
type Outcome uint8

const (
	OutcomePending Outcome = iota
	OutcomeRestart
	OutcomeQuit
)

// TickInput is everything one car needs for a simulation tick.
type TickInput struct {
	Controls
	Boost bool
}
