package protocol

import "lanrace/game"

// messages coming in from the client.

type Input struct {
	Throttle bool `json:"throttle"`
	Brake    bool `json:"brake"`
	Left     bool `json:"left"`
	Right    bool `json:"right"`
	Boost    bool `json:"boost"`
	EmoteReq int  `json:"emote_req"` // 0 none, 1..5 one-shot emote
}

func (Input) Type() Type { return TypeInput }

func InputFrom(in game.TickInput, emote int) Input {
	return Input{
		Throttle: in.Throttle,
		Brake:    in.Brake,
		Left:     in.Left,
		Right:    in.Right,
		Boost:    in.Boost,
		EmoteReq: emote,
	}
}

func (in Input) TickInput() game.TickInput {
	return game.TickInput{
		Controls: game.Controls{
			Throttle: in.Throttle,
			Brake:    in.Brake,
			Left:     in.Left,
			Right:    in.Right,
		},
		Boost: in.Boost,
	}
}
