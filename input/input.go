// Package input turns whatever drives the cars (keyboard, script, bot) into
// one control snapshot per simulation tick.
package input

import (
	"sync"

	"lanrace/game"
)

// Frame is one tick of local input. P2 is only read in local mode, where one
// process drives both cars.
type Frame struct {
	P1, P2    game.TickInput
	Emote     int   // 1..5 requests an emote for this side's car
	Vote      *bool // rematch vote, nil when not voting this tick
	MapChoice *int  // map picked on the select screen
	Quit      bool
}

// Provider yields the control state for the next tick. Poll is called once
// per tick from the simulation goroutine.
type Provider interface {
	Poll() Frame
}

// Scripted replays queued frames, then keeps returning Idle.
type Scripted struct {
	mu     sync.Mutex
	frames []Frame
	Idle   Frame
}

func NewScripted(frames ...Frame) *Scripted {
	return &Scripted{frames: frames}
}

// Push queues more frames. Safe to call while another goroutine polls.
func (s *Scripted) Push(frames ...Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frames...)
}

func (s *Scripted) Poll() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return s.Idle
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f
}

func (s *Scripted) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Choose builds a Frame that picks map id.
func Choose(id int) Frame {
	return Frame{MapChoice: &id}
}

// VoteFrame builds a Frame carrying a rematch vote.
func VoteFrame(yes bool) Frame {
	return Frame{Vote: &yes}
}
