package game

// observeFinish stamps the finish time the first time a winner is seen and
// opens voting once the result screen has been up long enough.
func (m *Match) observeFinish(now float64) {
	if m.Winner == NoPlayer {
		return
	}
	if m.FinishAt == nil {
		finishAt := now
		m.FinishAt = &finishAt
		if m.Phase < PhaseFinished {
			m.Phase = PhaseFinished
		}
	}
	if m.Phase == PhaseFinished && m.VotingOpen(now) {
		m.Phase = PhaseRematchVote
	}
}

// VotingOpen reports whether rematch votes are accepted at now.
func (m *Match) VotingOpen(now float64) bool {
	return m.FinishAt != nil && now-*m.FinishAt >= VoteDelaySeconds
}

// CastVote records p's rematch choice. Votes before the result screen delay
// has passed are refused.
func (m *Match) CastVote(p Player, yes bool, now float64) error {
	if p != P1 && p != P2 {
		return ErrBadPlayer
	}
	if m.Winner == NoPlayer {
		return ErrNotFinished
	}
	m.observeFinish(now)
	if !m.VotingOpen(now) {
		return ErrVoteTooEarly
	}
	m.Votes[p.Index()] = VoteOf(yes)
	m.Phase = PhaseRematchVote
	return nil
}

// Outcome combines the votes. With both players voting, a rematch needs two
// yes votes and any no ends the session immediately. soloDecides lets P1's
// vote stand alone, which is how a single-process local match resolves.
func (m *Match) Outcome(soloDecides bool) Outcome {
	v1, v2 := m.Votes[0], m.Votes[1]
	if soloDecides {
		switch v1 {
		case VoteYes:
			return OutcomeRestart
		case VoteNo:
			return OutcomeQuit
		}
		return OutcomePending
	}
	if v1 == VoteNo || v2 == VoteNo {
		return OutcomeQuit
	}
	if v1 == VoteYes && v2 == VoteYes {
		return OutcomeRestart
	}
	return OutcomePending
}
