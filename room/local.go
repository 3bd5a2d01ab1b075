package room

import (
	"context"

	"lanrace/protocol"
)

// Local simulates both cars in one process from one provider, with no
// network. P1's vote alone decides the rematch.
type Local struct {
	*sim
}

func NewLocal(cfg Config) *Local {
	return &Local{sim: newSim(cfg, discard{}, true)}
}

// Run ticks until the session quits or ctx is cancelled.
func (l *Local) Run(ctx context.Context) error {
	ticker := l.clock.NewTicker(protocol.TickInterval)
	defer ticker.Stop()
	l.last = l.clock.Now()
	l.log.Info().Msg("local match started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if l.tick(l.clock.Now()) {
				return nil
			}
		}
	}
}
