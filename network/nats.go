package network

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"lanrace/protocol"
)

// DefaultRoomsSubject carries room beacons when discovery goes through NATS
// instead of UDP broadcast, e.g. on networks that drop broadcast traffic.
const DefaultRoomsSubject = "lanrace.rooms"

type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Subject:       DefaultRoomsSubject,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// ConnectNATS dials the broker with reconnect and logging handlers.
func ConnectNATS(cfg NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("lanrace"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// NATSAnnouncer publishes room beacons on a subject.
type NATSAnnouncer struct {
	NC       *nats.Conn
	Subject  string
	Interval time.Duration
	Clock    clockwork.Clock
}

func NewNATSAnnouncer(nc *nats.Conn, subject string, clock clockwork.Clock) *NATSAnnouncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if subject == "" {
		subject = DefaultRoomsSubject
	}
	return &NATSAnnouncer{NC: nc, Subject: subject, Interval: protocol.AnnounceInterval, Clock: clock}
}

func (a *NATSAnnouncer) Announce(ctx context.Context, room protocol.RoomAnnounce) error {
	log.Info().Str("room_id", room.RoomID).Str("subject", a.Subject).Msg("announcing room over NATS")
	return announceLoop(ctx, a.Clock, a.Interval, room, func(b []byte) error {
		return a.NC.Publish(a.Subject, b)
	})
}

// NATSDiscoverer subscribes to room beacons for a window.
type NATSDiscoverer struct {
	NC      *nats.Conn
	Subject string
	Clock   clockwork.Clock
}

func NewNATSDiscoverer(nc *nats.Conn, subject string, clock clockwork.Clock) *NATSDiscoverer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if subject == "" {
		subject = DefaultRoomsSubject
	}
	return &NATSDiscoverer{NC: nc, Subject: subject, Clock: clock}
}

func (d *NATSDiscoverer) Discover(ctx context.Context, window time.Duration) ([]RoomInfo, error) {
	dir := NewDirectory(d.Clock, RoomTTL)
	sub, err := d.NC.Subscribe(d.Subject, func(m *nats.Msg) {
		observeLine(dir, m.Data, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", d.Subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	select {
	case <-ctx.Done():
	case <-d.Clock.After(window):
	}
	return dir.ListRooms(), nil
}
