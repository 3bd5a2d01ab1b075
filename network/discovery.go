package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"lanrace/protocol"
)

// Announcer advertises a room until ctx is done. Announcements are
// best-effort; a failed send is logged and the next tick tries again.
type Announcer interface {
	Announce(ctx context.Context, room protocol.RoomAnnounce) error
}

// Discoverer collects rooms announced during window.
type Discoverer interface {
	Discover(ctx context.Context, window time.Duration) ([]RoomInfo, error)
}

// announceLoop sends room every interval, stamping ts with the clock.
func announceLoop(ctx context.Context, clock clockwork.Clock, interval time.Duration, room protocol.RoomAnnounce, send func([]byte) error) error {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		room.TS = float64(clock.Now().UnixNano()) / 1e9
		b, err := protocol.Encode(room)
		if err != nil {
			return err
		}
		if err := send(b); err != nil {
			log.Debug().Err(err).Str("room_id", room.RoomID).Msg("announce failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		}
	}
}

// observeLine feeds one received beacon into dir.
func observeLine(dir *Directory, line []byte, from net.IP) {
	msg, err := protocol.Decode(line)
	if err != nil {
		log.Debug().Err(err).Msg("ignoring discovery packet")
		return
	}
	if a, ok := msg.(protocol.RoomAnnounce); ok {
		dir.Observe(a, from)
	}
}

// UDPAnnouncer broadcasts the room to the LAN.
type UDPAnnouncer struct {
	Addr     *net.UDPAddr
	Interval time.Duration
	Clock    clockwork.Clock
}

func NewUDPAnnouncer(port int, clock clockwork.Clock) *UDPAnnouncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &UDPAnnouncer{
		Addr:     &net.UDPAddr{IP: net.IPv4bcast, Port: port},
		Interval: protocol.AnnounceInterval,
		Clock:    clock,
	}
}

func (a *UDPAnnouncer) Announce(ctx context.Context, room protocol.RoomAnnounce) error {
	conn, err := net.DialUDP("udp4", nil, a.Addr)
	if err != nil {
		return fmt.Errorf("open broadcast socket: %w", err)
	}
	defer conn.Close()

	log.Info().Str("room_id", room.RoomID).Stringer("addr", a.Addr).Msg("announcing room")
	return announceLoop(ctx, a.Clock, a.Interval, room, func(b []byte) error {
		_, err := conn.Write(b)
		return err
	})
}

// UDPDiscoverer listens for broadcast beacons.
type UDPDiscoverer struct {
	Port  int
	Clock clockwork.Clock
}

func NewUDPDiscoverer(port int, clock clockwork.Clock) *UDPDiscoverer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &UDPDiscoverer{Port: port, Clock: clock}
}

func (d *UDPDiscoverer) Discover(ctx context.Context, window time.Duration) ([]RoomInfo, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: d.Port})
	if err != nil {
		return nil, fmt.Errorf("listen for rooms: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	// net deadlines are wall-clock; the directory uses the injected clock.
	_ = conn.SetReadDeadline(time.Now().Add(window))
	dir := NewDirectory(d.Clock, RoomTTL)
	buf := make([]byte, 64*1024)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				break
			}
			if ctx.Err() != nil {
				break
			}
			return nil, fmt.Errorf("read rooms: %w", err)
		}
		observeLine(dir, buf[:n], from.IP)
	}
	return dir.ListRooms(), nil
}

// LocalIP guesses the address peers should dial, falling back to loopback.
func LocalIP() string {
	conn, err := net.Dial("udp4", "10.255.255.255:1")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if a, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return a.IP.String()
	}
	return "127.0.0.1"
}
