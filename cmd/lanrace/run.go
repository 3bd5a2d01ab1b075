package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"lanrace/client"
	"lanrace/config"
	"lanrace/game"
	"lanrace/input"
	"lanrace/network"
	"lanrace/protocol"
	"lanrace/room"
)

const dialTimeout = 5 * time.Second

var errNoRooms = errors.New("no rooms found")

func runHost(ctx context.Context, cfg config.Config) error {
	ln, err := network.ListenTCP(fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return err
	}
	listeners := []network.Listener{ln}

	var h *room.Host
	pilot := &input.Autopilot{
		Match:   func() *game.Match { return h.Match() },
		Seats:   [2]game.Player{game.P1, game.NoPlayer},
		MapID:   cfg.MapID,
		Rematch: cfg.Rematch,
	}
	h = room.NewHost(room.Config{
		RoomID:   network.NewRoomID(),
		RoomName: cfg.RoomName,
		Tuning:   cfg.CarTuning(),
		Controls: pilot,
	})
	h.SetPort(ln.Port())
	status := h.Status()

	announcer, closeAnnouncer, err := newAnnouncer(cfg)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer closeAnnouncer()
	beacon := protocol.RoomAnnounce{
		RoomID:   status.RoomID,
		RoomName: status.RoomName,
		IP:       network.LocalIP(),
		Port:     ln.Port(),
	}

	log.Info().
		Str("room_id", beacon.RoomID).
		Str("room_name", beacon.RoomName).
		Str("ip", beacon.IP).
		Int("port", beacon.Port).
		Str("discovery", cfg.Discovery).
		Msg("hosting room")

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(sctx)

	if cfg.HTTPAddr != "" {
		ws := network.NewWSListener(cfg.HTTPAddr)
		listeners = append(listeners, ws)
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           network.NewHTTPHandler(ws, h.Status),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error { return network.ServeHTTP(gctx, srv) })
	}
	g.Go(func() error {
		err := announcer.Announce(gctx, beacon)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		return h.Serve(gctx, listeners...)
	})
	return g.Wait()
}

func runJoin(ctx context.Context, cfg config.Config, opts options) error {
	conn, err := dialHost(ctx, cfg, opts)
	if err != nil {
		return err
	}
	var c *client.Client
	pilot := &input.Autopilot{
		Match:   func() *game.Match { return c.Match() },
		Seats:   [2]game.Player{game.P2, game.NoPlayer},
		Rematch: cfg.Rematch,
	}
	c = client.New(client.Config{Tuning: cfg.CarTuning(), Controls: pilot})
	return c.Run(ctx, conn)
}

func dialHost(ctx context.Context, cfg config.Config, opts options) (network.Conn, error) {
	switch {
	case opts.wsURL != "":
		return network.DialWS(ctx, opts.wsURL)
	case opts.addr != "":
		return network.DialTCP(ctx, opts.addr, dialTimeout)
	}

	rooms, err := discover(ctx, cfg, opts.window)
	if err != nil {
		return nil, err
	}
	for _, r := range rooms {
		if opts.roomID == "" || strings.EqualFold(r.RoomID, opts.roomID) {
			log.Info().Str("room_id", r.RoomID).Str("room_name", r.Name).Str("addr", r.Addr()).Msg("joining room")
			return network.DialTCP(ctx, r.Addr(), dialTimeout)
		}
	}
	if opts.roomID != "" {
		return nil, fmt.Errorf("%w: room %s", errNoRooms, opts.roomID)
	}
	return nil, errNoRooms
}

func runLocal(ctx context.Context, cfg config.Config) error {
	var l *room.Local
	pilot := &input.Autopilot{
		Match:   func() *game.Match { return l.Match() },
		Seats:   [2]game.Player{game.P1, game.P2},
		MapID:   cfg.MapID,
		Rematch: cfg.Rematch,
	}
	l = room.NewLocal(room.Config{
		RoomID:   "LOCAL",
		RoomName: cfg.RoomName,
		Tuning:   cfg.CarTuning(),
		Controls: pilot,
	})
	return l.Run(ctx)
}

func runDiscover(ctx context.Context, cfg config.Config, window time.Duration) error {
	rooms, err := discover(ctx, cfg, window)
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		log.Info().Msg("no rooms found")
		return nil
	}
	for _, r := range rooms {
		fmt.Printf("%s\t%s\t%s\n", r.RoomID, r.Name, r.Addr())
	}
	return nil
}

func discover(ctx context.Context, cfg config.Config, window time.Duration) ([]network.RoomInfo, error) {
	var d network.Discoverer
	switch cfg.Discovery {
	case config.DiscoveryNATS:
		nc, err := network.ConnectNATS(cfg.NATS())
		if err != nil {
			return nil, err
		}
		defer nc.Close()
		d = network.NewNATSDiscoverer(nc, cfg.RoomsSubject, clockwork.NewRealClock())
	default:
		d = network.NewUDPDiscoverer(cfg.DiscoveryPort, clockwork.NewRealClock())
	}
	log.Info().Dur("window", window).Str("discovery", cfg.Discovery).Msg("looking for rooms")
	return d.Discover(ctx, window)
}

func newAnnouncer(cfg config.Config) (network.Announcer, func(), error) {
	switch cfg.Discovery {
	case config.DiscoveryNATS:
		nc, err := network.ConnectNATS(cfg.NATS())
		if err != nil {
			return nil, nil, err
		}
		return network.NewNATSAnnouncer(nc, cfg.RoomsSubject, clockwork.NewRealClock()), func() { drain(nc) }, nil
	default:
		return network.NewUDPAnnouncer(cfg.DiscoveryPort, clockwork.NewRealClock()), func() {}, nil
	}
}

func drain(nc *nats.Conn) {
	if err := nc.Drain(); err != nil {
		log.Warn().Err(err).Msg("nats drain")
	}
}
