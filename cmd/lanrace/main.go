package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lanrace/config"
	"lanrace/protocol"
)

const usage = `usage: lanrace <command> [flags]

commands:
  host      open a room and race the first player who joins
  join      join a room found on the LAN, or one given with -addr / -ws
  local     race two autopilots in one process
  discover  list rooms announced on the LAN
`

// options are the command-line overrides. Only flags the user set replace
// config values.
type options struct {
	configPath string
	name       string
	port       int
	httpAddr   string
	discovery  string
	preset     string
	logLevel   string
	mapID      int
	rematch    bool

	addr   string
	wsURL  string
	roomID string
	window time.Duration
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	config.InitConfig()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]

	var opts options
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.configPath, "config", os.Getenv("LANRACE_CONFIG"), "YAML config file")
	fs.StringVar(&opts.name, "name", "", "room name to announce")
	fs.IntVar(&opts.port, "port", 0, "TCP game port (0 picks a free port when set)")
	fs.StringVar(&opts.httpAddr, "http", "", "address for the /ws, /room and /health surface")
	fs.StringVar(&opts.discovery, "discovery", "", "room discovery: udp or nats")
	fs.StringVar(&opts.preset, "preset", "", "car handling: versus or classic")
	fs.StringVar(&opts.logLevel, "log-level", "", "zerolog level")
	fs.IntVar(&opts.mapID, "map", 0, "map the autopilot picks")
	fs.BoolVar(&opts.rematch, "rematch", false, "autopilot votes for a rematch")
	fs.StringVar(&opts.addr, "addr", "", "join: host:port to dial directly")
	fs.StringVar(&opts.wsURL, "ws", "", "join: ws:// URL of a host's /ws endpoint")
	fs.StringVar(&opts.roomID, "room", "", "join: room id to pick from discovery")
	fs.DurationVar(&opts.window, "window", protocol.DiscoverWindow, "discovery listen window")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := applyFlags(&cfg, fs, opts); err != nil {
		log.Fatal().Err(err).Msg("invalid flags")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "host":
		err = runHost(ctx, cfg)
	case "join":
		err = runJoin(ctx, cfg, opts)
	case "local":
		err = runLocal(ctx, cfg)
	case "discover":
		err = runDiscover(ctx, cfg, opts.window)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Str("command", cmd).Msg("session failed")
	}
	log.Info().Str("command", cmd).Msg("bye")
}

func applyFlags(cfg *config.Config, fs *flag.FlagSet, opts options) error {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			cfg.RoomName = opts.name
		case "port":
			cfg.Port = opts.port
		case "http":
			cfg.HTTPAddr = opts.httpAddr
		case "discovery":
			cfg.Discovery = opts.discovery
		case "preset":
			cfg.Preset = opts.preset
			cfg.Tuning = nil
		case "log-level":
			cfg.LogLevel = opts.logLevel
		case "map":
			cfg.MapID = opts.mapID
		case "rematch":
			cfg.Rematch = opts.rematch
		}
	})
	return cfg.Validate()
}
