package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"lanrace/game"
	"lanrace/network"
	"lanrace/protocol"
)

var ErrInvalid = errors.New("invalid config")

const (
	DiscoveryUDP  = "udp"
	DiscoveryNATS = "nats"
)

// Config is layered: defaults, then the YAML file, then LANRACE_* variables.
// Command-line flags are applied on top by the caller.
type Config struct {
	RoomName      string `yaml:"room_name"`
	Port          int    `yaml:"port"`
	HTTPAddr      string `yaml:"http_addr"` // empty disables /ws, /room and /health
	Discovery     string `yaml:"discovery"`
	DiscoveryPort int    `yaml:"discovery_port"`
	NATSURL       string `yaml:"nats_url"`
	RoomsSubject  string `yaml:"rooms_subject"`
	Preset        string `yaml:"preset"`
	// Tuning, when set, replaces the preset's handling constants.
	Tuning   *game.Tuning `yaml:"tuning"`
	LogLevel string       `yaml:"log_level"`
	MapID    int          `yaml:"map"`
	Rematch  bool         `yaml:"rematch"`
}

func Default() Config {
	host, _ := os.Hostname()
	if host == "" {
		host = "lanrace"
	}
	return Config{
		RoomName:      host,
		Port:          protocol.DefaultGamePort,
		Discovery:     DiscoveryUDP,
		DiscoveryPort: protocol.DiscoveryPort,
		NATSURL:       network.DefaultNATSConfig().URL,
		RoomsSubject:  network.DefaultRoomsSubject,
		Preset:        "versus",
		LogLevel:      "info",
	}
}

// InitConfig loads a .env file into the environment if one exists.
func InitConfig() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
		return
	}
	log.Info().Msg("loaded environment variables from .env")
}

// Load builds the config from defaults, the optional YAML file at path, and
// the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.RoomName = getEnv("LANRACE_ROOM_NAME", c.RoomName)
	c.Port = getEnvAsInt("LANRACE_PORT", c.Port)
	c.HTTPAddr = getEnv("LANRACE_HTTP_ADDR", c.HTTPAddr)
	c.Discovery = getEnv("LANRACE_DISCOVERY", c.Discovery)
	c.DiscoveryPort = getEnvAsInt("LANRACE_DISCOVERY_PORT", c.DiscoveryPort)
	c.NATSURL = getEnv("LANRACE_NATS_URL", c.NATSURL)
	c.RoomsSubject = getEnv("LANRACE_ROOMS_SUBJECT", c.RoomsSubject)
	c.Preset = getEnv("LANRACE_PRESET", c.Preset)
	c.LogLevel = getEnv("LANRACE_LOG_LEVEL", c.LogLevel)
	c.MapID = getEnvAsInt("LANRACE_MAP", c.MapID)
	c.Rematch = getEnvAsBool("LANRACE_REMATCH", c.Rematch)
}

func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalid, c.Port)
	}
	if c.DiscoveryPort <= 0 || c.DiscoveryPort > 65535 {
		return fmt.Errorf("%w: discovery port %d", ErrInvalid, c.DiscoveryPort)
	}
	switch c.Discovery {
	case DiscoveryUDP, DiscoveryNATS:
	default:
		return fmt.Errorf("%w: discovery %q, want udp or nats", ErrInvalid, c.Discovery)
	}
	switch c.Preset {
	case "versus", "classic":
	default:
		return fmt.Errorf("%w: preset %q, want versus or classic", ErrInvalid, c.Preset)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level: %w", ErrInvalid, err)
	}
	if t := c.Tuning; t != nil && (t.Accel <= 0 || t.MaxSpeed <= 0 || t.Brake < 0 || t.Friction < 0) {
		return fmt.Errorf("%w: tuning %+v", ErrInvalid, *t)
	}
	return nil
}

// CarTuning is the explicit tuning if set, otherwise the preset's.
func (c Config) CarTuning() game.Tuning {
	if c.Tuning != nil {
		return *c.Tuning
	}
	return game.TuningPreset(c.Preset)
}

func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func (c Config) NATS() network.NATSConfig {
	nc := network.DefaultNATSConfig()
	nc.URL = c.NATSURL
	nc.Subject = c.RoomsSubject
	return nc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-integer variable")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-boolean variable")
	}
	return defaultValue
}
