// apps/go-server/internal/config/config.go
//
// Server and game configuration.
// Load order (later wins):
//   1. Embedded defaults (assets/snake.yaml).
//   2. Optional YAML file (path argument, usually $SNAKE_CONFIG).
//   3. Environment variables (a .env file is loaded by main via godotenv).
//
// Environment variables:
//   PORT, LOG_LEVEL, LOG_FORMAT, CLIENT_ORIGIN, JWT_SECRET, TOKEN_TTL_HOURS,
//   SESSION_IDLE_MINUTES, HAS_DISPLAY, MAX_SESSIONS, BOARD_SIZE, CELL_SIZE, TICK_MS, SEED
//
// An invalid board is a start-up failure, never a runtime one.

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robalobadob/snake/apps/go-server/assets"
	"github.com/robalobadob/snake/apps/go-server/internal/game"
)

// devSecret signs control tokens when JWT_SECRET is unset.
const devSecret = "dev_secret_change_me"

// Config is the full server configuration.
type Config struct {
	Port          string `yaml:"port"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"` // "json" | "console"
	ClientOrigin  string `yaml:"client_origin"`
	HasDisplay    bool   `yaml:"has_display"`
	MaxSessions   int    `yaml:"max_sessions"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
	IdleMinutes   int    `yaml:"session_idle_minutes"` // 0 disables idle expiry
	JWTSecret     string `yaml:"-"`                    // environment only

	Game Game `yaml:"game"`
}

// Game holds the simulation settings shared by every session.
type Game struct {
	BoardSize int   `yaml:"board_size"`
	CellSize  int   `yaml:"cell_size"`
	TickMs    int   `yaml:"tick_ms"`
	Seed      int64 `yaml:"seed"`
}

// Board converts the settings into a game.Board.
func (g Game) Board() game.Board {
	return game.Board{Size: g.BoardSize, Cell: g.CellSize}
}

// Interval is the tick period.
func (g Game) Interval() time.Duration {
	return time.Duration(g.TickMs) * time.Millisecond
}

// TokenTTL is the lifetime of control tokens.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// IdleTimeout is how long a game may go without input or viewers.
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleMinutes) * time.Minute
}

// Load builds a Config from defaults, the optional YAML file at path and the
// environment, then validates it.
func Load(path string) (Config, error) {
	var cfg Config
	raw, err := assets.DefaultConfig()
	if err != nil {
		return cfg, fmt.Errorf("embedded defaults: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("embedded defaults: %w", err)
	}

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables. lookup is os.LookupEnv outside
// of tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(k string, dst *string) {
		if v, ok := lookup(k); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(k string, dst *int) {
		if v, ok := lookup(k); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", k, err))
				return
			}
			*dst = n
		}
	}

	str("PORT", &c.Port)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("CLIENT_ORIGIN", &c.ClientOrigin)
	str("JWT_SECRET", &c.JWTSecret)
	num("TOKEN_TTL_HOURS", &c.TokenTTLHours)
	num("SESSION_IDLE_MINUTES", &c.IdleMinutes)
	num("MAX_SESSIONS", &c.MaxSessions)
	num("BOARD_SIZE", &c.Game.BoardSize)
	num("CELL_SIZE", &c.Game.CellSize)
	num("TICK_MS", &c.Game.TickMs)

	if v, ok := lookup("HAS_DISPLAY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("HAS_DISPLAY: %w", err))
		} else {
			c.HasDisplay = b
		}
	}
	if v, ok := lookup("SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SEED: %w", err))
		} else {
			c.Game.Seed = n
		}
	}
	return errors.Join(errs...)
}

// Normalize fills blanks with safe defaults.
func (c *Config) Normalize() {
	c.Port = strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	if c.Port == "" {
		c.Port = "5175"
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.JWTSecret == "" {
		c.JWTSecret = devSecret
	}
	if c.TokenTTLHours <= 0 {
		c.TokenTTLHours = 24
	}
}

// Validate reports configuration the server cannot start with.
func (c Config) Validate() error {
	if err := c.Game.Board().Validate(); err != nil {
		return err
	}
	if c.Game.TickMs <= 0 {
		return fmt.Errorf("tick_ms must be positive, got %d", c.Game.TickMs)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must not be negative, got %d", c.MaxSessions)
	}
	if c.IdleMinutes < 0 {
		return fmt.Errorf("session_idle_minutes must not be negative, got %d", c.IdleMinutes)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// UsingDevSecret reports whether tokens are signed with the built-in secret.
func (c Config) UsingDevSecret() bool { return c.JWTSecret == devSecret }
