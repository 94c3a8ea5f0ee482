package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"alias/internal/domain"
)

// EnvPrefix is prepended to every environment variable, e.g. ALIAS_PORT
const EnvPrefix = "ALIAS"

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Game    GameConfig
	Storage StorageConfig
	Logging LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port int
	Host string
	Env  string // "development" or "production"
}

// GameConfig holds game-related configuration
type GameConfig struct {
	MinRoundTime  int
	MaxRoundTime  int
	MinScoreLimit int
	MaxScoreLimit int
	MaxHistory    int // retained games, 0 for unlimited
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	Driver      string // "sqlite" or "memory"
	Path        string
	SnapshotKey string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	limits := domain.DefaultLimits()
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
			Env:  "development",
		},
		Game: GameConfig{
			MinRoundTime:  limits.MinRoundTime,
			MaxRoundTime:  limits.MaxRoundTime,
			MinScoreLimit: limits.MinScoreLimit,
			MaxScoreLimit: limits.MaxScoreLimit,
			MaxHistory:    50,
		},
		Storage: StorageConfig{
			Driver:      "sqlite",
			Path:        "./alias.db",
			SnapshotKey: "alias-react-gameStore",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// RegisterFlags binds every setting to a flag on fs, using cfg's current values as defaults
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Server.Host, "bind", "b", cfg.Server.Host, "address to bind to (env: ALIAS_BIND)")
	fs.IntVarP(&cfg.Server.Port, "port", "p", cfg.Server.Port, "port to listen on (env: ALIAS_PORT)")
	fs.StringVar(&cfg.Server.Env, "env", cfg.Server.Env, "runtime environment, development or production (env: ALIAS_ENV)")

	fs.IntVar(&cfg.Game.MinRoundTime, "min-round-time", cfg.Game.MinRoundTime, "shortest accepted round, in seconds (env: ALIAS_MIN_ROUND_TIME)")
	fs.IntVar(&cfg.Game.MaxRoundTime, "max-round-time", cfg.Game.MaxRoundTime, "longest accepted round, in seconds (env: ALIAS_MAX_ROUND_TIME)")
	fs.IntVar(&cfg.Game.MinScoreLimit, "min-score-limit", cfg.Game.MinScoreLimit, "lowest accepted score limit (env: ALIAS_MIN_SCORE_LIMIT)")
	fs.IntVar(&cfg.Game.MaxScoreLimit, "max-score-limit", cfg.Game.MaxScoreLimit, "highest accepted score limit (env: ALIAS_MAX_SCORE_LIMIT)")
	fs.IntVar(&cfg.Game.MaxHistory, "max-history", cfg.Game.MaxHistory, "number of games kept in history, 0 for unlimited (env: ALIAS_MAX_HISTORY)")

	fs.StringVar(&cfg.Storage.Driver, "db-driver", cfg.Storage.Driver, "snapshot store, sqlite or memory (env: ALIAS_DB_DRIVER)")
	fs.StringVar(&cfg.Storage.Path, "db-path", cfg.Storage.Path, "path to the sqlite database (env: ALIAS_DB_PATH)")
	fs.StringVar(&cfg.Storage.SnapshotKey, "snapshot-key", cfg.Storage.SnapshotKey, "store key of the game snapshot (env: ALIAS_SNAPSHOT_KEY)")

	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "debug, info, warn or error (env: ALIAS_LOG_LEVEL)")
	fs.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "text or json (env: ALIAS_LOG_FORMAT)")
}

// ApplyEnv fills every flag that was not set on the command line from its
// ALIAS_* environment variable
func ApplyEnv(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
			}
		}
	})
	return errors.Join(errs...)
}

// Validate checks the configuration for contradictions
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Server.Port)
	}
	if c.Server.Env != "development" && c.Server.Env != "production" {
		return fmt.Errorf("invalid env %q (must be development or production)", c.Server.Env)
	}
	if c.Game.MinRoundTime < 1 || c.Game.MinRoundTime > c.Game.MaxRoundTime {
		return fmt.Errorf("invalid round time bounds: %d..%d", c.Game.MinRoundTime, c.Game.MaxRoundTime)
	}
	if c.Game.MinScoreLimit < 1 || c.Game.MinScoreLimit > c.Game.MaxScoreLimit {
		return fmt.Errorf("invalid score limit bounds: %d..%d", c.Game.MinScoreLimit, c.Game.MaxScoreLimit)
	}
	if c.Game.MaxHistory < 0 {
		return fmt.Errorf("invalid max history: %d", c.Game.MaxHistory)
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("--db-path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported db driver: %s", c.Storage.Driver)
	}
	if c.Storage.SnapshotKey == "" {
		return errors.New("--snapshot-key must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

// Limits returns the game setup bounds
func (c *Config) Limits() domain.Limits {
	limits := domain.DefaultLimits()
	limits.MinRoundTime = c.Game.MinRoundTime
	limits.MaxRoundTime = c.Game.MaxRoundTime
	limits.MinScoreLimit = c.Game.MinScoreLimit
	limits.MaxScoreLimit = c.Game.MaxScoreLimit
	return limits
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
