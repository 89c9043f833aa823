package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v2"
)

// Config is the runtime configuration shared by the server and admin binaries.
type Config struct {
	ListenAddr       string
	DatabaseURL      string
	MaxDBConns       int
	RedisURL         string
	BotToken         string
	JWTSecret        string
	APIKey           string
	FilterConfigPath string
	Strictness       string
	LogLevel         string
	LogFormat        string
}

// StoreFlags are needed by every binary that touches the database.
func StoreFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string (postgres:// or sqlite://)",
			Value:   "sqlite://data/supportbot.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   40,
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "optional redis URL for the ban cache, cursors and event fan-out",
			EnvVars: []string{"REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "text or json",
			Value:   "text",
			EnvVars: []string{"LOG_FORMAT"},
		},
	}
}

// ServerFlags are the extra flags of the API server.
func ServerFlags() []cli.Flag {
	return append(StoreFlags(),
		&cli.StringFlag{
			Name:    "listen",
			Value:   ":8080",
			EnvVars: []string{"LISTEN_ADDR"},
		},
		&cli.StringFlag{
			Name:    "telegram-bot-token",
			Usage:   "bot token used to deliver notifications; notifications are only logged when unset",
			EnvVars: []string{"TELEGRAM_BOT_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "HMAC secret for websocket tokens",
			EnvVars: []string{"JWT_SECRET"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "shared key expected in X-Api-Key; the guard is off when empty",
			EnvVars: []string{"API_KEY"},
		},
		&cli.StringFlag{
			Name:    "filter-config",
			Usage:   "YAML file overriding the built-in filter rules",
			EnvVars: []string{"FILTER_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "filter-strictness",
			Usage:   "low, medium or high",
			EnvVars: []string{"FILTER_STRICTNESS"},
		},
	)
}

// FromCLI collects flag values. Flags a binary did not declare read as zero.
func FromCLI(cctx *cli.Context) *Config {
	return &Config{
		ListenAddr:       cctx.String("listen"),
		DatabaseURL:      cctx.String("database-url"),
		MaxDBConns:       cctx.Int("max-db-connections"),
		RedisURL:         cctx.String("redis-url"),
		BotToken:         cctx.String("telegram-bot-token"),
		JWTSecret:        cctx.String("jwt-secret"),
		APIKey:           cctx.String("api-key"),
		FilterConfigPath: cctx.String("filter-config"),
		Strictness:       cctx.String("filter-strictness"),
		LogLevel:         cctx.String("log-level"),
		LogFormat:        cctx.String("log-format"),
	}
}

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var hopts slog.HandlerOptions
	switch strings.ToLower(level) {
	case "debug":
		hopts.Level = slog.LevelDebug
	case "", "info":
		hopts.Level = slog.LevelInfo
	case "warn":
		hopts.Level = slog.LevelWarn
	case "error":
		hopts.Level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %#v", level)
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(w, &hopts)
	case "json":
		handler = slog.NewJSONHandler(w, &hopts)
	default:
		return nil, fmt.Errorf("invalid log format: %#v", format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
