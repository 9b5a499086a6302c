// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zoneinfo database

	"github.com/kelseyhightower/envconfig"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Notifier channels.
const (
	NotifierLog   = "log"
	NotifierAMQP  = "amqp"
	NotifierRedis = "redis"
)

// Config holds all configuration values for the daemon.
// Values are populated by Load from environment variables. A variable that is
// set to the empty string counts as set; unset it to get the default.
type Config struct {
	// Port is the TCP port of the ops HTTP server (health, metrics).
	Port string `envconfig:"PORT" default:"8080"`

	// Store selects the persistence driver: postgres or memory.
	Store string `envconfig:"STORE" default:"postgres"`

	// DatabaseURL is the Postgres connection string. Required for the postgres store.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// MigrateOnStart applies pending goose migrations before serving.
	MigrateOnStart bool `envconfig:"MIGRATE_ON_START" default:"true"`

	// LogLevel controls the minimum log level: debug, info, warn, error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// LogFormat is json (production) or text (colored, for terminals).
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Notifiers lists the delivery channels, comma-separated: log, amqp, redis.
	Notifiers []string `envconfig:"NOTIFIERS" default:"log"`

	RabbitURL            string `envconfig:"RABBIT_URL"`
	NotificationExchange string `envconfig:"NOTIFICATION_EXCHANGE" default:"splitbuy.notifications"`

	RedisAddr          string `envconfig:"REDIS_ADDR"`
	RedisChannelPrefix string `envconfig:"REDIS_CHANNEL_PREFIX" default:"notification"`

	// ConflictRetries bounds how often a mutation is retried after losing a
	// concurrent-modification race before ErrConflict reaches the caller.
	ConflictRetries uint64        `envconfig:"CONFLICT_RETRIES" default:"3"`
	ConflictBackoff time.Duration `envconfig:"CONFLICT_BACKOFF" default:"10ms"`

	// TxTimeout bounds a single mutation, lock wait and retries included.
	TxTimeout time.Duration `envconfig:"TX_TIMEOUT" default:"5s"`

	// Timezone is where "today" is evaluated for the closing-date rule.
	Timezone string         `envconfig:"TIMEZONE" default:"UTC"`
	Location *time.Location `ignored:"true"`

	// TracesExporter is none or stdout.
	TracesExporter string `envconfig:"OTEL_TRACES_EXPORTER" default:"none"`
	ServiceName    string `envconfig:"SERVICE_NAME" default:"splitbuy"`
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or the
// first value that fails to parse.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.Notifiers = normalize(cfg.Notifiers)

	var missing []string
	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreMemory:
	default:
		return Config{}, fmt.Errorf("config.Load: STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store)
	}

	for _, n := range cfg.Notifiers {
		switch n {
		case NotifierLog:
		case NotifierAMQP:
			if cfg.RabbitURL == "" {
				missing = append(missing, "RABBIT_URL")
			}
		case NotifierRedis:
			if cfg.RedisAddr == "" {
				missing = append(missing, "REDIS_ADDR")
			}
		default:
			return Config{}, fmt.Errorf("config.Load: unknown notifier %q in NOTIFIERS", n)
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("config.Load: TIMEZONE: %w", err)
	}
	cfg.Location = loc

	return cfg, nil
}

// Enabled reports whether the notifier channel name is configured.
func (c Config) Enabled(name string) bool {
	return slices.Contains(c.Notifiers, name)
}

// normalize lowercases and trims a list, dropping empties and duplicates.
func normalize(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
