// Package config loads the tally service configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xraph/tally/extension"
)

// Config is the full service configuration.
type Config struct {
	Env   string           `mapstructure:"env"`
	HTTP  HTTPConfig       `mapstructure:"http"`
	Store StoreConfig      `mapstructure:"store"`
	Bus   BusConfig        `mapstructure:"bus"`
	Audit AuditConfig      `mapstructure:"audit"`
	Log   LogConfig        `mapstructure:"log"`
	Tally extension.Config `mapstructure:"tally"`
}

// HTTPConfig configures the listener.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the backend. DSN is a file path for sqlite, a
// connection string for postgres and a URI for mongo.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Database string `mapstructure:"database"`
}

// BusConfig selects the change feed.
type BusConfig struct {
	Driver        string `mapstructure:"driver"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Prefix        string `mapstructure:"prefix"`
}

// AuditConfig enables the Kafka audit trail when brokers are set.
type AuditConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Bus drivers.
const (
	BusHub   = "hub"
	BusRedis = "redis"
)

// EnvPrefix prefixes every environment override, e.g. TALLY_STORE_DRIVER.
const EnvPrefix = "TALLY"

func setDefaults(v *viper.Viper) {
	tally := extension.DefaultConfig()

	v.SetDefault("env", "development")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.database", "tally")

	v.SetDefault("bus.driver", BusHub)
	v.SetDefault("bus.redis_addr", "localhost:6379")
	v.SetDefault("bus.redis_password", "")
	v.SetDefault("bus.redis_db", 0)
	v.SetDefault("bus.prefix", "tally:changes:")

	v.SetDefault("audit.kafka_brokers", []string{})
	v.SetDefault("audit.kafka_topic", "tally.audit")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("tally.disable_routes", false)
	v.SetDefault("tally.disable_migrate", false)
	v.SetDefault("tally.base_path", tally.BasePath)
	v.SetDefault("tally.compensation", false)
	v.SetDefault("tally.hook_timeout", tally.HookTimeout)
	v.SetDefault("tally.sequence_attempts", tally.SequenceAttempts)
}

// Load reads the configuration.
//
// Priority (highest to lowest):
//  1. Environment variables with the TALLY_ prefix (e.g. TALLY_STORE_DSN)
//  2. The file at path, or tally.yaml in . or /etc/tally when path is empty
//  3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tally")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tally")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres, DriverMongo:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for the %s driver", c.Store.Driver)
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}

	switch c.Bus.Driver {
	case BusHub:
	case BusRedis:
		if c.Bus.RedisAddr == "" {
			return errors.New("config: bus.redis_addr is required for the redis bus")
		}
	default:
		return fmt.Errorf("config: unknown bus.driver %q", c.Bus.Driver)
	}

	if c.Tally.SequenceAttempts < 1 {
		return errors.New("config: tally.sequence_attempts must be positive")
	}
	if c.Env == "production" && c.Store.Driver == DriverMemory {
		return errors.New("config: the memory store cannot be used in production")
	}
	return nil
}
