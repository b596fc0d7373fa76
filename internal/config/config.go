// Package config loads server settings from defaults, an optional YAML
// file, the environment (with .env support) and command-line flags, in
// that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP  HTTPConfig  `yaml:"http"`
	Store StoreConfig `yaml:"store"`
	Log   LogConfig   `yaml:"log"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres, badger, memory
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MQTTConfig controls building-added event publishing.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":5000"
	cfg.HTTP.ReadTimeout = 15 * time.Second
	cfg.HTTP.WriteTimeout = 15 * time.Second
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "invisible_city.db"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "invisible-city"
	cfg.MQTT.Topic = "invisible-city/buildings"
	return cfg
}

// Load parses args (without the program name) and returns the merged
// configuration.
func Load(args []string) (*Config, error) {
	var (
		configPath, envPath     string
		addr, driver, path, dsn string
		logLevel, logFormat     string
	)
	set := flag.NewFlagSet("invisible-city", flag.ContinueOnError)
	set.SetOutput(io.Discard)
	set.StringVar(&configPath, "config", "", "Path to a YAML config file")
	set.StringVar(&envPath, "env", ".env", "Path to a .env file (ignored if missing)")
	set.StringVar(&addr, "addr", "", "Listen address")
	set.StringVar(&driver, "store", "", "Store driver: sqlite, postgres, badger, memory")
	set.StringVar(&path, "db", "", "Database file (sqlite) or directory (badger)")
	set.StringVar(&dsn, "dsn", "", "Postgres connection string")
	set.StringVar(&logLevel, "log-level", "", "debug, info, warn, error")
	set.StringVar(&logFormat, "log-format", "", "json or console")
	if err := set.Parse(args); err != nil {
		return nil, err
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	cfg := Default()

	if configPath == "" {
		configPath = os.Getenv("CITY_CONFIG")
	}
	if configPath != "" {
		if err := cfg.loadYAML(configPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	set.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.HTTP.Addr = addr
		case "store":
			cfg.Store.Driver = driver
		case "db":
			cfg.Store.Path = path
		case "dsn":
			cfg.Store.DSN = dsn
		case "log-level":
			cfg.Log.Level = logLevel
		case "log-format":
			cfg.Log.Format = logFormat
		}
	})

	return cfg, cfg.Validate()
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.Path = getEnv("STORE_PATH", c.Store.Path)
	c.Store.DSN = getEnv("DATABASE_URL", c.Store.DSN)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.MQTT.Broker = getEnv("MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Username = getEnv("MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnv("MQTT_PASSWORD", c.MQTT.Password)
	c.MQTT.Topic = getEnv("MQTT_TOPIC", c.MQTT.Topic)

	var err error
	if c.HTTP.ReadTimeout, err = loadDuration("HTTP_READ_TIMEOUT", c.HTTP.ReadTimeout); err != nil {
		return err
	}
	if c.HTTP.WriteTimeout, err = loadDuration("HTTP_WRITE_TIMEOUT", c.HTTP.WriteTimeout); err != nil {
		return err
	}
	if v := os.Getenv("MQTT_ENABLED"); v != "" {
		if c.MQTT.Enabled, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("MQTT_ENABLED: %w", err)
		}
	}
	if v := os.Getenv("MQTT_QOS"); v != "" {
		q, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return fmt.Errorf("MQTT_QOS: %w", err)
		}
		c.MQTT.QoS = byte(q)
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return errors.New("sqlite store needs a path")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return errors.New("postgres store needs a dsn")
		}
	case "badger", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("mqtt enabled without a broker")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func loadDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
