// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	ServiceName    = "dish-order"
	ServiceVersion = "1.0.0"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Seed      SeedConfig      `yaml:"seed"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type SeedConfig struct {
	// Menu is a local YAML file or an s3://bucket/key URL. Empty disables seeding.
	Menu       string `yaml:"menu"`
	S3Region   string `yaml:"s3_region"`
	S3Endpoint string `yaml:"s3_endpoint"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type TelemetryConfig struct {
	OtelEndpoint   string `yaml:"otel_endpoint"`
	OtelAuthHeader string `yaml:"otel_auth_header"`
	LogLevel       string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8011},
		Storage:   StorageConfig{Driver: "sqlite", Path: "/data/dish-order.db"},
		Seed:      SeedConfig{S3Region: "us-east-1"},
		Kafka:     KafkaConfig{Topic: "dish-orders"},
		Telemetry: TelemetryConfig{LogLevel: "info"},
	}
}

// ErrVersion is returned by Load when --version was passed.
var ErrVersion = errors.New("version requested")

// Load builds the configuration in layers: defaults, then the YAML file
// named by --config, then environment variables, then explicit flags.
func Load(args []string) (*Config, error) {
	cfg := Default()

	var (
		configPath string
		host       string
		port       int
		driver     string
		dbPath     string
		dsn        string
		menu       string
		brokers    []string
		logLevel   string
		version    bool
	)
	fs := pflag.NewFlagSet(ServiceName, pflag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "path to a YAML config file")
	fs.StringVar(&host, "host", cfg.Server.Host, "host address")
	fs.IntVar(&port, "port", cfg.Server.Port, "port for HTTP transport")
	fs.StringVar(&driver, "db-driver", cfg.Storage.Driver, "storage driver: sqlite or postgres")
	fs.StringVar(&dbPath, "db-path", cfg.Storage.Path, "SQLite database path")
	fs.StringVar(&dsn, "db-dsn", "", "Postgres connection string")
	fs.StringVar(&menu, "seed-menu", "", "menu YAML to load into an empty database (path or s3://bucket/key)")
	fs.StringSliceVar(&brokers, "kafka-brokers", nil, "Kafka brokers for order events")
	fs.StringVar(&logLevel, "log-level", cfg.Telemetry.LogLevel, "log level")
	fs.BoolVar(&version, "version", false, "show version")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if version {
		return nil, ErrVersion
	}

	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if fs.Changed("host") {
		cfg.Server.Host = host
	}
	if fs.Changed("port") {
		cfg.Server.Port = port
	}
	if fs.Changed("db-driver") {
		cfg.Storage.Driver = driver
	}
	if fs.Changed("db-path") {
		cfg.Storage.Path = dbPath
	}
	if fs.Changed("db-dsn") {
		cfg.Storage.DSN = dsn
	}
	if fs.Changed("seed-menu") {
		cfg.Seed.Menu = menu
	}
	if fs.Changed("kafka-brokers") {
		cfg.Kafka.Brokers = brokers
	}
	if fs.Changed("log-level") {
		cfg.Telemetry.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("DISH_ORDER_HOST", c.Server.Host)
	if port, err := strconv.Atoi(getEnvOrDefault("DISH_ORDER_PORT", "")); err == nil {
		c.Server.Port = port
	}
	c.Storage.Driver = getEnvOrDefault("DISH_ORDER_DB_DRIVER", c.Storage.Driver)
	c.Storage.Path = getEnvOrDefault("DISH_ORDER_DB_PATH", c.Storage.Path)
	c.Storage.DSN = getEnvOrDefault("DATABASE_URL", c.Storage.DSN)
	c.Seed.Menu = getEnvOrDefault("DISH_ORDER_SEED_MENU", c.Seed.Menu)
	c.Seed.S3Region = getEnvOrDefault("AWS_REGION", c.Seed.S3Region)
	c.Seed.S3Endpoint = getEnvOrDefault("DISH_ORDER_S3_ENDPOINT", c.Seed.S3Endpoint)
	if brokers := getEnvOrDefault("KAFKA_BROKER", ""); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	c.Kafka.Topic = getEnvOrDefault("KAFKA_TOPIC", c.Kafka.Topic)
	c.Telemetry.OtelEndpoint = getEnvOrDefault("OTEL_ENDPOINT", c.Telemetry.OtelEndpoint)
	c.Telemetry.OtelAuthHeader = getEnvOrDefault("OTEL_AUTH_HEADER", c.Telemetry.OtelAuthHeader)
	c.Telemetry.LogLevel = getEnvOrDefault("LOG_LEVEL", c.Telemetry.LogLevel)
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
