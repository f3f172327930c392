package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DISH_ORDER_HOST", "DISH_ORDER_PORT", "DISH_ORDER_DB_DRIVER", "DISH_ORDER_DB_PATH",
		"DATABASE_URL", "DISH_ORDER_SEED_MENU", "KAFKA_BROKER", "KAFKA_TOPIC", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8011 || cfg.Storage.Driver != "sqlite" || cfg.Kafka.Topic != "dish-orders" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadLayering(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "dish-order.yaml")
	yaml := `
server:
  port: 9000
  host: 127.0.0.1
storage:
  path: /tmp/from-file.db
seed:
  menu: menu.yaml
kafka:
  brokers: [file-broker:9092]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DISH_ORDER_PORT", "9100")
	t.Setenv("KAFKA_BROKER", "env-a:9092,env-b:9092")

	cfg, err := Load([]string{"--config", path, "--db-path", "/tmp/from-flag.db"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("host from file not applied: %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9100 {
		t.Fatalf("env should override file port, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Path != "/tmp/from-flag.db" {
		t.Fatalf("flag should override file path, got %s", cfg.Storage.Path)
	}
	if cfg.Seed.Menu != "menu.yaml" {
		t.Fatalf("seed menu from file not applied: %s", cfg.Seed.Menu)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "env-b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		args []string
	}{
		{"unknown driver", []string{"--db-driver", "oracle"}},
		{"postgres without dsn", []string{"--db-driver", "postgres"}},
		{"bad port", []string{"--port", "0"}},
		{"unknown flag", []string{"--nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.args); err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
		})
	}
}

func TestLoadVersion(t *testing.T) {
	clearEnv(t)
	if _, err := Load([]string{"--version"}); !errors.Is(err, ErrVersion) {
		t.Fatalf("expected ErrVersion, got %v", err)
	}
}
