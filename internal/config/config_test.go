package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Port:         "8081",
		SQLiteDBPath: filepath.Join(t.TempDir(), "pointage.db"),
		CacheTTL:     60 * time.Second,
		QueryTimeout: 7 * time.Second,
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8081" {
		t.Errorf("Port = %s, want 8081", cfg.Port)
	}
	if cfg.CacheTTL != 60*time.Second {
		t.Errorf("CacheTTL = %v, want 60s", cfg.CacheTTL)
	}
	if cfg.QueryTimeout != 7*time.Second {
		t.Errorf("QueryTimeout = %v, want 7s", cfg.QueryTimeout)
	}
	if cfg.AMQPURL != "" {
		t.Errorf("AMQPURL should default to empty, got %s", cfg.AMQPURL)
	}
	if cfg.AppPassword != "" {
		t.Errorf("AppPassword should default to empty")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("APP_PASSWORD", "secret")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Errorf("Port = %s", cfg.Port)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
	if cfg.AppPassword != "secret" {
		t.Errorf("AppPassword = %s", cfg.AppPassword)
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	if err := validConfig(t).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"bad port", func(c *Config) { c.Port = "abc" }, "invalid port"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "invalid port"},
		{"empty db path", func(c *Config) { c.SQLiteDBPath = "" }, "database path"},
		{"bad amqp scheme", func(c *Config) { c.AMQPURL = "http://localhost" }, "AMQP URL scheme"},
		{"empty amqp queue", func(c *Config) { c.AMQPURL = "amqp://localhost"; c.AMQPQueue = "" }, "queue name"},
		{"ttl too short", func(c *Config) { c.CacheTTL = 100 * time.Millisecond }, "cache TTL"},
		{"ttl too long", func(c *Config) { c.CacheTTL = 2 * time.Hour }, "cache TTL"},
		{"timeout too short", func(c *Config) { c.QueryTimeout = 10 * time.Millisecond }, "query timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.AMQPExchange = "pointage"
			cfg.AMQPQueue = "ledger_events"
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}
