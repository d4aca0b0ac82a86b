package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/sushistage/internal/core"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.ClearInterval != core.DefaultClearInterval || cfg.UniqueBy != "name" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Rooms) != 2 || cfg.Rooms[0].ID != "1a2" || cfg.Rooms[1].Owner != "user01" {
		t.Fatalf("unexpected rooms: %+v", cfg.Rooms)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`server_url: ws://localhost:4000/socket
clear_interval: 2s
unique_by: id
surface_unknown_room: true
rooms:
  - id: r1
    name: lobby
    owner: u1
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SUSHISTAGE_LOG_LEVEL", "debug")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "ws://localhost:4000/socket" {
		t.Fatalf("server_url = %q", cfg.ServerURL)
	}
	if cfg.ClearInterval != 2*time.Second {
		t.Fatalf("clear_interval = %v", cfg.ClearInterval)
	}
	if cfg.UniqueBy != "id" || !cfg.SurfaceUnknownRoom {
		t.Fatalf("unexpected policy fields: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("env override not applied: %q", cfg.LogLevel)
	}
	rooms := cfg.SeedRooms()
	if len(rooms) != 1 || rooms[0].ID != "r1" || rooms[0].OwnerUserID != "u1" || rooms[0].Members == nil {
		t.Fatalf("unexpected seed rooms: %+v", rooms)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Config) {}, ok: true},
		{name: "bad unique_by", mutate: func(c *Config) { c.UniqueBy = "email" }},
		{name: "zero clear interval", mutate: func(c *Config) { c.ClearInterval = 0 }},
		{name: "bad server url", mutate: func(c *Config) { c.ServerURL = "not a url" }},
		{name: "backoff inverted", mutate: func(c *Config) { c.ReconnectMax = time.Millisecond }},
		{name: "room without id", mutate: func(c *Config) { c.Rooms = []RoomConfig{{Name: "x"}} }},
		{name: "local only", mutate: func(c *Config) { c.ServerURL = "" }, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{ServerURL: "ws://example.test/ws", StatusAddr: ":9090"})

	if cfg.ServerURL != "ws://example.test/ws" || cfg.StatusAddr != ":9090" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ClearInterval != core.DefaultClearInterval || len(cfg.Rooms) != 2 {
		t.Fatalf("zero fields must not overwrite: %+v", cfg)
	}
}

func TestMixedCaseEnumsValidate(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{LogLevel: "WARN", UniqueBy: " Name "})

	if cfg.LogLevel != "warn" || cfg.UniqueBy != "name" {
		t.Fatalf("values not normalized: %q %q", cfg.LogLevel, cfg.UniqueBy)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadNormalizesEnvValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("SUSHISTAGE_UNIQUE_BY", "ID")
	t.Setenv("SUSHISTAGE_LOG_LEVEL", "Debug")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.UniqueBy != "id" || cfg.LogLevel != "debug" {
		t.Fatalf("values not normalized: %q %q", cfg.UniqueBy, cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if p, err := cfg.Policy(); err != nil || p != core.UniqueByID {
		t.Fatalf("policy = %q, %v", p, err)
	}
}
