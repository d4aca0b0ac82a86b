package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/vovakirdan/sushistage/internal/core"
)

// RoomConfig is one entry of the static room catalog.
type RoomConfig struct {
	ID    string `mapstructure:"id" yaml:"id" validate:"required"`
	Name  string `mapstructure:"name" yaml:"name" validate:"required"`
	Owner string `mapstructure:"owner" yaml:"owner"`
}

// Config holds client configuration values.
type Config struct {
	// ServerURL is the websocket endpoint of the real-time server. Empty runs local-only.
	ServerURL string `mapstructure:"server_url" yaml:"server_url" validate:"omitempty,url"`
	// StatusAddr is the listen address of the local status/control HTTP surface. Empty disables it.
	StatusAddr   string `mapstructure:"status_addr" yaml:"status_addr"`
	IdentityPath string `mapstructure:"identity_path" yaml:"identity_path" validate:"required"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error disabled off"`

	ClearInterval      time.Duration `mapstructure:"clear_interval" yaml:"clear_interval" validate:"gt=0"`
	UniqueBy           string        `mapstructure:"unique_by" yaml:"unique_by" validate:"oneof=name id"`
	SurfaceUnknownRoom bool          `mapstructure:"surface_unknown_room" yaml:"surface_unknown_room"`

	DialTimeout       time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout" validate:"gt=0"`
	ReconnectMin      time.Duration `mapstructure:"reconnect_min" yaml:"reconnect_min" validate:"gt=0"`
	ReconnectMax      time.Duration `mapstructure:"reconnect_max" yaml:"reconnect_max" validate:"gtefield=ReconnectMin"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`

	Rooms []RoomConfig `mapstructure:"rooms" yaml:"rooms" validate:"dive"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		IdentityPath:      "sushistage.db",
		LogLevel:          "info",
		ClearInterval:     core.DefaultClearInterval,
		UniqueBy:          string(core.UniqueByName),
		DialTimeout:       10 * time.Second,
		ReconnectMin:      500 * time.Millisecond,
		ReconnectMax:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		Rooms:             seedToConfig(core.DefaultRooms()),
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.StatusAddr != "" {
		c.StatusAddr = other.StatusAddr
	}
	if other.IdentityPath != "" {
		c.IdentityPath = other.IdentityPath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.ClearInterval != 0 {
		c.ClearInterval = other.ClearInterval
	}
	if other.UniqueBy != "" {
		c.UniqueBy = other.UniqueBy
	}
	if other.SurfaceUnknownRoom {
		c.SurfaceUnknownRoom = true
	}
	if other.DialTimeout != 0 {
		c.DialTimeout = other.DialTimeout
	}
	if other.ReconnectMin != 0 {
		c.ReconnectMin = other.ReconnectMin
	}
	if other.ReconnectMax != 0 {
		c.ReconnectMax = other.ReconnectMax
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if len(other.Rooms) > 0 {
		c.Rooms = other.Rooms
	}
	c.Normalize()
}

// Normalize lowercases enum-like values so they match the validation tags.
func (c *Config) Normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.UniqueBy = strings.ToLower(strings.TrimSpace(c.UniqueBy))
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SeedRooms converts the catalog into store rooms, falling back to the built-in seed.
func (c Config) SeedRooms() []core.Room {
	if len(c.Rooms) == 0 {
		return core.DefaultRooms()
	}
	return lo.Map(c.Rooms, func(r RoomConfig, _ int) core.Room {
		return core.Room{ID: r.ID, Name: r.Name, OwnerUserID: r.Owner, Members: []core.User{}}
	})
}

// Policy returns the parsed uniqueness policy.
func (c Config) Policy() (core.UniqueBy, error) {
	return core.ParseUniqueBy(c.UniqueBy)
}

func seedToConfig(rooms []core.Room) []RoomConfig {
	return lo.Map(rooms, func(r core.Room, _ int) RoomConfig {
		return RoomConfig{ID: r.ID, Name: r.Name, Owner: r.OwnerUserID}
	})
}
