package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "SUSHISTAGE"
	envConfigDefaultPath = "SUSHISTAGE_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("server_url", cfg.ServerURL)
	v.SetDefault("status_addr", cfg.StatusAddr)
	v.SetDefault("identity_path", cfg.IdentityPath)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("clear_interval", cfg.ClearInterval)
	v.SetDefault("unique_by", cfg.UniqueBy)
	v.SetDefault("surface_unknown_room", cfg.SurfaceUnknownRoom)
	v.SetDefault("dial_timeout", cfg.DialTimeout)
	v.SetDefault("reconnect_min", cfg.ReconnectMin)
	v.SetDefault("reconnect_max", cfg.ReconnectMax)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Normalize()

	return cfg, configPath, nil
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

// fileConfig mirrors Config with durations rendered as strings so the written file stays readable.
type fileConfig struct {
	ServerURL          string       `yaml:"server_url"`
	StatusAddr         string       `yaml:"status_addr"`
	IdentityPath       string       `yaml:"identity_path"`
	LogLevel           string       `yaml:"log_level"`
	ClearInterval      string       `yaml:"clear_interval"`
	UniqueBy           string       `yaml:"unique_by"`
	SurfaceUnknownRoom bool         `yaml:"surface_unknown_room"`
	DialTimeout        string       `yaml:"dial_timeout"`
	ReconnectMin       string       `yaml:"reconnect_min"`
	ReconnectMax       string       `yaml:"reconnect_max"`
	ReadHeaderTimeout  string       `yaml:"read_header_timeout"`
	ShutdownTimeout    string       `yaml:"shutdown_timeout"`
	Rooms              []RoomConfig `yaml:"rooms"`
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(fileConfig{
		ServerURL:          cfg.ServerURL,
		StatusAddr:         cfg.StatusAddr,
		IdentityPath:       cfg.IdentityPath,
		LogLevel:           cfg.LogLevel,
		ClearInterval:      cfg.ClearInterval.String(),
		UniqueBy:           cfg.UniqueBy,
		SurfaceUnknownRoom: cfg.SurfaceUnknownRoom,
		DialTimeout:        cfg.DialTimeout.String(),
		ReconnectMin:       cfg.ReconnectMin.String(),
		ReconnectMax:       cfg.ReconnectMax.String(),
		ReadHeaderTimeout:  cfg.ReadHeaderTimeout.String(),
		ShutdownTimeout:    cfg.ShutdownTimeout.String(),
		Rooms:              cfg.Rooms,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
