// Package gatewayconfig loads the gateway configuration: defaults, then an
// optional YAML file, then environment overrides, in that order.
package gatewayconfig

import (
	"os"
	"strconv"
	"strings"
	"time"

	"chat-gateway/backend/internal/protocol"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
}

type ServerConfig struct {
	Addr          string  `yaml:"addr"`
	SendRateRPS   float64 `yaml:"sendRateRPS"`
	SendRateBurst int     `yaml:"sendRateBurst"`
}

type SessionConfig struct {
	StorageDir         string         `yaml:"storageDir"`
	SnapshotPassphrase string         `yaml:"snapshotPassphrase"`
	Transport          string         `yaml:"transport"`
	Recovery           RecoveryConfig `yaml:"recovery"`
}

type RecoveryConfig struct {
	RebuildDelay time.Duration `yaml:"rebuildDelay"`
	ReinitDelay  time.Duration `yaml:"reinitDelay"`
	RestartDelay time.Duration `yaml:"restartDelay"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:          "127.0.0.1:3000",
			SendRateRPS:   5,
			SendRateBurst: 10,
		},
		Session: SessionConfig{
			StorageDir: "session-data",
			Transport:  protocol.TransportMock,
			Recovery: RecoveryConfig{
				RebuildDelay: 3 * time.Second,
				ReinitDelay:  5 * time.Second,
				RestartDelay: 2 * time.Second,
			},
		},
	}
}

// LoadFromPath merges the first readable config file over the defaults and
// applies environment overrides on top. An unreadable or unparsable file is
// skipped, not fatal.
func LoadFromPath(configPath string) Config {
	cfg := DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates, "configs/config.yaml")
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		merged := cfg
		Merge(&merged, parsed)
		ApplyEnvOverrides(&merged)
		return normalize(merged)
	}

	ApplyEnvOverrides(&cfg)
	return normalize(cfg)
}

func Merge(dst *Config, src Config) {
	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}
	if src.Server.SendRateRPS != 0 {
		dst.Server.SendRateRPS = src.Server.SendRateRPS
	}
	if src.Server.SendRateBurst != 0 {
		dst.Server.SendRateBurst = src.Server.SendRateBurst
	}
	if src.Session.StorageDir != "" {
		dst.Session.StorageDir = src.Session.StorageDir
	}
	if src.Session.SnapshotPassphrase != "" {
		dst.Session.SnapshotPassphrase = src.Session.SnapshotPassphrase
	}
	if src.Session.Transport != "" {
		dst.Session.Transport = src.Session.Transport
	}
	if src.Session.Recovery.RebuildDelay != 0 {
		dst.Session.Recovery.RebuildDelay = src.Session.Recovery.RebuildDelay
	}
	if src.Session.Recovery.ReinitDelay != 0 {
		dst.Session.Recovery.ReinitDelay = src.Session.Recovery.ReinitDelay
	}
	if src.Session.Recovery.RestartDelay != 0 {
		dst.Session.Recovery.RestartDelay = src.Session.Recovery.RestartDelay
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if addr := envString("GW_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if port := envString("GW_PORT"); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			host, _, found := strings.Cut(cfg.Server.Addr, ":")
			if !found || host == "" {
				host = "127.0.0.1"
			}
			cfg.Server.Addr = host + ":" + port
		}
	}
	if dir := envString("GW_SESSION_DIR"); dir != "" {
		cfg.Session.StorageDir = dir
	}
	if transport := envString("GW_TRANSPORT"); transport != "" {
		cfg.Session.Transport = transport
	}
	if pass := envString("GW_SNAPSHOT_PASSPHRASE"); pass != "" {
		cfg.Session.SnapshotPassphrase = pass
	}
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.SendRateRPS <= 0 {
		cfg.Server.SendRateRPS = def.Server.SendRateRPS
	}
	if cfg.Server.SendRateBurst <= 0 {
		cfg.Server.SendRateBurst = def.Server.SendRateBurst
	}
	if cfg.Session.StorageDir == "" {
		cfg.Session.StorageDir = def.Session.StorageDir
	}
	switch cfg.Session.Transport {
	case protocol.TransportMock, protocol.TransportWhatsmeow:
	default:
		cfg.Session.Transport = def.Session.Transport
	}
	if cfg.Session.Recovery.RebuildDelay <= 0 {
		cfg.Session.Recovery.RebuildDelay = def.Session.Recovery.RebuildDelay
	}
	if cfg.Session.Recovery.ReinitDelay <= 0 {
		cfg.Session.Recovery.ReinitDelay = def.Session.Recovery.ReinitDelay
	}
	if cfg.Session.Recovery.RestartDelay <= 0 {
		cfg.Session.Recovery.RestartDelay = def.Session.Recovery.RestartDelay
	}
	return cfg
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
