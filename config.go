package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const defaultRoomCapacity = 5

type Config struct {
	Addr                string        `toml:"addr"`
	TLSCert             string        `toml:"tls_cert"`
	TLSKey              string        `toml:"tls_key"`
	MaxRooms            int           `toml:"max_rooms"`
	DefaultRoomCapacity int           `toml:"default_room_capacity"`
	MaxMessageSize      int64         `toml:"max_message_size"`
	RateLimitPerIP      float64       `toml:"rate_limit_per_ip"`
	MetricsAddr         string        `toml:"metrics_addr"`
	WriteWait           time.Duration `toml:"write_wait"`
	SendBufferSize      int           `toml:"send_buffer_size"`
}

// fileConfig is the layout of the optional TOML file named by RELAY_CONFIG.
type fileConfig struct {
	Relay Config `toml:"relay"`
}

func defaultConfig() *Config {
	return &Config{
		Addr:                ":8001",
		MaxRooms:            1000,
		DefaultRoomCapacity: defaultRoomCapacity,
		MaxMessageSize:      64 * 1024,
		RateLimitPerIP:      100,
		WriteWait:           10 * time.Second,
		SendBufferSize:      256,
	}
}

// LoadConfig builds the config from defaults, then the TOML file in
// RELAY_CONFIG (if any), then RELAY_* environment variables.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("RELAY_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Addr = envStr("RELAY_ADDR", cfg.Addr)
	cfg.TLSCert = envStr("RELAY_TLS_CERT", cfg.TLSCert)
	cfg.TLSKey = envStr("RELAY_TLS_KEY", cfg.TLSKey)
	cfg.MaxRooms = envInt("RELAY_MAX_ROOMS", cfg.MaxRooms)
	cfg.DefaultRoomCapacity = envInt("RELAY_DEFAULT_ROOM_CAPACITY", cfg.DefaultRoomCapacity)
	cfg.MaxMessageSize = int64(envInt("RELAY_MAX_MESSAGE_SIZE", int(cfg.MaxMessageSize)))
	cfg.RateLimitPerIP = envFloat("RELAY_RATE_LIMIT_PER_IP", cfg.RateLimitPerIP)
	cfg.MetricsAddr = envStr("RELAY_METRICS_ADDR", cfg.MetricsAddr)
	cfg.WriteWait = envDuration("RELAY_WRITE_WAIT", cfg.WriteWait)
	cfg.SendBufferSize = envInt("RELAY_SEND_BUFFER_SIZE", cfg.SendBufferSize)

	if cfg.DefaultRoomCapacity <= 0 {
		return nil, fmt.Errorf("default_room_capacity must be positive, got %d", cfg.DefaultRoomCapacity)
	}
	if cfg.SendBufferSize <= 0 {
		return nil, fmt.Errorf("send_buffer_size must be positive, got %d", cfg.SendBufferSize)
	}
	if cfg.MaxMessageSize <= 0 {
		return nil, fmt.Errorf("max_message_size must be positive, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimitPerIP <= 0 {
		return nil, fmt.Errorf("rate_limit_per_ip must be positive, got %g", cfg.RateLimitPerIP)
	}
	if cfg.WriteWait <= 0 {
		return nil, fmt.Errorf("write_wait must be positive, got %s", cfg.WriteWait)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := fileConfig{Relay: *c}
	if err := toml.Unmarshal(content, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	*c = fc.Relay
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("invalid int env %s=%q (using %d)", key, v, fallback)
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("invalid float env %s=%q (using %g)", key, v, fallback)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid duration env %s=%q (using %s)", key, v, fallback)
	}
	return fallback
}
