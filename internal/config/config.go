// Package config loads client settings from defaults, an optional YAML
// file, an optional .env file and the environment, in increasing order of
// precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the client settings.
type Config struct {
	// ServerURL is the broker's WebSocket endpoint.
	ServerURL string `yaml:"server_url" env:"CHAT_SERVER_URL"`

	// UploadURL is the file endpoint that accepts raw uploads.
	UploadURL string `yaml:"upload_url" env:"CHAT_UPLOAD_URL"`

	// Username logs in automatically at startup when set.
	Username string `yaml:"username" env:"CHAT_USERNAME"`

	// RedisAddr, when set, keeps the seen-id set in Redis instead of memory.
	RedisAddr string `yaml:"redis_addr" env:"CHAT_REDIS_ADDR"`

	// SeenTTL expires abandoned seen-id sets in Redis.
	SeenTTL time.Duration `yaml:"seen_ttl" env:"CHAT_SEEN_TTL"`

	// MetricsAddr, when set, serves Prometheus metrics on /metrics.
	MetricsAddr string `yaml:"metrics_addr" env:"CHAT_METRICS_ADDR"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		ServerURL: "ws://localhost:8080",
		UploadURL: "http://localhost:9000/upload",
		SeenTTL:   24 * time.Hour,
	}
}

// Load builds a Config. path names an optional YAML file; an empty path
// skips it. A missing .env file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: ignoring .env: %v", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate checks that the endpoints use the expected schemes.
func (c Config) Validate() error {
	if err := checkScheme("server_url", c.ServerURL, "ws", "wss"); err != nil {
		return err
	}
	if c.UploadURL != "" {
		if err := checkScheme("upload_url", c.UploadURL, "http", "https"); err != nil {
			return err
		}
	}
	if c.SeenTTL < 0 {
		return errors.New("config: seen_ttl must not be negative")
	}
	return nil
}

func checkScheme(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: %s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("config: %s must be a %v URL, got %q", field, schemes, raw)
}
