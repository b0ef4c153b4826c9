package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Backend kinds.
const (
	BackendTDJSON   = "tdjson"
	BackendWhatsApp = "whatsapp"
)

// Config represents the global ~/.telesync/config.toml.
type Config struct {
	DefaultSession string        `toml:"default_session"`
	Backend        Backend       `toml:"backend"`
	Notifications  Notifications `toml:"notifications"`
	Push           Push          `toml:"push"`
	Outbox         Outbox        `toml:"outbox"`
}

// Backend selects and parameterizes the messaging backend.
type Backend struct {
	Kind           string `toml:"kind"`
	URL            string `toml:"url"`
	APIID          int32  `toml:"api_id"`
	APIHash        string `toml:"api_hash"`
	SystemLanguage string `toml:"system_language"`
	DeviceModel    string `toml:"device_model"`
	Passphrase     string `toml:"passphrase"`
}

type Notifications struct {
	Enabled        bool `toml:"enabled"`
	HistorySize    int  `toml:"history_size"`
	QuietWhileOpen bool `toml:"quiet_while_open"`
}

type Push struct {
	Linger Duration `toml:"linger"`
}

type Outbox struct {
	RatePerSecond int `toml:"rate_per_second"`
}

// Duration is a time.Duration that decodes from strings like "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.Notifications.Enabled = true
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Backend.Kind == "" {
		c.Backend.Kind = BackendTDJSON
	}
	if c.Backend.URL == "" {
		c.Backend.URL = "ws://127.0.0.1:8765/td"
	}
	if c.Backend.SystemLanguage == "" {
		c.Backend.SystemLanguage = "en"
	}
	if c.Backend.DeviceModel == "" {
		c.Backend.DeviceModel = "Watch"
	}
	if c.Notifications.HistorySize <= 0 {
		c.Notifications.HistorySize = 10
	}
	if c.Push.Linger.Duration <= 0 {
		c.Push.Linger.Duration = 10 * time.Second
	}
	if c.Outbox.RatePerSecond <= 0 {
		c.Outbox.RatePerSecond = 5
	}
}

// Load reads config from the given path. Returns nil config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to Default when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
