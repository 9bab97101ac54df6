package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Device   DeviceConfig   `toml:"device"`
	Library  LibraryConfig  `toml:"library"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// DeviceConfig describes how to reach the jukebox.
type DeviceConfig struct {
	BaseURL           string  `toml:"base_url"`
	Timeout           string  `toml:"timeout"`
	UploadTimeout     string  `toml:"upload_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// LibraryConfig contains presentation defaults for the file table.
type LibraryConfig struct {
	SortColumn    string `toml:"sort_column"`
	SortAscending bool   `toml:"sort_ascending"`
	DateLayout    string `toml:"date_layout"`
	Timezone      string `toml:"timezone"`
}

// DatabaseConfig contains settings for the local operation journal.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// RequestTimeout parses the JSON request deadline. An empty or "0" value disables it.
func (d DeviceConfig) RequestTimeout() (time.Duration, error) {
	return parseTimeout(d.Timeout)
}

// TransferTimeout parses the per-file upload deadline. An empty or "0" value disables it.
func (d DeviceConfig) TransferTimeout() (time.Duration, error) {
	return parseTimeout(d.UploadTimeout)
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad duration %q: %v", ErrInvalidConfig, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: negative duration %q", ErrInvalidConfig, s)
	}
	return d, nil
}

// Location resolves the configured timezone, defaulting to [time.Local].
func (l LibraryConfig) Location() (*time.Location, error) {
	if l.Timezone == "" || l.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q: %v", ErrInvalidConfig, l.Timezone, err)
	}
	return loc, nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
