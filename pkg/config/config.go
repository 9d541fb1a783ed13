package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

// Defaults applied when the config file is missing or leaves fields unset.
const (
	DefaultListenAddr    = "127.0.0.1:8849"
	DefaultMaxAge        = 42 * 24 * time.Hour
	DefaultInitialDelay  = 20 * time.Second
	DefaultSweepInterval = time.Hour
)

type Config struct {
	StorageDir string          `toml:"storage_dir"`
	ListenAddr string          `toml:"listen_addr"`
	Debug      bool            `toml:"debug"`
	Retention  RetentionConfig `toml:"retention"`
}

type RetentionConfig struct {
	MaxAge        Duration `toml:"max_age"`
	InitialDelay  Duration `toml:"initial_delay"`
	SweepInterval Duration `toml:"sweep_interval"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	return &Config{
		StorageDir: storageDir,
		ListenAddr: DefaultListenAddr,
		Retention: RetentionConfig{
			MaxAge:        Duration{DefaultMaxAge},
			InitialDelay:  Duration{DefaultInitialDelay},
			SweepInterval: Duration{DefaultSweepInterval},
		},
	}, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	if config.Retention.MaxAge.Duration == 0 {
		config.Retention.MaxAge = Duration{DefaultMaxAge}
	}
	if config.Retention.InitialDelay.Duration == 0 {
		config.Retention.InitialDelay = Duration{DefaultInitialDelay}
	}
	if config.Retention.SweepInterval.Duration == 0 {
		config.Retention.SweepInterval = Duration{DefaultSweepInterval}
	}

	return &config, nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the commented sample config, with the storage
// directory placeholder replaced by the configured (or default) path.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/places", storageDir, 1)
	return os.WriteFile(configPath, []byte(template), 0644)
}

// DBPath returns the database file path inside the storage directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.StorageDir, "places.db")
}

// GetDefaultStorageDir returns the default storage directory for the
// database, honoring XDG_DATA_HOME.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "places")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetConfigDir returns the configuration directory, honoring
// XDG_CONFIG_HOME.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "places")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
