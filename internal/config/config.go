package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	Backup  BackupConfig
}

type ServerConfig struct {
	Port       int
	MCPEnabled bool
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// BackupConfig selects where snapshot exports go. An S3 bucket takes precedence
// over the local directory.
type BackupConfig struct {
	Dir          string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3PathStyle  bool
	S3Prefix     string
	PollInterval string
}

// Poll returns the backup worker poll interval, falling back to 2s when the
// configured value does not parse.
func (b BackupConfig) Poll() time.Duration {
	d, err := time.ParseDuration(b.PollInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port:       4100,
			MCPEnabled: true,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Log: LogConfig{
			Level: "info",
		},
		Backup: BackupConfig{
			Dir:          filepath.Join(dataDir, "backups"),
			S3Region:     "us-east-1",
			S3Prefix:     "workbook/",
			PollInterval: "2s",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/workbook/config.json and applies WORKBOOK_* environment
// overrides on top.
func Load() (Config, error) {
	return loadFromPath(configFilePath())
}

func loadFromPath(path string) (Config, error) {
	return loadWith(newFileBackend(path))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	if cfg.Storage.DataDir == "" {
		return Config{}, fmt.Errorf("missing required config: storage.data_dir")
	}

	return cfg, nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "workbook-data"
		}
	}
	return filepath.Join(dir, "workbook")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "workbook", "config.json")
}
