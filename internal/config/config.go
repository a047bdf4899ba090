package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/viper"
)

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type Config struct {
	DaemonPort     int           `mapstructure:"daemon_port"`
	DBPath         string        `mapstructure:"db_path"`
	CredentialsDir string        `mapstructure:"credentials_dir"`
	DefaultLevel   string        `mapstructure:"default_level"`
	TempExtensions []string      `mapstructure:"temp_extensions"`
	EventBuffer    int           `mapstructure:"event_buffer"`
	ChunkSize      int64         `mapstructure:"chunk_size"`
	Target         string        `mapstructure:"target"`
	GDriveFolder   string        `mapstructure:"gdrive_folder"`
	DropboxFolder  string        `mapstructure:"dropbox_folder"`
	S3             S3Config      `mapstructure:"s3"`
	WatchDebounce  time.Duration `mapstructure:"watch_debounce"`
	WatchIgnore    []string      `mapstructure:"watch_ignore"`
	ConsentTimeout time.Duration `mapstructure:"consent_timeout"`
}

var (
	Levels  = []string{"low", "medium", "high"}
	Targets = []string{"gdrive", "dropbox", "s3"}
)

var Default = Config{
	DaemonPort:     9101,
	DBPath:         "backtomatic.db",
	CredentialsDir: ".",
	DefaultLevel:   "medium",
	TempExtensions: []string{".tmp", ".log", ".iso"},
	EventBuffer:    64,
	ChunkSize:      8 << 20,
	Target:         "gdrive",
	DropboxFolder:  "/BackTomatic",
	WatchDebounce:  5 * time.Second,
	WatchIgnore:    []string{".git", ".DS_Store", "*.swp", "~$*"},
	ConsentTimeout: 2 * time.Minute,
}

func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}

	return filepath.Join(home, ".backtomatic"), nil
}

func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	v.SetEnvPrefix("BACKTOMATIC")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("daemon_port", Default.DaemonPort)
	v.SetDefault("db_path", filepath.Join(configDir, Default.DBPath))
	v.SetDefault("credentials_dir", Default.CredentialsDir)
	v.SetDefault("default_level", Default.DefaultLevel)
	v.SetDefault("temp_extensions", Default.TempExtensions)
	v.SetDefault("event_buffer", Default.EventBuffer)
	v.SetDefault("chunk_size", Default.ChunkSize)
	v.SetDefault("target", Default.Target)
	v.SetDefault("gdrive_folder", Default.GDriveFolder)
	v.SetDefault("dropbox_folder", Default.DropboxFolder)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("watch_debounce", Default.WatchDebounce)
	v.SetDefault("watch_ignore", Default.WatchIgnore)
	v.SetDefault("consent_timeout", Default.ConsentTimeout)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.EventBuffer <= 0 {
		return fmt.Errorf("event_buffer must be positive, got %d", c.EventBuffer)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}

	if !slices.Contains(Levels, c.DefaultLevel) {
		return fmt.Errorf("unknown default_level %q", c.DefaultLevel)
	}

	if !slices.Contains(Targets, c.Target) {
		return fmt.Errorf("unknown target %q", c.Target)
	}

	return nil
}
