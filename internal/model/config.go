package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by the "backend" key.
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendRedis     = "redis"
	BackendFirestore = "firestore"
)

// CollectionsConfig names the remote collections the board reads.
type CollectionsConfig struct {
	Tasks string `mapstructure:"tasks" yaml:"tasks"`
	Users string `mapstructure:"users" yaml:"users"`
}

// SQLiteConfig configures the local single-file backend.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`

	// PollIntervalSec is how often other processes' writes are picked up.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

// FirestoreConfig configures the Firestore backend.
type FirestoreConfig struct {
	ProjectID       string `mapstructure:"project_id" yaml:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
}

// LogConfig controls where logs go. The terminal belongs to the board, so
// logging always targets a file.
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// DisplayConfig holds UI preferences.
type DisplayConfig struct {
	WriteTimeoutSec int `mapstructure:"write_timeout_sec" yaml:"write_timeout_sec"`
}

// WriteTimeout returns the per-write deadline.
func (d DisplayConfig) WriteTimeout() time.Duration {
	if d.WriteTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(d.WriteTimeoutSec) * time.Second
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend     string            `mapstructure:"backend" yaml:"backend"`
	Collections CollectionsConfig `mapstructure:"collections" yaml:"collections"`
	SQLite      SQLiteConfig      `mapstructure:"sqlite" yaml:"sqlite"`
	Redis       RedisConfig       `mapstructure:"redis" yaml:"redis"`
	Firestore   FirestoreConfig   `mapstructure:"firestore" yaml:"firestore"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Display     DisplayConfig     `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/kanban/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "kanban")
}

func setDefaults(v *viper.Viper) {
	dir := configDir()
	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("collections.tasks", "tasks")
	v.SetDefault("collections.users", "users")
	v.SetDefault("sqlite.path", filepath.Join(dir, "board.db"))
	v.SetDefault("sqlite.poll_interval_sec", 2)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "kanban")
	v.SetDefault("firestore.project_id", "")
	v.SetDefault("firestore.credentials_file", "")
	v.SetDefault("log.file", filepath.Join(dir, "kanban.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("display.write_timeout_sec", 10)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults and KANBAN_* environment
// variables still apply.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("KANBAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// The original deployment configured Firestore through these two.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = os.Getenv("FIREBASE_PROJECT_ID")
	}
	if cfg.Firestore.CredentialsFile == "" {
		cfg.Firestore.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values the backends cannot default on their own.
func (c *AppConfig) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite, BackendRedis, BackendFirestore:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Collections.Tasks == "" || c.Collections.Users == "" {
		return errors.New("collection names must not be empty")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("collections", cfg.Collections)
	v.Set("sqlite", cfg.SQLite)
	v.Set("redis", cfg.Redis)
	v.Set("firestore", cfg.Firestore)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
