package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// FilesConfig describes the files created during a run.
type FilesConfig struct {
	Prefix  string `mapstructure:"prefix"`
	Count   int    `mapstructure:"count"`
	Payload string `mapstructure:"payload"`
}

// AuditConfig locates the audit log.
type AuditConfig struct {
	Path string `mapstructure:"path"`
}

// JournalConfig locates the operation journal and selects the replay mode.
type JournalConfig struct {
	Path           string `mapstructure:"path"`
	Replay         string `mapstructure:"replay"`
	CheckpointPath string `mapstructure:"checkpoint_path"` // Empty means DefaultCheckpointPath()
}

// OutputConfig selects the report format.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// LoggingConfig configures diagnostic logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Console    string            `mapstructure:"console"`
	Components map[string]string `mapstructure:"components"`
}

// Config represents the application configuration.
type Config struct {
	Directory string        `mapstructure:"directory"`
	Files     FilesConfig   `mapstructure:"files"`
	Audit     AuditConfig   `mapstructure:"audit"`
	Journal   JournalConfig `mapstructure:"journal"`
	Output    OutputConfig  `mapstructure:"output"`
	Logging   LoggingConfig `mapstructure:"logging"`
}

// NewViper returns a viper instance with every default set. Settings come
// from the config file and bound flags only; the environment is not consulted.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("directory", DefaultDirectory)
	v.SetDefault("files.prefix", DefaultFilePrefix)
	v.SetDefault("files.count", DefaultFileCount)
	v.SetDefault("files.payload", DefaultPayload)
	v.SetDefault("audit.path", DefaultAuditPath)
	v.SetDefault("journal.path", DefaultJournalPath)
	v.SetDefault("journal.replay", DefaultReplayMode)
	v.SetDefault("journal.checkpoint_path", "")
	v.SetDefault("output.format", DefaultOutputFormat)
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means logging.DefaultLogPath()
	v.SetDefault("logging.console", DefaultConsoleLevel)
	v.SetDefault("logging.components", map[string]string{})

	return v
}

// Load reads configuration into v and returns the decoded result.
// An explicit file must exist. Without one the standard locations are
// searched in order of precedence, and finding nothing is not an error:
//   - $XDG_CONFIG_HOME/fsjournal/config.yaml
//   - $HOME/.config/fsjournal/config.yaml
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "fsjournal"))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "fsjournal"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.Audit.Path, &cfg.Journal.Path, &cfg.Journal.CheckpointPath, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values no run could use.
func (c *Config) Validate() error {
	var errs []error
	if c.Directory == "" {
		errs = append(errs, errors.New("directory must not be empty"))
	}
	if c.Files.Count < 0 {
		errs = append(errs, fmt.Errorf("files.count must not be negative, got %d", c.Files.Count))
	}
	if c.Files.Prefix == "" {
		errs = append(errs, errors.New("files.prefix must not be empty"))
	}
	if strings.ContainsAny(c.Files.Prefix, `/\`) {
		errs = append(errs, fmt.Errorf("files.prefix must not contain a path separator, got %q", c.Files.Prefix))
	}
	if c.Audit.Path == "" {
		errs = append(errs, errors.New("audit.path must not be empty"))
	}
	if c.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path must not be empty"))
	}
	switch strings.ToLower(c.Journal.Replay) {
	case ReplayAll, ReplayCheckpoint:
	default:
		errs = append(errs, fmt.Errorf("journal.replay must be %q or %q, got %q", ReplayAll, ReplayCheckpoint, c.Journal.Replay))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// CheckpointPath returns the configured checkpoint store location or the default.
func (c *Config) CheckpointPath() string {
	if c.Journal.CheckpointPath != "" {
		return c.Journal.CheckpointPath
	}
	return DefaultCheckpointPath()
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "fsjournal"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "fsjournal"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# fsjournal configuration

# Directory created, filled, emptied and removed by each run
directory: %s

# Files created inside the directory
files:
  prefix: %s
  count: %d
  payload: %q

# Audit log: one timestamped line per operation
audit:
  path: %s

# Operation journal, replayed into the audit log on startup
journal:
  path: %s
  # all: replay every entry on every start
  # checkpoint: replay only entries not yet replayed
  replay: %s
  # Checkpoint store (empty means use default: $XDG_DATA_HOME/fsjournal/checkpoint)
  checkpoint_path: ""

# Report format: pretty, plain, json, yaml
output:
  format: %s

# Diagnostic logging
logging:
  # Log level: debug, info, warn, error
  level: %s
  # Log file path (empty means use default: $XDG_STATE_HOME/fsjournal/fsjournal.log)
  path: ""
  # Level at which diagnostics are also written to stderr (empty disables)
  console: %s
  # Per-component log levels
  components: {}
`, DefaultDirectory, DefaultFilePrefix, DefaultFileCount, DefaultPayload,
		DefaultAuditPath, DefaultJournalPath, DefaultReplayMode, DefaultOutputFormat,
		DefaultLogLevel, DefaultConsoleLevel)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/fsjournal/ for the checkpoint store.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "fsjournal")
}

// StateDir returns $XDG_STATE_HOME/fsjournal/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "fsjournal")
}

// DefaultCheckpointPath returns the default checkpoint store directory.
func DefaultCheckpointPath() string {
	return filepath.Join(DataDir(), "checkpoint")
}
