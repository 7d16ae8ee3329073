package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// StateDirName is the per-project state directory.
const StateDirName = ".meow-studio"

// LogLevel specifies the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat specifies the log output format.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// PathsConfig holds path configuration.
type PathsConfig struct {
	SettingsDB string `toml:"settings_db"`
	LogsDir    string `toml:"logs_dir"`
	Socket     string `toml:"socket"` // Empty means a per-user socket in the temp dir
}

// SaveConfig controls how node internals are encoded on disk.
type SaveConfig struct {
	Codec       string `toml:"codec"`       // msgpack or json
	Compression string `toml:"compression"` // none, gzip or zstd

	// Exclude lists node subdirectories left behind when a component is
	// saved to a new location.
	Exclude []string `toml:"exclude"`
}

// ZoomConfig controls mouse-wheel zoom.
type ZoomConfig struct {
	// Presets are the discrete zoom levels in percent, ascending.
	Presets []float64 `toml:"presets"`

	// PercentPerNotch is the continuous change per wheel notch when the
	// alternate modifier is held.
	PercentPerNotch float64 `toml:"percent_per_notch"`

	// Default is the level of a canvas with no persisted zoom.
	Default float64 `toml:"default"`
}

// DropConfig controls which dropped URLs are accepted.
type DropConfig struct {
	Schemes []string `toml:"schemes"`
}

// WatchConfig controls the template directory watcher.
type WatchConfig struct {
	Enabled  bool          `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  LogLevel  `toml:"level"`
	Format LogFormat `toml:"format"`
	File   string    `toml:"file"`
}

// Config is the main configuration struct for meow-studio.
type Config struct {
	Version string `toml:"version"`

	// Mounts maps mount point names to root directories. A workflow
	// context's mount is resolved against this table.
	Mounts map[string]string `toml:"mounts"`

	Paths   PathsConfig   `toml:"paths"`
	Save    SaveConfig    `toml:"save"`
	Zoom    ZoomConfig    `toml:"zoom"`
	Drop    DropConfig    `toml:"drop"`
	Watch   WatchConfig   `toml:"watch"`
	Logging LoggingConfig `toml:"logging"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Mounts: map[string]string{
			"LOCAL": "~/meow-workspace",
		},
		Paths: PathsConfig{
			SettingsDB: StateDirName + "/settings.db",
			LogsDir:    StateDirName + "/logs",
		},
		Save: SaveConfig{
			Codec:       "msgpack",
			Compression: "zstd",
		},
		Zoom: ZoomConfig{
			Presets:         []float64{10, 25, 50, 75, 100, 125, 150, 200, 300, 400, 500},
			PercentPerNotch: 5,
			Default:         100,
		},
		Drop: DropConfig{
			Schemes: []string{"file", "http", "https"},
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 200 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatJSON,
		},
	}
}

// Load loads configuration from file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFromDir loads configuration from the standard locations in a directory.
// Applies in order: defaults -> ~/.meow-studio/config.toml ->
// <dir>/.meow-studio/config.toml -> <dir>/.env and MEOW_STUDIO_* variables.
func LoadFromDir(dir string) (*Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err == nil {
		globalConfig := filepath.Join(home, StateDirName, "config.toml")
		if data, err := os.ReadFile(globalConfig); err == nil {
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		}
	}

	projectConfig := filepath.Join(dir, StateDirName, "config.toml")
	if data, err := os.ReadFile(projectConfig); err == nil {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing project config: %w", err)
		}
	}

	if err := LoadEnvFile(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	return cfg, nil
}

// LoadEnvFile loads variables from a dotenv file. A missing file is not an
// error. Variables already set in the environment win.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from MEOW_STUDIO_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MEOW_STUDIO_LOG_LEVEL"); v != "" {
		c.Logging.Level = LogLevel(strings.ToLower(v))
	}
	if v := os.Getenv("MEOW_STUDIO_LOG_FORMAT"); v != "" {
		c.Logging.Format = LogFormat(strings.ToLower(v))
	}
	if v := os.Getenv("MEOW_STUDIO_SETTINGS_DB"); v != "" {
		c.Paths.SettingsDB = v
	}
	if v := os.Getenv("MEOW_STUDIO_SOCKET"); v != "" {
		c.Paths.Socket = v
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("config version is required")
	}
	if len(c.Mounts) == 0 {
		return fmt.Errorf("at least one mount is required")
	}
	for name, root := range c.Mounts {
		if name == "" || root == "" {
			return fmt.Errorf("mount %q has an empty name or root", name)
		}
	}
	switch c.Save.Codec {
	case "msgpack", "json":
	default:
		return fmt.Errorf("unknown save codec %q", c.Save.Codec)
	}
	switch c.Save.Compression {
	case "none", "gzip", "zstd":
	default:
		return fmt.Errorf("unknown save compression %q", c.Save.Compression)
	}
	if len(c.Zoom.Presets) == 0 {
		return fmt.Errorf("zoom presets are required")
	}
	if !sort.Float64sAreSorted(c.Zoom.Presets) {
		return fmt.Errorf("zoom presets must be ascending")
	}
	if c.Zoom.Presets[0] <= 0 {
		return fmt.Errorf("zoom presets must be positive")
	}
	if c.Zoom.PercentPerNotch <= 0 {
		return fmt.Errorf("percent_per_notch must be positive")
	}
	if len(c.Drop.Schemes) == 0 {
		return fmt.Errorf("drop schemes are required")
	}
	if c.Watch.Enabled && c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch debounce must be positive")
	}
	return nil
}

// MountRoots returns the mount table with ~ expanded and relative roots
// anchored at baseDir.
func (c *Config) MountRoots(baseDir string) map[string]string {
	roots := make(map[string]string, len(c.Mounts))
	for name, root := range c.Mounts {
		root = ExpandPath(root)
		if !filepath.IsAbs(root) {
			root = filepath.Join(baseDir, root)
		}
		roots[name] = filepath.Clean(root)
	}
	return roots
}

// SettingsDB returns the absolute settings database path.
func (c *Config) SettingsDB(baseDir string) string {
	p := ExpandPath(c.Paths.SettingsDB)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// LogsDir returns the absolute logs directory path.
func (c *Config) LogsDir(baseDir string) string {
	p := ExpandPath(c.Paths.LogsDir)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// LogFile returns the absolute log file path.
func (c *Config) LogFile(baseDir string) string {
	p := ExpandPath(c.Logging.File)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.LogsDir(baseDir), p)
}

// SocketPath returns the IPC socket path.
func (c *Config) SocketPath() string {
	if c.Paths.Socket != "" {
		return ExpandPath(c.Paths.Socket)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("meow-studio-%d.sock", os.Getuid()))
}

// ExpandPath expands ~ at the start of a path to the user's home directory.
// If ~ is not at the start or home directory cannot be determined, returns path unchanged.
func ExpandPath(path string) string {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}
