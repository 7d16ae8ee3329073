package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meow-stack/meow-studio/internal/config"
)

const defaultConfig = `# meow-studio configuration
version = "1"

# Mount points map context mounts to directories. Relative roots are
# anchored at the project directory.
[mounts]
LOCAL = "components"

[paths]
settings_db = ".meow-studio/settings.db"
logs_dir = ".meow-studio/logs"

[save]
codec = "msgpack"         # msgpack or json
compression = "zstd"      # none, gzip or zstd
exclude = ["data"]        # node subdirectories not carried to new locations

[zoom]
presets = [10.0, 25.0, 50.0, 75.0, 100.0, 125.0, 150.0, 200.0, 300.0, 400.0, 500.0]
percent_per_notch = 5.0
default = 100.0

[drop]
schemes = ["file", "http", "https"]

[watch]
enabled = true
debounce = "200ms"

[logging]
level = "info"
format = "json"
`

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a meow-studio project",
	Long: `Initialize meow-studio in the current directory.

Creates the following structure:

  .meow-studio/
  ├── config.toml      # Project configuration
  └── logs/            # Server logs (gitignored)
  components/          # Root of the LOCAL mount

The settings database is created on first use.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config.toml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	stateDir := filepath.Join(dir, config.StateDirName)
	configFile := filepath.Join(stateDir, "config.toml")
	if _, err := os.Stat(configFile); err == nil && !initForce {
		return fmt.Errorf("meow-studio project already initialized (found %s)\n  Use --force to overwrite the config", configFile)
	}

	for _, d := range []string{
		filepath.Join(stateDir, "logs"),
		filepath.Join(dir, "components"),
	} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := os.WriteFile(configFile, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// The written config must load and validate.
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	gitignore := filepath.Join(stateDir, ".gitignore")
	if err := os.WriteFile(gitignore, []byte("logs/\nsettings.db*\n"), 0644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	fmt.Fprintf(out, "Initialized meow-studio in %s\n", dir)
	fmt.Fprintf(out, "  config:     %s\n", configFile)
	fmt.Fprintf(out, "  LOCAL root: %s\n", filepath.Join(dir, "components"))
	return nil
}
