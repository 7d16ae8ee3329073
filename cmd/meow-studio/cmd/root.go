package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meow-stack/meow-studio/internal/config"
	"github.com/meow-stack/meow-studio/internal/logging"
	"github.com/meow-stack/meow-studio/internal/studio"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	// Global flags
	verbose    bool
	workDir    string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "meow-studio",
	Short: "Save, relocate and inspect MEOW component templates",
	Long: `meow-studio persists workflow components as reusable templates.

A component is saved to a context of the form MOUNT:/path, where MOUNT is
one of the roots configured under [mounts]. Saving to the context a
component already lives at rewrites it in place; saving anywhere else
writes a new template and leaves the old one untouched.

Run 'meow-studio serve' to expose saves, canvas zoom and drag-and-drop
import to the editor over a Unix socket.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", "", "working directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: .meow-studio/config.toml)")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("meow-studio {{.Version}}\n")
}

// getWorkDir returns the effective working directory.
func getWorkDir() (string, error) {
	if workDir != "" {
		return filepath.Abs(workDir)
	}
	return os.Getwd()
}

// loadConfig loads the configuration for the working directory. An
// explicit --config file replaces the standard lookup.
func loadConfig() (*config.Config, string, error) {
	dir, err := getWorkDir()
	if err != nil {
		return nil, "", err
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromDir(dir)
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = config.LogLevelDebug
	}
	return cfg, dir, nil
}

// newLogger creates the logger for a one-shot command. Without --verbose
// only warnings reach stderr.
func newLogger(cfg *config.Config, dir string) (*slog.Logger, io.Closer, error) {
	if !verbose && cfg.Logging.Level != config.LogLevelError {
		cfg.Logging.Level = config.LogLevelWarn
	}
	return logging.NewFromConfig(cfg, dir)
}

// openStudio opens a studio service for a one-shot command. The template
// watcher is only useful to a long-running server and stays off.
func openStudio() (*studio.Service, func(), error) {
	cfg, dir, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	cfg.Watch.Enabled = false

	logger, closer, err := newLogger(cfg, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	svc, err := studio.Open(cfg, dir, logger)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, nil, err
	}
	return svc, func() {
		svc.Close()
		if closer != nil {
			closer.Close()
		}
	}, nil
}

// interruptContext returns a context cancelled on SIGINT or SIGTERM.
var interruptContext = func(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
