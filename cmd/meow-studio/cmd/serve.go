package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meow-stack/meow-studio/internal/ipc"
	"github.com/meow-stack/meow-studio/internal/listener"
	"github.com/meow-stack/meow-studio/internal/logging"
	"github.com/meow-stack/meow-studio/internal/studio"
)

var (
	serveSocket string
	serveEvents bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the editor over a Unix socket",
	Long: `Run the studio service and accept editor requests on a Unix socket.

The editor sends newline-delimited JSON requests (save, cancel, wheel,
get_zoom, drop, ping) and receives one response line per request. Saved
template directories are watched, and changes made by other programs are
reported as "modified" events.

Logs go to <logs_dir>/serve.log. With --events every bus event is also
printed to stdout as a JSON line.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveSocket, "socket", "", "socket path (default: from config)")
	serveCmd.Flags().BoolVar(&serveEvents, "events", false, "print bus events to stdout as JSON lines")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := interruptContext(cmd.Context())
	defer stop()
	return serve(ctx, cmd)
}

// serve runs the server until ctx is done.
func serve(ctx context.Context, cmd *cobra.Command) error {
	cfg, dir, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closer, err := logging.NewForServer(cfg, dir)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer closer.Close()

	svc, err := studio.Open(cfg, dir, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	if serveEvents {
		enc := json.NewEncoder(out)
		reg := svc.Bus().Register(listener.Func(func(ev listener.Event) {
			if err := enc.Encode(ev); err != nil {
				logger.Warn("failed to print event", "kind", ev.Kind, "error", err)
			}
		}))
		defer reg.Close()
	}

	sock := serveSocket
	if sock == "" {
		sock = cfg.SocketPath()
	}
	server := ipc.NewServer(sock, studio.NewIPCHandler(svc, logger), logger)

	fmt.Fprintf(cmd.ErrOrStderr(), "meow-studio listening on %s\n", sock)
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "logs: %s\n", cfg.LogsDir(dir))
	}

	// Start blocks until the context is cancelled, then shuts down.
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("IPC server: %w", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "meow-studio stopped")
	return nil
}
