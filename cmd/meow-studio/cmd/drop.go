package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meow-stack/meow-studio/internal/ipc"
)

var dropSocket string

var dropCmd = &cobra.Command{
	Use:   "drop [payload]",
	Short: "Drop a URL onto the studio",
	Long: `Hand a dropped payload to the studio as if it had been dragged onto
the editor. The payload is read from stdin when not given.

file:// URLs naming a template directory or its template.yaml are imported.
http(s) links are recorded. Anything else is ignored.

When a server is listening on the socket the drop is sent to it;
otherwise it is handled in this process.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDrop,
}

func init() {
	dropCmd.Flags().StringVar(&dropSocket, "socket", "", "server socket (default: from config)")
	rootCmd.AddCommand(dropCmd)
}

func runDrop(cmd *cobra.Command, args []string) error {
	var payload string
	if len(args) == 1 {
		payload = args[0]
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
		payload = string(data)
	}
	if strings.TrimSpace(payload) == "" {
		return fmt.Errorf("empty payload")
	}
	out := cmd.OutOrStdout()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	sock := dropSocket
	if sock == "" {
		sock = cfg.SocketPath()
	}

	if _, err := os.Stat(sock); err == nil {
		client := ipc.NewClient(sock)
		if err := client.Ping(); err == nil {
			accepted, err := client.Drop(payload)
			if err != nil {
				return err
			}
			printDrop(out, accepted, "server")
			return nil
		}
	}

	svc, closeFn, err := openStudio()
	if err != nil {
		return err
	}
	defer closeFn()

	accepted, err := svc.Drop(context.Background(), payload)
	if err != nil {
		return err
	}
	printDrop(out, accepted, "local")
	return nil
}

func printDrop(out io.Writer, accepted bool, via string) {
	if accepted {
		fmt.Fprintf(out, "Drop accepted (%s)\n", via)
		return
	}
	fmt.Fprintf(out, "Drop ignored (%s): not an acceptable URL\n", via)
}
