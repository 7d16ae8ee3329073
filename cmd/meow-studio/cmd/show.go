package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meow-stack/meow-studio/internal/store"
	"github.com/meow-stack/meow-studio/internal/studio"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <template-dir | MOUNT:/path>",
	Short: "Show a component template",
	Long: `Display a saved component template: its identity, where it lives and
its child nodes with their folders.

Examples:
  meow-studio show LOCAL:/components/normalize
  meow-studio show components/normalize --json`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, closeFn, err := openStudio()
	if err != nil {
		return err
	}
	defer closeFn()

	dir, err := templateDir(svc, args[0])
	if err != nil {
		return err
	}
	comp, err := svc.Load(ctx, dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if showJSON {
		data, err := json.MarshalIndent(comp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	folders, err := svc.Store().Folders(dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s\n", comp.Name)
	if comp.Description != "" {
		fmt.Fprintf(out, "  %s\n", comp.Description)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  template: %s\n", comp.TemplateID)
	fmt.Fprintf(out, "  parent:   %s\n", comp.ParentID)
	if comp.Context != nil {
		fmt.Fprintf(out, "  context:  %s\n", comp.Context)
	} else {
		fmt.Fprintf(out, "  context:  (outside all mounts)\n")
	}
	fmt.Fprintf(out, "  dir:      %s\n", comp.Directory.Root)
	if info, err := os.Stat(filepath.Join(dir, store.ManifestFile)); err == nil {
		fmt.Fprintf(out, "  saved:    %s\n", humanize.Time(info.ModTime()))
	}
	if svc.Store().IsLocked(dir) {
		fmt.Fprintf(out, "  locked:   a save is in progress\n")
	}

	if len(comp.Nodes) == 0 {
		fmt.Fprintln(out, "\nNo nodes.")
		return nil
	}

	fmt.Fprintf(out, "\nNodes (%d):\n", len(comp.Nodes))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tKIND\tFOLDER\tSETTINGS")
	for _, n := range comp.SortedNodes() {
		var settings []string
		for k, v := range n.Settings {
			settings = append(settings, k+"="+v)
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n", n.ID, n.Name, n.Kind, folders[n.ID], strings.Join(sorted(settings), ","))
	}
	return w.Flush()
}

// templateDir accepts either a directory or a MOUNT:/path context.
func templateDir(svc *studio.Service, arg string) (string, error) {
	if strings.Contains(arg, ":") && !filepath.IsAbs(arg) {
		if dir, err := svc.Resolve(arg); err == nil {
			return dir, nil
		}
	}
	return absFromWorkDir(arg)
}
