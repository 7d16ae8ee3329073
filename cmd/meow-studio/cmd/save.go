package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meow-stack/meow-studio/internal/save"
	"github.com/meow-stack/meow-studio/internal/types"
)

var saveCmd = &cobra.Command{
	Use:   "save <template-dir> <MOUNT:/path>",
	Short: "Save a component template to a context",
	Long: `Save the component template in <template-dir> to a context.

When the context is the one the template already lives at, the template is
rewritten in place. Any other context receives a new copy of the template,
including files its nodes own; the source template is left untouched.

Examples:
  meow-studio save components/normalize LOCAL:/components/normalize
  meow-studio save components/normalize LOCAL:/archive/normalize-v2`,
	Args: cobra.ExactArgs(2),
	RunE: runSave,
}

func init() {
	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, closeFn, err := openStudio()
	if err != nil {
		return err
	}
	defer closeFn()

	src, err := absFromWorkDir(args[0])
	if err != nil {
		return err
	}
	comp, err := svc.Load(ctx, src)
	if err != nil {
		return err
	}

	// An interrupt stops the save at its next checkpoint.
	saveCtx, stop := interruptContext(ctx)
	defer stop()
	res, err := svc.Save(saveCtx, "", comp, args[1])
	if err != nil {
		return err
	}
	if err := comp.Apply(res.Relocation); err != nil {
		return err
	}

	printSaveResult(cmd.OutOrStdout(), comp, res)
	return nil
}

func printSaveResult(out io.Writer, comp *types.Component, res *save.Result) {
	fmt.Fprintf(out, "Saved %s (%s)\n", comp.Name, res.Mode)
	if comp.Context != nil {
		fmt.Fprintf(out, "  context: %s\n", comp.Context)
	}
	fmt.Fprintf(out, "  dir:     %s\n", res.Dir)
	st := res.Stats
	fmt.Fprintf(out, "  nodes:   %d\n", st.Nodes)
	fmt.Fprintf(out, "  files:   %d (%s)\n", st.Files, humanize.Bytes(uint64(st.Bytes)))
	if st.Copied > 0 {
		fmt.Fprintf(out, "  carried: %d node files\n", st.Copied)
	}
	if st.Removed > 0 {
		fmt.Fprintf(out, "  removed: %d stale node folders\n", st.Removed)
	}
}

// absFromWorkDir anchors a relative path at the working directory.
func absFromWorkDir(p string) (string, error) {
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	dir, err := getWorkDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}
