package cmd

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var recentLimit int

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recent save locations",
	Args:  cobra.NoArgs,
	RunE:  runRecent,
}

func init() {
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 10, "maximum number of locations")
	rootCmd.AddCommand(recentCmd)
}

func runRecent(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openStudio()
	if err != nil {
		return err
	}
	defer closeFn()

	locs, err := svc.Settings().RecentLocations(context.Background(), recentLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(locs) == 0 {
		fmt.Fprintln(out, "No saves recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONTEXT\tDIR\tSAVED")
	for _, l := range locs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", l.Context, l.Dir, humanize.Time(l.SavedAt))
	}
	return w.Flush()
}

func sorted(s []string) []string {
	sort.Strings(s)
	return s
}
