package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meow-stack/meow-studio/internal/types"
)

var (
	newParent      string
	newDescription string
	newNodes       []string
)

var newCmd = &cobra.Command{
	Use:   "new <name> <MOUNT:/path>",
	Short: "Create a component template",
	Long: `Create a new component template and save it to a context.

Nodes are given as ID:KIND:NAME and may be repeated.

Examples:
  meow-studio new Normalize LOCAL:/components/normalize \
    --node 1:io.reader:Reader --node 2:math.scale:Scaler`,
	Args: cobra.ExactArgs(2),
	RunE: runNew,
}

func init() {
	newCmd.Flags().StringVar(&newParent, "parent", "cli", "ID of the workflow the component belongs to")
	newCmd.Flags().StringVar(&newDescription, "description", "", "component description")
	newCmd.Flags().StringArrayVar(&newNodes, "node", nil, "child node as ID:KIND:NAME")
	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	comp := types.NewComponent(args[0], newParent)
	comp.Description = newDescription
	for _, spec := range newNodes {
		n, err := parseNodeSpec(spec)
		if err != nil {
			return err
		}
		if err := comp.AddNode(n); err != nil {
			return err
		}
	}

	svc, closeFn, err := openStudio()
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := svc.Save(context.Background(), "", comp, args[1])
	if err != nil {
		return err
	}
	if err := comp.Apply(res.Relocation); err != nil {
		return err
	}

	printSaveResult(cmd.OutOrStdout(), comp, res)
	return nil
}

func parseNodeSpec(spec string) (*types.Node, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid node %q (expected ID:KIND:NAME)", spec)
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid node id in %q: %w", spec, err)
	}
	return &types.Node{ID: id, Kind: parts[1], Name: parts[2]}, nil
}
