package cmd

import (
	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitk-explorer/internal/render"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

func newTreeCommand(o *options) *cobra.Command {
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "tree [repo...]",
		Short: "Print the repositories view",
		Long: `The tree command prints the nodes of a view once.

Example:
  gitk-explorer tree
  gitk-explorer tree ~/src --discover 2 --depth 1
  gitk-explorer tree . --view active --all -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := o.openSession(ctx, args, vf.discover)
			if err != nil {
				return err
			}
			defer s.Close()
			d, err := s.driver(vf.view, firstOr(args, "."), tree.WithVisible(true), tree.WithAutoRefresh(false))
			if err != nil {
				return err
			}
			defer d.Dispose()
			return o.printer(vf.tooltips).Print(o.stdout, render.Snapshot(ctx, d, vf.snapshot()))
		},
	}
	vf.register(cmd, 3)
	vf.registerView(cmd)
	return cmd
}
