package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitk-explorer/internal/explorer"
	"github.com/thiagokokada/gitk-explorer/internal/render"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

func newHistoryCommand(o *options) *cobra.Command {
	var (
		vf     viewFlags
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "history <file>",
		Short: "Print the uncommitted changes and commits of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			s, err := o.openSession(ctx, []string{filepath.Dir(abs)}, 0)
			if err != nil {
				return err
			}
			defer s.Close()
			d, err := s.newDriver(explorer.ViewFileHistory,
				explorer.FileHistoryView(s.settings, explorer.FromRegistry(s.reg), abs),
				tree.WithVisible(true), tree.WithAutoRefresh(follow))
			if err != nil {
				return err
			}
			defer d.Dispose()
			if follow {
				return o.watch(ctx, d, vf)
			}
			return o.printer(vf.tooltips).Print(o.stdout, render.Snapshot(ctx, d, vf.snapshot()))
		},
	}
	vf.register(cmd, 2)
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing as the file or repository changes")
	return cmd
}
