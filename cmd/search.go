package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitk-explorer/internal/explorer"
	"github.com/thiagokokada/gitk-explorer/internal/render"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

func newSearchCommand(o *options) *cobra.Command {
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "search <repo> <text...>",
		Short: "Print the commits whose message contains text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := o.openSession(ctx, args[:1], 0)
			if err != nil {
				return err
			}
			defer s.Close()
			repo, ok := s.reg.Resolve(args[0])
			if !ok {
				return fmt.Errorf("%s: not a repository", args[0])
			}
			text := strings.Join(args[1:], " ")
			d, err := s.newDriver(explorer.ViewResults, explorer.ResultsView(s.settings, repo, text),
				tree.WithVisible(true), tree.WithAutoRefresh(false))
			if err != nil {
				return err
			}
			defer d.Dispose()
			p := o.printer(vf.tooltips)
			if p.Format == render.FormatText {
				item := d.Describe(ctx, d.Root())
				if _, err := fmt.Fprintln(o.stdout, item.Label); err != nil {
					return err
				}
			}
			return p.Print(o.stdout, render.Snapshot(ctx, d, vf.snapshot()))
		},
	}
	vf.register(cmd, 1)
	return cmd
}
