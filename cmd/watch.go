package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitk-explorer/internal/render"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

func newWatchCommand(o *options) *cobra.Command {
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "watch [repo...]",
		Short: "Print a view and print it again whenever it changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			s, err := o.openSession(ctx, args, vf.discover)
			if err != nil {
				return err
			}
			defer s.Close()
			d, err := s.driver(vf.view, firstOr(args, "."), tree.WithVisible(true))
			if err != nil {
				return err
			}
			defer d.Dispose()
			return o.watch(ctx, d, vf)
		},
	}
	vf.register(cmd, 3)
	vf.registerView(cmd)
	return cmd
}

// watch prints the view, then reprints it after every change notification
// until ctx is done. Notifications arriving while printing are coalesced.
func (o *options) watch(ctx context.Context, d *tree.Driver, vf viewFlags) error {
	changed := make(chan string, 1)
	cancel := d.OnDidChangeTreeData(func(node tree.Node) {
		scope := "view"
		if node != nil {
			scope = node.ID()
		}
		select {
		case changed <- scope:
		default:
		}
	})
	defer cancel()

	p := o.printer(vf.tooltips)
	if err := p.Print(o.stdout, render.Snapshot(ctx, d, vf.snapshot())); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case scope := <-changed:
			if _, err := fmt.Fprintf(o.stdout, "\n# changed: %s\n", scope); err != nil {
				return err
			}
			if err := p.Print(o.stdout, render.Snapshot(ctx, d, vf.snapshot())); err != nil {
				return err
			}
		}
	}
}
