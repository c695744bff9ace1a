package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitk-explorer/internal/explorer"
	"github.com/thiagokokada/gitk-explorer/internal/git"
	"github.com/thiagokokada/gitk-explorer/internal/render"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

const (
	viewRepositories = "repositories"
	viewActive       = "active"
)

// viewFlags select which repositories a command opens and how the view
// is walked.
type viewFlags struct {
	view     string
	discover int
	depth    int
	all      bool
	tooltips bool
}

func (v *viewFlags) register(cmd *cobra.Command, defaultDepth int) {
	fs := cmd.Flags()
	fs.IntVar(&v.depth, "depth", defaultDepth, "levels to print (0 prints everything that is expanded)")
	fs.BoolVar(&v.all, "all", false, "expand collapsed nodes too")
	fs.BoolVar(&v.tooltips, "tooltips", false, "print tooltips below labels")
}

// registerView adds the flags choosing the view and its repositories.
func (v *viewFlags) registerView(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&v.view, "view", viewRepositories, "view to show: repositories or active")
	fs.IntVar(&v.discover, "discover", 0, "open every repository found this many directories below each path")
}

func (v *viewFlags) snapshot() render.Options {
	return render.Options{Depth: v.depth, ExpandAll: v.all}
}

// session is a registry of open repositories plus the settings its views
// are built with.
type session struct {
	reg      *git.Registry
	settings *explorer.Settings
	metrics  prometheus.Registerer
}

func (o *options) openSession(ctx context.Context, paths []string, discover int) (*session, error) {
	settings, err := o.settings()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		paths = []string{"."}
	}
	reg := git.NewRegistry()
	var errs []error
	if discover > 0 {
		for _, p := range paths {
			errs = append(errs, reg.Discover(ctx, p, discover))
		}
	} else {
		errs = append(errs, reg.Open(paths...))
	}
	if err := errors.Join(errs...); err != nil {
		if len(reg.Repositories()) == 0 {
			return nil, err
		}
		slog.Error("open repositories", slog.Any("error", err))
	}
	return &session{reg: reg, settings: settings}, nil
}

func (s *session) Close() {
	if err := s.reg.CloseAll(); err != nil {
		slog.Error("close repositories", slog.Any("error", err))
	}
}

// driver builds the driver of the named view. path seeds the active
// repository view.
func (s *session) driver(view, path string, opts ...tree.Option) (*tree.Driver, error) {
	reg := explorer.FromRegistry(s.reg)
	var (
		id      string
		factory func(tree.Host) tree.Node
	)
	switch view {
	case viewRepositories, "":
		id, factory = explorer.ViewRepositories, explorer.RepositoriesView(s.settings, reg)
	case viewActive:
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		id, factory = explorer.ViewActiveRepository, explorer.ActiveRepositoryView(s.settings, reg, abs)
	default:
		return nil, fmt.Errorf("unknown view %q", view)
	}
	return s.newDriver(id, factory, opts...)
}

func (s *session) newDriver(id string, factory func(tree.Host) tree.Node, opts ...tree.Option) (*tree.Driver, error) {
	if s.metrics != nil {
		m, err := tree.NewMetrics(s.metrics, id)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, tree.WithMetrics(m))
	}
	return tree.New(id, factory, opts...), nil
}

func firstOr(args []string, def string) string {
	if len(args) == 0 {
		return def
	}
	return args[0]
}
