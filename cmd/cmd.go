// Package cmd holds the command-line hosts of the tree views.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitk-explorer/internal/buildinfo"
	"github.com/thiagokokada/gitk-explorer/internal/config"
	"github.com/thiagokokada/gitk-explorer/internal/explorer"
	"github.com/thiagokokada/gitk-explorer/internal/render"
)

func Run() error {
	return run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(&options{stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// options are the persistent flags shared by every command.
type options struct {
	stdout io.Writer
	stderr io.Writer

	verbose    bool
	configPath string
	format     string
	theme      string
	color      string
	cfgFlags   *config.Flags
}

func newRootCommand(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "gitk-explorer",
		Short:         "Browse git repositories as lazily loaded trees",
		Version:       buildinfo.Read().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			slog.SetDefault(newLogger(o.stderr, o.verbose))
			if _, err := render.ParseFormat(o.format); err != nil {
				return err
			}
			switch o.color {
			case "auto", "always", "never":
			default:
				return fmt.Errorf("invalid color mode %q", o.color)
			}
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVar(&o.configPath, "config", "", "YAML configuration file")
	pf.StringVarP(&o.format, "format", "o", string(render.FormatText), "output format: "+formatNames())
	pf.StringVar(&o.theme, "mode", render.ThemeAuto.String(), "color mode: auto, light, or dark")
	pf.StringVar(&o.color, "color", "auto", "colorize output: auto, always, or never")
	o.cfgFlags = config.RegisterFlags(pf)

	root.AddCommand(
		newTreeCommand(o),
		newWatchCommand(o),
		newHistoryCommand(o),
		newSearchCommand(o),
		newDiffCommand(o),
		newServeCommand(o),
		newVersionCommand(o),
	)
	return root
}

func formatNames() string {
	names := make([]string, 0, len(render.Formats))
	for _, f := range render.Formats {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

// settings loads the configuration file and applies the flags set on the
// command line.
func (o *options) settings() (*explorer.Settings, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := o.cfgFlags.Apply(&cfg); err != nil {
		return nil, err
	}
	return explorer.NewSettings(cfg), nil
}

func (o *options) profile() termenv.Profile {
	switch o.color {
	case "never":
		return termenv.Ascii
	case "always":
		return termenv.TrueColor
	default:
		return termenv.NewOutput(o.stdout).EnvColorProfile()
	}
}

func (o *options) printer(tooltips bool) render.Printer {
	f, _ := render.ParseFormat(o.format)
	return render.Printer{
		Format:   f,
		Theme:    render.ThemeFromString(o.theme),
		Profile:  o.profile(),
		Tooltips: tooltips,
	}
}
