package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thiagokokada/gitk-explorer/internal/buildinfo"
	"github.com/thiagokokada/gitk-explorer/internal/render"
)

func newVersionCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := buildinfo.Read()
			f, _ := render.ParseFormat(o.format)
			switch f {
			case render.FormatJSON:
				enc := json.NewEncoder(o.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			case render.FormatYAML:
				enc := yaml.NewEncoder(o.stdout)
				if err := enc.Encode(info); err != nil {
					return err
				}
				return enc.Close()
			default:
				_, err := fmt.Fprintf(o.stdout, "gitk-explorer %s\n", info)
				return err
			}
		},
	}
}
