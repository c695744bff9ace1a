package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"

	"github.com/thiagokokada/gitk-explorer/internal/explorer"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var Formats = []Format{FormatText, FormatYAML, FormatJSON}

func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case FormatText, FormatYAML, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q", raw)
	}
}

// Printer writes snapshots in one of the supported formats.
type Printer struct {
	Format  Format
	Theme   Theme
	Profile termenv.Profile
	// Tooltips adds the tooltip of each node below its label in text output.
	Tooltips bool
}

func (p Printer) Print(w io.Writer, nodes []*Node) error {
	switch p.Format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(nodes); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	default:
		return p.text(w, nodes)
	}
}

func (p Printer) text(w io.Writer, nodes []*Node) error {
	out := termenv.NewOutput(w, termenv.WithProfile(p.Profile))
	pal := paletteForProfile(p.Theme, p.Profile)
	var b strings.Builder
	p.writeLevel(&b, out, pal, nodes, "")
	_, err := io.WriteString(w, b.String())
	return err
}

func (p Printer) writeLevel(b *strings.Builder, out *termenv.Output, pal palette, nodes []*Node, indent string) {
	for i, n := range nodes {
		last := i == len(nodes)-1
		branch, next := "├── ", "│   "
		if last {
			branch, next = "└── ", "    "
		}
		b.WriteString(indent)
		b.WriteString(branch)
		b.WriteString(marker(n))
		b.WriteString(p.label(out, pal, n))
		if n.Description != "" {
			b.WriteString("  ")
			b.WriteString(out.String(n.Description).Foreground(out.Color(pal.description)).String())
		}
		b.WriteByte('\n')
		if p.Tooltips && n.Tooltip != "" && n.Tooltip != n.Label {
			for _, line := range strings.Split(n.Tooltip, "\n") {
				b.WriteString(indent + next + "  ")
				b.WriteString(out.String(line).Faint().String())
				b.WriteByte('\n')
			}
		}
		p.writeLevel(b, out, pal, n.Children, indent+next)
	}
}

func (p Printer) label(out *termenv.Output, pal palette, n *Node) string {
	st := out.String(n.Label)
	switch n.Kind {
	case string(tree.KindMessage):
		st = st.Italic().Foreground(out.Color(pal.message))
	case string(tree.KindPager):
		st = st.Underline()
	case string(explorer.KindRepository), string(explorer.KindActiveRepository):
		st = st.Bold()
	}
	return st.String()
}

func marker(n *Node) string {
	switch n.Collapse {
	case "expanded":
		return "▾ "
	case "collapsed":
		return "▸ "
	default:
		return ""
	}
}
