package render

import (
	"bufio"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/muesli/termenv"

	"github.com/thiagokokada/gitk-explorer/internal/git"
)

// DiffWriter writes diff text with syntax highlighting of the changed code
// and backgrounds for added and removed lines.
type DiffWriter struct {
	out     *termenv.Output
	palette palette
	style   *chroma.Style
	lexers  map[string]chroma.Lexer
}

func NewDiffWriter(w io.Writer, theme Theme, profile termenv.Profile) *DiffWriter {
	p := paletteForProfile(theme, profile)
	return &DiffWriter{
		out:     termenv.NewOutput(w, termenv.WithProfile(profile)),
		palette: p,
		style:   styleFor(p),
		lexers:  make(map[string]chroma.Lexer),
	}
}

// Write renders text. sections maps each file of the diff to its first
// line and selects the lexer for the lines that follow.
func (d *DiffWriter) Write(text string, sections []git.FileSection) error {
	bw := bufio.NewWriter(d.out)
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		bw.WriteString(d.line(line, i+1, sections))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func (d *DiffWriter) line(line string, lineNo int, sections []git.FileSection) string {
	if len(sections) == 0 || lineNo < sections[0].Line {
		return line
	}
	if isDiffHeader(line) {
		return d.out.String(line).Bold().Background(d.out.Color(d.palette.diffHeader)).String()
	}
	code, _, ok := diffLineCode(line)
	if !ok {
		return line
	}
	var bg termenv.Color
	switch line[0] {
	case '+':
		bg = d.out.Color(d.palette.diffAdd)
	case '-':
		bg = d.out.Color(d.palette.diffDel)
	}
	var b strings.Builder
	b.WriteString(d.styled(line[:1], "", bg, false))
	lexer := d.lexerFor(sections[fileSectionIndexForLine(sections, lineNo)].Path)
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		b.WriteString(d.styled(code, "", bg, false))
		return b.String()
	}
	for _, token := range iterator.Tokens() {
		if token.Value == "" {
			continue
		}
		entry := d.style.Get(token.Type)
		b.WriteString(d.styled(token.Value, colorFromEntry(entry), bg, entry.Bold == chroma.Yes))
	}
	return b.String()
}

func (d *DiffWriter) styled(s, fg string, bg termenv.Color, bold bool) string {
	st := d.out.String(s)
	if fg != "" {
		st = st.Foreground(d.out.Color(fg))
	}
	if bg != nil {
		st = st.Background(bg)
	}
	if bold {
		st = st.Bold()
	}
	return st.String()
}

func (d *DiffWriter) lexerFor(path string) chroma.Lexer {
	if l, ok := d.lexers[path]; ok {
		return l
	}
	l := lexerForPath(path)
	d.lexers[path] = l
	return l
}

func isDiffHeader(line string) bool {
	for _, prefix := range []string{"diff --git ", "--- ", "+++ ", "@@", "index ", "new file mode", "deleted file mode", "rename from", "rename to"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// diffLineCode returns the code of a context, added or removed line along
// with its column in the line.
func diffLineCode(line string) (string, int, bool) {
	if line == "" {
		return "", 0, false
	}
	switch line[0] {
	case '+', '-', ' ':
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			return "", 0, false
		}
		return line[1:], 1, true
	default:
		return "", 0, false
	}
}

func fileSectionIndexForLine(sections []git.FileSection, line int) int {
	if len(sections) == 0 || line <= 0 {
		return 0
	}
	target := 0
	for i, sec := range sections {
		if line < sec.Line {
			break
		}
		target = i
	}
	return target
}

func styleFor(p palette) *chroma.Style {
	if st := styles.Get(p.chroma); st != nil {
		return st
	}
	return styles.Fallback
}

func colorFromEntry(entry chroma.StyleEntry) string {
	if !entry.Colour.IsSet() {
		return ""
	}
	return "#" + strings.TrimPrefix(strings.ToLower(entry.Colour.String()), "#")
}

func lexerForPath(path string) chroma.Lexer {
	lexer := lexers.Match(path)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}
