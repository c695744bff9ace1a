package explorer

import (
	"fmt"
	"strings"
	"time"

	"github.com/thiagokokada/gitk-explorer/internal/git"
)

func pluralize(word string, n int) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// upstreamStatus renders the ahead/behind counts, e.g. "↑2 ↓1". Empty when
// there is no upstream or nothing to report.
func upstreamStatus(upstream string, ahead, behind int) string {
	if upstream == "" || (ahead == 0 && behind == 0) {
		return ""
	}
	var parts []string
	if ahead > 0 {
		parts = append(parts, fmt.Sprintf("↑%d", ahead))
	}
	if behind > 0 {
		parts = append(parts, fmt.Sprintf("↓%d", behind))
	}
	return strings.Join(parts, " ")
}

type diffCounts struct {
	added, changed, deleted int
}

func countFiles(files []git.StatusFile) diffCounts {
	var c diffCounts
	for _, f := range files {
		switch f.Code() {
		case git.Added, git.Untracked:
			c.added++
		case git.Deleted:
			c.deleted++
		default:
			c.changed++
		}
	}
	return c
}

func (c diffCounts) String() string {
	if c == (diffCounts{}) {
		return ""
	}
	return fmt.Sprintf("+%d ~%d -%d", c.added, c.changed, c.deleted)
}

// Expanded is the long form used in tooltips.
func (c diffCounts) Expanded() string {
	var parts []string
	if c.added > 0 {
		parts = append(parts, pluralize("file", c.added)+" added")
	}
	if c.changed > 0 {
		parts = append(parts, pluralize("file", c.changed)+" changed")
	}
	if c.deleted > 0 {
		parts = append(parts, pluralize("file", c.deleted)+" deleted")
	}
	return strings.Join(parts, ", ")
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " • ")
}

func statusIcon(code git.StatusCode) string {
	switch code {
	case git.Added:
		return "diff-added"
	case git.Untracked:
		return "diff-untracked"
	case git.Deleted:
		return "diff-removed"
	case git.Renamed, git.Copied:
		return "diff-renamed"
	case git.UpdatedButUnmerged:
		return "warning"
	default:
		return "diff-modified"
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

func commitDescription(c *git.Commit) string {
	desc := c.ShortHash()
	if c.Author.Name != "" {
		desc += " " + c.Author.Name
	}
	if d := formatDate(c.Author.When); d != "" {
		desc += ", " + d
	}
	return desc
}
