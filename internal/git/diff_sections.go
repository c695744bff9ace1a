package git

import (
	"strconv"
	"strings"
)

const diffHeaderPrefix = "diff --git "

// parseGitDiffSections returns the 1-based line of each file header in
// diffText, shifted by lineOffset lines of preamble.
func parseGitDiffSections(diffText string, lineOffset int) []FileSection {
	var sections []FileSection
	line := lineOffset
	for text := range strings.SplitSeq(diffText, "\n") {
		line++
		rest, ok := strings.CutPrefix(text, diffHeaderPrefix)
		if !ok {
			continue
		}
		if path := diffHeaderPath(rest); path != "" {
			sections = append(sections, FileSection{Path: path, Line: line})
		}
	}
	return sections
}

// diffHeaderPath returns the post-image path of the header operands, e.g.
// `a/x b/x` or `"a/t\tab" "b/t\tab"`. Git quotes paths with C escapes, which
// strconv understands.
func diffHeaderPath(rest string) string {
	rest = strings.TrimSpace(rest)
	var post string
	switch {
	case strings.HasPrefix(rest, `"`):
		pre, err := strconv.QuotedPrefix(rest)
		if err != nil {
			return ""
		}
		post = strings.TrimSpace(rest[len(pre):])
	case strings.HasSuffix(rest, `"`):
		i := strings.LastIndex(rest, ` "b/`)
		if i < 0 {
			return ""
		}
		post = rest[i+1:]
	default:
		post = unquotedPostImage(rest)
	}
	if strings.HasPrefix(post, `"`) {
		unquoted, err := strconv.Unquote(post)
		if err != nil {
			return ""
		}
		post = unquoted
	}
	path, ok := strings.CutPrefix(post, "b/")
	if !ok {
		return ""
	}
	return path
}

// unquotedPostImage splits `a/P b/Q`. Unquoted paths may hold spaces, so
// the symmetric split of an unrenamed file is tried before the last " b/".
func unquotedPostImage(rest string) string {
	if n := len(rest); n%2 == 1 {
		mid := n / 2
		if rest[mid] == ' ' && rest[2:mid] == rest[mid+3:] && strings.HasPrefix(rest[mid+1:], "b/") {
			return rest[mid+1:]
		}
	}
	if i := strings.LastIndex(rest, " b/"); i >= 0 {
		return rest[i+1:]
	}
	return ""
}
