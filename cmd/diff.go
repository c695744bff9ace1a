package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitk-explorer/internal/git"
	"github.com/thiagokokada/gitk-explorer/internal/render"
)

func newDiffCommand(o *options) *cobra.Command {
	var (
		staged bool
		commit string
	)
	cmd := &cobra.Command{
		Use:   "diff <repo> [path...]",
		Short: "Print highlighted uncommitted or commit changes",
		Long: `The diff command prints the changes of the working tree against HEAD,
of the index with --staged, or of one commit with --commit.

Example:
  gitk-explorer diff . main.go
  gitk-explorer diff . --staged
  gitk-explorer diff . --commit 1a2b3c4 internal/git/log.go`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := git.Open(args[0])
			if err != nil {
				return err
			}
			defer repo.Close()

			paths := make([]string, 0, len(args)-1)
			for _, p := range args[1:] {
				paths = append(paths, repoRelative(repo.Path(), p))
			}
			var (
				text     string
				sections []git.FileSection
			)
			switch {
			case commit != "":
				if len(paths) > 1 {
					return fmt.Errorf("--commit takes at most one path")
				}
				hash, err := repo.ResolveRevision(ctx, commit)
				if err != nil {
					return err
				}
				text, sections, err = repo.CommitDiff(ctx, hash, firstOr(paths, ""))
				if err != nil {
					return err
				}
			default:
				text, sections, err = repo.WorktreeDiff(ctx, staged, paths...)
				if err != nil {
					return err
				}
			}
			if text == "" {
				return nil
			}
			w := render.NewDiffWriter(o.stdout, render.ThemeFromString(o.theme), o.profile())
			return w.Write(text, sections)
		},
	}
	cmd.Flags().BoolVar(&staged, "staged", false, "show changes checked into the index")
	cmd.Flags().StringVar(&commit, "commit", "", "show the changes of this commit instead")
	cmd.MarkFlagsMutuallyExclusive("staged", "commit")
	return cmd
}

// repoRelative maps p, given relative to the current directory, to a
// slash separated path relative to root. Paths outside root are taken as
// already relative to it.
func repoRelative(root, p string) string {
	abs, err := filepath.Abs(p)
	if err == nil {
		if rel, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(filepath.Clean(p))
}
