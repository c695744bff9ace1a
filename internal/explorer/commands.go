package explorer

import (
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

const (
	// CommandDiff opens the diff of one file. See DiffArgsOf.
	CommandDiff = "gitk.diff"
	// CommandShowCommit shows a commit. Args holds the repository path and
	// the commit hash.
	CommandShowCommit = "gitk.showCommit"
)

// DiffArgs selects the diff a CommandDiff shows: the changes of Commit, or
// the uncommitted changes of the file when Commit is empty.
type DiffArgs struct {
	RepoPath string
	Path     string
	Commit   string
	Staged   bool
}

func diffCommand(title string, args DiffArgs) *tree.Command {
	staged := ""
	if args.Staged {
		staged = "staged"
	}
	return &tree.Command{
		Name:  CommandDiff,
		Title: title,
		Args:  []string{args.RepoPath, args.Path, args.Commit, staged},
	}
}

// DiffArgsOf decodes the arguments of a CommandDiff.
func DiffArgsOf(cmd *tree.Command) (DiffArgs, bool) {
	if cmd == nil || cmd.Name != CommandDiff || len(cmd.Args) != 4 {
		return DiffArgs{}, false
	}
	return DiffArgs{
		RepoPath: cmd.Args[0],
		Path:     cmd.Args[1],
		Commit:   cmd.Args[2],
		Staged:   cmd.Args[3] == "staged",
	}, true
}

func showCommitCommand(repoPath, hash string) *tree.Command {
	return &tree.Command{
		Name:  CommandShowCommit,
		Title: "Show Commit",
		Args:  []string{repoPath, hash},
	}
}
