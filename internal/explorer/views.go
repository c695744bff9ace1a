package explorer

import (
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

// View names, also used as driver IDs and metric labels.
const (
	ViewRepositories     = "repositories"
	ViewActiveRepository = "active-repository"
	ViewFileHistory      = "file-history"
	ViewResults          = "results"
)

// RepositoriesView returns the root factory of the repositories view.
func RepositoriesView(settings *Settings, reg Registry) func(tree.Host) tree.Node {
	return func(host tree.Host) tree.Node {
		return NewRepositoriesNode(host, settings, reg)
	}
}

// ActiveRepositoryView returns the root factory of the active repository
// view, starting at path.
func ActiveRepositoryView(settings *Settings, reg Registry, path string) func(tree.Host) tree.Node {
	return func(host tree.Host) tree.Node {
		n := NewActiveRepositoryNode(host, settings, reg)
		n.setActivePathNow(path)
		return n
	}
}

func FileHistoryView(settings *Settings, reg Registry, absPath string) func(tree.Host) tree.Node {
	return func(host tree.Host) tree.Node {
		return NewFileHistoryNode(host, settings, reg, absPath)
	}
}

func ResultsView(settings *Settings, repo Repository, text string) func(tree.Host) tree.Node {
	return func(host tree.Host) tree.Node {
		return NewCommitsResultsNode(host, settings, repo, text)
	}
}
