package git

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	gitlib "github.com/go-git/go-git/v5"
)

// Status returns the working tree status, including the tracking state of
// the current branch.
func (r *Repository) Status(ctx context.Context) (Status, error) {
	var res Status
	err := r.with(ctx, func(repo *gitlib.Repository) error {
		wt, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("open worktree: %w", err)
		}
		status, err := wt.Status()
		if err != nil {
			return fmt.Errorf("worktree status: %w", err)
		}
		for path, st := range status {
			if st.Staging == gitlib.Unmodified && st.Worktree == gitlib.Unmodified {
				continue
			}
			res.Files = append(res.Files, StatusFile{
				Path:     path,
				OldPath:  st.Extra,
				Staging:  StatusCode(st.Staging),
				Worktree: StatusCode(st.Worktree),
			})
		}
		slices.SortFunc(res.Files, func(a, b StatusFile) int { return cmp.Compare(a.Path, b.Path) })

		head, err := repo.Head()
		if err != nil {
			// unborn branch: files only
			return nil
		}
		if !head.Name().IsBranch() {
			res.Detached = true
			res.Branch = head.Hash().String()[:7]
			return nil
		}
		b := Branch{Name: head.Name().Short(), Hash: head.Hash().String(), Current: true}
		cfg, err := repo.Config()
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if bc, ok := cfg.Branches[b.Name]; ok && bc.Remote != "" && bc.Merge != "" {
			b.Upstream = bc.Remote + "/" + bc.Merge.Short()
		}
		if err := r.trackingState(ctx, repo, &b); err != nil {
			return err
		}
		res.Branch = b.Name
		if !b.UpstreamMissing {
			res.Upstream = b.Upstream
		}
		res.Ahead = b.Ahead
		res.Behind = b.Behind
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	return res, nil
}
