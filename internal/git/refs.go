package git

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Branches returns the local branches sorted by name, with their upstream
// tracking state.
func (r *Repository) Branches(ctx context.Context) ([]Branch, error) {
	var branches []Branch
	err := r.with(ctx, func(repo *gitlib.Repository) error {
		headName := currentBranch(repo)
		cfg, err := repo.Config()
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		iter, err := repo.Branches()
		if err != nil {
			return fmt.Errorf("list branches: %w", err)
		}
		defer iter.Close()
		err = iter.ForEach(func(ref *plumbing.Reference) error {
			name := ref.Name().Short()
			b := Branch{Name: name, Hash: ref.Hash().String(), Current: name == headName}
			if bc, ok := cfg.Branches[name]; ok && bc.Remote != "" && bc.Merge != "" {
				b.Upstream = bc.Remote + "/" + bc.Merge.Short()
			}
			branches = append(branches, b)
			return nil
		})
		if err != nil {
			return err
		}
		for i := range branches {
			if err := r.trackingState(ctx, repo, &branches[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(branches, func(a, b Branch) int { return cmp.Compare(a.Name, b.Name) })
	return branches, nil
}

func (r *Repository) trackingState(ctx context.Context, repo *gitlib.Repository, b *Branch) error {
	if b.Upstream == "" {
		return nil
	}
	remote, _, _ := strings.Cut(b.Upstream, "/")
	merge := strings.TrimPrefix(b.Upstream, remote+"/")
	ref, err := repo.Reference(plumbing.NewRemoteReferenceName(remote, merge), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			b.UpstreamMissing = true
			return nil
		}
		return fmt.Errorf("resolve upstream %s: %w", b.Upstream, err)
	}
	local := plumbing.NewHash(b.Hash)
	if b.Ahead, err = countExclusive(ctx, repo, local, ref.Hash()); err != nil {
		return err
	}
	if b.Behind, err = countExclusive(ctx, repo, ref.Hash(), local); err != nil {
		return err
	}
	return nil
}

// RemoteBranches returns the branches of remote, skipping its symbolic HEAD.
func (r *Repository) RemoteBranches(ctx context.Context, remote string) ([]Branch, error) {
	var branches []Branch
	err := r.with(ctx, func(repo *gitlib.Repository) error {
		refs, err := repo.References()
		if err != nil {
			return fmt.Errorf("list references: %w", err)
		}
		defer refs.Close()
		prefix := remote + "/"
		return refs.ForEach(func(ref *plumbing.Reference) error {
			if ref.Type() != plumbing.HashReference || !ref.Name().IsRemote() {
				return nil
			}
			short := ref.Name().Short()
			if !strings.HasPrefix(short, prefix) || strings.HasSuffix(short, "/HEAD") {
				return nil
			}
			branches = append(branches, Branch{Name: short, Hash: ref.Hash().String(), Remote: true})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(branches, func(a, b Branch) int { return cmp.Compare(a.Name, b.Name) })
	return branches, nil
}

// Remotes returns the configured remotes sorted by name.
func (r *Repository) Remotes(ctx context.Context) ([]Remote, error) {
	var remotes []Remote
	err := r.with(ctx, func(repo *gitlib.Repository) error {
		list, err := repo.Remotes()
		if err != nil {
			return fmt.Errorf("list remotes: %w", err)
		}
		for _, rm := range list {
			cfg := rm.Config()
			remotes = append(remotes, Remote{Name: cfg.Name, URLs: slices.Clone(cfg.URLs)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(remotes, func(a, b Remote) int { return cmp.Compare(a.Name, b.Name) })
	return remotes, nil
}

// Tags returns the tags sorted by name. Annotated tags are peeled to the
// commit they point at.
func (r *Repository) Tags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	err := r.with(ctx, func(repo *gitlib.Repository) error {
		iter, err := repo.Tags()
		if err != nil {
			return fmt.Errorf("list tags: %w", err)
		}
		defer iter.Close()
		return iter.ForEach(func(ref *plumbing.Reference) error {
			tag := Tag{Name: ref.Name().Short(), Hash: ref.Hash().String()}
			if obj, err := repo.TagObject(ref.Hash()); err == nil {
				tag.Annotated = true
				tag.Annotation = strings.TrimSpace(obj.Message)
			}
			if peeled, ok := peelTagCommitHash(repo, ref.Hash()); ok {
				tag.Hash = peeled.String()
			}
			tags = append(tags, tag)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(tags, func(a, b Tag) int { return cmp.Compare(a.Name, b.Name) })
	return tags, nil
}

func currentBranch(repo *gitlib.Repository) string {
	ref, err := repo.Head()
	if err != nil || !ref.Name().IsBranch() {
		return ""
	}
	return ref.Name().Short()
}

func peelTagCommitHash(repo *gitlib.Repository, hash plumbing.Hash) (plumbing.Hash, bool) {
	if repo == nil || hash == plumbing.ZeroHash {
		return plumbing.ZeroHash, false
	}
	// Lightweight tags point directly at a commit; annotated tags point at a tag object.
	if _, err := repo.CommitObject(hash); err == nil {
		return hash, true
	}
	cur := hash
	for range 8 {
		tag, err := repo.TagObject(cur)
		if err != nil {
			return plumbing.ZeroHash, false
		}
		switch tag.TargetType {
		case plumbing.CommitObject:
			return tag.Target, true
		case plumbing.TagObject:
			cur = tag.Target
		default:
			return plumbing.ZeroHash, false
		}
	}
	return plumbing.ZeroHash, false
}
