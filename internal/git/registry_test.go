package git

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	gitlib "github.com/go-git/go-git/v5"
)

func initRepoAt(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := gitlib.PlainInit(dir, false); err != nil {
		t.Fatalf("init %s: %v", dir, err)
	}
}

func TestRegistryOpenResolveClose(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	one := filepath.Join(root, "one")
	two := filepath.Join(root, "two")
	initRepoAt(t, one)
	initRepoAt(t, two)
	if err := os.MkdirAll(filepath.Join(one, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	reg := NewRegistry()
	t.Cleanup(func() { _ = reg.CloseAll() })
	var notified atomic.Int32
	sub := reg.OnDidChangeRepositories(func() { notified.Add(1) })

	if err := reg.Open(one, two, filepath.Join(one, "sub")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := notified.Load(); got != 1 {
		t.Fatalf("notified %d times, want 1", got)
	}
	repos := reg.Repositories()
	if len(repos) != 2 || repos[0].Path() != one || repos[1].Path() != two {
		t.Fatalf("unexpected repositories: %v", repoPaths(repos))
	}

	r, ok := reg.Resolve(filepath.Join(one, "sub", "file.txt"))
	if !ok || r.Path() != one {
		t.Fatalf("Resolve = %v %v, want %s", r, ok, one)
	}
	if _, ok := reg.Resolve(root); ok {
		t.Fatal("expected no repository for the parent directory")
	}

	if err := reg.Open(one); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := notified.Load(); got != 1 {
		t.Fatalf("reopening notified listeners (%d)", got)
	}

	if err := reg.Close(one); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := notified.Load(); got != 2 {
		t.Fatalf("notified %d times after close, want 2", got)
	}
	if _, err := r.Log(context.Background(), LogOptions{}); err != ErrClosed {
		t.Fatalf("closed repository still usable: %v", err)
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := reg.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if got := notified.Load(); got != 2 {
		t.Fatalf("unsubscribed listener was notified (%d)", got)
	}
	if len(reg.Repositories()) != 0 {
		t.Fatal("expected no repositories after CloseAll")
	}
}

func TestRegistryOpenReportsErrors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	good := filepath.Join(root, "good")
	initRepoAt(t, good)

	reg := NewRegistry()
	t.Cleanup(func() { _ = reg.CloseAll() })
	err := reg.Open(filepath.Join(root, "missing"), good)
	if err == nil {
		t.Fatal("expected error for missing repository")
	}
	if len(reg.Repositories()) != 1 {
		t.Fatalf("valid path was not opened: %v", repoPaths(reg.Repositories()))
	}
}

func TestRegistryDiscover(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	initRepoAt(t, filepath.Join(root, "a"))
	initRepoAt(t, filepath.Join(root, "b", "c"))
	initRepoAt(t, filepath.Join(root, ".hidden", "d"))
	initRepoAt(t, filepath.Join(root, "x", "y", "z", "deep"))

	reg := NewRegistry()
	t.Cleanup(func() { _ = reg.CloseAll() })
	if err := reg.Discover(context.Background(), root, 2); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	got := repoPaths(reg.Repositories())
	want := []string{filepath.Join(root, "a"), filepath.Join(root, "b", "c")}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Discover found %v, want %v", got, want)
	}
}

func repoPaths(repos []*Repository) []string {
	out := make([]string, 0, len(repos))
	for _, r := range repos {
		out = append(out, r.Path())
	}
	return out
}
