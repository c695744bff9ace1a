package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// createRepo initializes a repository on main with n commits touching
// a.go and returns its path.
func createRepo(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := gitlib.PlainInitWithOptions(dir, &gitlib.PlainInitOptions{
		InitOptions: gitlib.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	if err != nil {
		t.Fatalf("init repository: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	when := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := range n {
		content := fmt.Sprintf("package main\n\nvar x = %d\n", i)
		if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := wt.Add("a.go"); err != nil {
			t.Fatalf("add: %v", err)
		}
		when = when.Add(time.Minute)
		sig := &object.Signature{Name: "Alice", Email: "alice@example.com", When: when}
		if _, err := wt.Commit(fmt.Sprintf("commit %d", i), &gitlib.CommitOptions{Author: sig}); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append(args, "--color", "never"), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}
