package git

import (
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
)

func TestClassifyMetadataPath(t *testing.T) {
	t.Parallel()

	gitDir := filepath.Join("repo", ".git")
	cases := []struct {
		rel  string
		want []Change
	}{
		{"index", []Change{ChangeRepository, ChangeIndex}},
		{"config", []Change{ChangeRepository, ChangeConfig, ChangeRemotes}},
		{"HEAD", []Change{ChangeRepository, ChangeHeads}},
		{"FETCH_HEAD", []Change{ChangeRepository, ChangeRemotes}},
		{"packed-refs", []Change{ChangeRepository, ChangeHeads, ChangeTags, ChangeRemotes}},
		{"refs/heads/feature/x", []Change{ChangeRepository, ChangeHeads}},
		{"refs/tags/v1", []Change{ChangeRepository, ChangeTags}},
		{"refs/remotes/origin/main", []Change{ChangeRepository, ChangeRemotes}},
		{"objects/ab/cdef", []Change{ChangeRepository}},
	}
	for _, tc := range cases {
		got := classifyMetadataPath(gitDir, filepath.Join(gitDir, filepath.FromSlash(tc.rel)))
		if !slices.Equal(got, tc.want) {
			t.Fatalf("classifyMetadataPath(%q) = %v, want %v", tc.rel, got, tc.want)
		}
	}
}

func TestShouldIgnoreWatchPath(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]bool{
		"/repo/.git/index.lock":        true,
		"/repo/.git/refs/heads/x.LOCK": true,
		"/repo/.git/foo.ipc":           true,
		"/repo/.git/index":             false,
	} {
		if got := shouldIgnoreWatchPath(name); got != want {
			t.Fatalf("shouldIgnoreWatchPath(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestChangeEventHelpers(t *testing.T) {
	t.Parallel()

	ev := ChangeEvent{Changes: []Change{ChangeRepository, ChangeHeads}, Paths: []string{"dir/a.txt"}}
	if !ev.Changed(ChangeHeads) || ev.Changed(ChangeTags) {
		t.Fatalf("unexpected Changed results for %+v", ev)
	}
	if !ev.ChangedPath("dir") || !ev.ChangedPath("dir/a.txt") || ev.ChangedPath("di") {
		t.Fatalf("unexpected ChangedPath results for %+v", ev)
	}
	if ev.IsEmpty() || !(ChangeEvent{}).IsEmpty() {
		t.Fatal("unexpected IsEmpty results")
	}
	if ChangeRemotes.String() != "remotes" || ChangeClosed.String() != "closed" {
		t.Fatal("unexpected change names")
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (r *eventRecorder) record(ev ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) has(match func(ChangeEvent) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.ContainsFunc(r.events, match)
}

func TestWatcherReportsRefChanges(t *testing.T) {
	t.Parallel()

	tr := createTestRepo(t)
	hash := tr.commit("one", map[string]string{"a.txt": "1"})
	repo := tr.open()
	repo.watch.delay = 20 * time.Millisecond

	rec := &eventRecorder{}
	sub, err := repo.Subscribe(rec.record)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	tr.setRef(plumbing.NewTagReferenceName("v1"), hash)
	ok := waitFor(t, 5*time.Second, func() bool {
		return rec.has(func(ev ChangeEvent) bool {
			return ev.RepoPath == repo.Path() && ev.Changed(ChangeTags)
		})
	})
	if !ok {
		t.Fatalf("no tag change observed: %+v", rec.events)
	}
}

func TestWatcherReportsWatchedPaths(t *testing.T) {
	t.Parallel()

	tr := createTestRepo(t)
	tr.commit("one", map[string]string{"dir/a.txt": "1"})
	repo := tr.open()
	repo.watch.delay = 20 * time.Millisecond

	rec := &eventRecorder{}
	sub, err := repo.Subscribe(rec.record)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	pathSub, err := repo.WatchPath("dir/a.txt")
	if err != nil {
		t.Fatalf("WatchPath: %v", err)
	}
	defer pathSub.Close()

	tr.write("dir/a.txt", "2")
	ok := waitFor(t, 5*time.Second, func() bool {
		return rec.has(func(ev ChangeEvent) bool { return ev.ChangedPath("dir/a.txt") })
	})
	if !ok {
		t.Fatalf("no path change observed: %+v", rec.events)
	}

	if _, err := repo.WatchPath("../outside"); err == nil {
		t.Fatal("expected error for a path outside the repository")
	}
}

func TestWatcherCloseNotifiesSubscribers(t *testing.T) {
	t.Parallel()

	tr := createTestRepo(t)
	repo := tr.open()

	rec := &eventRecorder{}
	if _, err := repo.Subscribe(rec.record); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !rec.has(func(ev ChangeEvent) bool { return ev.Changed(ChangeClosed) }) {
		t.Fatalf("expected a closed event, got %+v", rec.events)
	}
	if _, err := repo.Subscribe(rec.record); err != ErrClosed {
		t.Fatalf("Subscribe after close = %v, want ErrClosed", err)
	}
	if repo.watch.fsw != nil {
		t.Fatal("watcher still running after close")
	}
}

func TestWatcherStopsWhenIdle(t *testing.T) {
	t.Parallel()

	repo := createTestRepo(t).open()
	sub, err := repo.Subscribe(func(ChangeEvent) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if repo.watch.fsw == nil {
		t.Fatal("watcher not started")
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second unsubscribe: %v", err)
	}
	repo.watch.mu.Lock()
	running := repo.watch.fsw != nil
	repo.watch.mu.Unlock()
	if running {
		t.Fatal("watcher still running without subscribers")
	}
}
