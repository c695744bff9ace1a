package git

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/thiagokokada/gitk-explorer/internal/debounce"
)

// WatchDebounceDelay batches bursts of file-system events (a commit touches
// the index, refs and logs) into one ChangeEvent.
const WatchDebounceDelay = 350 * time.Millisecond

// watcher turns fsnotify events below the git directory and selected
// working tree paths into ChangeEvents. It runs while at least one
// subscriber exists.
type watcher struct {
	root   string
	gitDir string
	delay  time.Duration

	mu        sync.Mutex
	fsw       *fsnotify.Watcher
	listeners map[int]func(ChangeEvent)
	seq       int
	dirs      map[string]int // working tree dirs -> watched paths below them
	paths     map[string]int // repository-relative paths -> watchers
	pending   ChangeEvent
	flush     *debounce.Debouncer
	closed    bool
}

func newWatcher(root, gitDir string) *watcher {
	return &watcher{
		root:      root,
		gitDir:    gitDir,
		delay:     WatchDebounceDelay,
		listeners: make(map[int]func(ChangeEvent)),
		dirs:      make(map[string]int),
		paths:     make(map[string]int),
	}
}

func (w *watcher) subscribe(fn func(ChangeEvent)) (Subscription, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	if err := w.startLocked(); err != nil {
		return nil, err
	}
	w.seq++
	id := w.seq
	w.listeners[id] = fn
	var once sync.Once
	return subscriptionFunc(func() error {
		var err error
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.listeners, id)
			err = w.stopIfIdleLocked()
		})
		return err
	}), nil
}

func (w *watcher) watchPath(relPath string) (Subscription, error) {
	rel := filepath.ToSlash(filepath.Clean(relPath))
	if rel == "." || strings.HasPrefix(rel, "../") || filepath.IsAbs(relPath) {
		return nil, fmt.Errorf("watch %s: path outside repository", relPath)
	}
	dir := filepath.Dir(filepath.Join(w.root, filepath.FromSlash(rel)))
	if info, err := os.Stat(filepath.Join(w.root, filepath.FromSlash(rel))); err == nil && info.IsDir() {
		dir = filepath.Join(w.root, filepath.FromSlash(rel))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	if err := w.startLocked(); err != nil {
		return nil, err
	}
	if w.dirs[dir] == 0 {
		slog.Debug("adding path to FS watcher", slog.String("path", dir))
		if err := w.fsw.Add(dir); err != nil {
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.paths[rel]++

	var once sync.Once
	return subscriptionFunc(func() error {
		var err error
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if w.paths[rel]--; w.paths[rel] <= 0 {
				delete(w.paths, rel)
			}
			if w.dirs[dir]--; w.dirs[dir] <= 0 {
				delete(w.dirs, dir)
				if w.fsw != nil {
					if rmErr := w.fsw.Remove(dir); rmErr != nil && !errors.Is(rmErr, fsnotify.ErrNonExistentWatch) {
						err = rmErr
					}
				}
			}
			err = errors.Join(err, w.stopIfIdleLocked())
		})
		return err
	}), nil
}

func (w *watcher) startLocked() error {
	if w.fsw != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	for _, path := range w.metadataDirs() {
		slog.Debug("adding path to FS watcher", slog.String("path", path))
		if err := fsw.Add(path); err != nil {
			err := errors.Join(err, fsw.Close())
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
	for dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			slog.Debug("re-adding working tree watch", slog.String("path", dir), slog.Any("error", err))
		}
	}
	w.fsw = fsw
	go w.loop(fsw)
	return nil
}

func (w *watcher) stopIfIdleLocked() error {
	if len(w.listeners) > 0 || len(w.dirs) > 0 || w.fsw == nil {
		return nil
	}
	return w.stopLocked()
}

func (w *watcher) stopLocked() error {
	if w.flush != nil {
		w.flush.Stop()
		w.flush = nil
	}
	w.pending = ChangeEvent{}
	if w.fsw == nil {
		return nil
	}
	err := w.fsw.Close()
	w.fsw = nil
	return err
}

func (w *watcher) close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	err := w.stopLocked()
	listeners := w.snapshotLocked()
	clear(w.listeners)
	clear(w.dirs)
	clear(w.paths)
	w.mu.Unlock()

	ev := ChangeEvent{RepoPath: w.root, Changes: []Change{ChangeClosed}}
	for _, fn := range listeners {
		fn(ev)
	}
	return err
}

// metadataDirs lists the git directory and every directory below refs,
// since fsnotify watches are not recursive.
func (w *watcher) metadataDirs() []string {
	dirs := []string{w.gitDir}
	refs := filepath.Join(w.gitDir, "refs")
	_ = filepath.WalkDir(refs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs
}

func (w *watcher) loop(fsw *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if shouldIgnoreWatchPath(ev.Name) {
				continue
			}
			slog.Debug("fsnotify event",
				slog.String("op", ev.Op.String()),
				slog.String("path", ev.Name),
			)
			w.handle(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

func (w *watcher) handle(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 && w.isMetadata(ev.Name) {
		// new namespaces below refs, e.g. refs/heads/feature/
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := fsw.Add(ev.Name); err != nil {
				slog.Debug("watch new ref dir", slog.String("path", ev.Name), slog.Any("error", err))
			}
		}
	}

	w.mu.Lock()
	if w.fsw != fsw {
		w.mu.Unlock()
		return
	}
	changed := false
	if w.isMetadata(ev.Name) {
		for _, c := range classifyMetadataPath(w.gitDir, ev.Name) {
			if !slices.Contains(w.pending.Changes, c) {
				w.pending.Changes = append(w.pending.Changes, c)
			}
			changed = true
		}
	} else if rel, ok := w.watchedPath(ev.Name); ok {
		if !slices.Contains(w.pending.Paths, rel) {
			w.pending.Paths = append(w.pending.Paths, rel)
		}
		changed = true
	}
	if !changed {
		w.mu.Unlock()
		return
	}
	flush := debounce.Ensure(&w.flush, w.delay, w.dispatch)
	w.mu.Unlock()
	flush.Trigger()
}

func (w *watcher) dispatch() {
	w.mu.Lock()
	ev := w.pending
	w.pending = ChangeEvent{}
	listeners := w.snapshotLocked()
	w.mu.Unlock()
	if ev.IsEmpty() {
		return
	}
	ev.RepoPath = w.root
	slog.Debug("repository changed",
		slog.String("repo", w.root),
		slog.Any("changes", ev.Changes),
		slog.Any("paths", ev.Paths),
	)
	for _, fn := range listeners {
		fn(ev)
	}
}

func (w *watcher) snapshotLocked() []func(ChangeEvent) {
	out := make([]func(ChangeEvent), 0, len(w.listeners))
	for _, fn := range w.listeners {
		out = append(out, fn)
	}
	return out
}

func (w *watcher) isMetadata(name string) bool {
	return name == w.gitDir || strings.HasPrefix(name, w.gitDir+string(filepath.Separator))
}

// watchedPath maps an absolute working tree path to the watched
// repository-relative path it belongs to.
func (w *watcher) watchedPath(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for p := range w.paths {
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return rel, true
		}
	}
	return "", false
}

// classifyMetadataPath maps a path below the git directory to the changes it
// signals. Every metadata change is also a ChangeRepository.
func classifyMetadataPath(gitDir, name string) []Change {
	rel, err := filepath.Rel(gitDir, name)
	if err != nil {
		return []Change{ChangeRepository}
	}
	rel = filepath.ToSlash(rel)
	changes := []Change{ChangeRepository}
	switch {
	case rel == "index":
		changes = append(changes, ChangeIndex)
	case rel == "config":
		changes = append(changes, ChangeConfig, ChangeRemotes)
	case rel == "HEAD" || rel == "ORIG_HEAD":
		changes = append(changes, ChangeHeads)
	case rel == "FETCH_HEAD":
		changes = append(changes, ChangeRemotes)
	case rel == "packed-refs":
		changes = append(changes, ChangeHeads, ChangeTags, ChangeRemotes)
	case strings.HasPrefix(rel, "refs/heads"):
		changes = append(changes, ChangeHeads)
	case strings.HasPrefix(rel, "refs/tags"):
		changes = append(changes, ChangeTags)
	case strings.HasPrefix(rel, "refs/remotes"):
		changes = append(changes, ChangeRemotes)
	}
	return changes
}

func shouldIgnoreWatchPath(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".lock" || ext == ".ipc"
}
