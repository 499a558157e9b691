// Package watcher implements the broker's per-session filesystem watch
// sets: it expands a registered glob into concrete fsnotify watches, and
// coalesces raw OS events into batches of LSP FileEvent values on a tick.
package watcher

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// ChangeType mirrors the LSP FileChangeType enum used in
// workspace/didChangeWatchedFiles.
type ChangeType int

const (
	Created ChangeType = 1
	Changed ChangeType = 2
	Deleted ChangeType = 3
)

// FileEvent is one coalesced filesystem change, in the shape the protocol
// driver sends on to a language server.
type FileEvent struct {
	URI  string
	Type ChangeType
}

// Watch is one registered glob, the set of fsnotify.Watcher.Add calls it
// expanded to, and whether it was registered recursive ("**").
type Watch struct {
	ID        string
	Pattern   string
	BaseDir   string
	Recursive bool
	watched   []string // directories or files currently under watch for this pattern
}

// Set is the filesystem watcher for one session: one underlying
// fsnotify.Watcher shared by every registered glob, with raw events
// classified and coalesced into FileEvent batches on each Drain.
type Set struct {
	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	watches map[string]*Watch // by ID
	dirToID map[string]string // watched directory/file -> owning watch ID, for fast classification

	pending []FileEvent
	closed  bool
	errCh   chan error
}

// NewSet creates an empty watch set backed by its own fsnotify.Watcher.
func NewSet() (*Set, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}
	s := &Set{
		fsw:     fsw,
		watches: make(map[string]*Watch),
		dirToID: make(map[string]string),
		errCh:   make(chan error, 16),
	}
	go s.collect()
	return s, nil
}

// Errors returns a channel of fsnotify errors, closed once the underlying
// watcher closes. Errors and the close are only delivered here; the Set
// does not end the owning session.
func (s *Set) Errors() <-chan error {
	return s.errCh
}

// collect reads raw fsnotify events for the lifetime of the Set, classifies
// them against the registered watches, and appends to the pending buffer
// for the next Drain.
func (s *Set) collect() {
	defer close(s.errCh)
	for {
		select {
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			s.classify(ev)
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			select {
			case s.errCh <- err:
			default:
			}
		}
	}
}

func (s *Set) classify(ev fsnotify.Event) {
	var ct ChangeType
	switch {
	case ev.Op&fsnotify.Create != 0:
		ct = Created
	case ev.Op&(fsnotify.Write|fsnotify.Chmod) != 0:
		ct = Changed
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		ct = Deleted
	default:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if !s.matchesAnyWatch(ev.Name) {
		return
	}
	s.pending = append(s.pending, FileEvent{URI: pathToFileURI(ev.Name), Type: ct})
}

// matchesAnyWatch reports whether name falls under any registered glob's
// directory or file watch, re-checked against the glob itself (not just
// "is this directory watched") so files created inside a watched recursive
// directory still have to match the original pattern's suffix.
func (s *Set) matchesAnyWatch(name string) bool {
	for _, w := range s.watches {
		rel, err := filepath.Rel(w.BaseDir, name)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if ok, _ := doublestar.Match(w.Pattern, rel); ok {
			return true
		}
	}
	return false
}

// Register expands pattern (relative to baseDir) into concrete fsnotify
// watches and tracks it under id. A trailing "**" segment watches
// recursively; anything else resolves to the literal glob matches at
// registration time, each watched individually (directories non-recursively,
// files directly), matching the distilled watcher's "recursive iff pattern
// ends with **" rule.
func (s *Set) Register(id, baseDir, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("watcher: set is closed")
	}

	recursive := strings.HasSuffix(pattern, "**")
	full := filepath.Join(baseDir, pattern)

	matches, err := doublestar.Glob(full)
	if err != nil {
		return fmt.Errorf("watcher: glob %q: %w", pattern, err)
	}

	w := &Watch{ID: id, Pattern: pattern, BaseDir: baseDir, Recursive: recursive}

	roots := matches
	if recursive {
		roots = []string{filepath.Join(baseDir, strings.TrimSuffix(pattern, "**"))}
	}

	for _, root := range roots {
		if recursive {
			if err := s.addRecursive(root, w); err != nil {
				return err
			}
			continue
		}
		if err := s.fsw.Add(root); err != nil {
			return fmt.Errorf("watcher: add %q: %w", root, err)
		}
		w.watched = append(w.watched, root)
		s.dirToID[root] = id
	}

	s.watches[id] = w
	return nil
}

// addRecursive walks root and adds every directory found to the underlying
// fsnotify.Watcher, since fsnotify itself only watches one directory level.
func (s *Set) addRecursive(root string, w *Watch) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if addErr := s.fsw.Add(path); addErr != nil {
			return nil
		}
		w.watched = append(w.watched, path)
		s.dirToID[path] = w.ID
		return nil
	})
}

// Unregister stops watching everything added for id.
func (s *Set) Unregister(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.watches[id]
	if !ok {
		return nil
	}
	for _, path := range w.watched {
		_ = s.fsw.Remove(path)
		delete(s.dirToID, path)
	}
	delete(s.watches, id)
	return nil
}

// Drain returns and clears the events accumulated since the last Drain,
// meant to be called once per main-loop tick per the distilled watcher's
// coalescing rule.
func (s *Set) Drain() []FileEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	out := s.pending
	s.pending = nil
	return out
}

// Close releases the underlying fsnotify.Watcher. Further Register calls
// fail.
func (s *Set) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.fsw.Close()
}

// pathToFileURI converts an absolute filesystem path to a file:// URI.
func pathToFileURI(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file://" + p
}
