package lsp

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
)

// Session tracks one language session: the Peer Client (Server, and its
// Supervisor if crash recovery is enabled) serving it, its project root,
// and derived request-scoped state such as pending code actions and
// dynamic registrations. One Session exists per language identifier.
type Session struct {
	ID            string
	WorkspaceRoot string
	OpenedAt      time.Time

	Server     *Server
	Supervisor *Supervisor

	// CodeActionStash holds the last code actions offered for a (uri, range)
	// so a later "apply action N" request can resolve back to a WorkspaceEdit
	// without round-tripping the full action payload through the editor peer.
	CodeActionStash map[string][]CodeAction

	// Registrations holds dynamic capability registrations the session's
	// servers have asked for, keyed by registration ID.
	Registrations map[string]Registration
}

// Registration models a client/registerCapability entry.
type Registration struct {
	ID              string
	Method          string
	RegisterOptions any
}

// snapshot is a deep-copyable view of Store state used for debug-mode
// before/after diffing; it intentionally mirrors only the fields worth
// tracing. Server/Supervisor pointers and the diagnostics map are omitted —
// cmp.Diff-ing a running *Server would either panic on unexported fields or
// drown the trace in process-internal noise, neither of which is what
// EnableDebugTrace is for.
type snapshot struct {
	Sessions map[string]*sessionSnapshot
}

type sessionSnapshot struct {
	ID              string
	WorkspaceRoot   string
	HasServer       bool
	HasSupervisor   bool
	CodeActionStash map[string][]CodeAction
	Registrations   map[string]Registration
}

// Store is the single lock-protected aggregate of cross-request broker
// state: sessions (and the servers/supervisors serving them), published
// diagnostics, and the registration/code-action bookkeeping derived from
// them. Manager's servers/supervisors maps and DiagnosticsService's
// diagnostics map are kept here rather than in those subsystems, so that
// shared state sits behind this one lock; each subsystem's remaining
// private state keeps its own mutex.
//
// A Server's own open-document tracking (server.go's documents map) stays
// behind the Server's own lock: it is wire-protocol bookkeeping the Peer
// Client needs to emit correctly versioned didChange notifications to its
// child process, not state any other subsystem reads, so centralizing it
// here would just rename the lock without removing a seam.
type Store struct {
	mu sync.Mutex

	sessions    map[string]*Session
	diagnostics map[DocumentURI]*FileDiagnostics

	// debug, when set, causes Write to log a cmp.Diff of the snapshot
	// before and after the closure ran.
	debug  bool
	logger func(msg string, args ...any)
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		sessions:    make(map[string]*Session),
		diagnostics: make(map[DocumentURI]*FileDiagnostics),
	}
}

// EnableDebugTrace turns on before/after diff logging for every Write call.
func (s *Store) EnableDebugTrace(logger func(msg string, args ...any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debug = true
	s.logger = logger
}

// Read runs f while holding the lock, for callers that only inspect state.
// f must not perform outbound RPCs or block on anything other than the lock
// itself — the whole broker stalls for the duration of f.
func (s *Store) Read(f func(sessions map[string]*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.sessions)
}

// Write runs f while holding the lock, for callers that mutate state. Same
// no-outbound-RPC restriction as Read.
func (s *Store) Write(f func(sessions map[string]*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debug && s.logger != nil {
		before := s.snapshotLocked()
		f(s.sessions)
		after := s.snapshotLocked()
		if diff := cmp.Diff(before, after); diff != "" {
			s.logger("store: state changed: %s", diff)
		}
		return
	}

	f(s.sessions)
}

func (s *Store) snapshotLocked() snapshot {
	cp := make(map[string]*sessionSnapshot, len(s.sessions))
	for id, sess := range s.sessions {
		cp[id] = &sessionSnapshot{
			ID:              sess.ID,
			WorkspaceRoot:   sess.WorkspaceRoot,
			HasServer:       sess.Server != nil,
			HasSupervisor:   sess.Supervisor != nil,
			CodeActionStash: copyActionStash(sess.CodeActionStash),
			Registrations:   copyRegistrations(sess.Registrations),
		}
	}
	return snapshot{Sessions: cp}
}

func copyActionStash(m map[string][]CodeAction) map[string][]CodeAction {
	if m == nil {
		return nil
	}
	cp := make(map[string][]CodeAction, len(m))
	for k, v := range m {
		cp[k] = append([]CodeAction(nil), v...)
	}
	return cp
}

func copyRegistrations(m map[string]Registration) map[string]Registration {
	if m == nil {
		return nil
	}
	cp := make(map[string]Registration, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// NewSession registers a new session and returns it. Callers still mutate it
// through Write/Read, never by holding onto the returned pointer across a
// lock boundary from another goroutine.
func (s *Store) NewSession(id, workspaceRoot string) *Session {
	sess := &Session{
		ID:              id,
		WorkspaceRoot:   workspaceRoot,
		OpenedAt:        time.Now(),
		CodeActionStash: make(map[string][]CodeAction),
		Registrations:   make(map[string]Registration),
	}
	s.Write(func(sessions map[string]*Session) {
		sessions[id] = sess
	})
	return sess
}

// EnsureSession returns the session for id, creating it rooted at
// workspaceRoot if it doesn't exist yet.
func (s *Store) EnsureSession(id, workspaceRoot string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := &Session{
		ID:              id,
		WorkspaceRoot:   workspaceRoot,
		OpenedAt:        time.Now(),
		CodeActionStash: make(map[string][]CodeAction),
		Registrations:   make(map[string]Registration),
	}
	s.sessions[id] = sess
	return sess
}

// SetServer attaches srv as the Peer Client for session id's language,
// creating the session if it doesn't exist yet.
func (s *Store) SetServer(id, workspaceRoot string, srv *Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{
			ID:              id,
			WorkspaceRoot:   workspaceRoot,
			OpenedAt:        time.Now(),
			CodeActionStash: make(map[string][]CodeAction),
			Registrations:   make(map[string]Registration),
		}
		s.sessions[id] = sess
	}
	sess.Server = srv
}

// SetSupervisor attaches sup as the supervising wrapper for session id's
// language, creating the session if it doesn't exist yet.
func (s *Store) SetSupervisor(id, workspaceRoot string, sup *Supervisor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{
			ID:              id,
			WorkspaceRoot:   workspaceRoot,
			OpenedAt:        time.Now(),
			CodeActionStash: make(map[string][]CodeAction),
			Registrations:   make(map[string]Registration),
		}
		s.sessions[id] = sess
	}
	sess.Supervisor = sup
}

// ClearServer detaches and returns the Server for language id without
// removing the session itself or cascading diagnostics cleanup — for a
// one-off restart, not a session termination.
func (s *Store) ClearServer(id string) (*Server, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Server == nil {
		return nil, false
	}
	srv := sess.Server
	sess.Server = nil
	return srv, true
}

// SessionRoot returns the workspace root recorded for session id, if any.
func (s *Store) SessionRoot(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return "", false
	}
	return sess.WorkspaceRoot, true
}

// Server returns the Peer Client serving language id, if any.
func (s *Store) Server(id string) (*Server, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Server == nil {
		return nil, false
	}
	return sess.Server, true
}

// Supervisor returns the supervisor wrapping language id's server, if any.
func (s *Store) Supervisor(id string) (*Supervisor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Supervisor == nil {
		return nil, false
	}
	return sess.Supervisor, true
}

// Servers returns a snapshot of every language currently holding a Server.
func (s *Store) Servers() map[string]*Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*Server)
	for id, sess := range s.sessions {
		if sess.Server != nil {
			out[id] = sess.Server
		}
	}
	return out
}

// Supervisors returns a snapshot of every language currently holding a
// Supervisor.
func (s *Store) Supervisors() map[string]*Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*Supervisor)
	for id, sess := range s.sessions {
		if sess.Supervisor != nil {
			out[id] = sess.Supervisor
		}
	}
	return out
}

// DrainServersAndSupervisors atomically detaches every tracked Server and
// Supervisor from their sessions and returns them for the caller to shut
// down outside the lock, mirroring the snapshot-then-unlock-then-I/O shape
// Manager.Shutdown already used before servers moved into Store.
func (s *Store) DrainServersAndSupervisors() ([]*Server, []*Supervisor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var servers []*Server
	var supervisors []*Supervisor
	for _, sess := range s.sessions {
		if sess.Server != nil {
			servers = append(servers, sess.Server)
			sess.Server = nil
		}
		if sess.Supervisor != nil {
			supervisors = append(supervisors, sess.Supervisor)
			sess.Supervisor = nil
		}
	}
	return servers, supervisors
}

// SetFileDiagnostics records the current diagnostic set for a file.
func (s *Store) SetFileDiagnostics(uri DocumentURI, fd *FileDiagnostics) {
	s.mu.Lock()
	s.diagnostics[uri] = fd
	s.mu.Unlock()
}

// DeleteFileDiagnostics removes a file's tracked diagnostics.
func (s *Store) DeleteFileDiagnostics(uri DocumentURI) {
	s.mu.Lock()
	delete(s.diagnostics, uri)
	s.mu.Unlock()
}

// FileDiagnostics returns the tracked diagnostics for a file, if any.
func (s *Store) FileDiagnostics(uri DocumentURI) (*FileDiagnostics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fd, ok := s.diagnostics[uri]
	return fd, ok
}

// AllFileDiagnostics returns a snapshot of every file's tracked diagnostics.
func (s *Store) AllFileDiagnostics() map[DocumentURI]*FileDiagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[DocumentURI]*FileDiagnostics, len(s.diagnostics))
	for k, v := range s.diagnostics {
		out[k] = v
	}
	return out
}

// ClearFileDiagnostics drops every tracked diagnostic, for a full reset.
func (s *Store) ClearFileDiagnostics() {
	s.mu.Lock()
	s.diagnostics = make(map[DocumentURI]*FileDiagnostics)
	s.mu.Unlock()
}

// Quickfix projects every tracked file's diagnostics into the aggregated
// quickfix list the editor's quickfix/location-list selection UI shows.
func (s *Store) Quickfix() []QuickfixEntry {
	s.mu.Lock()
	byPath := make(map[string][]Diagnostic, len(s.diagnostics))
	for _, fd := range s.diagnostics {
		byPath[fd.Path] = fd.Diagnostics
	}
	s.mu.Unlock()
	return BuildQuickfix(byPath)
}

// RemoveSession deletes session id's entry and cascades: it drops every
// tracked diagnostic set whose file is rooted under the session's
// workspace root, and returns the removed session (nil if id was unknown)
// so the caller can shut down its Server/Supervisor outside the lock.
func (s *Store) RemoveSession(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	delete(s.sessions, id)

	if root := sess.WorkspaceRoot; root != "" {
		for uri, fd := range s.diagnostics {
			if pathRootedUnder(fd.Path, root) {
				delete(s.diagnostics, uri)
			}
		}
		if sess.Supervisor != nil {
			sess.Supervisor.UntrackDocumentsUnderRoot(root)
		}
	}

	if s.debug && s.logger != nil {
		s.logger("store: removed session %s (root=%s)", id, sess.WorkspaceRoot)
	}
	return sess
}

// pathRootedUnder reports whether path lies at or under root.
func pathRootedUnder(path, root string) bool {
	if root == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}
