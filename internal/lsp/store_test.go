package lsp

import (
	"strings"
	"sync"
	"testing"
)

func TestStore_NewSession(t *testing.T) {
	s := NewStore()
	sess := s.NewSession("main", "/repo")

	if sess.ID != "main" || sess.WorkspaceRoot != "/repo" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	var found *Session
	s.Read(func(sessions map[string]*Session) {
		found = sessions["main"]
	})
	if found == nil || found.WorkspaceRoot != "/repo" {
		t.Fatalf("session not visible through Read: %+v", found)
	}
}

func TestStore_RemoveSession(t *testing.T) {
	s := NewStore()
	s.NewSession("main", "/repo")
	s.RemoveSession("main")

	var found bool
	s.Read(func(sessions map[string]*Session) {
		_, found = sessions["main"]
	})
	if found {
		t.Error("expected session to be removed")
	}
}

func TestStore_WriteMutatesUnderLock(t *testing.T) {
	s := NewStore()
	s.NewSession("main", "/repo")

	s.Write(func(sessions map[string]*Session) {
		sessions["main"].Registrations["r1"] = Registration{ID: "r1", Method: "textDocument/hover"}
	})

	var method string
	s.Read(func(sessions map[string]*Session) {
		method = sessions["main"].Registrations["r1"].Method
	})
	if method != "textDocument/hover" {
		t.Errorf("registration not persisted, got %q", method)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	s.NewSession("main", "/repo")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Write(func(sessions map[string]*Session) {
				sessions["main"].CodeActionStash["k"] = []CodeAction{{Title: "noop"}}
			})
		}(i)
	}
	wg.Wait()

	var count int
	s.Read(func(sessions map[string]*Session) {
		count = len(sessions["main"].CodeActionStash)
	})
	if count != 1 {
		t.Errorf("expected one stashed key after concurrent writes, got %d", count)
	}
}

func TestStore_RemoveSessionCascadesDiagnosticsUnderRoot(t *testing.T) {
	s := NewStore()
	s.NewSession("go", "/repo/go")
	s.NewSession("rust", "/repo/rust")

	s.SetFileDiagnostics("file:///repo/go/main.go", &FileDiagnostics{Path: "/repo/go/main.go"})
	s.SetFileDiagnostics("file:///repo/go/pkg/sub.go", &FileDiagnostics{Path: "/repo/go/pkg/sub.go"})
	s.SetFileDiagnostics("file:///repo/rust/main.rs", &FileDiagnostics{Path: "/repo/rust/main.rs"})

	removed := s.RemoveSession("go")
	if removed == nil || removed.ID != "go" {
		t.Fatalf("expected removed session 'go', got %+v", removed)
	}

	if _, ok := s.FileDiagnostics("file:///repo/go/main.go"); ok {
		t.Error("expected diagnostics rooted under removed session to be dropped")
	}
	if _, ok := s.FileDiagnostics("file:///repo/go/pkg/sub.go"); ok {
		t.Error("expected diagnostics in a subdirectory of the removed root to be dropped")
	}
	if _, ok := s.FileDiagnostics("file:///repo/rust/main.rs"); !ok {
		t.Error("expected diagnostics under a different session's root to survive")
	}

	if _, exists := s.Server("go"); exists {
		t.Error("expected removed session's server lookup to report absent")
	}
}

func TestStore_ClearServerDoesNotCascade(t *testing.T) {
	s := NewStore()
	s.NewSession("go", "/repo/go")
	s.SetFileDiagnostics("file:///repo/go/main.go", &FileDiagnostics{Path: "/repo/go/main.go"})
	s.SetServer("go", "/repo/go", &Server{})

	srv, ok := s.ClearServer("go")
	if !ok || srv == nil {
		t.Fatal("expected ClearServer to return the detached server")
	}

	if _, ok := s.FileDiagnostics("file:///repo/go/main.go"); !ok {
		t.Error("expected ClearServer to leave diagnostics untouched, cascade is RemoveSession's job")
	}

	var stillThere bool
	s.Read(func(sessions map[string]*Session) {
		_, stillThere = sessions["go"]
	})
	if !stillThere {
		t.Error("expected ClearServer to leave the session entry in place")
	}
}

func TestStore_DebugTraceLogsDiff(t *testing.T) {
	s := NewStore()
	s.NewSession("main", "/repo")

	var logged string
	s.EnableDebugTrace(func(msg string, args ...any) {
		logged = msg
		_ = args
	})

	s.Write(func(sessions map[string]*Session) {
		sessions["main"].WorkspaceRoot = "/other"
	})

	if !strings.Contains(logged, "store: state changed") {
		t.Errorf("expected debug trace to log a diff, got %q", logged)
	}
}
