package broker

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lspbroker/lspbroker/internal/config"
	"github.com/lspbroker/lspbroker/internal/logging"
	"github.com/lspbroker/lspbroker/internal/lsp"
	"github.com/lspbroker/lspbroker/internal/watcher"
)

// Broker is the top-level object wiring the router, the language server
// manager, the diagnostics/actions services, the filesystem watcher
// registry and the editor peer into one running process. One Broker serves
// one editor connection; everything it owns is scoped to that connection's
// lifetime.
type Broker struct {
	cfg    config.Config
	logger *logging.Logger

	manager     *lsp.Manager
	store       *lsp.Store
	diagnostics *lsp.DiagnosticsService
	actions     *lsp.ActionsService
	completion  *lsp.CompletionService
	navigation  *lsp.NavigationService
	router      *lsp.Router
	watchers    *watcher.Registry

	editor *EditorClient

	mu      sync.Mutex
	started bool

	// watchSet caches the one watcher.Set this broker uses; watcher.Registry.Open
	// allocates a fresh Set on every call, so repeated calls are cached here
	// instead of leaking one fsnotify watcher per open document.
	watchSet *watcher.Set
}

// New builds a Broker from cfg, wiring a manager, diagnostics, actions and
// watcher registry around it, and registering the static editor-facing
// method tables on a fresh router. The editor peer itself is attached by
// Serve once the connection exists, since ApplyWorkspaceEdit and friends
// need it.
func New(cfg config.Config, logger *logging.Logger) *Broker {
	if logger == nil {
		logger = logging.Default()
	}

	store := lsp.NewStore()

	managerOpts := []lsp.ManagerOption{lsp.WithRequestTimeout(cfg.WaitOutputTimeout)}
	if cfg.RestartOnCrash {
		supervisorCfg := lsp.DefaultSupervisorConfig()
		supervisorCfg.MaxRestarts = cfg.MaxRestartRetries
		managerOpts = append(managerOpts, lsp.WithSupervision(supervisorCfg))
	}
	manager := lsp.NewManager(store, managerOpts...)
	if cwd, err := os.Getwd(); err == nil {
		manager.SetWorkspaceFolders(lsp.DetectWorkspaceFolders(cwd))
	}

	for languageID, sc := range cfg.ServerCommands {
		if len(sc.Command) == 0 {
			continue
		}
		manager.RegisterServer(languageID, lsp.ServerConfig{
			Command: sc.Command[0],
			Args:    sc.Command[1:],
			Env:     sc.Env,
		})
	}

	// diagnostics_ignore_sources excludes sources rather than allow-listing
	// them, the opposite of WithEnabledSources' allow-list; it is enforced
	// per-lookup in ignoredSource instead of at construction.
	diagOpts := []lsp.DiagnosticsServiceOption{
		lsp.WithMinSeverity(lsp.DiagnosticSeverity(cfg.DiagnosticsMaxSeverity)),
	}
	if cfg.DiagnosticsSignsMax > 0 {
		diagOpts = append(diagOpts, lsp.WithMaxDiagnosticsPerFile(cfg.DiagnosticsSignsMax))
	}
	diagnostics := lsp.NewDiagnosticsService(manager, store, diagOpts...)

	actions := lsp.NewActionsService(manager,
		lsp.WithFormatOnSave(false),
		lsp.WithFormattingOptions(lsp.DefaultFormattingOptions()),
	)

	completion := lsp.NewCompletionService(manager, lsp.WithMaxResults(200))
	navigation := lsp.NewNavigationService(manager)

	b := &Broker{
		cfg:         cfg,
		logger:      logger,
		manager:     manager,
		store:       store,
		diagnostics: diagnostics,
		actions:     actions,
		completion:  completion,
		navigation:  navigation,
	}
	b.watchers = watcher.NewRegistry(b.handleWatchEvents, b.handleWatchError)

	b.router = lsp.NewRouter(b.requestHandlers(), b.notificationHandlers(),
		lsp.WithRouterLogger(func(msg string, args ...any) { b.logger.Warn(msg, args...) }))

	return b
}

// ignoredSource reports whether source is listed in diagnostics_ignore_sources.
func ignoredSource(cfg config.Config, source string) bool {
	for _, s := range cfg.DiagnosticsIgnoreSources {
		if s == source {
			return true
		}
	}
	return false
}

// AttachEditor wires the editor peer into the services that call back out
// to it (workspace edit application).
func (b *Broker) AttachEditor(editor *EditorClient) {
	b.editor = editor
	b.actions.SetEditorPeer(editor)
}

// NewEditorClientFor builds the editor peer over codec, wired to this
// broker's router and logger; AttachEditor must still be called (Serve does
// this) before ApplyWorkspaceEdit and friends can reach it.
func (b *Broker) NewEditorClientFor(codec *lsp.Codec) *EditorClient {
	return NewEditorClient(codec, b.router, b.logger)
}

// Serve runs the editor peer's read loop until it ends or ctx is canceled,
// then tears down every session-scoped resource.
func (b *Broker) Serve(ctx context.Context, editor *EditorClient) error {
	b.AttachEditor(editor)

	b.mu.Lock()
	b.started = true
	b.mu.Unlock()

	tickCtx, cancelTick := context.WithCancel(ctx)
	defer cancelTick()
	go b.watchers.Run(tickCtx, 500*time.Millisecond)

	err := editor.Run(ctx)
	b.shutdown(context.Background())
	return err
}

func (b *Broker) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := b.manager.Shutdown(shutdownCtx); err != nil {
		b.logger.Warn("manager shutdown: %v", err)
	}
	b.router.Close()
}

func (b *Broker) handleWatchEvents(sessionID string, events []watcher.FileEvent) {
	if len(events) == 0 {
		return
	}
	b.logger.Debug("watcher: %d event(s) for session %s", len(events), sessionID)
	for _, ev := range events {
		path := strings.TrimPrefix(ev.URI, "file://")
		b.diagnostics.ClearFile(path)
	}
}

func (b *Broker) handleWatchError(sessionID string, err error) {
	b.logger.Warn("watcher error for session %s: %v", sessionID, err)
}

// watchSetFor returns the cached Set for the broker's one watcher
// registration, opening it on first use. The watcher registry isn't scoped
// to any one language session, so it shares the registrationSessionID
// bucket with dynamic capability registrations.
func (b *Broker) watchSetFor() (*watcher.Set, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.watchSet != nil {
		return b.watchSet, nil
	}
	set, err := b.watchers.Open(registrationSessionID)
	if err != nil {
		return nil, err
	}
	b.watchSet = set
	return set, nil
}
