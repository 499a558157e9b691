package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lspbroker/lspbroker/internal/config"
	"github.com/lspbroker/lspbroker/internal/logging"
	"github.com/lspbroker/lspbroker/internal/lsp"
)

// registrationSessionID is the bucket dynamic capability registrations are
// stashed under. Registrations arrive from the editor's registerHandlers
// call, which is not scoped to any one language server, so they don't fit
// the per-language Session model the rest of the Store uses; "editor" keeps
// them out of any real language id's session.
const registrationSessionID = "editor"

// notificationHandlers builds the static table for every
// "languageClient/handle*" and FZF sink notification.
func (b *Broker) notificationHandlers() map[string]lsp.NotificationHandlerFunc {
	return map[string]lsp.NotificationHandlerFunc{
		"languageClient/handleBufNewFile":   b.handleBufNewFile,
		"languageClient/handleFileType":     b.handleFileType,
		"languageClient/handleTextChanged":  b.handleTextChanged,
		"languageClient/handleBufWritePost": b.handleBufWritePost,
		"languageClient/handleBufDelete":    b.handleBufDelete,
		"languageClient/handleCursorMoved":  b.handleCursorMoved,
		"languageClient/handleCompleteDone": b.handleCompleteDone,
		"languageClient/FZFSinkLocation":    b.handleFZFSinkLocation,
		"languageClient/FZFSinkCommand":     b.handleFZFSinkCommand,
	}
}

// requestHandlers builds the static table for the languageClient/* request
// surface plus the direct LSP passthrough methods.
func (b *Broker) requestHandlers() map[string]lsp.RequestHandlerFunc {
	handlers := map[string]lsp.RequestHandlerFunc{
		"languageClient/startServer":            b.startServer,
		"languageClient/stopServer":             b.stopServer,
		"languageClient/isAlive":                b.isAlive,
		"languageClient/getState":               b.getState,
		"languageClient/registerServerCommands": b.registerServerCommands,
		"languageClient/setLoggingLevel":        b.setLoggingLevel,
		"languageClient/setDiagnosticsList":     b.setDiagnosticsList,
		"languageClient/registerHandlers":       b.registerHandlers,
		"languageClient/omniComplete":           b.omniComplete,
		"languageClient/explainErrorAtPoint":    b.explainErrorAtPoint,
		"languageClient/debugInfo":              b.debugInfo,
	}
	for method, fn := range b.lspPassthroughHandlers() {
		handlers[method] = fn
	}
	return handlers
}

// filePosition is the flat (filename, line, character) shape the editor
// sends instead of an LSP TextDocumentPositionParams object.
type filePosition struct {
	Filename  string `json:"filename"`
	Line      int    `json:"line"`
	Character int    `json:"character"`
}

func (p filePosition) position() lsp.Position {
	return lsp.Position{Line: p.Line, Character: p.Character}
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// ensureSession lazily creates the Store's session for languageID the first
// time a document of that language is opened, rooted at the manager's
// workspace root. A language's session is also created as a side effect of
// starting its server (Manager routes server/supervisor state through the
// same Store), so this mostly matters for languages whose server hasn't
// started yet.
func (b *Broker) ensureSession(languageID string) {
	b.store.EnsureSession(languageID, b.manager.WorkspaceRoot())
}

func (b *Broker) handleBufNewFile(notif lsp.InboundNotification) error {
	var p struct {
		Filename   string `json:"filename"`
		LanguageID string `json:"languageId"`
	}
	if err := decodeParams(notif.Params, &p); err != nil {
		return err
	}
	return b.openDocument(p.Filename, p.LanguageID)
}

func (b *Broker) handleFileType(notif lsp.InboundNotification) error {
	return b.handleBufNewFile(notif)
}

func (b *Broker) openDocument(filename, languageID string) error {
	b.ensureSession(languageID)
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("broker: read %s: %w", filename, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.WaitOutputTimeout)
	defer cancel()
	if err := b.manager.OpenDocument(ctx, filename, string(content)); err != nil {
		b.logger.Warn("openDocument %s: %v", filename, err)
		return nil
	}
	if err := b.registerWatch(filename); err != nil {
		b.logger.Debug("watch %s: %v", filename, err)
	}
	return nil
}

func (b *Broker) registerWatch(filename string) error {
	set, err := b.watchSetFor()
	if err != nil {
		return err
	}
	return set.Register(filename, filepath.Dir(filename), filepath.Base(filename))
}

func (b *Broker) handleTextChanged(notif lsp.InboundNotification) error {
	var p struct {
		Filename string                                  `json:"filename"`
		Changes  []lsp.TextDocumentContentChangeEvent `json:"changes"`
	}
	if err := decodeParams(notif.Params, &p); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.WaitOutputTimeout)
	defer cancel()
	return b.manager.ChangeDocument(ctx, p.Filename, p.Changes)
}

func (b *Broker) handleBufWritePost(notif lsp.InboundNotification) error {
	var p struct {
		Filename string `json:"filename"`
	}
	if err := decodeParams(notif.Params, &p); err != nil {
		return err
	}
	if !b.actions.ShouldFormatOnSave(p.Filename) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.WaitOutputTimeout)
	defer cancel()
	if _, err := b.actions.FormatOnSave(ctx, p.Filename); err != nil {
		b.logger.Warn("format on save %s: %v", p.Filename, err)
	}
	return nil
}

func (b *Broker) handleBufDelete(notif lsp.InboundNotification) error {
	var p struct {
		Filename string `json:"filename"`
	}
	if err := decodeParams(notif.Params, &p); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.WaitOutputTimeout)
	defer cancel()
	b.diagnostics.ClearFile(p.Filename)
	return b.manager.CloseDocument(ctx, p.Filename)
}

func (b *Broker) handleCursorMoved(notif lsp.InboundNotification) error {
	var p filePosition
	if err := decodeParams(notif.Params, &p); err != nil {
		return err
	}
	diags := b.visibleDiagnostics(b.diagnostics.GetDiagnosticsAtLine(p.Filename, p.Line))
	if len(diags) == 0 {
		return nil
	}
	return b.editor.Command(context.Background(), "echo "+quoteVimString(lsp.FormatDiagnostic(diags[0])))
}

func (b *Broker) handleCompleteDone(notif lsp.InboundNotification) error {
	return nil // completion text-edit application happens through omniComplete's result
}

// handleFZFSinkLocation records the location the user picked from an
// FZF-backed selection list (fed by definition/references/symbol results)
// in the navigation history, so GoBack/GoForward stay meaningful regardless
// of which selection_ui produced the jump.
func (b *Broker) handleFZFSinkLocation(notif lsp.InboundNotification) error {
	var loc lsp.Location
	if err := decodeParams(notif.Params, &loc); err != nil {
		b.logger.Debug("FZFSinkLocation: unparsed params %s", string(notif.Params))
		return nil
	}
	if loc.URI == "" {
		return nil
	}
	b.navigation.PushLocation(loc, "FZF selection: "+lsp.URIToFilePath(loc.URI))
	return nil
}

func (b *Broker) handleFZFSinkCommand(notif lsp.InboundNotification) error {
	b.logger.Debug("FZFSinkCommand: %s", string(notif.Params))
	return nil
}

func (b *Broker) startServer(req lsp.InboundRequest) (any, error) {
	var p struct {
		LanguageID string `json:"languageId"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.WaitOutputTimeout)
	defer cancel()
	_, err := b.manager.ServerForLanguage(ctx, p.LanguageID)
	if err != nil {
		return map[string]any{"started": false, "error": err.Error()}, nil
	}
	return map[string]any{"started": true}, nil
}

// stopServer is the explicit-stop trigger for a session's termination and
// cleanup: shut down the language's server, drop its Store session (which
// cascades diagnostics rooted under the session's root), and evict the same
// root's entries from the navigation and completion caches, which the Store
// doesn't know about.
func (b *Broker) stopServer(req lsp.InboundRequest) (any, error) {
	var p struct {
		LanguageID string `json:"languageId"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	root, _ := b.store.SessionRoot(p.LanguageID)

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.WaitOutputTimeout)
	defer cancel()
	if err := b.manager.StopServer(ctx, p.LanguageID); err != nil {
		return map[string]any{"stopped": false, "error": err.Error()}, nil
	}

	if root != "" {
		b.navigation.DropSessionState(root)
		b.completion.DropSessionState(root)
	}
	return map[string]any{"stopped": true}, nil
}

func (b *Broker) isAlive(req lsp.InboundRequest) (any, error) {
	var p struct {
		LanguageID string `json:"languageId"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	status := b.manager.ServerStatus(p.LanguageID)
	return map[string]any{"alive": status == lsp.ServerStatusReady}, nil
}

func (b *Broker) getState(req lsp.InboundRequest) (any, error) {
	return b.manager.ServerInfos(), nil
}

func (b *Broker) registerServerCommands(req lsp.InboundRequest) (any, error) {
	var p map[string]struct {
		Command []string          `json:"command"`
		Env     map[string]string `json:"env"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	for languageID, sc := range p {
		if len(sc.Command) == 0 {
			continue
		}
		b.manager.RegisterServer(languageID, lsp.ServerConfig{
			Command: sc.Command[0],
			Args:    sc.Command[1:],
			Env:     sc.Env,
		})
	}
	return map[string]any{"registered": len(p)}, nil
}

func (b *Broker) setLoggingLevel(req lsp.InboundRequest) (any, error) {
	var p struct {
		Level string `json:"level"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	b.logger.SetLevel(logging.ParseLevel(p.Level))
	return map[string]any{"level": p.Level}, nil
}

func (b *Broker) setDiagnosticsList(req lsp.InboundRequest) (any, error) {
	var p struct {
		Kind string `json:"kind"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	b.cfg.DiagnosticsList = config.DiagnosticsListKind(p.Kind)
	return map[string]any{"kind": string(b.cfg.DiagnosticsList)}, nil
}

func (b *Broker) registerHandlers(req lsp.InboundRequest) (any, error) {
	var p struct {
		Methods []string `json:"methods"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	b.ensureSession(registrationSessionID)
	b.store.Write(func(sessions map[string]*lsp.Session) {
		sess, ok := sessions[registrationSessionID]
		if !ok {
			return
		}
		for i, method := range p.Methods {
			id := fmt.Sprintf("editor-%d", i)
			sess.Registrations[id] = lsp.Registration{ID: id, Method: method}
		}
	})
	return map[string]any{"registered": len(p.Methods)}, nil
}

func (b *Broker) omniComplete(req lsp.InboundRequest) (any, error) {
	var p filePosition
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.WaitOutputTimeout)
	defer cancel()
	// No prefix is supplied by the flat (filename, line, character) editor
	// convention, so filtering is a no-op here; sorting, caching and the
	// maxResults bound still apply.
	return b.completion.Complete(ctx, p.Filename, p.position(), "")
}

func (b *Broker) explainErrorAtPoint(req lsp.InboundRequest) (any, error) {
	var p filePosition
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	diags := b.visibleDiagnostics(b.diagnostics.GetDiagnosticsAtPosition(p.Filename, p.position()))
	if len(diags) == 0 {
		return map[string]any{"message": ""}, nil
	}
	return map[string]any{"message": lsp.FormatDiagnostic(diags[0])}, nil
}

// visibleDiagnostics drops entries from diagnostics_ignore_sources, the
// source exclusion the diagnostics service itself only supports as an
// allow-list (see ignoredSource).
func (b *Broker) visibleDiagnostics(diags []lsp.Diagnostic) []lsp.Diagnostic {
	if len(b.cfg.DiagnosticsIgnoreSources) == 0 {
		return diags
	}
	out := make([]lsp.Diagnostic, 0, len(diags))
	for _, d := range diags {
		if ignoredSource(b.cfg, d.Source) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (b *Broker) debugInfo(req lsp.InboundRequest) (any, error) {
	summary := b.diagnostics.Summary()
	return map[string]any{
		"servers":           b.manager.ServerInfos(),
		"diagnostics":       summary,
		"config":            b.cfg,
		"navigationHistory": b.navigation.GetHistory(),
	}, nil
}

func quoteVimString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
