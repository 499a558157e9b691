package broker

import (
	"context"

	"github.com/lspbroker/lspbroker/internal/lsp"
)

// lspPassthroughHandlers covers the "every LSP method addressable as
// <method> with a params object" half of the editor-facing request surface:
// the common navigation/editing methods, each backed by the Manager or
// ActionsService call that already implements it, using the same flat
// (filename, line, character) param shape as the languageClient/* methods
// rather than full LSP TextDocumentPositionParams, since that is what the
// editor side actually sends.
func (b *Broker) lspPassthroughHandlers() map[string]lsp.RequestHandlerFunc {
	return map[string]lsp.RequestHandlerFunc{
		"textDocument/hover":          b.lspHover,
		"textDocument/definition":     b.lspDefinition,
		"textDocument/typeDefinition": b.lspTypeDefinition,
		"textDocument/references":     b.lspReferences,
		"textDocument/documentSymbol": b.lspDocumentSymbol,
		"textDocument/formatting":     b.lspFormatting,
		"textDocument/codeAction":     b.lspCodeAction,
		"textDocument/signatureHelp":  b.lspSignatureHelp,
		"textDocument/rename":         b.lspRename,
		"workspace/applyEdit":         b.lspApplyEdit,
		"workspace/configuration":     b.lspConfiguration,
	}
}

func (b *Broker) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.cfg.WaitOutputTimeout)
}

func (b *Broker) lspHover(req lsp.InboundRequest) (any, error) {
	var p filePosition
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	ctx, cancel := b.callCtx()
	defer cancel()
	hover, err := b.manager.Hover(ctx, p.Filename, p.position())
	if err != nil || hover == nil {
		return hover, err
	}
	text, err := lsp.RenderHoverContents(hover.Contents)
	if err != nil {
		return hover, nil
	}
	return map[string]any{"contents": text, "range": hover.Range}, nil
}

func (b *Broker) lspDefinition(req lsp.InboundRequest) (any, error) {
	var p filePosition
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	ctx, cancel := b.callCtx()
	defer cancel()
	return b.manager.Definition(ctx, p.Filename, p.position())
}

func (b *Broker) lspTypeDefinition(req lsp.InboundRequest) (any, error) {
	var p filePosition
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	ctx, cancel := b.callCtx()
	defer cancel()
	return b.manager.TypeDefinition(ctx, p.Filename, p.position())
}

func (b *Broker) lspReferences(req lsp.InboundRequest) (any, error) {
	var p struct {
		filePosition
		IncludeDeclaration bool `json:"includeDeclaration"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	ctx, cancel := b.callCtx()
	defer cancel()
	return b.manager.References(ctx, p.Filename, p.position(), p.IncludeDeclaration)
}

func (b *Broker) lspDocumentSymbol(req lsp.InboundRequest) (any, error) {
	var p struct {
		Filename string `json:"filename"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	ctx, cancel := b.callCtx()
	defer cancel()
	return b.manager.DocumentSymbols(ctx, p.Filename)
}

func (b *Broker) lspFormatting(req lsp.InboundRequest) (any, error) {
	var p struct {
		Filename string `json:"filename"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	ctx, cancel := b.callCtx()
	defer cancel()
	result, err := b.actions.FormatDocument(ctx, p.Filename)
	if err != nil {
		return nil, err
	}
	return result.Edits, nil
}

func (b *Broker) lspCodeAction(req lsp.InboundRequest) (any, error) {
	var p struct {
		Filename    string           `json:"filename"`
		Range       lsp.Range        `json:"range"`
		Diagnostics []lsp.Diagnostic `json:"diagnostics"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	ctx, cancel := b.callCtx()
	defer cancel()
	diags := p.Diagnostics
	if diags == nil {
		diags = b.visibleDiagnostics(b.diagnostics.GetDiagnosticsAtLine(p.Filename, p.Range.Start.Line))
	}
	return b.actions.GetCodeActions(ctx, p.Filename, p.Range, diags)
}

func (b *Broker) lspSignatureHelp(req lsp.InboundRequest) (any, error) {
	var p filePosition
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	ctx, cancel := b.callCtx()
	defer cancel()
	return b.actions.GetSignatureHelp(ctx, p.Filename, p.position())
}

func (b *Broker) lspRename(req lsp.InboundRequest) (any, error) {
	var p struct {
		filePosition
		NewName string `json:"newName"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	ctx, cancel := b.callCtx()
	defer cancel()
	return b.actions.Rename(ctx, p.Filename, p.position(), p.NewName)
}

func (b *Broker) lspApplyEdit(req lsp.InboundRequest) (any, error) {
	var p struct {
		Edit lsp.WorkspaceEdit `json:"edit"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	ctx, cancel := b.callCtx()
	defer cancel()
	return b.actions.ApplyWorkspaceEdit(ctx, p.Edit)
}

func (b *Broker) lspConfiguration(req lsp.InboundRequest) (any, error) {
	var p lsp.ConfigurationParams
	if err := decodeParams(req.Params, &p); err != nil {
		return nil, err
	}
	return lsp.ResolveConfiguration(b.cfg.LoadedSettings, p)
}
