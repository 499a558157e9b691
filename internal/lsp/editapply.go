package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// EditorPeer is the narrow slice of the editor-facing RPC surface that
// workspace edit application needs: opening a file, calling a named editor
// function, and sending it a notification. The broker's editor peer
// satisfies this with its JSON-RPC Call/Notify primitives.
type EditorPeer interface {
	Call(ctx context.Context, function string, args []any, result any) error
	Notify(ctx context.Context, function string, args []any) error
}

// documentChangeKind mirrors the "kind" discriminator LSP puts on resource
// operations inside WorkspaceEdit.DocumentChanges; a TextDocumentEdit has no
// "kind" field at all, which is how the two are told apart below.
type documentChangeKind struct {
	Kind string `json:"kind"`
}

// textDocumentEditChange is a WorkspaceEdit.DocumentChanges entry that edits
// one already-open document.
type textDocumentEditChange struct {
	TextDocument struct {
		URI     DocumentURI `json:"uri"`
		Version *int        `json:"version"`
	} `json:"textDocument"`
	Edits []TextEdit `json:"edits"`
}

// createFileChange is a DocumentChanges entry with kind "create".
type createFileChange struct {
	URI DocumentURI `json:"uri"`
}

// renameFileChange is a DocumentChanges entry with kind "rename".
type renameFileChange struct {
	OldURI DocumentURI `json:"oldUri"`
	NewURI DocumentURI `json:"newUri"`
}

// deleteFileChange is a DocumentChanges entry with kind "delete".
type deleteFileChange struct {
	URI DocumentURI `json:"uri"`
}

// ApplyWorkspaceEditVia applies a WorkspaceEdit through peer, honoring the
// protocol's documentChanges-over-changes precedence and, within
// documentChanges, applying resource operations (create/rename/delete)
// interleaved with text edits in the array's original order, since later
// entries may depend on an earlier rename or create having already run.
func ApplyWorkspaceEditVia(ctx context.Context, peer EditorPeer, edit WorkspaceEdit) (*ApplyEditResult, error) {
	result := &ApplyEditResult{ModifiedFiles: make([]string, 0)}

	if len(edit.DocumentChanges) > 0 {
		for i, raw := range edit.DocumentChanges {
			if err := applyDocumentChange(ctx, peer, raw, result); err != nil {
				result.FailureReason = fmt.Sprintf("documentChanges[%d]: %v", i, err)
				return result, err
			}
		}
		result.Applied = true
		sort.Strings(result.ModifiedFiles)
		return result, nil
	}

	uris := make([]DocumentURI, 0, len(edit.Changes))
	for uri := range edit.Changes {
		uris = append(uris, uri)
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })

	for _, uri := range uris {
		path := URIToFilePath(uri)
		if err := ApplyTextEditsVia(ctx, peer, path, edit.Changes[uri]); err != nil {
			result.FailureReason = fmt.Sprintf("%s: %v", path, err)
			return result, err
		}
		result.ModifiedFiles = append(result.ModifiedFiles, path)
	}

	result.Applied = true
	sort.Strings(result.ModifiedFiles)
	return result, nil
}

// applyDocumentChange dispatches one DocumentChanges array entry to either
// the resource-operation or text-edit path, sniffing the union by presence
// of a "kind" field the way the wire format itself distinguishes them.
func applyDocumentChange(ctx context.Context, peer EditorPeer, raw any, result *ApplyEditResult) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}

	var disc documentChangeKind
	if err := json.Unmarshal(data, &disc); err != nil {
		return err
	}

	switch disc.Kind {
	case "create":
		var op createFileChange
		if err := json.Unmarshal(data, &op); err != nil {
			return err
		}
		path := URIToFilePath(op.URI)
		if err := peer.Call(ctx, "file/create", []any{path}, nil); err != nil {
			return err
		}
		result.ModifiedFiles = append(result.ModifiedFiles, path)
		return nil

	case "rename":
		var op renameFileChange
		if err := json.Unmarshal(data, &op); err != nil {
			return err
		}
		oldPath := URIToFilePath(op.OldURI)
		newPath := URIToFilePath(op.NewURI)
		if err := peer.Call(ctx, "file/rename", []any{oldPath, newPath}, nil); err != nil {
			return err
		}
		result.ModifiedFiles = append(result.ModifiedFiles, newPath)
		return nil

	case "delete":
		var op deleteFileChange
		if err := json.Unmarshal(data, &op); err != nil {
			return err
		}
		path := URIToFilePath(op.URI)
		if err := peer.Call(ctx, "file/delete", []any{path}, nil); err != nil {
			return err
		}
		result.ModifiedFiles = append(result.ModifiedFiles, path)
		return nil

	default:
		var op textDocumentEditChange
		if err := json.Unmarshal(data, &op); err != nil {
			return err
		}
		path := URIToFilePath(op.TextDocument.URI)
		if err := ApplyTextEditsVia(ctx, peer, path, op.Edits); err != nil {
			return err
		}
		result.ModifiedFiles = append(result.ModifiedFiles, path)
		return nil
	}
}

// ApplyTextEditsVia applies edits to one file through the editor peer.
// Edits are sorted descending by start position and applied from bottom to
// top, so an earlier edit's line/column shift never invalidates a later
// edit's still-unapplied range; edits sharing a start position are applied
// in the reverse of the order the server sent them, so several inserts at
// one position end up in the buffer in the server's order.
func ApplyTextEditsVia(ctx context.Context, peer EditorPeer, path string, edits []TextEdit) error {
	if len(edits) == 0 {
		return nil
	}

	// Reverse first so the stable sort leaves ties in reverse emission order.
	ordered := make([]TextEdit, len(edits))
	for i, e := range edits {
		ordered[len(edits)-1-i] = e
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := ordered[i].Range.Start, ordered[j].Range.Start
		if si.Line != sj.Line {
			return si.Line > sj.Line
		}
		return si.Character > sj.Character
	})

	if err := peer.Call(ctx, "edit", []any{path}, nil); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	var lines []string
	if err := peer.Call(ctx, "getline", []any{1, "$"}, &lines); err != nil {
		return fmt.Errorf("read buffer for %s: %w", path, err)
	}

	lines, err := applyLineEdits(lines, ordered)
	if err != nil {
		return err
	}

	return peer.Notify(ctx, "setline", []any{1, lines})
}

// applyLineEdits applies edits (already sorted bottom-to-top) to an
// in-memory buffer represented as one string per line, splicing each edit's
// newText across the span it replaces.
func applyLineEdits(lines []string, edits []TextEdit) ([]string, error) {
	for _, edit := range edits {
		start, end := edit.Range.Start, edit.Range.End
		if start.Line < 0 || end.Line >= len(lines) || start.Line > end.Line {
			return nil, fmt.Errorf("edit range %v..%v out of bounds for %d lines", start, end, len(lines))
		}

		prefix := sliceRune(lines[start.Line], 0, start.Character)
		suffix := sliceRune(lines[end.Line], end.Character, -1)
		replacement := prefix + edit.NewText + suffix
		replacementLines := strings.Split(replacement, "\n")

		merged := make([]string, 0, len(lines)-(end.Line-start.Line+1)+len(replacementLines))
		merged = append(merged, lines[:start.Line]...)
		merged = append(merged, replacementLines...)
		merged = append(merged, lines[end.Line+1:]...)
		lines = merged
	}
	return lines, nil
}

// sliceRune slices s by rune offsets rather than byte offsets. LSP character
// offsets reach here unconverted and are used directly as rune offsets; no
// UTF-16 conversion is done, so the two agree only for characters in the
// Basic Multilingual Plane. end of -1 means "to the end of the string".
func sliceRune(s string, start, end int) string {
	runes := []rune(s)
	if end < 0 || end > len(runes) {
		end = len(runes)
	}
	if start > len(runes) {
		start = len(runes)
	}
	return string(runes[start:end])
}
