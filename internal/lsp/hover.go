package lsp

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// hoverMarkdown parses GFM-flavored markdown the way the protocol driver's
// other text handling does, but for hover/signature/completion documentation
// the broker renders down to plain text for the editor peer's overlay
// surface rather than HTML.
var hoverMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHoverContents converts a Hover's MarkupContent into plain text
// suitable for display in the editor peer, stripping markdown formatting
// when Kind is markdown and passing plain text through unchanged.
func RenderHoverContents(mc MarkupContent) (string, error) {
	if mc.Kind != MarkupKindMarkdown {
		return strings.TrimSpace(mc.Value), nil
	}
	return MarkdownToPlainText(mc.Value)
}

// MarkdownToPlainText renders markdown source to plain text by walking the
// parsed AST and concatenating its text segments, collapsing block
// boundaries to blank lines and list items to "- " prefixed lines.
func MarkdownToPlainText(src string) (string, error) {
	source := []byte(src)
	doc := hoverMarkdown.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.Kind() {
			case ast.KindParagraph, ast.KindHeading, ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindListItem:
				buf.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.ListItem:
			buf.WriteString("- ")
		case *ast.FencedCodeBlock:
			for i := 0; i < node.Lines().Len(); i++ {
				line := node.Lines().At(i)
				buf.Write(line.Value(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			for i := 0; i < node.Lines().Len(); i++ {
				line := node.Lines().At(i)
				buf.Write(line.Value(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.ThematicBreak:
			buf.WriteString("---\n\n")
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}

	return collapseBlankRuns(buf.String()), nil
}

// collapseBlankRuns trims trailing whitespace per line and collapses runs of
// three or more newlines down to two, so the walker's per-block separators
// don't pile up into ragged gaps.
func collapseBlankRuns(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	joined := strings.Join(lines, "\n")
	for strings.Contains(joined, "\n\n\n") {
		joined = strings.ReplaceAll(joined, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(joined)
}
