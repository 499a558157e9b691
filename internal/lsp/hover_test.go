package lsp

import (
	"strings"
	"testing"
)

func TestRenderHoverContents_PlainText(t *testing.T) {
	got, err := RenderHoverContents(MarkupContent{Kind: MarkupKindPlainText, Value: "  just text  "})
	if err != nil {
		t.Fatalf("RenderHoverContents() error = %v", err)
	}
	if got != "just text" {
		t.Errorf("RenderHoverContents() = %q, want %q", got, "just text")
	}
}

func TestRenderHoverContents_Markdown(t *testing.T) {
	got, err := RenderHoverContents(MarkupContent{
		Kind:  MarkupKindMarkdown,
		Value: "```go\nfunc Foo()\n```\n\nDoes a thing.",
	})
	if err != nil {
		t.Fatalf("RenderHoverContents() error = %v", err)
	}
	if !strings.Contains(got, "func Foo()") {
		t.Errorf("expected code block text preserved, got %q", got)
	}
	if !strings.Contains(got, "Does a thing.") {
		t.Errorf("expected paragraph text preserved, got %q", got)
	}
	if strings.Contains(got, "```") {
		t.Errorf("expected fence markers stripped, got %q", got)
	}
}

func TestMarkdownToPlainText_CollapsesBlankRuns(t *testing.T) {
	got, err := MarkdownToPlainText("one\n\n\n\n\ntwo")
	if err != nil {
		t.Fatalf("MarkdownToPlainText() error = %v", err)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("expected blank run collapsed to at most two newlines, got %q", got)
	}
}

func TestMarkdownToPlainText_ThematicBreak(t *testing.T) {
	got, err := MarkdownToPlainText("above\n\n---\n\nbelow")
	if err != nil {
		t.Fatalf("MarkdownToPlainText() error = %v", err)
	}
	if !strings.Contains(got, "---") {
		t.Errorf("expected thematic break rendered, got %q", got)
	}
}
