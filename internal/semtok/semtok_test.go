package semtok

import "testing"

func TestDecodeChainedDeltas(t *testing.T) {
	legend := Legend{
		TokenTypes:     []string{"namespace", "function", "variable"},
		TokenModifiers: []string{"declaration", "readonly"},
	}

	// Token 1: line 0, start 5, length 3, type "function", modifier "declaration".
	// Token 2: same line (deltaLine 0), start += 4, length 2, type "variable", no modifiers.
	data := []uint32{
		0, 5, 3, 1, 0b01,
		0, 4, 2, 2, 0,
	}

	tokens := Decode(data, legend)
	if len(tokens) != 2 {
		t.Fatalf("Decode() returned %d tokens, want 2", len(tokens))
	}

	if tokens[0].Line != 0 || tokens[0].Start != 5 || tokens[0].Type != "function" {
		t.Errorf("token 0 = %+v, want line 0 start 5 type function", tokens[0])
	}
	if len(tokens[0].Modifiers) != 1 || tokens[0].Modifiers[0] != "declaration" {
		t.Errorf("token 0 modifiers = %v, want [declaration]", tokens[0].Modifiers)
	}

	if tokens[1].Line != 0 || tokens[1].Start != 9 || tokens[1].Type != "variable" {
		t.Errorf("token 1 = %+v, want line 0 start 9 type variable", tokens[1])
	}
	if len(tokens[1].Modifiers) != 0 {
		t.Errorf("token 1 modifiers = %v, want none", tokens[1].Modifiers)
	}
}

func TestDecodeNewLineResetsStart(t *testing.T) {
	legend := Legend{TokenTypes: []string{"keyword"}}
	data := []uint32{
		0, 0, 3, 0, 0,
		2, 4, 5, 0, 0, // new line: start resets to deltaStart, not cumulative
	}
	tokens := Decode(data, legend)
	if tokens[1].Line != 2 || tokens[1].Start != 4 {
		t.Errorf("token 1 = %+v, want line 2 start 4", tokens[1])
	}
}

func TestResolveMatchesExactModifierSet(t *testing.T) {
	tokens := []Token{
		{Line: 0, Start: 0, Length: 4, Type: "variable", Modifiers: []string{"readonly"}},
		{Line: 0, Start: 5, Length: 3, Type: "variable", Modifiers: nil},
	}
	mappings := []Mapping{
		{Name: "variable", Modifiers: []string{"readonly"}, Group: "Constant"},
		{Name: "variable", Modifiers: nil, Group: "Identifier"},
	}
	lineText := func(int) string { return "abcd x   " }

	spans := Resolve(tokens, lineText, mappings)
	if len(spans) != 2 {
		t.Fatalf("Resolve() returned %d spans, want 2", len(spans))
	}
	if spans[0].Group != "Constant" {
		t.Errorf("span 0 group = %q, want Constant", spans[0].Group)
	}
	if spans[1].Group != "Identifier" {
		t.Errorf("span 1 group = %q, want Identifier", spans[1].Group)
	}
}

func TestResolveDropsUnmatchedTokens(t *testing.T) {
	tokens := []Token{{Line: 0, Start: 0, Length: 2, Type: "comment", Modifiers: nil}}
	spans := Resolve(tokens, func(int) string { return "// x" }, nil)
	if len(spans) != 0 {
		t.Errorf("Resolve() with no mappings returned %d spans, want 0", len(spans))
	}
}

func TestUTF16OffsetToByteHandlesMultiByteRunes(t *testing.T) {
	text := "café bar" // "café bar", é is 2 bytes in UTF-8, 1 UTF-16 unit
	got := utf16OffsetToByte(text, 4)
	want := 5 // byte offset right after é (3 ascii bytes + 2-byte é)
	if got != want {
		t.Errorf("utf16OffsetToByte() = %d, want %d", got, want)
	}
}
