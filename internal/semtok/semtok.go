// Package semtok decodes LSP semantic token streams into absolute
// highlight spans and maps them to editor highlight groups through a
// configurable type/modifier mapping list.
package semtok

import (
	"github.com/rivo/uniseg"
)

// Legend is the SemanticTokensLegend a server advertises at initialize
// time: the ordered vocabulary its token type and modifier indices index
// into.
type Legend struct {
	TokenTypes     []string
	TokenModifiers []string
}

// Token is one decoded, absolute-positioned semantic token.
type Token struct {
	Line      int // 0-based
	Start     int // 0-based UTF-16 code unit offset within Line
	Length    int // UTF-16 code units
	Type      string
	Modifiers []string
}

// Mapping associates a token's (type name, modifier set) with an editor
// highlight group. A mapping matches a token iff Name equals the token's
// type name and Modifiers, as a set, equals the token's modifier set
// exactly — not a subset.
type Mapping struct {
	Name      string
	Modifiers []string
	Group     string
}

// Decode expands a flat delta-encoded data array (five integers per token:
// deltaLine, deltaStart, length, typeIndex, modifierBitset) into absolute
// Tokens. A token's absolute line is the running sum of deltaLine values up
// to and including it; its absolute start is deltaStart when deltaLine is
// nonzero, otherwise the previous token's start plus deltaStart, chained
// across however many consecutive zero-deltaLine tokens follow.
func Decode(data []uint32, legend Legend) []Token {
	tokens := make([]Token, 0, len(data)/5)

	var line, start int
	for i := 0; i+4 < len(data); i += 5 {
		deltaLine := int(data[i])
		deltaStart := int(data[i+1])
		length := int(data[i+2])
		typeIdx := int(data[i+3])
		modBits := data[i+4]

		if deltaLine != 0 {
			line += deltaLine
			start = deltaStart
		} else {
			start += deltaStart
		}

		tokens = append(tokens, Token{
			Line:      line,
			Start:     start,
			Length:    length,
			Type:      typeName(legend.TokenTypes, typeIdx),
			Modifiers: decodeModifiers(legend.TokenModifiers, modBits),
		})
	}

	return tokens
}

func typeName(types []string, idx int) string {
	if idx < 0 || idx >= len(types) {
		return ""
	}
	return types[idx]
}

func decodeModifiers(modifiers []string, bits uint32) []string {
	var out []string
	for k, name := range modifiers {
		if bits&(1<<uint(k)) != 0 {
			out = append(out, name)
		}
	}
	return out
}

// HighlightSpan is one token resolved to an editor highlight group, with
// its end column computed by walking Length UTF-16 code units forward
// through the token's source line, grapheme-cluster-aware so a span never
// splits a combining character sequence or wide glyph in two.
type HighlightSpan struct {
	Line        int
	StartColumn int // 0-based byte column into the source line
	EndColumn   int
	Group       string
}

// Resolve matches each token against mappings (checked in order — callers
// pass user-provided mappings before defaults, so a user override always
// wins) and, for every match, computes its byte-column span within
// lineText using grapheme-cluster-aware UTF-16-to-byte conversion. Tokens
// with no matching mapping are dropped, not emitted as unstyled spans.
func Resolve(tokens []Token, lineText func(line int) string, mappings []Mapping) []HighlightSpan {
	var spans []HighlightSpan
	for _, tok := range tokens {
		mapping, ok := matchMapping(tok, mappings)
		if !ok {
			continue
		}
		text := lineText(tok.Line)
		startByte := utf16OffsetToByte(text, tok.Start)
		endByte := utf16OffsetToByte(text, tok.Start+tok.Length)
		spans = append(spans, HighlightSpan{
			Line:        tok.Line,
			StartColumn: startByte,
			EndColumn:   endByte,
			Group:       mapping.Group,
		})
	}
	return spans
}

func matchMapping(tok Token, mappings []Mapping) (Mapping, bool) {
	for _, m := range mappings {
		if m.Name != tok.Type {
			continue
		}
		if modifierSetEqual(m.Modifiers, tok.Modifiers) {
			return m, true
		}
	}
	return Mapping{}, false
}

func modifierSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, m := range a {
		seen[m] = true
	}
	for _, m := range b {
		if !seen[m] {
			return false
		}
	}
	return true
}

// utf16OffsetToByte walks text one grapheme cluster at a time, accumulating
// UTF-16 code units per cluster, and returns the byte offset at which
// utf16Offset code units have been consumed. Using grapheme clusters rather
// than raw runes keeps a combining-mark sequence or surrogate-pair emoji
// from being split between two highlight spans.
func utf16OffsetToByte(text string, utf16Offset int) int {
	if utf16Offset <= 0 {
		return 0
	}

	gr := uniseg.NewGraphemes(text)
	var byteOffset, units int
	for gr.Next() {
		if units >= utf16Offset {
			break
		}
		runes := gr.Runes()
		for _, r := range runes {
			units += utf16Width(r)
		}
		from, to := gr.Positions()
		_ = from
		byteOffset = to
	}
	return byteOffset
}

// utf16Width reports how many UTF-16 code units r occupies: 2 for
// characters outside the basic multilingual plane (encoded as a surrogate
// pair), 1 otherwise.
func utf16Width(r rune) int {
	if r > 0xFFFF {
		return 2
	}
	return 1
}
