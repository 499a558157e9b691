package lsp

import (
	"fmt"
	"sort"

	"github.com/google/go-cmp/cmp"
)

// Sign is one line-anchored gutter marker, keyed so repeated projections of
// the same diagnostic set produce a stable identifier.
type Sign struct {
	ID       int
	Filename string
	Line     int
	Severity DiagnosticSeverity
}

// Highlight is a range-anchored overlay span, used both for per-diagnostic
// highlighting and for semantic token rendering.
type Highlight struct {
	Filename string
	Range    Range
	Group    string
}

// VirtualText is a single end-of-line annotation.
type VirtualText struct {
	Filename string
	Line     int
	Text     string
	Group    string
}

// QuickfixEntry is one row of the aggregated quickfix/location list.
type QuickfixEntry struct {
	Filename string
	Line     int
	Column   int
	Severity DiagnosticSeverity
	Message  string
}

// Overlay is the full derived projection for one file: the pure function of
// its diagnostic set plus display config that the pipeline rebuilds on every
// publish and diffs against the previous projection.
type Overlay struct {
	Filename     string
	Signs        []Sign
	Highlights   []Highlight
	VirtualTexts []VirtualText
}

// OverlayDelta is the minimal set of editor commands needed to move the
// editor's placed overlay from Previous to Current.
type OverlayDelta struct {
	Filename        string
	AddSigns        []Sign
	RemoveSigns     []Sign
	AddHighlights   []Highlight
	RemoveHighlights []Highlight
	AddVirtualTexts []VirtualText
	RemoveVirtualTexts []VirtualText
}

// IsEmpty reports whether the delta has nothing to apply, the case that
// makes overlay projection idempotent on repeated identical publishes.
func (d OverlayDelta) IsEmpty() bool {
	return len(d.AddSigns) == 0 && len(d.RemoveSigns) == 0 &&
		len(d.AddHighlights) == 0 && len(d.RemoveHighlights) == 0 &&
		len(d.AddVirtualTexts) == 0 && len(d.RemoveVirtualTexts) == 0
}

// DisplayConfig maps severities to the sign/highlight groups and text used to
// render them, mirroring the diagnostics_display option table.
type DisplayConfig struct {
	Name        map[DiagnosticSeverity]string
	TextHL      map[DiagnosticSeverity]string
	SignText    map[DiagnosticSeverity]string
	SignTextHL  map[DiagnosticSeverity]string
	MaxSeverity DiagnosticSeverity
	MaxSigns    int // 0 means unlimited
	UseVirtualText bool
}

// DefaultDisplayConfig mirrors the teacher-observed default severity names.
func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		Name: map[DiagnosticSeverity]string{
			DiagnosticSeverityError:       "Error",
			DiagnosticSeverityWarning:     "Warning",
			DiagnosticSeverityInformation: "Information",
			DiagnosticSeverityHint:        "Hint",
		},
		MaxSeverity:    DiagnosticSeverityHint,
		UseVirtualText: true,
	}
}

// BuildOverlay derives the full overlay for one file from its current
// diagnostic set, keeping at most one sign per line (the highest-severity
// diagnostic wins) and bounding distinct sign placements by cfg.MaxSigns
// when set.
func BuildOverlay(filename string, diagnostics []Diagnostic, cfg DisplayConfig) Overlay {
	bestPerLine := make(map[int]Diagnostic)
	for _, d := range diagnostics {
		if d.Severity > cfg.MaxSeverity {
			continue
		}
		line := d.Range.Start.Line
		existing, ok := bestPerLine[line]
		if !ok || d.Severity < existing.Severity {
			bestPerLine[line] = d
		}
	}

	lines := make([]int, 0, len(bestPerLine))
	for line := range bestPerLine {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	if cfg.MaxSigns > 0 && len(lines) > cfg.MaxSigns {
		lines = lines[:cfg.MaxSigns]
	}

	overlay := Overlay{Filename: filename}
	for _, line := range lines {
		d := bestPerLine[line]
		overlay.Signs = append(overlay.Signs, Sign{
			ID:       signID(line, d.Severity),
			Filename: filename,
			Line:     line,
			Severity: d.Severity,
		})
	}

	for _, d := range diagnostics {
		if d.Severity > cfg.MaxSeverity {
			continue
		}
		overlay.Highlights = append(overlay.Highlights, Highlight{
			Filename: filename,
			Range:    d.Range,
			Group:    cfg.Name[d.Severity],
		})
		if cfg.UseVirtualText {
			overlay.VirtualTexts = append(overlay.VirtualTexts, VirtualText{
				Filename: filename,
				Line:     d.Range.Start.Line,
				Text:     d.Message,
				Group:    cfg.Name[d.Severity],
			})
		}
	}

	return overlay
}

// signBase offsets every sign id away from 0 so ids stay positive and don't
// collide with other editor-assigned sign ids in the low range.
const signBase = 1000

// severityCardinality is the number of distinct DiagnosticSeverity values;
// it is the stride signID uses to pack (line, severity) into one id.
const severityCardinality = 4

// signID derives a stable sign identifier as a pure function of (line,
// severity): base + line*cardinality + rank. Two publishes of the same
// diagnostic at the same line and severity always produce the same id, so
// repeated projections of an unchanged diagnostic set are a no-op diff.
func signID(line int, severity DiagnosticSeverity) int {
	rank := int(severity) - 1
	if rank < 0 {
		rank = 0
	}
	return signBase + line*severityCardinality + rank
}

// DiffOverlay computes the minimal add/remove command set to move from prev
// to next. Equal elements (by value) are left untouched; only the symmetric
// difference is returned.
func DiffOverlay(prev, next Overlay) OverlayDelta {
	delta := OverlayDelta{Filename: next.Filename}
	delta.AddSigns, delta.RemoveSigns = diffSlice(prev.Signs, next.Signs)
	delta.AddHighlights, delta.RemoveHighlights = diffSlice(prev.Highlights, next.Highlights)
	delta.AddVirtualTexts, delta.RemoveVirtualTexts = diffSlice(prev.VirtualTexts, next.VirtualTexts)
	return delta
}

// diffSlice returns the elements present only in b (to add) and only in a
// (to remove), using cmp.Equal for value comparison so struct fields are
// compared structurally rather than by pointer identity.
func diffSlice[T any](a, b []T) (added, removed []T) {
	used := make([]bool, len(a))
	for _, item := range b {
		found := false
		for i, other := range a {
			if used[i] {
				continue
			}
			if cmp.Equal(item, other) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			added = append(added, item)
		}
	}
	for i, item := range a {
		if !used[i] {
			removed = append(removed, item)
		}
	}
	return added, removed
}

// BuildQuickfix flattens all tracked diagnostics across files into a single
// deterministically ordered list, sorted by filename then line.
func BuildQuickfix(all map[string][]Diagnostic) []QuickfixEntry {
	var entries []QuickfixEntry
	for filename, diags := range all {
		for _, d := range diags {
			entries = append(entries, QuickfixEntry{
				Filename: filename,
				Line:     d.Range.Start.Line,
				Column:   d.Range.Start.Character,
				Severity: d.Severity,
				Message:  d.Message,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Filename != entries[j].Filename {
			return entries[i].Filename < entries[j].Filename
		}
		if entries[i].Line != entries[j].Line {
			return entries[i].Line < entries[j].Line
		}
		return entries[i].Column < entries[j].Column
	})
	return entries
}

// FormatQuickfixEntry renders one quickfix row the way the editor's
// selection UI expects it, e.g. "path/to/file.go:12:4: unused variable x".
func FormatQuickfixEntry(e QuickfixEntry) string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Filename, e.Line+1, e.Column+1, e.Message)
}
