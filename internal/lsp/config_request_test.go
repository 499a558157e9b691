package lsp

import (
	"reflect"
	"testing"
)

func TestResolveConfiguration_Section(t *testing.T) {
	settings := map[string]any{
		"gopls": map[string]any{
			"staticcheck": true,
		},
	}
	params := ConfigurationParams{Items: []ConfigurationItem{{Section: "gopls.staticcheck"}}}

	got, err := ResolveConfiguration(settings, params)
	if err != nil {
		t.Fatalf("ResolveConfiguration() error = %v", err)
	}
	if len(got) != 1 || got[0] != true {
		t.Errorf("ResolveConfiguration() = %+v, want [true]", got)
	}
}

func TestResolveConfiguration_MissingSection(t *testing.T) {
	settings := map[string]any{"gopls": map[string]any{}}
	params := ConfigurationParams{Items: []ConfigurationItem{{Section: "gopls.nonexistent"}}}

	got, err := ResolveConfiguration(settings, params)
	if err != nil {
		t.Fatalf("ResolveConfiguration() error = %v", err)
	}
	if len(got) != 1 || got[0] != nil {
		t.Errorf("ResolveConfiguration() = %+v, want [nil]", got)
	}
}

func TestResolveConfiguration_EmptySectionReturnsWholeTree(t *testing.T) {
	settings := map[string]any{"foo": "bar"}
	params := ConfigurationParams{Items: []ConfigurationItem{{Section: ""}}}

	got, err := ResolveConfiguration(settings, params)
	if err != nil {
		t.Fatalf("ResolveConfiguration() error = %v", err)
	}
	want := map[string]any{"foo": "bar"}
	if !reflect.DeepEqual(got[0], want) {
		t.Errorf("ResolveConfiguration() = %+v, want %+v", got[0], want)
	}
}

func TestResolveConfiguration_MultipleItems(t *testing.T) {
	settings := map[string]any{"a": 1, "b": 2}
	params := ConfigurationParams{Items: []ConfigurationItem{{Section: "a"}, {Section: "b"}}}

	got, err := ResolveConfiguration(settings, params)
	if err != nil {
		t.Fatalf("ResolveConfiguration() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0] != float64(1) || got[1] != float64(2) {
		t.Errorf("ResolveConfiguration() = %+v", got)
	}
}
