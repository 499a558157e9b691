package lsp

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// ConfigurationParams is the workspace/configuration request's params, sent
// by the language server asking the client to resolve one or more
// configuration sections.
type ConfigurationParams struct {
	Items []ConfigurationItem `json:"items"`
}

// ConfigurationItem identifies one configuration section to resolve,
// optionally scoped to a workspace folder URI.
type ConfigurationItem struct {
	ScopeURI string `json:"scopeUri,omitempty"`
	Section  string `json:"section,omitempty"`
}

// ResolveConfiguration answers a workspace/configuration request by walking
// each item's section path (components separated by "." or "/") against
// settings, the JSON-marshalable tree the caller passes in; an empty section
// resolves to the whole tree. A section with
// no match resolves to nil, matching the protocol's "not found" convention,
// rather than failing the whole request.
func ResolveConfiguration(settings any, params ConfigurationParams) ([]any, error) {
	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	doc := gjson.ParseBytes(raw)

	results := make([]any, len(params.Items))
	for i, item := range params.Items {
		if item.Section == "" {
			results[i] = jsonAny(doc)
			continue
		}
		path := sectionToGJSONPath(item.Section)
		result := doc.Get(path)
		if !result.Exists() {
			results[i] = nil
			continue
		}
		results[i] = jsonAny(result)
	}
	return results, nil
}

// sectionToGJSONPath converts a configuration section such as
// "gopls/staticcheck" or "gopls.staticcheck" into a gjson path by turning
// every "/" into gjson's "." separator. Other characters gjson treats
// specially are not escaped.
func sectionToGJSONPath(section string) string {
	return strings.ReplaceAll(section, "/", ".")
}

// jsonAny decodes a gjson.Result back into a plain any (map/slice/scalar)
// via its raw JSON, so callers get ordinary Go values instead of gjson's
// own Result type leaking into the response payload.
func jsonAny(result gjson.Result) any {
	var v any
	if err := json.Unmarshal([]byte(result.Raw), &v); err != nil {
		return result.Value()
	}
	return v
}
