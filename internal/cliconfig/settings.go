package cliconfig

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// LoadSettings reads each settings_path file that exists (later paths take
// precedence) and merges them into one JSON document, top-level key by
// top-level key, so a later file overrides individual keys from an earlier
// one without the whole document replacing it. A nested object under a key
// that a later file sets is replaced whole, not merged.
func LoadSettings(paths []string) (map[string]any, error) {
	merged := "{}"

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("cliconfig: read settings file %s: %w", path, err)
		}

		merged, err = mergeSettingsJSON(merged, string(data))
		if err != nil {
			return nil, fmt.Errorf("cliconfig: merge settings file %s: %w", path, err)
		}
	}

	var result map[string]any
	if err := jsonUnmarshalTolerant(merged, &result); err != nil {
		return nil, fmt.Errorf("cliconfig: decode merged settings: %w", err)
	}
	return result, nil
}

// mergeSettingsJSON overlays every top-level key of overlay onto base using
// sjson.SetRaw, so later-loaded files win per key while untouched keys from
// base survive — a plain json.Unmarshal-then-reassemble would lose base's
// key ordering and any keys overlay doesn't mention would need re-copying
// by hand; sjson does the positional merge directly on the raw text.
func mergeSettingsJSON(base, overlay string) (string, error) {
	parsedOverlay := gjson.Parse(overlay)
	if !parsedOverlay.IsObject() {
		return "", fmt.Errorf("settings file does not contain a JSON object")
	}

	result := base
	var mergeErr error
	parsedOverlay.ForEach(func(key, value gjson.Result) bool {
		result, mergeErr = sjson.SetRaw(result, key.String(), value.Raw)
		return mergeErr == nil
	})
	if mergeErr != nil {
		return "", mergeErr
	}
	return result, nil
}

// jsonUnmarshalTolerant decodes data into v, treating an empty document as
// an empty object rather than an error.
func jsonUnmarshalTolerant(data string, v *map[string]any) error {
	if data == "" {
		*v = map[string]any{}
		return nil
	}
	parsed := gjson.Parse(data)
	result := make(map[string]any, len(parsed.Map()))
	for k, val := range parsed.Map() {
		result[k] = val.Value()
	}
	*v = result
	return nil
}
