// Package config defines the broker's flat configuration surface and its
// defaults, mirroring the option table the editor side's variables (or the
// CLI/config-file layer in internal/cliconfig) populate.
package config

import "time"

// SelectionUI selects how multi-result responses (definition, references,
// workspace symbols, ...) are presented to the editor.
type SelectionUI string

const (
	SelectionUIFZF          SelectionUI = "FZF"
	SelectionUIQuickfix     SelectionUI = "Quickfix"
	SelectionUILocationList SelectionUI = "LocationList"
	SelectionUIFuncref      SelectionUI = "Funcref"
)

// TraceLevel controls how much raw JSON-RPC traffic gets logged.
type TraceLevel string

const (
	TraceOff      TraceLevel = "Off"
	TraceMessages TraceLevel = "Messages"
	TraceVerbose  TraceLevel = "Verbose"
)

// DiagnosticsListKind selects where aggregated diagnostics get projected.
type DiagnosticsListKind string

const (
	DiagnosticsListQuickfix  DiagnosticsListKind = "Quickfix"
	DiagnosticsListLocation  DiagnosticsListKind = "Location"
	DiagnosticsListDisabled  DiagnosticsListKind = "Disabled"
)

// HoverPreview controls whether hover opens a preview window.
type HoverPreview string

const (
	HoverPreviewAlways HoverPreview = "Always"
	HoverPreviewNever  HoverPreview = "Never"
	HoverPreviewAuto   HoverPreview = "Auto"
)

// VirtualTextMode selects which categories get virtual-text annotations.
type VirtualTextMode string

const (
	VirtualTextAll         VirtualTextMode = "All"
	VirtualTextNo          VirtualTextMode = "No"
	VirtualTextDiagnostics VirtualTextMode = "Diagnostics"
	VirtualTextCodeLens    VirtualTextMode = "CodeLens"
)

// DiagnosticsDisplayEntry configures one severity's rendering.
type DiagnosticsDisplayEntry struct {
	Name       string
	TextHL     string
	SignText   string
	SignTextHL string
}

// ServerCommand is one entry of the server_commands map: the argv used to
// launch a language server for a given language id, or a "tcp://host:port"
// address to dial instead of spawning.
type ServerCommand struct {
	Command []string
	Env     map[string]string
}

// Config is the broker's full flat configuration, sourced from editor
// variables and layered with a settings file and CLI flags (see
// internal/cliconfig).
type Config struct {
	AutoStart               bool
	ServerCommands          map[string]ServerCommand
	SelectionUI             SelectionUI
	Trace                   TraceLevel
	SettingsPath            []string
	LoadSettings            bool
	RootMarkers             map[string][]string // language id -> marker file/dir names
	ChangeThrottle          time.Duration
	WaitOutputTimeout       time.Duration
	DiagnosticsEnable       bool
	DiagnosticsList         DiagnosticsListKind
	DiagnosticsDisplay      map[int]DiagnosticsDisplayEntry // keyed by LSP DiagnosticSeverity
	DiagnosticsSignsMax     int                             // 0 means unlimited
	DiagnosticsMaxSeverity  int
	DiagnosticsIgnoreSources []string
	DocumentHighlightDisplay map[int]DiagnosticsDisplayEntry
	WindowLogMessageLevel   int
	HoverPreview            HoverPreview
	CompletionPreferTextEdit bool
	ApplyCompletionTextEdits bool
	UseVirtualText          VirtualTextMode
	HideVirtualTextsOnInsert bool
	EchoProjectRoot         bool
	EnableExtensions        []string
	PreferredMarkupKind     string
	CodeLensHighlightGroup  string
	RestartOnCrash          bool
	MaxRestartRetries       int
	SemanticTokenMappings   []SemanticTokenMapping
	SemanticHighlightingEnabled bool
	ServerStderr            string // "" means discard, non-empty is a file path
	LoggingFile             string
	LoggingLevel            string

	// LoadedSettings holds the merged settings_path documents when
	// LoadSettings is enabled, keyed by top-level JSON key; sent on as each
	// server's initializationOptions.
	LoadedSettings map[string]any
}

// SemanticTokenMapping is one user-provided entry of semantic_token_mappings,
// consulted before the built-in defaults per the distilled spec's C9 match
// rule (user mappings first, then defaults).
type SemanticTokenMapping struct {
	Name      string
	Modifiers []string
	Group     string
}

// Default returns the broker's configuration with every documented default
// applied.
func Default() Config {
	return Config{
		AutoStart:      true,
		ServerCommands: make(map[string]ServerCommand),
		SelectionUI:    SelectionUILocationList,
		Trace:          TraceOff,
		SettingsPath:   []string{".vim/settings.json"},
		LoadSettings:   false,
		RootMarkers:    nil,

		ChangeThrottle:    0,
		WaitOutputTimeout: 10 * time.Second,

		DiagnosticsEnable:      true,
		DiagnosticsList:        DiagnosticsListQuickfix,
		DiagnosticsDisplay:     defaultDiagnosticsDisplay(),
		DiagnosticsSignsMax:    0,
		DiagnosticsMaxSeverity: 4, // Hint
		DiagnosticsIgnoreSources: nil,

		DocumentHighlightDisplay: nil,
		WindowLogMessageLevel:    2, // Warning

		HoverPreview:             HoverPreviewAuto,
		CompletionPreferTextEdit: false,
		ApplyCompletionTextEdits: true,
		UseVirtualText:           VirtualTextAll,
		HideVirtualTextsOnInsert: false,

		EchoProjectRoot:        true,
		EnableExtensions:       nil,
		PreferredMarkupKind:    "",
		CodeLensHighlightGroup: "Comment",

		RestartOnCrash:    true,
		MaxRestartRetries: 5,

		SemanticTokenMappings:        nil,
		SemanticHighlightingEnabled:  false,

		ServerStderr: "",
		LoggingFile:  "",
		LoggingLevel: "Warn",
	}
}

func defaultDiagnosticsDisplay() map[int]DiagnosticsDisplayEntry {
	return map[int]DiagnosticsDisplayEntry{
		1: {Name: "Error"},
		2: {Name: "Warning"},
		3: {Name: "Information"},
		4: {Name: "Hint"},
	}
}
