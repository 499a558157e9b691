// Package cliconfig binds cobra flags and a viper-loaded config file onto
// internal/config.Config, and layers editor settings files on top via
// LoadSettings.
package cliconfig

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lspbroker/lspbroker/internal/config"
)

// BindFlags registers the broker's persistent flags on cmd and binds each
// one into v, matching the config file option names so a flag, an env var,
// or a config file key can all set the same value.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()

	flags.Bool("stdio", true, "use stdio transport for the editor peer")
	flags.String("listen", "", "TCP address to accept the editor peer connection on, instead of stdio")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	flags.String("log-file", "", "write logs to this file instead of stderr")
	flags.String("config", "", "path to a broker config file (YAML or JSON)")
	flags.StringSlice("settings-path", []string{".vim/settings.json"}, "settings files to layer onto initializationOptions, in priority order")
	flags.Bool("load-settings", false, "load and merge settings_path files")
	flags.Bool("restart-on-crash", true, "restart a language server automatically after it crashes")
	flags.Int("max-restart-retries", 5, "maximum automatic restarts before giving up on a crashed server")
	flags.Duration("wait-output-timeout", 10*time.Second, "how long to wait for a server reply before treating it as timed out")

	_ = v.BindPFlag("stdio", flags.Lookup("stdio"))
	_ = v.BindPFlag("listen", flags.Lookup("listen"))
	_ = v.BindPFlag("logLevel", flags.Lookup("log-level"))
	_ = v.BindPFlag("logFile", flags.Lookup("log-file"))
	_ = v.BindPFlag("configFile", flags.Lookup("config"))
	_ = v.BindPFlag("settingsPath", flags.Lookup("settings-path"))
	_ = v.BindPFlag("loadSettings", flags.Lookup("load-settings"))
	_ = v.BindPFlag("restartOnCrash", flags.Lookup("restart-on-crash"))
	_ = v.BindPFlag("maxRestartRetries", flags.Lookup("max-restart-retries"))
	_ = v.BindPFlag("waitOutputTimeout", flags.Lookup("wait-output-timeout"))

	v.SetEnvPrefix("LSPBROKER")
	v.AutomaticEnv()
}

// Load reads the bound viper config (flags + env + config file, in viper's
// usual precedence order) into a config.Config seeded with defaults, then
// layers any settings_path files on top when load-settings is set.
func Load(v *viper.Viper) (config.Config, error) {
	cfg := config.Default()

	if cfgFile := v.GetString("configFile"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	}

	if v.IsSet("logLevel") {
		cfg.LoggingLevel = v.GetString("logLevel")
	}
	if v.IsSet("logFile") {
		cfg.LoggingFile = v.GetString("logFile")
	}
	if v.IsSet("restartOnCrash") {
		cfg.RestartOnCrash = v.GetBool("restartOnCrash")
	}
	if v.IsSet("maxRestartRetries") {
		cfg.MaxRestartRetries = v.GetInt("maxRestartRetries")
	}
	if v.IsSet("waitOutputTimeout") {
		cfg.WaitOutputTimeout = v.GetDuration("waitOutputTimeout")
	}
	if v.IsSet("settingsPath") {
		cfg.SettingsPath = v.GetStringSlice("settingsPath")
	}
	if v.IsSet("loadSettings") {
		cfg.LoadSettings = v.GetBool("loadSettings")
	}

	if cfg.LoadSettings {
		paths := make([]string, len(cfg.SettingsPath))
		for i, p := range cfg.SettingsPath {
			abs, err := filepath.Abs(p)
			if err != nil {
				abs = p
			}
			paths[i] = abs
		}
		settings, err := LoadSettings(paths)
		if err != nil {
			return cfg, err
		}
		cfg.LoadedSettings = settings
	}

	return cfg, nil
}
