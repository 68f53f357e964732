// Package config loads the editor's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"quill/complete"
	"quill/extension/lspclient"
	"quill/extension/theme"
	"quill/persist"
)

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Config is the top-level configuration.
type Config struct {
	ConfigVersion int              `mapstructure:"config_version" yaml:"config_version"`
	AutoSave      AutoSaveConfig   `mapstructure:"auto_save" yaml:"auto_save"`
	Completion    CompletionConfig `mapstructure:"completion" yaml:"completion"`
	Theme         ThemeConfig      `mapstructure:"theme" yaml:"theme"`
	Extensions    ExtensionsConfig `mapstructure:"extensions" yaml:"extensions"`
	LSP           LSPConfig        `mapstructure:"lsp" yaml:"lsp"`
	Editor        EditorConfig     `mapstructure:"editor" yaml:"editor"`
}

type AutoSaveConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	IntervalSeconds int    `mapstructure:"interval_seconds" yaml:"interval_seconds"`
	FailurePolicy   string `mapstructure:"failure_policy" yaml:"failure_policy"`
}

// Interval is IntervalSeconds as a duration.
func (c AutoSaveConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

type CompletionConfig struct {
	MinPrefix int `mapstructure:"min_prefix" yaml:"min_prefix"`
}

type ThemeConfig struct {
	Style string `mapstructure:"style" yaml:"style"`
}

// ExtensionsConfig points at the manifest directory. Disabled lists provider
// names that are installed but start switched off.
type ExtensionsConfig struct {
	Dir      string   `mapstructure:"dir" yaml:"dir"`
	Disabled []string `mapstructure:"disabled" yaml:"disabled"`
}

type LSPConfig struct {
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
	Command   string   `mapstructure:"command" yaml:"command"`
	Args      []string `mapstructure:"args" yaml:"args"`
	TimeoutMS int      `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

func (c LSPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

type EditorConfig struct {
	TabWidth int `mapstructure:"tab_width" yaml:"tab_width"`
}

// DefaultConfigPath is quill/config.yaml under the user config directory.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "quill", "config.yaml"), nil
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() (Config, error) {
	extDir := ""
	if dir, err := os.UserConfigDir(); err == nil {
		extDir = filepath.Join(dir, "quill", "extensions")
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		AutoSave: AutoSaveConfig{
			Enabled:         true,
			IntervalSeconds: int(persist.DefaultInterval / time.Second),
			FailurePolicy:   persist.ResetOnFailure.String(),
		},
		Completion: CompletionConfig{MinPrefix: complete.DefaultMinPrefix},
		Theme:      ThemeConfig{Style: theme.DefaultStyle},
		Extensions: ExtensionsConfig{Dir: extDir, Disabled: []string{}},
		LSP: LSPConfig{
			Enabled:   true,
			Command:   lspclient.DefaultCommand,
			Args:      []string{},
			TimeoutMS: int(lspclient.DefaultTimeout / time.Millisecond),
		},
		Editor: EditorConfig{TabWidth: 4},
	}, nil
}

// Load reads configuration from path, or DefaultConfigPath when path is
// empty. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("auto_save.enabled", cfg.AutoSave.Enabled)
	v.SetDefault("auto_save.interval_seconds", cfg.AutoSave.IntervalSeconds)
	v.SetDefault("auto_save.failure_policy", cfg.AutoSave.FailurePolicy)
	v.SetDefault("completion.min_prefix", cfg.Completion.MinPrefix)
	v.SetDefault("theme.style", cfg.Theme.Style)
	v.SetDefault("extensions.dir", cfg.Extensions.Dir)
	v.SetDefault("extensions.disabled", cfg.Extensions.Disabled)
	v.SetDefault("lsp.enabled", cfg.LSP.Enabled)
	v.SetDefault("lsp.command", cfg.LSP.Command)
	v.SetDefault("lsp.args", cfg.LSP.Args)
	v.SetDefault("lsp.timeout_ms", cfg.LSP.TimeoutMS)
	v.SetDefault("editor.tab_width", cfg.Editor.TabWidth)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Extensions.Dir = expandHome(cfg.Extensions.Dir)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.AutoSave.IntervalSeconds <= 0 {
		return fmt.Errorf("auto_save.interval_seconds must be positive")
	}
	if _, ok := persist.ParsePolicy(cfg.AutoSave.FailurePolicy); !ok {
		return fmt.Errorf("auto_save.failure_policy must be reset or retry, got %q", cfg.AutoSave.FailurePolicy)
	}
	if cfg.Completion.MinPrefix < 1 {
		return fmt.Errorf("completion.min_prefix must be at least 1")
	}
	if cfg.Editor.TabWidth < 1 {
		return fmt.Errorf("editor.tab_width must be at least 1")
	}
	if cfg.LSP.TimeoutMS <= 0 {
		return fmt.Errorf("lsp.timeout_ms must be positive")
	}
	if strings.TrimSpace(cfg.LSP.Command) == "" && cfg.LSP.Enabled {
		return fmt.Errorf("lsp.command is required when lsp.enabled is true")
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// WriteDefault writes the default config to path and returns where it went.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
