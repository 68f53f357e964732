package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want, _ := DefaultConfig()
	if diff := cmp.Diff(want, cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.AutoSave.Interval() != 30*time.Second || cfg.LSP.Timeout() != 600*time.Millisecond {
		t.Fatalf("durations: %v %v", cfg.AutoSave.Interval(), cfg.LSP.Timeout())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
auto_save:
  interval_seconds: 5
  failure_policy: retry
completion:
  min_prefix: 3
theme:
  style: github
extensions:
  dir: /opt/quill/ext
  disabled: [Rust Words]
lsp:
  enabled: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.AutoSave.Enabled {
		t.Fatalf("auto_save.enabled default lost")
	}
	if cfg.AutoSave.IntervalSeconds != 5 || cfg.AutoSave.FailurePolicy != "retry" {
		t.Fatalf("auto_save = %+v", cfg.AutoSave)
	}
	if cfg.Completion.MinPrefix != 3 || cfg.Theme.Style != "github" {
		t.Fatalf("completion=%+v theme=%+v", cfg.Completion, cfg.Theme)
	}
	if cfg.Extensions.Dir != "/opt/quill/ext" {
		t.Fatalf("extensions.dir = %q", cfg.Extensions.Dir)
	}
	if diff := cmp.Diff([]string{"Rust Words"}, cfg.Extensions.Disabled); diff != "" {
		t.Fatalf("disabled mismatch (-want +got):\n%s", diff)
	}
	if cfg.LSP.Enabled || cfg.LSP.Command != "gopls" {
		t.Fatalf("lsp = %+v", cfg.LSP)
	}
	if cfg.Editor.TabWidth != 4 {
		t.Fatalf("tab width = %d", cfg.Editor.TabWidth)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
theme:
  style: monokai
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version") {
		t.Fatalf("err = %v, want config_version error", err)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, "config_version: 99")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadValidates(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"policy", "config_version: 1\nauto_save:\n  failure_policy: sometimes", "failure_policy"},
		{"interval", "config_version: 1\nauto_save:\n  interval_seconds: 0", "interval_seconds"},
		{"min prefix", "config_version: 1\ncompletion:\n  min_prefix: 0", "min_prefix"},
		{"tab width", "config_version: 1\neditor:\n  tab_width: 0", "tab_width"},
		{"lsp command", "config_version: 1\nlsp:\n  command: ''", "lsp.command"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "config_version: [1")
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed yaml accepted")
	}
}

func TestLoadExpandsHomeInExtensionsDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfig(t, "config_version: 1\nextensions:\n  dir: ~/quill-ext")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Extensions.Dir != filepath.Join(home, "quill-ext") {
		t.Fatalf("dir = %q", cfg.Extensions.Dir)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
}

func TestWriteDefaultLoadsBack(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want, _ := DefaultConfig()
	if diff := cmp.Diff(want, cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultConfigPathUsesConfigHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	got, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath: %v", err)
	}
	if got != filepath.Join(home, "quill", "config.yaml") {
		t.Fatalf("path = %q", got)
	}
}
