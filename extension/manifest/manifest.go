// Package manifest installs providers described by YAML files on disk.
//
// A manifest looks like:
//
//	name: Rust Words
//	version: 0.3.0
//	description: Keywords and snippets for Rust
//	files: [".rs"]
//	keywords: [fn, let, match]
//	completions: [println!, format!, Vec::new]
//	theme:
//	  foreground: "#d8d8d8"
//	  background: "#1d1f21"
//	  tokens:
//	    keyword: "#b294bb"
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
	"pkt.systems/pslog"

	"quill/editor"
	"quill/extension"
)

const (
	// keywordPriority ranks below tree-sitter nodes and above chroma lexing.
	keywordPriority = 30
	defaultVersion  = "0.0.0"
)

var ErrInvalidManifest = errors.New("invalid extension manifest")

// Manifest is the on-disk description of an installed provider.
type Manifest struct {
	Name        string     `yaml:"name"`
	Version     string     `yaml:"version"`
	Description string     `yaml:"description"`
	Files       []string   `yaml:"files"`
	Keywords    []string   `yaml:"keywords"`
	Completions []string   `yaml:"completions"`
	Theme       *ThemeSpec `yaml:"theme"`
}

type ThemeSpec struct {
	Foreground string            `yaml:"foreground"`
	Background string            `yaml:"background"`
	Tokens     map[string]string `yaml:"tokens"`
}

// Parse decodes and validates one manifest. Unknown keys are rejected so a
// typo does not silently drop a section.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return Manifest{}, fmt.Errorf("%w: name is required", ErrInvalidManifest)
	}
	if m.Version == "" {
		m.Version = defaultVersion
	}
	return m, nil
}

// Provider is a manifest turned into an extension. It completes from its word
// list, highlights its keywords and, when the manifest has a theme, themes.
type Provider struct {
	m     Manifest
	theme *extension.Theme
	words map[string]bool
}

// New validates the theme colours and builds the provider.
func New(m Manifest) (*Provider, error) {
	p := &Provider{m: m, words: map[string]bool{}}
	for _, w := range m.Keywords {
		p.words[w] = true
	}
	if m.Theme != nil {
		th, err := buildTheme(m.Name, *m.Theme)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, m.Name, err)
		}
		p.theme = &th
	}
	return p, nil
}

func buildTheme(name string, spec ThemeSpec) (extension.Theme, error) {
	th := extension.Theme{Name: name, Tokens: map[extension.Token]extension.Color{}}
	var err error
	if th.Foreground, err = extension.ParseColor(spec.Foreground); err != nil {
		return th, fmt.Errorf("foreground: %w", err)
	}
	if th.Background, err = extension.ParseColor(spec.Background); err != nil {
		return th, fmt.Errorf("background: %w", err)
	}
	for key, val := range spec.Tokens {
		tok, ok := extension.ParseToken(key)
		if !ok {
			return th, fmt.Errorf("unknown token %q", key)
		}
		c, err := extension.ParseColor(val)
		if err != nil {
			return th, fmt.Errorf("token %s: %w", key, err)
		}
		th.Tokens[tok] = c
	}
	return th, nil
}

func (p *Provider) Name() string    { return p.m.Name }
func (p *Provider) Version() string { return p.m.Version }
func (p *Provider) Description() string {
	if p.m.Description == "" {
		return "Installed from a manifest"
	}
	return p.m.Description
}

func (p *Provider) Manifest() Manifest { return p.m }

func (p *Provider) applies(path string) bool {
	if len(p.m.Files) == 0 {
		return true
	}
	lower := strings.ToLower(path)
	for _, suffix := range p.m.Files {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

func (p *Provider) Theme() (extension.Theme, bool) {
	if p.theme == nil {
		return extension.Theme{}, false
	}
	return *p.theme, true
}

// Completions offers completion and keyword entries that extend the prefix
// before cursor.
func (p *Provider) Completions(snap extension.Snapshot, cursor int) []string {
	if !p.applies(snap.Path) {
		return nil
	}
	text := []rune(snap.Text)
	cursor = max(0, min(cursor, len(text)))
	prefix := string(text[editor.PrefixStart(text, cursor):cursor])
	if prefix == "" {
		return nil
	}
	var out []string
	for _, list := range [][]string{p.m.Completions, p.m.Keywords} {
		for _, w := range list {
			if strings.HasPrefix(w, prefix) && w != prefix && !slices.Contains(out, w) {
				out = append(out, w)
			}
		}
	}
	return out
}

// Highlight paints whole-word keyword matches.
func (p *Provider) Highlight(snap extension.Snapshot, painter extension.Painter) {
	if len(p.words) == 0 || !p.applies(snap.Path) {
		return
	}
	for ln, line := range strings.Split(snap.Text, "\n") {
		rs := []rune(line)
		for i := 0; i < len(rs); {
			if !isWordRune(rs[i]) {
				i++
				continue
			}
			j := i
			for j < len(rs) && isWordRune(rs[j]) {
				j++
			}
			if p.words[string(rs[i:j])] {
				painter.Paint(extension.Span{Line: ln, Start: i, End: j, Token: extension.Keyword, Priority: keywordPriority})
			}
			i = j
		}
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Loader installs every *.yaml or *.yml manifest in a directory.
type Loader struct {
	Registry *extension.Registry
	// Disabled names providers that are registered but start disabled.
	Disabled []string
	Logger   pslog.Logger
}

// Install reads one manifest file and registers it. It returns the new
// registry index.
func (l *Loader) Install(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return -1, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return -1, fmt.Errorf("%s: %w", path, err)
	}
	p, err := New(m)
	if err != nil {
		return -1, fmt.Errorf("%s: %w", path, err)
	}
	idx := l.Registry.Register(p)
	if slices.Contains(l.Disabled, m.Name) {
		l.Registry.SetEnabled(idx, false)
	}
	return idx, nil
}

// LoadDir installs the manifests in dir in file-name order. A missing
// directory installs nothing. A bad manifest is logged and skipped; the
// errors are joined into the returned error.
func (l *Loader) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read extensions dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var errs []error
	installed := 0
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := l.Install(path); err != nil {
			if l.Logger != nil {
				l.Logger.Warn("extension load failed", "path", path, "err", err)
			}
			errs = append(errs, err)
			continue
		}
		installed++
	}
	if l.Logger != nil && installed > 0 {
		l.Logger.Info("extensions loaded", "dir", dir, "count", installed)
	}
	return installed, errors.Join(errs...)
}
