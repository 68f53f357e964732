package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"

	"quill/complete"
	"quill/config"
	"quill/editor"
	"quill/extension"
	"quill/extension/lspclient"
	"quill/extension/manifest"
	"quill/extension/syntax"
	"quill/extension/theme"
	"quill/internal/fsys"
	"quill/persist"
	"quill/session"
)

type memoryClipboard struct {
	mu   sync.Mutex
	text string
}

func (m *memoryClipboard) GetText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

func (m *memoryClipboard) SetText(text string) error {
	m.mu.Lock()
	m.text = text
	m.mu.Unlock()
	return nil
}

const (
	inputOpen = "open"
	inputSave = "save"
)

type renderCache struct {
	buf      *session.TextBuffer
	rev      int
	path     string
	regRev   int
	lines    []string
	grid     *extension.StyleGrid
	errLines map[int]bool
	langMode string
}

type appState struct {
	store     *session.Store
	saver     *persist.Controller
	registry  *extension.Registry
	syntax    *syntax.Highlighter
	lsp       *lspclient.Provider
	engine    *complete.Engine
	clipboard *memoryClipboard
	log       pslog.Logger
	now       func() time.Time
	tabWidth  int

	lastEvent       string
	inputActive     bool
	inputPrompt     string
	inputValue      string
	inputKind       string
	openRoot        string
	cmdPrefixActive bool
	scrollLine      int
	// regRev changes whenever providers are toggled so cached highlighting
	// is recomputed.
	regRev int
	render renderCache
}

type appOptions struct {
	cfg   config.Config
	fs    fsys.FS
	log   pslog.Logger
	noLSP bool
	root  string
	now   func() time.Time
}

func newApp(opts appOptions) (*appState, error) {
	cfg := opts.cfg
	if opts.root == "" {
		if cwd, err := os.Getwd(); err == nil {
			opts.root = cwd
		}
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.fs == nil {
		opts.fs = fsys.OS{}
	}
	th, err := theme.New(cfg.Theme.Style)
	if err != nil {
		return nil, err
	}
	policy, ok := persist.ParsePolicy(cfg.AutoSave.FailurePolicy)
	if !ok {
		return nil, fmt.Errorf("unknown auto-save failure policy %q", cfg.AutoSave.FailurePolicy)
	}

	clip := &memoryClipboard{}
	app := &appState{
		clipboard: clip,
		log:       opts.log,
		now:       opts.now,
		tabWidth:  max(cfg.Editor.TabWidth, 1),
		openRoot:  opts.root,
		syntax:    syntax.New(),
	}
	app.store = session.NewStore(
		session.WithFS(opts.fs),
		session.WithClipboard(clip),
		session.WithLogger(opts.log),
	)
	app.saver = persist.New(persist.Options{
		FS:       opts.fs,
		AutoSave: cfg.AutoSave.Enabled,
		Interval: cfg.AutoSave.Interval(),
		Policy:   policy,
		Logger:   opts.log,
		Now:      opts.now,
	})
	app.registry = extension.NewRegistry([]extension.Provider{app.syntax, th}, extension.WithLogger(opts.log))

	if cfg.LSP.Enabled && !opts.noLSP {
		app.lsp = lspclient.New(lspclient.Options{
			Command: cfg.LSP.Command,
			Args:    cfg.LSP.Args,
			Timeout: cfg.LSP.Timeout(),
			RootDir: opts.root,
			Logger:  opts.log,
		})
		i := app.registry.Register(app.lsp)
		if slices.Contains(cfg.Extensions.Disabled, app.lsp.Name()) {
			app.registry.SetEnabled(i, false)
		}
	}
	loader := &manifest.Loader{Registry: app.registry, Disabled: cfg.Extensions.Disabled, Logger: opts.log}
	if _, err := loader.LoadDir(cfg.Extensions.Dir); err != nil {
		app.lastEvent = fmt.Sprintf("EXT ERR: %v", err)
	}

	app.engine = complete.New(complete.Options{
		Source:    app.registry,
		MinPrefix: cfg.Completion.MinPrefix,
		Logger:    opts.log,
	})
	return app, nil
}

func (app *appState) close() {
	if app.lsp != nil {
		_ = app.lsp.Close()
	}
}

func (app *appState) active() *session.TextBuffer { return app.store.Active() }

func (app *appState) snapshot() extension.Snapshot {
	b := app.active()
	return extension.Snapshot{Path: b.Path(), Text: b.Content()}
}

func syntaxKind(b *session.TextBuffer) syntax.Kind {
	return syntax.Detect(b.Path(), b.Content())
}

func (app *appState) newBuffer() {
	app.engine.Cancel()
	app.store.OpenUntitled()
	app.scrollLine = 0
	app.lastEvent = fmt.Sprintf("New buffer %d/%d", app.store.ActiveIndex()+1, app.store.Len())
}

func (app *appState) cycleBuffer(delta int) {
	app.engine.Cancel()
	app.store.Cycle(delta)
	app.scrollLine = 0
	app.lastEvent = fmt.Sprintf("Switched to buffer %d/%d", app.store.ActiveIndex()+1, app.store.Len())
}

// closeBuffer closes the active buffer. It reports false when the last
// buffer was closed and the editor should exit.
func (app *appState) closeBuffer() bool {
	app.engine.Cancel()
	if app.store.Len() == 1 {
		app.lastEvent = "Closed last buffer, quitting"
		return false
	}
	app.store.CloseActive()
	app.scrollLine = 0
	app.lastEvent = fmt.Sprintf("Closed buffer, now %d/%d", app.store.ActiveIndex()+1, app.store.Len())
	return true
}

func (app *appState) resolvePath(name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	root := app.openRoot
	if root == "" {
		if cwd, err := os.Getwd(); err == nil {
			root = cwd
		}
	}
	return filepath.Join(root, name)
}

func (app *appState) openPath(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("filename required")
	}
	app.engine.Cancel()
	b, err := app.store.OpenPath(app.resolvePath(name))
	if err != nil {
		return err
	}
	app.scrollLine = 0
	app.lastEvent = fmt.Sprintf("Opened %s", b.Path())
	return nil
}

func (app *appState) saveCurrent() {
	err := app.saver.SaveActive(app.store)
	switch {
	case errors.Is(err, persist.ErrNeedsDestination):
		app.startSaveAs()
	case err != nil:
		app.lastEvent = fmt.Sprintf("SAVE ERR: %v", err)
	default:
		app.lastEvent = fmt.Sprintf("Saved %s", app.active().Path())
	}
}

func (app *appState) startSaveAs() {
	app.startInput(inputSave, "Save as: ", app.active().Path())
	app.lastEvent = "Save: enter filename in input line, Enter to confirm, Esc to cancel"
}

func (app *appState) saveAs(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("filename required")
	}
	path := app.resolvePath(name)
	if err := app.saver.SaveAs(app.store, path); err != nil {
		return err
	}
	app.lastEvent = fmt.Sprintf("Saved %s", path)
	return nil
}

func (app *appState) saveAll() {
	n, err := app.saver.SaveAll(app.store)
	switch {
	case err != nil:
		app.lastEvent = fmt.Sprintf("SAVE ALL ERR: %v", err)
	case n == 0:
		app.lastEvent = "No dirty buffers to save"
	default:
		app.lastEvent = fmt.Sprintf("Saved %d buffers", n)
	}
}

func (app *appState) reload() {
	app.engine.Cancel()
	if err := app.store.ReloadActive(); err != nil {
		app.lastEvent = fmt.Sprintf("RELOAD ERR: %v", err)
		return
	}
	app.lastEvent = fmt.Sprintf("Reloaded %s", app.active().Path())
}

// toggleExtension flips the first provider that is not built in.
func (app *appState) toggleExtension() {
	i := app.registry.Builtins()
	p, ok := app.registry.Provider(i)
	if !ok {
		app.lastEvent = "No installed extensions"
		return
	}
	enabled := !app.registry.Enabled(i)
	app.registry.SetEnabled(i, enabled)
	app.regRev++
	app.engine.Cancel()
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	app.lastEvent = fmt.Sprintf("%s %s", p.Name(), state)
}

func (app *appState) openHelp() {
	app.engine.Cancel()
	b := app.store.OpenUntitled()
	b.SetContent(helpText())
	b.SetCaret(0)
	app.scrollLine = 0
	app.lastEvent = "Opened shortcuts buffer"
}

// autoSaveTick runs the auto-save check; it is called once per redraw.
func (app *appState) autoSaveTick() {
	res := app.saver.AutoSaveTick(app.store, app.saver.Interval(), app.now())
	switch res.Outcome {
	case persist.Saved:
		app.lastEvent = fmt.Sprintf("Auto-saved %s", res.Path)
	case persist.Failed:
		app.lastEvent = fmt.Sprintf("AUTO-SAVE ERR: %v", res.Err)
	}
}

func (app *appState) startInput(kind, prompt, value string) {
	app.engine.Cancel()
	app.inputActive = true
	app.inputKind = kind
	app.inputPrompt = prompt
	app.inputValue = value
}

func (app *appState) endInput() {
	app.inputActive = false
	app.inputKind = ""
	app.inputPrompt = ""
	app.inputValue = ""
}

// loadStartupFiles opens the files named on the command line. Names that do
// not exist yet become empty buffers bound to the path. The initial untitled
// buffer is dropped once any file was opened.
func loadStartupFiles(app *appState, args []string) {
	if app == nil || len(args) == 0 {
		return
	}
	placeholder := app.active()
	opened := 0
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			app.lastEvent = fmt.Sprintf("OPEN ERR: %v", err)
			continue
		}
		app.openRoot = filepath.Dir(abs)
		if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
			app.store.OpenPending(abs)
			app.lastEvent = fmt.Sprintf("Buffer for %s (file will be created on save)", abs)
			opened++
			continue
		}
		if _, err := app.store.OpenPath(abs); err != nil {
			app.lastEvent = fmt.Sprintf("OPEN ERR: %v", err)
			continue
		}
		app.lastEvent = fmt.Sprintf("Opened %s", abs)
		opened++
	}
	if opened == 0 || !placeholder.IsUntitled() || placeholder.IsModified() {
		return
	}
	last := app.store.ActiveIndex()
	if err := app.store.SetActive(0); err != nil || app.store.Active() != placeholder {
		_ = app.store.SetActive(last)
		return
	}
	app.store.CloseActive()
	_ = app.store.SetActive(last - 1)
}

func filterArgsToFiles(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		info, err := os.Stat(a)
		if err == nil {
			if info.Mode().IsRegular() {
				out = append(out, a)
			}
			continue
		}
		if errors.Is(err, os.ErrNotExist) {
			out = append(out, a)
		}
	}
	return out
}

func bufferLabel(app *appState) string {
	if app == nil || app.store == nil {
		return "buf ?"
	}
	return fmt.Sprintf("buf %d/%d [%s]", app.store.ActiveIndex()+1, app.store.Len(), app.active().DisplayTitle())
}

type helpEntry struct {
	action string
	keys   string
}

var helpEntries = []helpEntry{
	{"New buffer / cycle buffers", "Ctrl+B / Shift+Tab"},
	{"Open file", "Ctrl+O, then type a path"},
	{"Save current / save as", "Ctrl+W / Ctrl+S"},
	{"Save all", "Esc then Shift+S"},
	{"Reload from disk", "Ctrl+R"},
	{"Close buffer / quit", "Ctrl+Q / Esc then Shift+Q"},
	{"Complete", "Ctrl+Space or Ctrl+N; Up/Down choose, Enter or Tab accept, Esc dismiss"},
	{"Toggle first installed extension", "Ctrl+P"},
	{"Copy / Cut / Paste", "Ctrl+C / Ctrl+X / Ctrl+V"},
	{"Line start / end", "Ctrl+A / Ctrl+E, Home / End"},
	{"Navigation", "Arrows, PageUp/Down (Shift = select)"},
	{"Help buffer", "Esc then ?"},
}

func helpText() string {
	var sb strings.Builder
	sb.WriteString("Shortcuts\n\n")
	for _, h := range helpEntries {
		sb.WriteString(h.action)
		sb.WriteString(": ")
		sb.WriteString(h.keys)
		sb.WriteString("\n")
	}
	return sb.String()
}

func ensureCaretVisible(app *appState, caretLine, totalLines, visibleLines int) {
	if app == nil {
		return
	}
	caretLine = max(caretLine, 0)
	totalLines = max(totalLines, 0)
	visibleLines = max(visibleLines, 1)
	maxStart := max(0, totalLines-visibleLines)
	if caretLine < app.scrollLine {
		app.scrollLine = caretLine
	} else if caretLine >= app.scrollLine+visibleLines {
		app.scrollLine = caretLine - visibleLines + 1
	}
	app.scrollLine = clamp(app.scrollLine, 0, maxStart)
}

// lineEdge moves the caret to the start or end of its line.
func lineEdge(b *session.TextBuffer, end bool) {
	lines := editor.SplitLines(b.Runes())
	ln, _ := editor.LineColForPos(lines, b.Caret())
	col := 0
	if end && ln < len(lines) {
		col = len([]rune(lines[ln]))
	}
	b.SetCaret(editor.PosForLineCol(lines, ln, col))
}

func visualColForRuneCol(line string, runeCol, width int) int {
	if width <= 0 {
		return runeCol
	}
	col := 0
	vis := 0
	for _, r := range line {
		if col >= runeCol {
			break
		}
		if r == '\t' {
			vis = ((vis / width) + 1) * width
		} else {
			vis += cellWidth(r)
		}
		col++
	}
	return vis
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
