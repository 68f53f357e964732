package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"pkt.systems/pslog"

	"quill/complete"
	"quill/config"
	"quill/editor"
	"quill/extension"
)

const (
	gutterWidth  = 5
	tickInterval = time.Second
	popupRows    = 8
)

func runTUI(ctx context.Context, cfg config.Config, files []string, noLSP bool) error {
	logger := pslog.Ctx(ctx)
	app, err := newApp(appOptions{cfg: cfg, log: logger, noLSP: noLSP})
	if err != nil {
		return err
	}
	defer app.close()
	loadStartupFiles(app, files)

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()
	logger.Info("editor started", "buffers", app.store.Len(), "extensions", app.registry.Len())

	// Interrupts wake the loop so the auto-save check runs while idle.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		t := time.NewTicker(tickInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_ = screen.PostEvent(tcell.NewEventInterrupt(nil))
			}
		}
	}()

	for {
		app.autoSaveTick()
		drawTUI(screen, app)
		ev := screen.PollEvent()
		switch e := ev.(type) {
		case nil:
			return nil
		case *tcell.EventResize:
			screen.Sync()
		case *tcell.EventKey:
			if !handleTUIKey(app, e) {
				logger.Info("editor stopped", "unsaved", app.store.ModifiedCount())
				return nil
			}
		case *tcell.EventInterrupt:
		}
	}
}

func handleTUIKey(app *appState, ev *tcell.EventKey) bool {
	if app == nil || ev == nil {
		return true
	}
	mods := tcellToMods(ev.Modifiers())

	// After Esc the next key is a command, never text.
	if app.cmdPrefixActive && ev.Key() == tcell.KeyRune {
		if k, ok := runeToKeyCode(ev.Rune()); ok {
			keyMods := mods
			if inferShiftFromRune(ev.Rune()) {
				keyMods |= modShift
			}
			return dispatchTUIKeyEvent(app, keyEvent{key: k, mods: keyMods})
		}
		return dispatchTUIKeyEvent(app, keyEvent{key: keyUnknown, mods: mods})
	}

	if ev.Key() == tcell.KeyRune && (ev.Modifiers()&tcell.ModCtrl) == 0 {
		return dispatchTUIText(app, string(ev.Rune()))
	}
	if ev.Key() == tcell.KeyRune {
		if k, ok := runeToKeyCode(ev.Rune()); ok {
			return dispatchTUIKeyEvent(app, keyEvent{key: k, mods: mods | modCtrl})
		}
		return true
	}

	if k, ok := tcellKeyToKeyCode(ev); ok {
		keyMods := mods
		if isCtrlKey(ev.Key()) {
			keyMods |= modCtrl
		}
		if ev.Key() == tcell.KeyBacktab {
			keyMods |= modShift
		}
		return dispatchTUIKeyEvent(app, keyEvent{key: k, mods: keyMods})
	}
	return true
}

func dispatchTUIKeyEvent(app *appState, e keyEvent) bool {
	if app.inputActive {
		return handleInputKey(app, e)
	}
	return handleKeyEvent(app, e)
}

func dispatchTUIText(app *appState, text string) bool {
	if app.inputActive {
		return handleInputText(app, text)
	}
	return handleTextEvent(app, text)
}

func tcellToMods(m tcell.ModMask) modMask {
	var out modMask
	if (m & tcell.ModShift) != 0 {
		out |= modShift
	}
	if (m & tcell.ModCtrl) != 0 {
		out |= modCtrl
	}
	if (m & tcell.ModAlt) != 0 {
		out |= modAlt
	}
	return out
}

func isCtrlKey(k tcell.Key) bool {
	switch k {
	case tcell.KeyCtrlSpace, tcell.KeyCtrlA, tcell.KeyCtrlB, tcell.KeyCtrlC,
		tcell.KeyCtrlE, tcell.KeyCtrlN, tcell.KeyCtrlO, tcell.KeyCtrlP,
		tcell.KeyCtrlQ, tcell.KeyCtrlR, tcell.KeyCtrlS, tcell.KeyCtrlV,
		tcell.KeyCtrlW, tcell.KeyCtrlX:
		return true
	}
	return false
}

func tcellKeyToKeyCode(ev *tcell.EventKey) (keyCode, bool) {
	switch ev.Key() {
	case tcell.KeyUp:
		return keyUp, true
	case tcell.KeyDown:
		return keyDown, true
	case tcell.KeyPgUp:
		return keyPageUp, true
	case tcell.KeyPgDn:
		return keyPageDown, true
	case tcell.KeyHome:
		return keyHome, true
	case tcell.KeyEnd:
		return keyEnd, true
	case tcell.KeyEscape:
		return keyEscape, true
	case tcell.KeyTAB, tcell.KeyBacktab:
		return keyTab, true
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return keyBackspace, true
	case tcell.KeyDelete:
		return keyDelete, true
	case tcell.KeyEnter:
		return keyReturn, true
	case tcell.KeyLeft:
		return keyLeft, true
	case tcell.KeyRight:
		return keyRight, true
	case tcell.KeyCtrlSpace:
		return keySpace, true
	case tcell.KeyCtrlA:
		return keyA, true
	case tcell.KeyCtrlB:
		return keyB, true
	case tcell.KeyCtrlC:
		return keyC, true
	case tcell.KeyCtrlE:
		return keyE, true
	case tcell.KeyCtrlN:
		return keyN, true
	case tcell.KeyCtrlO:
		return keyO, true
	case tcell.KeyCtrlP:
		return keyP, true
	case tcell.KeyCtrlQ:
		return keyQ, true
	case tcell.KeyCtrlR:
		return keyR, true
	case tcell.KeyCtrlS:
		return keyS, true
	case tcell.KeyCtrlV:
		return keyV, true
	case tcell.KeyCtrlW:
		return keyW, true
	case tcell.KeyCtrlX:
		return keyX, true
	}
	return keyUnknown, false
}

// palette is the set of screen styles derived from the active theme.
type palette struct {
	base    tcell.Style
	gutter  tcell.Style
	errMark tcell.Style
	status  tcell.Style
	input   tcell.Style
	popup   tcell.Style
	popupHi tcell.Style
	tokens  map[extension.Token]tcell.Style
}

func tcellColor(c extension.Color) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

func paletteFor(reg *extension.Registry) palette {
	th, ok := reg.ActiveTheme()
	if !ok {
		base := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
		return palette{
			base:    base,
			gutter:  base.Foreground(tcell.ColorDarkCyan),
			errMark: base.Foreground(tcell.ColorRed),
			status:  tcell.StyleDefault.Background(tcell.ColorDarkSlateBlue).Foreground(tcell.ColorWhite),
			input:   base.Foreground(tcell.ColorGray),
			popup:   tcell.StyleDefault.Background(tcell.ColorDarkSlateGray).Foreground(tcell.ColorWhite),
			popupHi: tcell.StyleDefault.Background(tcell.ColorLightCyan).Foreground(tcell.ColorBlack),
		}
	}
	fg, bg := tcellColor(th.Foreground), tcellColor(th.Background)
	base := tcell.StyleDefault.Background(bg).Foreground(fg)
	p := palette{
		base:    base,
		gutter:  base.Foreground(tcellColor(th.TokenColor(extension.Comment))),
		errMark: base.Foreground(tcell.ColorRed).Bold(true),
		status:  tcell.StyleDefault.Background(fg).Foreground(bg),
		input:   base.Foreground(tcellColor(th.TokenColor(extension.Comment))),
		popup:   tcell.StyleDefault.Background(tcellColor(th.TokenColor(extension.Comment))).Foreground(bg),
		popupHi: tcell.StyleDefault.Background(tcellColor(th.TokenColor(extension.Keyword))).Foreground(bg),
		tokens:  map[extension.Token]tcell.Style{},
	}
	for tok, c := range th.Tokens {
		p.tokens[tok] = base.Foreground(tcellColor(c))
	}
	return p
}

func (p palette) forToken(tok extension.Token) tcell.Style {
	if st, ok := p.tokens[tok]; ok {
		return st
	}
	return p.base
}

func drawTUI(s tcell.Screen, app *appState) {
	w, h := s.Size()
	if app == nil || w < 10 || h < 4 {
		s.Clear()
		s.Show()
		return
	}

	pal := paletteFor(app.registry)
	rd := renderData(app)
	b := app.active()
	contentH := h - 2
	cLine, cCol := editor.LineColForPos(rd.lines, b.Caret())
	ensureCaretVisible(app, cLine, len(rd.lines), contentH)
	startLine := app.scrollLine

	for row := 0; row < contentH; row++ {
		ln := startLine + row
		fillRow(s, row, w, pal.base)
		if ln >= len(rd.lines) {
			continue
		}
		gutter := pal.gutter
		if rd.errLines[ln] {
			gutter = pal.errMark
		}
		drawCellText(s, 0, row, fmt.Sprintf("%4d ", ln+1), gutter)
		drawStyledLine(s, gutterWidth, row, w, rd.lines[ln], rd.grid.Row(ln), pal, app.tabWidth)
	}

	status := fmt.Sprintf("%s | lang=%s", bufferLabel(app), rd.langMode)
	if b.IsModified() {
		status += " | *unsaved*"
	}
	if app.lastEvent != "" {
		status += " | " + app.lastEvent
	}
	drawCellText(s, 0, h-2, padRight(status, w), pal.status)

	input := "Ctrl+O open | Ctrl+W save | Ctrl+Space complete | Esc ? help"
	if app.inputActive {
		input = app.inputPrompt + app.inputValue
	}
	drawCellText(s, 0, h-1, padRight(input, w), pal.input)

	caretY := cLine - startLine
	caretX := gutterWidth + visualColForRuneCol(rd.lines[cLine], cCol, app.tabWidth)
	if app.engine.State() == complete.Suggesting {
		drawCompletionPopup(s, app, pal, caretX, caretY, w, contentH)
	}
	if app.inputActive {
		s.ShowCursor(runewidth.StringWidth(app.inputPrompt+app.inputValue), h-1)
	} else if caretY >= 0 && caretY < contentH && caretX < w {
		s.ShowCursor(caretX, caretY)
	} else {
		s.HideCursor()
	}
	s.Show()
}

func renderData(app *appState) renderCache {
	b := app.active()
	if app.render.buf == b && app.render.rev == b.Rev() && app.render.path == b.Path() &&
		app.render.regRev == app.regRev && len(app.render.lines) > 0 {
		return app.render
	}
	lines := editor.SplitLines(b.Runes())
	snap := app.snapshot()
	grid := extension.NewStyleGrid(lines)
	app.registry.Highlight(snap, grid)

	errLines := map[int]bool{}
	if i, ok := app.registry.IndexOf(app.syntax.Name()); ok && app.registry.Enabled(i) {
		for _, ln := range app.syntax.ErrorLines(snap) {
			errLines[ln] = true
		}
	}
	app.render = renderCache{
		buf:      b,
		rev:      b.Rev(),
		path:     b.Path(),
		regRev:   app.regRev,
		lines:    lines,
		grid:     grid,
		errLines: errLines,
		langMode: strings.ToLower(syntaxKind(b).String()),
	}
	return app.render
}

func drawStyledLine(s tcell.Screen, x, y, w int, line string, toks []extension.Token, pal palette, tabWidth int) {
	visual := 0
	for i, r := range []rune(line) {
		st := pal.base
		if i < len(toks) {
			st = pal.forToken(toks[i])
		}
		if r == '\t' {
			next := ((visual / tabWidth) + 1) * tabWidth
			for ; visual < next; visual++ {
				if x+visual < w {
					s.SetContent(x+visual, y, ' ', nil, st)
				}
			}
			continue
		}
		cw := cellWidth(r)
		if x+visual+cw > w {
			return
		}
		s.SetContent(x+visual, y, r, nil, st)
		visual += cw
	}
}

func drawCompletionPopup(s tcell.Screen, app *appState, pal palette, caretX, caretY, w, contentH int) {
	cands := app.engine.Candidates()
	sel := app.engine.Selected()
	rows := min(len(cands), popupRows)
	first := 0
	if sel >= rows {
		first = sel - rows + 1
	}
	boxW := 0
	for _, c := range cands[first : first+rows] {
		boxW = max(boxW, runewidth.StringWidth(c))
	}
	boxW = min(boxW+2, w)

	y := caretY + 1
	if y+rows > contentH {
		y = max(0, caretY-rows)
	}
	x := max(0, min(caretX, w-boxW))
	for i := range rows {
		st := pal.popup
		if first+i == sel {
			st = pal.popupHi
		}
		drawCellText(s, x, y+i, padRight(" "+cands[first+i], boxW), st)
	}
}

func drawCellText(s tcell.Screen, x, y int, text string, st tcell.Style) {
	for _, r := range text {
		w := cellWidth(r)
		if w <= 0 {
			continue
		}
		s.SetContent(x, y, r, nil, st)
		x += w
	}
}

func cellWidth(r rune) int {
	if r == 0 {
		return 0
	}
	return max(runewidth.RuneWidth(r), 1)
}

func fillRow(s tcell.Screen, y, w int, st tcell.Style) {
	for x := range w {
		s.SetContent(x, y, ' ', nil, st)
	}
}

// padRight pads or truncates s to exactly w cells.
func padRight(s string, w int) string {
	sw := runewidth.StringWidth(s)
	if sw > w {
		return runewidth.Truncate(s, w, "")
	}
	return s + strings.Repeat(" ", w-sw)
}
