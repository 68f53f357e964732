package main

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"quill/complete"
)

type modMask uint16

const (
	modShift modMask = 1 << iota
	modCtrl
	modAlt
)

type keyCode int

const (
	keyUnknown keyCode = iota
	keyUp
	keyDown
	keyPageUp
	keyPageDown
	keyHome
	keyEnd
	keyEscape
	keyTab
	keyBackspace
	keyDelete
	keyReturn
	keyLeft
	keyRight
	keySpace
	keySlash
	keyA
	keyB
	keyC
	keyD
	keyE
	keyF
	keyG
	keyH
	keyI
	keyJ
	keyK
	keyL
	keyM
	keyN
	keyO
	keyP
	keyQ
	keyR
	keyS
	keyT
	keyU
	keyV
	keyW
	keyX
	keyY
	keyZ
)

type keyEvent struct {
	key  keyCode
	mods modMask
}

const pageLines = 20

func (e keyEvent) ctrl() bool  { return e.mods&modCtrl != 0 }
func (e keyEvent) shift() bool { return e.mods&modShift != 0 }

// handleKeyEvent runs a command key against the editor. It returns false
// when the editor should exit.
func handleKeyEvent(app *appState, e keyEvent) bool {
	if app.cmdPrefixActive {
		app.cmdPrefixActive = false
		return handlePrefixedKey(app, e)
	}

	if app.engine.State() == complete.Suggesting {
		switch e.key {
		case keyUp:
			app.engine.MoveSelection(-1)
			return true
		case keyDown:
			app.engine.MoveSelection(1)
			return true
		case keyReturn, keyTab:
			if cand, ok := app.engine.Accept(app.active()); ok {
				app.lastEvent = fmt.Sprintf("Completed %s", cand)
			} else {
				app.lastEvent = "Completion no longer applies"
			}
			return true
		case keyEscape:
			app.engine.Cancel()
			return true
		}
	}

	if e.ctrl() {
		switch e.key {
		case keyB:
			app.newBuffer()
		case keyO:
			app.startInput(inputOpen, "Open: ", "")
			app.lastEvent = "Open: enter a path, Enter to confirm, Esc to cancel"
		case keyW:
			app.saveCurrent()
		case keyS:
			app.startSaveAs()
		case keyR:
			app.reload()
		case keyQ:
			return app.closeBuffer()
		case keySpace, keyN:
			b := app.active()
			if !app.engine.Trigger(app.snapshot(), b.Caret()) {
				app.lastEvent = "No completions"
			}
		case keyP:
			app.toggleExtension()
		case keyA:
			lineEdge(app.active(), false)
		case keyE:
			lineEdge(app.active(), true)
		case keyC:
			app.active().CopySelection()
			app.lastEvent = "Copied"
		case keyX:
			app.engine.Cancel()
			app.active().Cut()
		case keyV:
			app.engine.Cancel()
			app.active().Paste()
		}
		return true
	}

	b := app.active()
	switch e.key {
	case keyEscape:
		if b.Selection().Active {
			b.SetCaret(b.Caret())
			return true
		}
		app.cmdPrefixActive = true
		app.lastEvent = "Esc-"
	case keyTab:
		if e.shift() {
			app.cycleBuffer(1)
			return true
		}
		insertText(app, "\t")
	case keyReturn:
		insertText(app, "\n")
	case keyBackspace:
		if b.Backspace() {
			app.engine.AfterEdit(app.snapshot(), b.Caret(), "")
		}
	case keyDelete:
		if b.DeleteForward() {
			app.engine.AfterEdit(app.snapshot(), b.Caret(), "")
		}
	case keyLeft:
		app.engine.Cancel()
		b.MoveCaret(-1, e.shift())
	case keyRight:
		app.engine.Cancel()
		b.MoveCaret(1, e.shift())
	case keyUp:
		app.engine.Cancel()
		b.MoveLine(-1, e.shift())
	case keyDown:
		app.engine.Cancel()
		b.MoveLine(1, e.shift())
	case keyPageUp:
		app.engine.Cancel()
		b.MoveLine(-pageLines, e.shift())
	case keyPageDown:
		app.engine.Cancel()
		b.MoveLine(pageLines, e.shift())
	case keyHome:
		app.engine.Cancel()
		lineEdge(b, false)
	case keyEnd:
		app.engine.Cancel()
		lineEdge(b, true)
	}
	return true
}

// handlePrefixedKey runs the key that follows Esc.
func handlePrefixedKey(app *appState, e keyEvent) bool {
	switch {
	case e.key == keyS && e.shift():
		app.saveAll()
	case e.key == keyQ && e.shift():
		app.lastEvent = "Quit"
		return false
	case e.key == keySlash && e.shift():
		app.openHelp()
	case e.key == keyEscape:
		app.lastEvent = ""
	default:
		app.lastEvent = "Unknown Esc command"
	}
	return true
}

func handleTextEvent(app *appState, text string) bool {
	if text == "" || !utf8.ValidString(text) {
		return true
	}
	insertText(app, text)
	return true
}

func insertText(app *appState, text string) {
	b := app.active()
	if b.InsertText(text) {
		app.engine.AfterEdit(app.snapshot(), b.Caret(), text)
	}
}

func handleInputKey(app *appState, e keyEvent) bool {
	switch e.key {
	case keyEscape:
		app.endInput()
		app.lastEvent = "Input cancelled"
	case keyBackspace:
		if rs := []rune(app.inputValue); len(rs) > 0 {
			app.inputValue = string(rs[:len(rs)-1])
		}
	case keyReturn:
		kind, value := app.inputKind, app.inputValue
		app.endInput()
		switch kind {
		case inputSave:
			if err := app.saveAs(value); err != nil {
				app.lastEvent = fmt.Sprintf("SAVE ERR: %v", err)
			}
		case inputOpen:
			if err := app.openPath(value); err != nil {
				app.lastEvent = fmt.Sprintf("OPEN ERR: %v", err)
			}
		}
	}
	return true
}

func handleInputText(app *appState, text string) bool {
	if text != "" && utf8.ValidString(text) {
		app.inputValue += text
	}
	return true
}

func runeToKeyCode(r rune) (keyCode, bool) {
	lr := unicode.ToLower(r)
	switch {
	case lr >= 'a' && lr <= 'z':
		return keyA + keyCode(lr-'a'), true
	case r == '/' || r == '?':
		return keySlash, true
	case r == ' ':
		return keySpace, true
	}
	return keyUnknown, false
}

func inferShiftFromRune(r rune) bool {
	if unicode.IsUpper(r) {
		return true
	}
	switch r {
	case '<', '>', '?', '_', '+':
		return true
	default:
		return false
	}
}
