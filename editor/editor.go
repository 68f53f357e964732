package editor

import "unicode"

// Core editing logic. This package is UI-agnostic to keep logic testable.

type Sel struct {
	Active bool
	A      int // inclusive
	B      int // exclusive-ish in rendering; we normalise anyway
}

func (s Sel) Normalised() (int, int) {
	if !s.Active {
		return 0, 0
	}
	if s.A <= s.B {
		return s.A, s.B
	}
	return s.B, s.A
}

// Clipboard abstracts clipboard operations for testability.
type Clipboard interface {
	GetText() (string, error)
	SetText(string) error
}

type Editor struct {
	Caret int
	Sel   Sel

	buf  gapBuffer
	clip Clipboard
}

func NewEditor(initial string) *Editor {
	return &Editor{buf: newGapBuffer([]rune(initial))}
}

func (e *Editor) SetClipboard(c Clipboard) {
	e.clip = c
}

// Runes returns a copy of the document.
func (e *Editor) Runes() []rune {
	return e.buf.Runes()
}

func (e *Editor) String() string {
	return string(e.buf.Runes())
}

func (e *Editor) RuneLen() int {
	return e.buf.Len()
}

// SetRunes replaces the whole document. Caret and selection are clamped.
func (e *Editor) SetRunes(rs []rune) {
	e.buf.Set(rs)
	e.Caret = clamp(e.Caret, 0, e.buf.Len())
	e.Sel = Sel{}
}

// ======================
// Editing + selection
// ======================

// InsertText inserts at the caret, replacing an active selection. It reports
// whether the document changed.
func (e *Editor) InsertText(text string) bool {
	changed := false
	if e.Sel.Active {
		changed = e.deleteSelection()
	}
	rs := []rune(text)
	if len(rs) == 0 {
		return changed
	}
	e.Caret = clamp(e.Caret, 0, e.buf.Len())
	e.buf.Insert(e.Caret, rs)
	e.Caret += len(rs)
	return true
}

// BackspaceOrDeleteSelection removes the selection, or one rune before
// (backspace) or after the caret. It reports whether the document changed.
func (e *Editor) BackspaceOrDeleteSelection(isBackspace bool) bool {
	if e.Sel.Active {
		return e.deleteSelection()
	}
	if e.buf.Len() == 0 {
		return false
	}
	if isBackspace {
		if e.Caret <= 0 {
			return false
		}
		e.buf.Delete(e.Caret-1, e.Caret)
		e.Caret--
		return true
	}
	if e.Caret >= e.buf.Len() {
		return false
	}
	e.buf.Delete(e.Caret, e.Caret+1)
	return true
}

// Replace splices text into [a, b). The caret lands after the inserted text.
// Out-of-range spans are rejected without touching the document.
func (e *Editor) Replace(a, b int, text string) bool {
	if a < 0 || b < a || b > e.buf.Len() {
		return false
	}
	rs := []rune(text)
	e.buf.Delete(a, b)
	e.buf.Insert(a, rs)
	e.Caret = a + len(rs)
	e.Sel = Sel{}
	return true
}

func (e *Editor) deleteSelection() bool {
	a, b := e.Sel.Normalised()
	a = clamp(a, 0, e.buf.Len())
	b = clamp(b, 0, e.buf.Len())
	e.Sel.Active = false
	if a == b {
		return false
	}
	e.buf.Delete(a, b)
	e.Caret = a
	return true
}

func (e *Editor) MoveCaret(delta int, extendSelection bool) {
	e.moveTo(clamp(e.Caret+delta, 0, e.buf.Len()), extendSelection)
}

// MoveLine moves the caret delta lines up or down, keeping the column when
// the target line is long enough.
func (e *Editor) MoveLine(delta int, extendSelection bool) {
	lines := SplitLines(e.buf.Runes())
	ln, col := LineColForPos(lines, e.Caret)
	target := clamp(ln+delta, 0, len(lines)-1)
	e.moveTo(PosForLineCol(lines, target, col), extendSelection)
}

func (e *Editor) moveTo(pos int, extendSelection bool) {
	if extendSelection {
		if !e.Sel.Active {
			e.Sel.Active = true
			e.Sel.A = e.Caret
		}
		e.Sel.B = pos
	} else {
		e.Sel.Active = false
	}
	e.Caret = pos
}

func (e *Editor) CopySelection() {
	if !e.Sel.Active || e.clip == nil {
		return
	}
	a, b := e.Sel.Normalised()
	if a == b {
		return
	}
	_ = e.clip.SetText(string(e.buf.Slice(a, b)))
}

func (e *Editor) CutSelection() bool {
	if !e.Sel.Active || e.clip == nil {
		return false
	}
	e.CopySelection()
	return e.deleteSelection()
}

func (e *Editor) PasteClipboard() bool {
	if e.clip == nil {
		return false
	}
	txt, err := e.clip.GetText()
	if err != nil || txt == "" {
		return false
	}
	return e.InsertText(txt)
}

// ======================
// Line/col mapping
// ======================

func SplitLines(buf []rune) []string {
	lines := make([]string, 0, 64)
	var cur []rune
	for _, r := range buf {
		if r == '\n' {
			lines = append(lines, string(cur))
			cur = cur[:0]
			continue
		}
		cur = append(cur, r)
	}
	lines = append(lines, string(cur))
	return lines
}

// Convert a buffer position to (line, col) assuming lines from SplitLines.
func LineColForPos(lines []string, pos int) (int, int) {
	if pos <= 0 {
		return 0, 0
	}
	p := 0
	for i, line := range lines {
		l := len([]rune(line))
		if pos <= p+l {
			return i, pos - p
		}
		p += l + 1
	}
	if len(lines) == 0 {
		return 0, 0
	}
	last := len(lines) - 1
	return last, len([]rune(lines[last]))
}

// PosForLineCol is the inverse of LineColForPos; col is clamped to the line.
func PosForLineCol(lines []string, line, col int) int {
	if len(lines) == 0 {
		return 0
	}
	line = clamp(line, 0, len(lines)-1)
	p := 0
	for i := 0; i < line; i++ {
		p += len([]rune(lines[i])) + 1
	}
	return p + clamp(col, 0, len([]rune(lines[line])))
}

func CaretLineAt(lines []string, caret int) int {
	ln, _ := LineColForPos(lines, caret)
	return ln
}

func CaretColAt(lines []string, caret int) int {
	_, col := LineColForPos(lines, caret)
	return col
}

// ======================
// Identifier prefix
// ======================

// PrefixStart scans backward from caret over identifier-like runes (letters,
// digits, underscore and dot) and returns where the run begins.
func PrefixStart(buf []rune, caret int) int {
	i := clamp(caret, 0, len(buf))
	for i > 0 && IsPrefixRune(buf[i-1]) {
		i--
	}
	return i
}

func IsPrefixRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || r == '.'
}

// ======================
// Util
// ======================

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
