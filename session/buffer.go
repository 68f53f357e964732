package session

import (
	"path/filepath"

	"quill/editor"
)

// Untitled is the display name of a buffer that was never persisted.
const Untitled = "Untitled"

// TextBuffer is one open document: its content, a dirty flag and the file it
// was loaded from or saved to. Content mutations go through the buffer so the
// modified flag can never fall out of step with the text.
type TextBuffer struct {
	name     string
	path     string
	modified bool
	rev      int
	ed       *editor.Editor
}

func newUntitled() *TextBuffer {
	return &TextBuffer{name: Untitled, ed: editor.NewEditor(""), rev: 1}
}

func newLoaded(path string, content []rune) *TextBuffer {
	ed := editor.NewEditor("")
	ed.SetRunes(content)
	return &TextBuffer{name: filepath.Base(path), path: path, ed: ed, rev: 1}
}

func (b *TextBuffer) DisplayName() string { return b.name }

// DisplayTitle is the tab label: the display name with a trailing "*" when
// there are unsaved changes.
func (b *TextBuffer) DisplayTitle() string {
	if b.modified {
		return b.name + "*"
	}
	return b.name
}

// BackingPath returns the persisted location and whether there is one.
func (b *TextBuffer) BackingPath() (string, bool) {
	return b.path, b.path != ""
}

func (b *TextBuffer) Path() string     { return b.path }
func (b *TextBuffer) IsModified() bool { return b.modified }
func (b *TextBuffer) IsUntitled() bool { return b.name == Untitled && b.path == "" }

// Rev increases on every content change; renderers use it as a cache key.
func (b *TextBuffer) Rev() int { return b.rev }

func (b *TextBuffer) Content() string { return b.ed.String() }
func (b *TextBuffer) Runes() []rune   { return b.ed.Runes() }
func (b *TextBuffer) Len() int        { return b.ed.RuneLen() }
func (b *TextBuffer) Caret() int      { return b.ed.Caret }

func (b *TextBuffer) SetCaret(pos int) {
	b.ed.Caret = max(0, min(pos, b.ed.RuneLen()))
	b.ed.Sel = editor.Sel{}
}

func (b *TextBuffer) Selection() editor.Sel { return b.ed.Sel }

func (b *TextBuffer) SetClipboard(c editor.Clipboard) { b.ed.SetClipboard(c) }

func (b *TextBuffer) MoveCaret(delta int, extend bool) { b.ed.MoveCaret(delta, extend) }
func (b *TextBuffer) MoveLine(delta int, extend bool)  { b.ed.MoveLine(delta, extend) }
func (b *TextBuffer) CopySelection()                   { b.ed.CopySelection() }

// InsertText types text at the caret.
func (b *TextBuffer) InsertText(text string) bool {
	return b.touch(b.ed.InsertText(text))
}

func (b *TextBuffer) Backspace() bool {
	return b.touch(b.ed.BackspaceOrDeleteSelection(true))
}

func (b *TextBuffer) DeleteForward() bool {
	return b.touch(b.ed.BackspaceOrDeleteSelection(false))
}

func (b *TextBuffer) Cut() bool   { return b.touch(b.ed.CutSelection()) }
func (b *TextBuffer) Paste() bool { return b.touch(b.ed.PasteClipboard()) }

// Splice replaces the runes in [start, end) with text and leaves the caret
// after it. A span outside the current content is refused and nothing
// changes.
func (b *TextBuffer) Splice(start, end int, text string) bool {
	return b.touch(b.ed.Replace(start, end, text))
}

// SetContent replaces the whole document as an edit.
func (b *TextBuffer) SetContent(text string) {
	b.ed.SetRunes([]rune(text))
	b.touch(true)
}

func (b *TextBuffer) touch(changed bool) bool {
	if changed {
		b.modified = true
		b.rev++
	}
	return changed
}

// MarkPersisted records a successful save to path. A buffer still showing the
// untitled placeholder takes the file's base name.
func (b *TextBuffer) MarkPersisted(path string) {
	b.path = path
	b.modified = false
	if b.name == Untitled {
		b.name = filepath.Base(path)
	}
}

// markLoaded replaces the content with what was just read from disk.
func (b *TextBuffer) markLoaded(content []rune) {
	b.ed.SetRunes(content)
	b.modified = false
	b.rev++
}
