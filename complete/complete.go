// Package complete drives the completion popup: it finds the identifier
// before the caret, gathers candidates and splices the chosen one back into
// the buffer.
package complete

import (
	"unicode"

	"pkt.systems/pslog"

	"quill/editor"
	"quill/extension"
	"quill/session"
)

// DefaultMinPrefix is how long a typed prefix must be before completion
// opens by itself.
const DefaultMinPrefix = 2

type State int

const (
	Idle State = iota
	Suggesting
)

func (s State) String() string {
	if s == Suggesting {
		return "suggesting"
	}
	return "idle"
}

// Source supplies candidates. *extension.Registry is the usual one.
type Source interface {
	CollectCompletions(snap extension.Snapshot, cursor int) []string
}

type Options struct {
	Source    Source
	MinPrefix int
	Logger    pslog.Logger
}

// Engine is the completion state machine. The zero state is Idle.
type Engine struct {
	src       Source
	minPrefix int
	log       pslog.Logger

	state      State
	candidates []string
	selected   int
	prefix     string
	start      int
}

func New(opts Options) *Engine {
	if opts.MinPrefix <= 0 {
		opts.MinPrefix = DefaultMinPrefix
	}
	return &Engine{src: opts.Source, minPrefix: opts.MinPrefix, log: opts.Logger}
}

// ExtractPrefix returns the identifier-like run (letters, digits, '_' and
// '.') ending at cursor and the rune offset where it starts.
func ExtractPrefix(content []rune, cursor int) (string, int) {
	cursor = max(0, min(cursor, len(content)))
	start := editor.PrefixStart(content, cursor)
	return string(content[start:cursor]), start
}

func (e *Engine) State() State     { return e.state }
func (e *Engine) MinPrefix() int   { return e.minPrefix }
func (e *Engine) Selected() int    { return e.selected }
func (e *Engine) Prefix() string   { return e.prefix }
func (e *Engine) PrefixStart() int { return e.start }

// Candidates returns a copy of the current suggestions.
func (e *Engine) Candidates() []string {
	return append([]string(nil), e.candidates...)
}

// Current is the highlighted candidate.
func (e *Engine) Current() (string, bool) {
	if e.state != Suggesting {
		return "", false
	}
	return e.candidates[e.selected], true
}

// Trigger computes the prefix at cursor and asks the source for candidates,
// falling back to the built-in words. It reports whether the engine is now
// suggesting.
func (e *Engine) Trigger(snap extension.Snapshot, cursor int) bool {
	content := []rune(snap.Text)
	prefix, start := ExtractPrefix(content, cursor)

	var cands []string
	if e.src != nil {
		cands = e.src.CollectCompletions(snap, cursor)
	}
	fromFallback := len(cands) == 0
	if fromFallback {
		cands = Fallback(prefix)
	}
	if len(cands) == 0 {
		e.Cancel()
		return false
	}
	e.state = Suggesting
	e.candidates = cands
	e.selected = 0
	e.prefix = prefix
	e.start = start
	if e.log != nil {
		e.log.Debug("completion", "prefix", prefix, "candidates", len(cands), "fallback", fromFallback)
	}
	return true
}

// MoveSelection moves the highlight by delta, wrapping at both ends.
func (e *Engine) MoveSelection(delta int) {
	if e.state != Suggesting {
		return
	}
	n := len(e.candidates)
	e.selected = ((e.selected+delta)%n + n) % n
}

// Accept replaces the prefix span in buf with the highlighted candidate and
// returns to Idle. If the span no longer fits inside buf nothing is changed.
func (e *Engine) Accept(buf *session.TextBuffer) (string, bool) {
	if e.state != Suggesting {
		return "", false
	}
	cand := e.candidates[e.selected]
	start, end := e.start, e.start+len([]rune(e.prefix))
	e.Cancel()
	if buf == nil || start < 0 || end > buf.Len() {
		if e.log != nil {
			e.log.Debug("stale completion dropped", "start", start, "end", end)
		}
		return "", false
	}
	if !buf.Splice(start, end, cand) {
		return "", false
	}
	return cand, true
}

func (e *Engine) Cancel() {
	e.state = Idle
	e.candidates = nil
	e.selected = 0
	e.prefix = ""
	e.start = 0
}

// AfterEdit applies the typing policy after a content change. inserted is
// the text just typed, or "" for a deletion.
//
//   - letters, '_' and '.' open or refresh the popup once the prefix reaches
//     the minimum length
//   - whitespace and ';' close it
//   - digits and deletions only refresh an open popup
//   - anything else closes it
func (e *Engine) AfterEdit(snap extension.Snapshot, cursor int, inserted string) {
	rs := []rune(inserted)
	if len(rs) == 0 {
		e.refresh(snap, cursor)
		return
	}
	r := rs[len(rs)-1]
	switch {
	case unicode.IsSpace(r) || r == ';':
		e.Cancel()
	case unicode.IsLetter(r) || r == '_' || r == '.':
		if e.prefixLongEnough(snap, cursor) {
			e.Trigger(snap, cursor)
		} else {
			e.Cancel()
		}
	case unicode.IsDigit(r):
		e.refresh(snap, cursor)
	default:
		e.Cancel()
	}
}

func (e *Engine) refresh(snap extension.Snapshot, cursor int) {
	if e.state != Suggesting {
		return
	}
	if e.prefixLongEnough(snap, cursor) {
		e.Trigger(snap, cursor)
		return
	}
	e.Cancel()
}

func (e *Engine) prefixLongEnough(snap extension.Snapshot, cursor int) bool {
	prefix, _ := ExtractPrefix([]rune(snap.Text), cursor)
	return len([]rune(prefix)) >= e.minPrefix
}
