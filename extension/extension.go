// Package extension holds the provider registry and the small vocabulary
// providers share with the presentation layer: tokens, spans, colours and
// themes.
package extension

import (
	"fmt"
	"strconv"
	"strings"
)

// Token classifies a run of text for colouring.
type Token int

const (
	Default Token = iota
	Keyword
	Type
	Function
	String
	Number
	Comment
	Heading
	Link
	Punctuation
)

var tokenNames = [...]string{
	Default:     "default",
	Keyword:     "keyword",
	Type:        "type",
	Function:    "function",
	String:      "string",
	Number:      "number",
	Comment:     "comment",
	Heading:     "heading",
	Link:        "link",
	Punctuation: "punctuation",
}

func (t Token) String() string {
	if t >= 0 && int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return "token(" + strconv.Itoa(int(t)) + ")"
}

// ParseToken is the inverse of Token.String.
func ParseToken(s string) (Token, bool) {
	for i, name := range tokenNames {
		if name == s {
			return Token(i), true
		}
	}
	return Default, false
}

// Color is a 24-bit RGB colour.
type Color struct {
	R, G, B uint8
}

func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseColor accepts "#rrggbb" or "rrggbb".
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("colour %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("colour %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Theme is a complete colour scheme. Tokens without an entry use Foreground.
type Theme struct {
	Name       string
	Foreground Color
	Background Color
	Tokens     map[Token]Color
}

// TokenColor returns the colour for tok, falling back to Foreground.
func (t Theme) TokenColor(tok Token) Color {
	if c, ok := t.Tokens[tok]; ok {
		return c
	}
	return t.Foreground
}

// Snapshot is a read-only copy of a buffer handed to providers.
type Snapshot struct {
	Path string
	Text string
}

// Span marks runes [Start, End) of Line with Token. When spans overlap the
// higher Priority wins.
type Span struct {
	Line     int
	Start    int
	End      int
	Token    Token
	Priority int
}

// Painter receives spans from highlighters.
type Painter interface {
	Paint(Span)
}

// Provider is the naming capability every extension has.
type Provider interface {
	Name() string
	Version() string
	Description() string
}

// Highlighter paints spans for a snapshot. It must not retain snap.
type Highlighter interface {
	Highlight(snap Snapshot, p Painter)
}

// Themer supplies a theme. ok is false when the provider has none to offer
// right now.
type Themer interface {
	Theme() (Theme, bool)
}

// Completer suggests completions for the identifier before cursor (a rune
// offset into snap.Text).
type Completer interface {
	Completions(snap Snapshot, cursor int) []string
}
