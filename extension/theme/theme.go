// Package theme is the bundled colour theme provider. Colours come from a
// chroma style; the same provider also highlights any language chroma has a
// lexer for, at a lower priority than the tree-sitter highlighter.
package theme

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"quill/extension"
)

const (
	DefaultStyle = "monokai"

	// lexPriority sits below every tree-sitter classification.
	lexPriority = 20
)

// Built-in fallbacks used when the chroma style has no background set.
var (
	darkTheme = extension.Theme{
		Name:       "dark",
		Foreground: extension.Color{R: 220, G: 220, B: 220},
		Background: extension.Color{R: 30, G: 30, B: 30},
	}
	lightTheme = extension.Theme{
		Name:       "light",
		Foreground: extension.Color{R: 30, G: 30, B: 30},
		Background: extension.Color{R: 250, G: 250, B: 250},
	}
)

var tokenTypes = map[extension.Token]chroma.TokenType{
	extension.Keyword:     chroma.Keyword,
	extension.Type:        chroma.KeywordType,
	extension.Function:    chroma.NameFunction,
	extension.String:      chroma.LiteralString,
	extension.Number:      chroma.LiteralNumber,
	extension.Comment:     chroma.Comment,
	extension.Heading:     chroma.GenericHeading,
	extension.Link:        chroma.NameTag,
	extension.Punctuation: chroma.Punctuation,
}

// Provider exposes one chroma style as a theme.
type Provider struct {
	style  string
	theme  extension.Theme
	lexers map[string]chroma.Lexer
}

// New builds a provider for the named chroma style.
func New(style string) (*Provider, error) {
	if style == "" {
		style = DefaultStyle
	}
	sty, ok := styles.Registry[style]
	if !ok {
		return nil, fmt.Errorf("unknown theme style %q", style)
	}
	return &Provider{style: style, theme: fromStyle(sty), lexers: map[string]chroma.Lexer{}}, nil
}

func (p *Provider) Name() string    { return "Theme Pack [bundle]" }
func (p *Provider) Version() string { return "2.0.0" }
func (p *Provider) Description() string {
	return "Colour theme from the " + p.style + " style, with lexer highlighting for other languages"
}

func (p *Provider) Style() string { return p.style }

func (p *Provider) Theme() (extension.Theme, bool) { return p.theme, true }

func fromStyle(sty *chroma.Style) extension.Theme {
	bg := sty.Get(chroma.Background)
	if !bg.Background.IsSet() {
		return darkTheme
	}
	th := extension.Theme{
		Name:       sty.Name,
		Background: toColor(bg.Background),
		Tokens:     map[extension.Token]extension.Color{},
	}
	if text := sty.Get(chroma.Text); text.Colour.IsSet() {
		th.Foreground = toColor(text.Colour)
	} else if bg.Colour.IsSet() {
		th.Foreground = toColor(bg.Colour)
	} else if bg.Background.Brightness() < 0.5 {
		th.Foreground = darkTheme.Foreground
	} else {
		th.Foreground = lightTheme.Foreground
	}
	for tok, tt := range tokenTypes {
		if e := sty.Get(tt); e.Colour.IsSet() {
			th.Tokens[tok] = toColor(e.Colour)
		}
	}
	return th
}

func toColor(c chroma.Colour) extension.Color {
	return extension.Color{R: c.Red(), G: c.Green(), B: c.Blue()}
}

// Styles lists the style names New accepts.
func Styles() []string {
	names := styles.Names()
	sort.Strings(names)
	return names
}

// Highlight tokenises the snapshot with the chroma lexer for its file name and
// paints what it recognises. Unknown files are left alone.
func (p *Provider) Highlight(snap extension.Snapshot, painter extension.Painter) {
	lex := p.lexerFor(snap.Path)
	if lex == nil {
		return
	}
	it, err := lex.Tokenise(nil, snap.Text)
	if err != nil {
		return
	}
	line, col := 0, 0
	for _, t := range it.Tokens() {
		tok := classify(t.Type)
		for i, seg := range strings.Split(t.Value, "\n") {
			if i > 0 {
				line++
				col = 0
			}
			n := len([]rune(seg))
			if tok != extension.Default && n > 0 {
				painter.Paint(extension.Span{Line: line, Start: col, End: col + n, Token: tok, Priority: lexPriority})
			}
			col += n
		}
	}
}

func (p *Provider) lexerFor(path string) chroma.Lexer {
	if path == "" {
		return nil
	}
	if lex, ok := p.lexers[path]; ok {
		return lex
	}
	lex := lexers.Match(path)
	if lex != nil {
		lex = chroma.Coalesce(lex)
	}
	p.lexers[path] = lex
	return lex
}

func classify(tt chroma.TokenType) extension.Token {
	switch {
	case tt == chroma.KeywordType:
		return extension.Type
	case tt.InCategory(chroma.Keyword):
		return extension.Keyword
	case tt == chroma.NameFunction, tt == chroma.NameBuiltin:
		return extension.Function
	case tt == chroma.NameClass:
		return extension.Type
	case tt == chroma.NameTag:
		return extension.Link
	case tt.InSubCategory(chroma.LiteralString):
		return extension.String
	case tt.InSubCategory(chroma.LiteralNumber):
		return extension.Number
	case tt.InCategory(chroma.Comment):
		return extension.Comment
	case tt == chroma.GenericHeading, tt == chroma.GenericSubheading:
		return extension.Heading
	case tt.InCategory(chroma.Punctuation), tt.InCategory(chroma.Operator):
		return extension.Punctuation
	}
	return extension.Default
}
