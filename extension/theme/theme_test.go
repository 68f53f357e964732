package theme

import (
	"slices"
	"testing"

	"quill/editor"
	"quill/extension"
)

func TestNewDefaultsToMonokai(t *testing.T) {
	p, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Style() != DefaultStyle {
		t.Fatalf("style = %q, want %q", p.Style(), DefaultStyle)
	}
	th, ok := p.Theme()
	if !ok {
		t.Fatalf("provider should always offer a theme")
	}
	if th.Background == (extension.Color{}) && th.Foreground == (extension.Color{}) {
		t.Fatalf("theme colours not populated: %+v", th)
	}
	if _, ok := th.Tokens[extension.Keyword]; !ok {
		t.Fatalf("monokai should colour keywords: %+v", th.Tokens)
	}
}

func TestNewRejectsUnknownStyle(t *testing.T) {
	if _, err := New("no-such-style"); err == nil {
		t.Fatalf("unknown style accepted")
	}
}

func TestStylesIncludesDefault(t *testing.T) {
	names := Styles()
	if !slices.Contains(names, DefaultStyle) {
		t.Fatalf("Styles() missing %q", DefaultStyle)
	}
	if !slices.IsSorted(names) {
		t.Fatalf("Styles() not sorted")
	}
}

func TestLightAndDarkStylesDiffer(t *testing.T) {
	dark, err := New("monokai")
	if err != nil {
		t.Fatalf("monokai: %v", err)
	}
	light, err := New("github")
	if err != nil {
		t.Fatalf("github: %v", err)
	}
	d, _ := dark.Theme()
	l, _ := light.Theme()
	if d.Background == l.Background {
		t.Fatalf("dark and light backgrounds match: %v", d.Background)
	}
}

func TestHighlightRustKeywords(t *testing.T) {
	p, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src := "fn main() {\n    let x = 42; // answer\n}\n"
	grid := extension.NewStyleGrid(editor.SplitLines([]rune(src)))
	p.Highlight(extension.Snapshot{Path: "main.rs", Text: src}, grid)

	checks := []struct {
		line, col int
		want      extension.Token
	}{
		{0, 0, extension.Keyword}, // fn
		{1, 4, extension.Keyword}, // let
		{1, 12, extension.Number}, // 42
		{1, 16, extension.Comment},
	}
	for _, c := range checks {
		if got := grid.At(c.line, c.col); got != c.want {
			t.Fatalf("token at %d:%d = %v, want %v", c.line, c.col, got, c.want)
		}
	}
}

func TestHighlightUnknownFileIsNoop(t *testing.T) {
	p, _ := New("")
	grid := extension.NewStyleGrid([]string{"fn main"})
	p.Highlight(extension.Snapshot{Path: "", Text: "fn main"}, grid)
	p.Highlight(extension.Snapshot{Path: "notes.unknownext", Text: "fn main"}, grid)
	if grid.Row(0) != nil {
		t.Fatalf("untyped buffer was highlighted: %v", grid.Row(0))
	}
}

func TestTreeSitterPriorityWins(t *testing.T) {
	p, _ := New("")
	grid := extension.NewStyleGrid([]string{"package main"})
	grid.Paint(extension.Span{Line: 0, Start: 0, End: 7, Token: extension.Type, Priority: 60})
	p.Highlight(extension.Snapshot{Path: "main.go", Text: "package main"}, grid)
	if got := grid.At(0, 0); got != extension.Type {
		t.Fatalf("lexer span overrode a higher priority span: %v", got)
	}
}
