package syntax

import (
	"testing"

	"quill/editor"
	"quill/extension"
)

func TestDetectByPath(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{path: "a.go", want: Go},
		{path: "A.GO", want: Go},
		{path: "a.md", want: Markdown},
		{path: "a.markdown", want: Markdown},
		{path: "a.c", want: C},
		{path: "a.h", want: C},
		{path: "a.m", want: Miranda},
		{path: "a.txt", want: None},
	}
	for _, tc := range tests {
		if got := Detect(tc.path, ""); got != tc.want {
			t.Fatalf("Detect(%q)=%v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestDetectByContent(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Kind
	}{
		{name: "go package", src: "\n  package main\nfunc main(){}", want: Go},
		{name: "markdown heading", src: "## title\ntext", want: Markdown},
		{name: "unknown", src: "plain text\nsecond line", want: None},
		{name: "empty", src: "", want: None},
	}
	for _, tc := range tests {
		if got := Detect("", tc.src); got != tc.want {
			t.Fatalf("%s: Detect=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if Go.String() != "Go" || None.String() != "Text" || Miranda.String() != "Miranda" {
		t.Fatalf("unexpected kind names")
	}
}

func TestHighlightPaintsEveryLanguage(t *testing.T) {
	tests := []struct {
		name string
		path string
		src  string
	}{
		{name: "go", path: "main.go", src: "package main\nfunc main() { return }\n"},
		{name: "markdown", path: "notes.md", src: "# Header\n- item\n"},
		{name: "c", path: "main.c", src: "int main(void) { return 0; }\n"},
		{name: "miranda", path: "demo.m", src: "module Demo where\nx = 1\n"},
	}
	h := New()
	for _, tc := range tests {
		grid := extension.NewStyleGrid(editor.SplitLines([]rune(tc.src)))
		h.Highlight(extension.Snapshot{Path: tc.path, Text: tc.src}, grid)
		painted := false
		for i := 0; i < grid.Lines(); i++ {
			if grid.Row(i) != nil {
				painted = true
			}
		}
		if !painted {
			t.Fatalf("%s: expected highlighted tokens, got none", tc.name)
		}
	}
}

func TestGoTokens(t *testing.T) {
	src := "package main\n// hi\nvar s = \"é\" + nil\n"
	grid := extension.NewStyleGrid(editor.SplitLines([]rune(src)))
	New().Highlight(extension.Snapshot{Path: "x.go", Text: src}, grid)

	checks := []struct {
		line, col int
		want      extension.Token
	}{
		{0, 0, extension.Keyword},  // package
		{1, 0, extension.Comment},  // //
		{2, 0, extension.Keyword},  // var
		{2, 8, extension.String},   // "é"
		{2, 10, extension.String},  // closing quote, rune column after é
		{2, 14, extension.Keyword}, // nil
	}
	for _, c := range checks {
		if got := grid.At(c.line, c.col); got != c.want {
			t.Fatalf("token at %d:%d = %v, want %v", c.line, c.col, got, c.want)
		}
	}
}

func TestPlainTextPaintsNothing(t *testing.T) {
	src := "just words"
	grid := extension.NewStyleGrid(editor.SplitLines([]rune(src)))
	New().Highlight(extension.Snapshot{Path: "notes.txt", Text: src}, grid)
	if grid.Row(0) != nil {
		t.Fatalf("plain text was highlighted: %v", grid.Row(0))
	}
}

func TestHighlightCachesUnchangedSource(t *testing.T) {
	h := New()
	src := "package main\n"
	first := h.spansFor("a.go", src)
	second := h.spansFor("a.go", src)
	if len(first) == 0 || &first[0] != &second[0] {
		t.Fatalf("unchanged source should reuse cached spans")
	}
	third := h.spansFor("a.go", src+"var x int\n")
	if len(third) <= len(first) {
		t.Fatalf("changed source should be reparsed")
	}
}

func TestMultiLineSpanSplitsPerLine(t *testing.T) {
	src := "package main\n/* a\nbb */\n"
	spans := New().spansFor("c.go", src)
	var comment []extension.Span
	for _, s := range spans {
		if s.Token == extension.Comment {
			comment = append(comment, s)
		}
	}
	if len(comment) != 2 {
		t.Fatalf("block comment spans = %+v, want two lines", comment)
	}
	if comment[0].Line != 1 || comment[0].Start != 0 || comment[0].End != 4 {
		t.Fatalf("first segment = %+v", comment[0])
	}
	if comment[1].Line != 2 || comment[1].End != 5 {
		t.Fatalf("second segment = %+v", comment[1])
	}
}

func TestErrorLines(t *testing.T) {
	h := New()
	if got := h.ErrorLines(extension.Snapshot{Path: "ok.go", Text: "package main\n\nfunc main() {}\n"}); len(got) != 0 {
		t.Fatalf("clean source reported errors on %v", got)
	}
	got := h.ErrorLines(extension.Snapshot{Path: "bad.go", Text: "package main\n\nfunc main() {\n\tx := (1 +\n}\n"})
	if len(got) == 0 {
		t.Fatalf("broken source reported no errors")
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("error lines not ascending: %v", got)
		}
	}
	if got := h.ErrorLines(extension.Snapshot{Path: "notes.md", Text: "# [unclosed\n"}); len(got) != 0 {
		t.Fatalf("markdown reported errors on %v", got)
	}
}
