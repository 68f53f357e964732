// Package syntax is the bundled tree-sitter highlighter.
package syntax

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	sitterc "github.com/smacker/go-tree-sitter/c"
	sittergo "github.com/smacker/go-tree-sitter/golang"
	sittermd "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown"
	sitterhs "github.com/tree-sitter/tree-sitter-haskell/bindings/go"

	"quill/extension"
)

// Kind is a language the highlighter has a grammar for.
type Kind int

const (
	None Kind = iota
	Go
	Markdown
	C
	Miranda
)

func (k Kind) String() string {
	switch k {
	case Go:
		return "Go"
	case Markdown:
		return "Markdown"
	case C:
		return "C"
	case Miranda:
		return "Miranda"
	}
	return "Text"
}

// Detect picks a grammar from the file extension, then from the first
// non-blank line.
func Detect(path, src string) Kind {
	pathLower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(pathLower, ".go"):
		return Go
	case strings.HasSuffix(pathLower, ".md"), strings.HasSuffix(pathLower, ".markdown"):
		return Markdown
	case strings.HasSuffix(pathLower, ".c"), strings.HasSuffix(pathLower, ".h"):
		return C
	case strings.HasSuffix(pathLower, ".m"):
		return Miranda
	}

	for line := range strings.SplitSeq(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "package ") {
			return Go
		}
		if strings.HasPrefix(trimmed, "# ") || strings.HasPrefix(trimmed, "## ") {
			return Markdown
		}
		return None
	}
	return None
}

const (
	name        = "Syntax Highlighter [bundle]"
	version     = "1.0.0"
	description = "Tree-sitter highlighting for Go, C, Markdown and Miranda"
)

// Highlighter parses each snapshot with tree-sitter and paints the nodes its
// classifiers recognise.
// The last result is cached, so repainting an unchanged buffer is cheap.
type Highlighter struct {
	lastPath   string
	lastSource string
	lastKind   Kind
	spans      []extension.Span
	errLines   []int
}

func New() *Highlighter { return &Highlighter{} }

func (h *Highlighter) Name() string        { return name }
func (h *Highlighter) Version() string     { return version }
func (h *Highlighter) Description() string { return description }

func (h *Highlighter) Highlight(snap extension.Snapshot, p extension.Painter) {
	for _, s := range h.spansFor(snap.Path, snap.Text) {
		p.Paint(s)
	}
}

// ErrorLines lists the lines holding tree-sitter error or missing nodes,
// ascending. Markdown never reports errors.
func (h *Highlighter) ErrorLines(snap extension.Snapshot) []int {
	h.spansFor(snap.Path, snap.Text)
	return h.errLines
}

func (h *Highlighter) spansFor(path, src string) []extension.Span {
	kind := Detect(path, src)
	if h.spans != nil && h.lastPath == path && h.lastSource == src && h.lastKind == kind {
		return h.spans
	}
	var res parseResult
	switch kind {
	case Go:
		res = parse(src, sittergo.GetLanguage(), classifyGoNode)
	case Markdown:
		res = parse(src, sittermd.GetLanguage(), classifyMarkdownNode)
		res.errLines = nil
	case C:
		res = parse(src, sitterc.GetLanguage(), classifyCNode)
	case Miranda:
		res = parse(src, sitter.NewLanguage(sitterhs.Language()), classifyMirandaNode)
	}
	if res.spans == nil {
		res.spans = []extension.Span{}
	}
	h.lastPath = path
	h.lastSource = src
	h.lastKind = kind
	h.spans = res.spans
	h.errLines = res.errLines
	return h.spans
}

type classifier func(*sitter.Node, string) (extension.Token, int)

type parseResult struct {
	spans    []extension.Span
	errLines []int
}

func parse(src string, lang *sitter.Language, classify classifier) parseResult {
	root, err := sitter.ParseCtx(context.Background(), []byte(src), lang)
	if err != nil || root == nil {
		return parseResult{}
	}
	lines := strings.Split(src, "\n")
	lineStarts := computeLineStartBytes(src, len(lines))
	var res parseResult
	bad := map[int]bool{}
	walkTree(root, func(n *sitter.Node) {
		if n.IsError() || n.IsMissing() {
			ln, _ := byteOffsetToLineCol(lineStarts, int(n.StartByte()))
			bad[ln] = true
		}
		tok, pri := classify(n, src)
		if tok == extension.Default {
			return
		}
		res.spans = appendNodeSpans(res.spans, lines, lineStarts, int(n.StartByte()), int(n.EndByte()), tok, pri)
	})
	for ln := range bad {
		res.errLines = append(res.errLines, ln)
	}
	sort.Ints(res.errLines)
	return res
}

// walkTree visits every node, parents first, so a child classified with a
// higher priority overrides its parent in the painter.
func walkTree(node *sitter.Node, visit func(*sitter.Node)) {
	if node == nil {
		return
	}
	visit(node)
	for i := 0; i < int(node.ChildCount()); i++ {
		walkTree(node.Child(i), visit)
	}
}

// appendNodeSpans splits the byte range [startByte, endByte) into one span
// per line, converting byte columns to rune columns.
func appendNodeSpans(spans []extension.Span, lines []string, lineStarts []int, startByte, endByte int, tok extension.Token, pri int) []extension.Span {
	if len(lines) == 0 || endByte <= startByte {
		return spans
	}
	startLine, startCol := byteOffsetToLineCol(lineStarts, startByte)
	endLine, endCol := byteOffsetToLineCol(lineStarts, endByte)
	endLine = min(endLine, len(lines)-1)
	for ln := startLine; ln <= endLine; ln++ {
		line := lines[ln]
		segStart, segEnd := 0, len(line)
		if ln == startLine {
			segStart = min(startCol, len(line))
		}
		if ln == endLine {
			segEnd = min(endCol, len(line))
		}
		if segEnd <= segStart {
			continue
		}
		spans = append(spans, extension.Span{
			Line:     ln,
			Start:    utf8.RuneCountInString(line[:segStart]),
			End:      utf8.RuneCountInString(line[:segEnd]),
			Token:    tok,
			Priority: pri,
		})
	}
	return spans
}

func nodeText(src string, node *sitter.Node) string {
	if node == nil {
		return ""
	}
	a := max(int(node.StartByte()), 0)
	b := min(int(node.EndByte()), len(src))
	if a >= b {
		return ""
	}
	return src[a:b]
}

func computeLineStartBytes(src string, lineCount int) []int {
	starts := make([]int, 0, lineCount)
	starts = append(starts, 0)
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func byteOffsetToLineCol(lineStarts []int, off int) (line int, col int) {
	if len(lineStarts) == 0 || off <= 0 {
		return 0, 0
	}
	lastStart := lineStarts[len(lineStarts)-1]
	if off >= lastStart {
		return len(lineStarts) - 1, off - lastStart
	}
	i := sort.Search(len(lineStarts), func(i int) bool {
		return lineStarts[i] > off
	})
	line = max(i-1, 0)
	col = max(off-lineStarts[line], 0)
	return line, col
}
