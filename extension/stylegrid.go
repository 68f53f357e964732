package extension

import "unicode/utf8"

type cell struct {
	tok Token
	pri int
}

// StyleGrid is the standard Painter: one token per rune, per line.
type StyleGrid struct {
	rows [][]cell
}

// NewStyleGrid sizes a grid for lines (as produced by editor.SplitLines).
func NewStyleGrid(lines []string) *StyleGrid {
	rows := make([][]cell, len(lines))
	for i, line := range lines {
		rows[i] = make([]cell, utf8.RuneCountInString(line))
	}
	return &StyleGrid{rows: rows}
}

// Paint applies s. Columns outside the line are dropped and equal priority
// overwrites.
func (g *StyleGrid) Paint(s Span) {
	if s.Line < 0 || s.Line >= len(g.rows) || s.Token == Default {
		return
	}
	row := g.rows[s.Line]
	start := max(s.Start, 0)
	end := min(s.End, len(row))
	for i := start; i < end; i++ {
		if s.Priority >= row[i].pri {
			row[i] = cell{tok: s.Token, pri: s.Priority}
		}
	}
}

func (g *StyleGrid) Lines() int { return len(g.rows) }

// At returns the token at line, col; Default outside the grid.
func (g *StyleGrid) At(line, col int) Token {
	if line < 0 || line >= len(g.rows) || col < 0 || col >= len(g.rows[line]) {
		return Default
	}
	return g.rows[line][col].tok
}

// Row returns the tokens of one line, or nil if nothing on it was painted.
func (g *StyleGrid) Row(line int) []Token {
	if line < 0 || line >= len(g.rows) {
		return nil
	}
	var out []Token
	for i, c := range g.rows[line] {
		if c.tok == Default {
			continue
		}
		if out == nil {
			out = make([]Token, len(g.rows[line]))
		}
		out[i] = c.tok
	}
	return out
}
