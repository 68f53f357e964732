package editor

// gapBuffer stores runes with a movable hole at the last edit position so
// runs of typing at the caret do not shift the tail of the document.
type gapBuffer struct {
	data     []rune
	gapStart int
	gapEnd   int
}

const minGap = 64

func newGapBuffer(rs []rune) gapBuffer {
	data := make([]rune, len(rs)+minGap)
	copy(data, rs)
	return gapBuffer{data: data, gapStart: len(rs), gapEnd: len(rs) + minGap}
}

func (g *gapBuffer) Len() int {
	return len(g.data) - (g.gapEnd - g.gapStart)
}

func (g *gapBuffer) Set(rs []rune) {
	*g = newGapBuffer(rs)
}

func (g *gapBuffer) ensureGap(n int) {
	if n <= g.gapEnd-g.gapStart {
		return
	}
	extra := n + minGap
	newData := make([]rune, len(g.data)+extra)
	copy(newData, g.data[:g.gapStart])
	tail := g.data[g.gapEnd:]
	newGapEnd := len(newData) - len(tail)
	copy(newData[newGapEnd:], tail)
	g.data = newData
	g.gapEnd = newGapEnd
}

func (g *gapBuffer) moveGap(pos int) {
	pos = clamp(pos, 0, g.Len())
	switch {
	case pos < g.gapStart:
		n := g.gapStart - pos
		copy(g.data[g.gapEnd-n:g.gapEnd], g.data[pos:g.gapStart])
		g.gapStart -= n
		g.gapEnd -= n
	case pos > g.gapStart:
		n := pos - g.gapStart
		copy(g.data[g.gapStart:g.gapStart+n], g.data[g.gapEnd:g.gapEnd+n])
		g.gapStart += n
		g.gapEnd += n
	}
}

func (g *gapBuffer) Insert(pos int, rs []rune) {
	if len(rs) == 0 {
		return
	}
	g.moveGap(pos)
	g.ensureGap(len(rs))
	copy(g.data[g.gapStart:], rs)
	g.gapStart += len(rs)
}

func (g *gapBuffer) Delete(start, end int) {
	start = clamp(start, 0, g.Len())
	end = clamp(end, 0, g.Len())
	if end <= start {
		return
	}
	g.moveGap(start)
	g.gapEnd += end - start
}

func (g *gapBuffer) RuneAt(i int) (rune, bool) {
	if i < 0 || i >= g.Len() {
		return 0, false
	}
	if i < g.gapStart {
		return g.data[i], true
	}
	return g.data[i+(g.gapEnd-g.gapStart)], true
}

func (g *gapBuffer) Slice(a, b int) []rune {
	a = clamp(a, 0, g.Len())
	b = clamp(b, 0, g.Len())
	if b <= a {
		return nil
	}
	out := make([]rune, 0, b-a)
	if a < g.gapStart {
		out = append(out, g.data[a:min(b, g.gapStart)]...)
	}
	if b > g.gapStart {
		gap := g.gapEnd - g.gapStart
		out = append(out, g.data[max(a, g.gapStart)+gap:b+gap]...)
	}
	return out
}

func (g *gapBuffer) Runes() []rune {
	return g.Slice(0, g.Len())
}
