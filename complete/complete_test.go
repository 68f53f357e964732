package complete

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"quill/extension"
	"quill/internal/fsys/fsystest"
	"quill/session"
)

type staticSource []string

func (s staticSource) CollectCompletions(extension.Snapshot, int) []string {
	return append([]string(nil), s...)
}

func newBuffer(t *testing.T, text string) *session.TextBuffer {
	t.Helper()
	b := session.NewStore(session.WithFS(fsystest.New())).Active()
	b.InsertText(text)
	return b
}

func snapOf(b *session.TextBuffer) extension.Snapshot {
	return extension.Snapshot{Path: b.Path(), Text: b.Content()}
}

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		content   string
		cursor    int
		wantText  string
		wantStart int
	}{
		{"fn mai", 6, "mai", 3},
		{"us", 2, "us", 0},
		{"x = foo.bar", 11, "foo.bar", 4},
		{"a_b1(", 5, "", 5},
		{"a_b1(", 4, "a_b1", 0},
		{"héllo wörld", 11, "wörld", 6},
		{"", 0, "", 0},
		{"abc", 99, "abc", 0},
	}
	for _, tc := range tests {
		text, start := ExtractPrefix([]rune(tc.content), tc.cursor)
		if text != tc.wantText || start != tc.wantStart {
			t.Fatalf("ExtractPrefix(%q, %d) = (%q, %d), want (%q, %d)",
				tc.content, tc.cursor, text, start, tc.wantText, tc.wantStart)
		}
	}
}

func TestExtractPrefixIsIdempotent(t *testing.T) {
	for _, content := range []string{"fn mai", "let x = vec.le", "a", "  ", "foo(bar_baz"} {
		rs := []rune(content)
		for cursor := 0; cursor <= len(rs); cursor++ {
			p1, s1 := ExtractPrefix(rs, cursor)
			p2, s2 := ExtractPrefix(rs, s1+len([]rune(p1)))
			if p1 != p2 || s1 != s2 {
				t.Fatalf("%q@%d: (%q,%d) then (%q,%d)", content, cursor, p1, s1, p2, s2)
			}
		}
	}
}

// The fallback words are a fixed convenience list, so these checks pin its
// filtering rule rather than any language knowledge.
func TestFallbackIsAPrefixFilteredStaticList(t *testing.T) {
	if diff := cmp.Diff([]string{"use", "usize"}, Fallback("us")); diff != "" {
		t.Fatalf("Fallback(us) mismatch (-want +got):\n%s", diff)
	}
	if got := Fallback("mai"); len(got) != 0 {
		t.Fatalf("Fallback(mai) = %v, want nothing", got)
	}
	if got := Fallback("fn"); len(got) != 0 {
		t.Fatalf("exact word offered: %v", got)
	}
	if diff := cmp.Diff([]string{"Vec", "Vec::new"}, Fallback("Ve")); diff != "" {
		t.Fatalf("Fallback(Ve) mismatch (-want +got):\n%s", diff)
	}
}

func TestFallbackOffersEachWordOnce(t *testing.T) {
	for _, prefix := range []string{"im", "tr", "i", ""} {
		seen := map[string]bool{}
		for _, w := range Fallback(prefix) {
			if seen[w] {
				t.Fatalf("Fallback(%q) repeats %q", prefix, w)
			}
			seen[w] = true
		}
	}
	if diff := cmp.Diff([]string{"impl"}, Fallback("im")); diff != "" {
		t.Fatalf("Fallback(im) mismatch (-want +got):\n%s", diff)
	}
}

func TestNoProviderNoMatchStaysIdle(t *testing.T) {
	b := newBuffer(t, "fn mai")
	e := New(Options{Source: staticSource(nil)})
	if e.Trigger(snapOf(b), b.Caret()) {
		t.Fatalf("suggesting with candidates %v", e.Candidates())
	}
	if e.State() != Idle {
		t.Fatalf("state = %v, want idle", e.State())
	}
}

func TestManualTriggerAndAcceptFallback(t *testing.T) {
	b := newBuffer(t, "us")
	e := New(Options{})
	if !e.Trigger(snapOf(b), b.Caret()) {
		t.Fatalf("Trigger did not suggest")
	}
	if e.Prefix() != "us" || e.PrefixStart() != 0 {
		t.Fatalf("prefix = %q@%d", e.Prefix(), e.PrefixStart())
	}
	if cur, _ := e.Current(); cur != "use" {
		t.Fatalf("first candidate = %q, want use", cur)
	}
	got, ok := e.Accept(b)
	if !ok || got != "use" {
		t.Fatalf("Accept = %q, %v", got, ok)
	}
	if b.Content() != "use" || b.Caret() != 3 || !b.IsModified() {
		t.Fatalf("buffer = %q caret=%d modified=%v", b.Content(), b.Caret(), b.IsModified())
	}
	if e.State() != Idle {
		t.Fatalf("state after accept = %v", e.State())
	}
}

func TestProviderCandidatesReplaceFallback(t *testing.T) {
	b := newBuffer(t, "x.us")
	e := New(Options{Source: staticSource{"user", "user", "usage"}})
	e.Trigger(snapOf(b), b.Caret())
	if diff := cmp.Diff([]string{"user", "user", "usage"}, e.Candidates()); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
	if e.Prefix() != "x.us" {
		t.Fatalf("prefix = %q, want x.us", e.Prefix())
	}
}

func TestAcceptMiddleOfLineKeepsSuffix(t *testing.T) {
	b := newBuffer(t, "let v = Ve;\n")
	b.SetCaret(10)
	e := New(Options{Source: staticSource{"Vec::new()"}})
	e.Trigger(snapOf(b), b.Caret())
	if _, ok := e.Accept(b); !ok {
		t.Fatalf("Accept failed")
	}
	if b.Content() != "let v = Vec::new();\n" || b.Caret() != 18 {
		t.Fatalf("content = %q caret = %d", b.Content(), b.Caret())
	}
}

func TestMoveSelectionWraps(t *testing.T) {
	e := New(Options{Source: staticSource{"a1", "a2", "a3"}})
	e.Trigger(extension.Snapshot{Text: "a"}, 1)
	steps := []struct {
		delta, want int
	}{{1, 1}, {1, 2}, {1, 0}, {-1, 2}, {-4, 1}, {7, 2}}
	for _, s := range steps {
		e.MoveSelection(s.delta)
		if e.Selected() != s.want {
			t.Fatalf("after %+d selected = %d, want %d", s.delta, e.Selected(), s.want)
		}
	}
}

func TestMoveSelectionIdleIsNoop(t *testing.T) {
	e := New(Options{})
	e.MoveSelection(3)
	if e.Selected() != 0 || e.State() != Idle {
		t.Fatalf("idle engine moved: selected=%d state=%v", e.Selected(), e.State())
	}
}

func TestAcceptStaleSpanIsRefused(t *testing.T) {
	b := newBuffer(t, "let value = vari")
	e := New(Options{Source: staticSource{"variable"}})
	e.Trigger(snapOf(b), b.Caret())
	b.SetContent("let")
	before := b.Content()

	if _, ok := e.Accept(b); ok {
		t.Fatalf("stale accept applied")
	}
	if b.Content() != before || e.State() != Idle {
		t.Fatalf("content = %q state = %v", b.Content(), e.State())
	}
}

func TestAcceptIdleDoesNothing(t *testing.T) {
	b := newBuffer(t, "us")
	e := New(Options{})
	if _, ok := e.Accept(b); ok {
		t.Fatalf("accept while idle")
	}
	if b.Content() != "us" {
		t.Fatalf("content = %q", b.Content())
	}
}

func TestAcceptedCandidateIsNotTheNextPrefix(t *testing.T) {
	for _, prefix := range []string{"us", "Ve", "pri", "ma", "Box"} {
		b := newBuffer(t, prefix)
		e := New(Options{})
		if !e.Trigger(snapOf(b), b.Caret()) {
			continue
		}
		got, ok := e.Accept(b)
		if !ok {
			t.Fatalf("%q: accept failed", prefix)
		}
		after, _ := ExtractPrefix(b.Runes(), b.Caret())
		if after == prefix {
			t.Fatalf("%q: accepting %q left the same prefix", prefix, got)
		}
		if e.Trigger(snapOf(b), b.Caret()) {
			if cur, _ := e.Current(); cur == got {
				t.Fatalf("%q: %q offered again after acceptance", prefix, got)
			}
		}
	}
}

func TestAfterEditPolicy(t *testing.T) {
	type step struct {
		text     string
		inserted string
		want     State
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{"one letter is not enough", []step{{"u", "u", Idle}}},
		{"two letters open", []step{{"u", "u", Idle}, {"us", "s", Suggesting}}},
		{"space closes", []step{{"us", "s", Suggesting}, {"us ", " ", Idle}}},
		{"semicolon closes", []step{{"us", "s", Suggesting}, {"us;", ";", Idle}}},
		{"newline closes", []step{{"us", "s", Suggesting}, {"us\n", "\n", Idle}}},
		{"paren closes", []step{{"us", "s", Suggesting}, {"us(", "(", Idle}}},
		{"digit does not open", []step{{"u1", "1", Idle}}},
		{"digit refreshes open popup", []step{{"us", "s", Suggesting}, {"us1", "1", Idle}}},
		{"deletion refreshes open popup", []step{{"use", "e", Idle}, {"us", "s", Suggesting}, {"us", "", Suggesting}}},
		{"deletion below minimum closes", []step{{"us", "s", Suggesting}, {"u", "", Idle}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := New(Options{})
			for i, s := range tc.steps {
				snap := extension.Snapshot{Text: s.text}
				e.AfterEdit(snap, len([]rune(s.text)), s.inserted)
				if e.State() != s.want {
					t.Fatalf("step %d (%q): state = %v, want %v", i, s.text, e.State(), s.want)
				}
			}
		})
	}
}

func TestAfterEditHonoursMinPrefix(t *testing.T) {
	e := New(Options{MinPrefix: 3})
	e.AfterEdit(extension.Snapshot{Text: "us"}, 2, "s")
	if e.State() != Idle {
		t.Fatalf("opened below the minimum")
	}
	e.AfterEdit(extension.Snapshot{Text: "Box"}, 3, "x")
	if e.State() != Suggesting {
		t.Fatalf("did not open at the minimum")
	}
}

func TestManualTriggerIgnoresMinPrefix(t *testing.T) {
	e := New(Options{})
	if !e.Trigger(extension.Snapshot{Text: "u"}, 1) {
		t.Fatalf("manual trigger refused a one-letter prefix")
	}
	if diff := cmp.Diff([]string{"use", "unsafe", "u8", "u16", "u32", "u64", "u128", "usize"}, e.Candidates()); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestTriggerUsesRegistry(t *testing.T) {
	reg := extension.NewRegistry(nil)
	e := New(Options{Source: reg})
	if !e.Trigger(extension.Snapshot{Text: "us"}, 2) {
		t.Fatalf("empty registry should fall back")
	}
	if cur, _ := e.Current(); cur != "use" {
		t.Fatalf("current = %q", cur)
	}
}
