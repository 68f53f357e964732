package complete

import "strings"

// The fallback words are offered only when no provider has anything to say.
// They are a fixed list for getting started without a language server, not a
// parser: nothing here looks at the surrounding code. Each word appears once.
var (
	fallbackKeywords = []string{
		"fn", "let", "mut", "struct", "impl", "trait", "for", "in", "if",
		"else", "match", "return", "loop", "while", "break", "continue",
		"pub", "mod", "use", "extern", "crate", "self", "super",
		"static", "const", "enum", "type", "where", "async", "await",
		"unsafe", "dyn", "macro_rules",
	}
	fallbackTypes = []string{
		"i8", "i16", "i32", "i64", "i128", "u8", "u16", "u32",
		"u64", "u128", "usize", "isize", "f32", "f64", "bool",
		"char", "String", "str", "Vec", "HashMap", "Option",
		"Result", "Box", "Arc", "Rc", "Mutex", "RefCell", "Cell",
	}
	fallbackFunctions = []string{
		"println!", "print!", "format!", "panic!", "assert!",
		"dbg!", "vec!", "Box::new", "Vec::new", "HashMap::new",
	}
)

// Fallback returns the built-in words that extend prefix, keywords first,
// then types, then functions.
func Fallback(prefix string) []string {
	var out []string
	for _, list := range [][]string{fallbackKeywords, fallbackTypes, fallbackFunctions} {
		for _, w := range list {
			if strings.HasPrefix(w, prefix) && w != prefix {
				out = append(out, w)
			}
		}
	}
	return out
}
