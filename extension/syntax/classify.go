package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"

	"quill/extension"
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var (
	goKeywords = wordSet(
		"break", "case", "chan", "const", "continue", "default", "defer",
		"else", "fallthrough", "for", "func", "go", "goto", "if", "import",
		"interface", "map", "package", "range", "return", "select", "struct",
		"switch", "type", "var",
	)
	goPredeclared = wordSet("nil", "true", "false", "iota")

	cKeywords = wordSet(
		"break", "case", "const", "continue", "default", "do", "else", "enum",
		"extern", "for", "goto", "if", "inline", "register", "restrict",
		"return", "sizeof", "static", "struct", "switch", "typedef", "union",
		"volatile", "while", "_Alignas", "_Alignof", "_Atomic", "_Bool",
		"_Complex", "_Generic", "_Imaginary", "_Noreturn", "_Static_assert",
		"_Thread_local",
	)

	mirandaKeywords = wordSet(
		"let", "in", "if", "then", "else", "case", "of", "where", "module",
		"import", "type", "data", "newtype", "class", "instance",
	)
)

func classifyGoNode(node *sitter.Node, src string) (extension.Token, int) {
	typ := node.Type()
	switch typ {
	case "comment":
		return extension.Comment, 90
	case "interpreted_string_literal", "raw_string_literal", "rune_literal":
		return extension.String, 80
	case "int_literal", "float_literal", "imaginary_literal":
		return extension.Number, 70
	case "type_identifier":
		return extension.Type, 60
	case "field_identifier":
		if p := node.Parent(); p != nil && p.Type() == "method_declaration" {
			return extension.Function, 60
		}
		return extension.Default, 0
	case "identifier":
		if goPredeclared[nodeText(src, node)] {
			return extension.Keyword, 60
		}
		if p := node.Parent(); p != nil {
			switch p.Type() {
			case "function_declaration", "call_expression":
				return extension.Function, 50
			case "type_spec":
				return extension.Type, 55
			}
		}
		return extension.Default, 0
	}
	if !node.IsNamed() && goKeywords[typ] {
		return extension.Keyword, 60
	}
	return extension.Default, 0
}

func classifyMarkdownNode(node *sitter.Node, _ string) (extension.Token, int) {
	switch node.Type() {
	case "atx_heading", "setext_heading", "atx_h1_marker", "atx_h2_marker", "atx_h3_marker",
		"atx_h4_marker", "atx_h5_marker", "atx_h6_marker", "setext_h1_underline", "setext_h2_underline":
		return extension.Heading, 70
	case "fenced_code_block", "code_fence_content", "fenced_code_block_delimiter",
		"indented_code_block", "info_string", "language":
		return extension.String, 80
	case "link_label", "link_destination", "link_title", "link_reference_definition":
		return extension.Link, 70
	case "thematic_break", "block_quote_marker", "list_marker_plus", "list_marker_minus",
		"list_marker_star", "list_marker_dot", "list_marker_parenthesis",
		"task_list_marker_checked", "task_list_marker_unchecked",
		"pipe_table_delimiter_row", "pipe_table_delimiter_cell":
		return extension.Punctuation, 60
	case "html_block":
		return extension.Comment, 50
	}
	return extension.Default, 0
}

func classifyCNode(node *sitter.Node, _ string) (extension.Token, int) {
	switch node.Type() {
	case "comment":
		return extension.Comment, 90
	case "string_literal", "char_literal":
		return extension.String, 80
	case "number_literal":
		return extension.Number, 70
	case "type_identifier", "primitive_type", "sized_type_specifier", "macro_type_specifier":
		return extension.Type, 65
	case "preproc_include", "preproc_def", "preproc_function_def", "preproc_if", "preproc_ifdef",
		"preproc_else", "preproc_elif", "preproc_elifdef", "preproc_directive",
		"#include", "#define", "#if", "#ifdef", "#ifndef", "#else", "#elif", "#elifdef", "#elifndef":
		return extension.Keyword, 75
	}
	if !node.IsNamed() && cKeywords[node.Type()] {
		return extension.Keyword, 60
	}
	return extension.Default, 0
}

func classifyMirandaNode(node *sitter.Node, _ string) (extension.Token, int) {
	switch node.Type() {
	case "comment":
		return extension.Comment, 90
	case "string", "char":
		return extension.String, 80
	case "integer", "float":
		return extension.Number, 70
	case "type":
		return extension.Type, 65
	case "module", "import", "newtype", "class", "instance":
		return extension.Keyword, 70
	}
	if !node.IsNamed() && mirandaKeywords[node.Type()] {
		return extension.Keyword, 60
	}
	return extension.Default, 0
}
