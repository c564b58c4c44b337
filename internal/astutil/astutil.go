// Package astutil provides Tree-sitter traversal helpers shared by the
// extractor, resolver, reference tracker, and heuristics packages. It is
// kept separate from those packages to avoid import cycles.
package astutil

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// WalkTree walks a Tree-sitter tree depth-first, calling fn for each node.
func WalkTree(node *tree_sitter.Node, fn func(*tree_sitter.Node)) {
	if node == nil {
		return
	}
	fn(node)
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			WalkTree(child, fn)
		}
	}
}

// WalkUntil walks depth-first, calling fn for each node; if fn returns
// false the walk does not descend into that node's children.
func WalkUntil(node *tree_sitter.Node, fn func(*tree_sitter.Node) bool) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			WalkUntil(child, fn)
		}
	}
}

// NodeText extracts the text content of a node.
func NodeText(node *tree_sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}

// StripQuotes removes surrounding single, double, or backtick quotes.
func StripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// CountLines counts lines in source content.
func CountLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	count := 1
	for _, b := range content {
		if b == '\n' {
			count++
		}
	}
	return count
}

// FindAncestor walks up from node looking for the nearest ancestor whose
// Kind matches one of kinds.
func FindAncestor(node *tree_sitter.Node, kinds ...string) *tree_sitter.Node {
	current := node
	for current != nil {
		k := current.Kind()
		for _, want := range kinds {
			if k == want {
				return current
			}
		}
		current = current.Parent()
	}
	return nil
}

// LineOf returns the 1-based line number a node starts on.
func LineOf(node *tree_sitter.Node) int {
	if node == nil {
		return 0
	}
	return int(node.StartPosition().Row) + 1
}

// IsTestFileByName reports whether a base filename looks like a Python,
// JS, or TS test file.
func IsTestFileByName(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "test_") || strings.HasSuffix(lower, "_test.py") || lower == "conftest.py" {
		return true
	}
	for _, suf := range []string{".test.ts", ".spec.ts", ".test.tsx", ".spec.tsx", ".test.js", ".spec.js", ".test.jsx", ".spec.jsx"} {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}
