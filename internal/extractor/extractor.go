// Package extractor walks a parsed syntax tree and produces the raw
// Entity and Import records the dependency graph builder and reference
// tracker operate on, before any cross-file resolution happens.
package extractor

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/go-janitor/janitor/internal/model"
)

// Extract dispatches to the language-specific walker.
func Extract(filePath string, language model.Language, root *tree_sitter.Node, content []byte) ([]*model.Entity, []*model.Import) {
	switch language {
	case model.LangPython:
		return ExtractPython(filePath, root, content)
	case model.LangJavaScript, model.LangTypeScript:
		return ExtractJS(filePath, root, content)
	default:
		return nil, nil
	}
}
