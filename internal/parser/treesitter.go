// Package parser provides pooled Tree-sitter parsers for Python,
// JavaScript, TypeScript, and TSX.
//
// Tree-sitter parsers require CGO_ENABLED=1. Every Tree returned from
// ParseFile must be explicitly closed by the caller, or released in bulk
// via CloseAll.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/go-janitor/janitor/internal/model"
)

// ParsedTreeSitterFile holds a parsed syntax tree with its source content.
// Caller must call Tree.Close() when done, or use CloseAll.
type ParsedTreeSitterFile struct {
	Path     string
	RelPath  string
	Tree     *tree_sitter.Tree
	Content  []byte
	Language model.Language
}

// TreeSitterParser holds pooled parsers for Python, JavaScript, TypeScript,
// and TSX. Tree-sitter parsers are NOT thread-safe, so all parse
// operations are serialized via a mutex. Trees returned from parsing are
// safe to use concurrently once parsing has returned.
type TreeSitterParser struct {
	mu           sync.Mutex
	pythonParser *tree_sitter.Parser
	jsParser     *tree_sitter.Parser
	tsParser     *tree_sitter.Parser
	tsxParser    *tree_sitter.Parser
}

// NewTreeSitterParser creates parsers for every supported language. Returns
// an error if any grammar fails to initialize.
func NewTreeSitterParser() (*TreeSitterParser, error) {
	p := &TreeSitterParser{}

	pyParser := tree_sitter.NewParser()
	if err := pyParser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_python.Language())); err != nil {
		p.Close()
		return nil, fmt.Errorf("set python language: %w", err)
	}
	p.pythonParser = pyParser

	jsParser := tree_sitter.NewParser()
	if err := jsParser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_javascript.Language())); err != nil {
		p.Close()
		return nil, fmt.Errorf("set javascript language: %w", err)
	}
	p.jsParser = jsParser

	tsParser := tree_sitter.NewParser()
	if err := tsParser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())); err != nil {
		p.Close()
		return nil, fmt.Errorf("set typescript language: %w", err)
	}
	p.tsParser = tsParser

	tsxParser := tree_sitter.NewParser()
	if err := tsxParser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())); err != nil {
		p.Close()
		return nil, fmt.Errorf("set tsx language: %w", err)
	}
	p.tsxParser = tsxParser

	return p, nil
}

// Close releases all parser resources. Must be called when done.
func (p *TreeSitterParser) Close() {
	for _, parser := range []*tree_sitter.Parser{p.pythonParser, p.jsParser, p.tsParser, p.tsxParser} {
		if parser != nil {
			parser.Close()
		}
	}
}

// ParseFile parses source content for the given language and file
// extension. ext distinguishes .ts from .tsx and .js from .jsx. Returns a
// Tree the caller must close. Thread-safe; parsing is serialized
// internally because Tree-sitter parsers are not reentrant.
func (p *TreeSitterParser) ParseFile(lang model.Language, ext string, content []byte) (*tree_sitter.Tree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var ts *tree_sitter.Parser

	switch lang {
	case model.LangPython:
		ts = p.pythonParser
	case model.LangJavaScript:
		ts = p.jsParser
	case model.LangTypeScript:
		if ext == ".tsx" {
			ts = p.tsxParser
		} else {
			ts = p.tsParser
		}
	default:
		return nil, fmt.Errorf("unsupported language for tree-sitter: %s", lang)
	}

	tree := ts.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter parse returned nil")
	}
	return tree, nil
}

// ParseDiscoveredFiles parses every source/test file in files, skipping
// anything that fails to read. Caller must close all returned trees via
// CloseAll.
func (p *TreeSitterParser) ParseDiscoveredFiles(files []model.DiscoveredFile) ([]*ParsedTreeSitterFile, error) {
	var results []*ParsedTreeSitterFile

	for _, f := range files {
		if f.Class != model.ClassSource && f.Class != model.ClassTest {
			continue
		}

		content, err := os.ReadFile(f.Path)
		if err != nil {
			continue
		}

		ext := strings.ToLower(filepath.Ext(f.Path))
		tree, err := p.ParseFile(f.Language, ext, content)
		if err != nil {
			CloseAll(results)
			return nil, fmt.Errorf("parse %s: %w", f.RelPath, err)
		}

		results = append(results, &ParsedTreeSitterFile{
			Path:     f.Path,
			RelPath:  f.RelPath,
			Tree:     tree,
			Content:  content,
			Language: f.Language,
		})
	}

	return results, nil
}

// CloseAll closes every tree in files. Safe to call with nil or empty.
func CloseAll(files []*ParsedTreeSitterFile) {
	for _, f := range files {
		if f != nil && f.Tree != nil {
			f.Tree.Close()
		}
	}
}
