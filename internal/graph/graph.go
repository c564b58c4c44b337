// Package graph builds the project's directed file dependency graph: an
// edge A->B means file A imports file B. It is cache-aware — if a file's
// mtime/size hasn't changed since the last run, its edges come straight
// from the cache and the file is never re-parsed.
package graph

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/go-janitor/janitor/internal/cache"
	"github.com/go-janitor/janitor/internal/extractor"
	"github.com/go-janitor/janitor/internal/model"
	"github.com/go-janitor/janitor/internal/parser"
	"github.com/go-janitor/janitor/internal/resolver"
)

// Builder constructs a model.DependencyGraph from a set of discovered
// files, consulting the analysis cache before falling back to parsing.
type Builder struct {
	Root     string
	Cache    *cache.AnalysisCache
	Parser   *parser.TreeSitterParser
	Resolver *resolver.SymbolResolver
	Logger   *slog.Logger

	// ExtractedEntities and ExtractedImports accumulate phase-2 output as a
	// side effect of building the graph, since both need the same parse.
	// Keyed by absolute file path.
	ExtractedEntities map[string][]*model.Entity
	ExtractedImports  map[string][]*model.Import

	mu sync.Mutex
}

func NewBuilder(root string, c *cache.AnalysisCache, p *parser.TreeSitterParser, r *resolver.SymbolResolver, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		Root:              root,
		Cache:             c,
		Parser:            p,
		Resolver:          r,
		Logger:            logger,
		ExtractedEntities: make(map[string][]*model.Entity),
		ExtractedImports:  make(map[string][]*model.Import),
	}
}

// Build constructs the dependency graph over files, resolving imports to
// target file paths and filling in per-file entity/import side tables.
// Files are parsed concurrently — the tree-sitter parser and analysis
// cache are both safe for concurrent use, and per-file work is otherwise
// independent, so an errgroup fans it out instead of walking serially.
func (b *Builder) Build(files []model.DiscoveredFile) *model.DependencyGraph {
	g := model.NewDependencyGraph()

	var eg errgroup.Group
	for _, f := range files {
		if f.Class != model.ClassSource && f.Class != model.ClassTest {
			continue
		}
		g.AddNode(f.Path)
		f := f
		eg.Go(func() error {
			b.processFile(g, f)
			return nil
		})
	}
	_ = eg.Wait()

	return g
}

func (b *Builder) processFile(g *model.DependencyGraph, f model.DiscoveredFile) {
	if deps, ok := b.Cache.GetDependencies(f.Path, f.ModTime, f.Size); ok {
		// Entities/imports are still needed by later phases; recover them
		// from the definitions/references cache buckets when present,
		// otherwise fall through to a live parse below for this file only.
		var entities []*model.Entity
		var imports []*model.Import
		gotEntities := b.Cache.GetDefinitions(f.Path, f.ModTime, f.Size, &entities)
		gotImports := b.Cache.GetReferences(f.Path, f.ModTime, f.Size, &imports)
		if gotEntities && gotImports {
			b.mu.Lock()
			for _, target := range deps {
				g.AddEdge(f.Path, target)
			}
			b.ExtractedEntities[f.Path] = entities
			b.ExtractedImports[f.Path] = imports
			b.mu.Unlock()
			return
		}
	}

	content, err := os.ReadFile(f.Path)
	if err != nil {
		b.Logger.Warn("failed to read file during graph build", "path", f.Path, "err", err)
		_ = b.Cache.SetDependencies(f.Path, f.ModTime, f.Size, nil)
		return
	}

	ext := strings.ToLower(filepath.Ext(f.Path))
	tree, err := b.Parser.ParseFile(f.Language, ext, content)
	if err != nil {
		b.Logger.Warn("failed to parse file during graph build", "path", f.Path, "err", err)
		_ = b.Cache.SetDependencies(f.Path, f.ModTime, f.Size, nil)
		return
	}
	defer tree.Close()

	entities, imports := extractor.Extract(f.Path, f.Language, tree.RootNode(), content)

	var resolvedEdges []string
	for _, imp := range imports {
		target := b.Resolver.ResolveSourceFile(f.Path, imp.SourceModule)
		if target == "" {
			continue
		}
		imp.ResolvedPath = target
		resolvedEdges = append(resolvedEdges, target)
	}

	b.mu.Lock()
	b.ExtractedEntities[f.Path] = entities
	b.ExtractedImports[f.Path] = imports
	for _, target := range resolvedEdges {
		g.AddEdge(f.Path, target)
	}
	b.mu.Unlock()

	_ = b.Cache.SetDependencies(f.Path, f.ModTime, f.Size, resolvedEdges)
	_ = b.Cache.SetDefinitions(f.Path, f.ModTime, f.Size, entities)
	_ = b.Cache.SetReferences(f.Path, f.ModTime, f.Size, imports)
}

// TreeFor re-parses a single file on demand (used by later phases that
// need the syntax tree itself, not just entities/imports, and don't want
// to hold every tree in memory at once).
func (b *Builder) TreeFor(f model.DiscoveredFile) (*tree_sitter.Tree, []byte, error) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, nil, err
	}
	ext := strings.ToLower(filepath.Ext(f.Path))
	tree, err := b.Parser.ParseFile(f.Language, ext, content)
	if err != nil {
		return nil, nil, err
	}
	return tree, content, nil
}
