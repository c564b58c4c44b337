// Package janitor orchestrates the full pipeline over a project directory:
// discover -> build dependency graph (+ orphan detection) -> extract
// definitions and references -> shield -> report, short-circuiting the
// whole run when the project fingerprint is unchanged since the last run.
package janitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/go-janitor/janitor/internal/cache"
	"github.com/go-janitor/janitor/internal/config"
	"github.com/go-janitor/janitor/internal/configref"
	"github.com/go-janitor/janitor/internal/discovery"
	"github.com/go-janitor/janitor/internal/graph"
	"github.com/go-janitor/janitor/internal/heuristics"
	"github.com/go-janitor/janitor/internal/model"
	"github.com/go-janitor/janitor/internal/orphan"
	"github.com/go-janitor/janitor/internal/parser"
	"github.com/go-janitor/janitor/internal/reference"
	"github.com/go-janitor/janitor/internal/resolver"
	"github.com/go-janitor/janitor/internal/wisdom"
)

// ProgressFunc is called at the start of each pipeline stage, matching the
// same callback shape the CLI layer already expects for progress reporting.
type ProgressFunc func(stage, message string)

// Janitor orchestrates one project's analysis, holding the options a
// .janitorrc.yml or CLI flag decided, not the per-run intermediate state.
type Janitor struct {
	Root       string
	Config     *config.ProjectConfig
	Logger     *slog.Logger
	OnProgress ProgressFunc
}

// New creates a Janitor for root. cfg may be nil, in which case built-in
// defaults are used.
func New(root string, cfg *config.ProjectConfig, logger *slog.Logger) *Janitor {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{Root: root, Config: cfg, Logger: logger, OnProgress: func(string, string) {}}
}

// Analyze runs the full pipeline and returns the project's dead-symbol and
// orphan-file result, consulting and updating the Analysis Cache.
func (j *Janitor) Analyze() (*model.ProjectResult, error) {
	j.progress("discover", "scanning files")

	walker := discovery.NewWalker()
	walker.IncludeVendored = j.Config.IncludeVendored
	files, err := walker.Discover(j.Root)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	if len(files) == 0 {
		return &model.ProjectResult{}, nil
	}

	analysisCache, err := cache.Open(j.Root)
	if err != nil {
		return nil, fmt.Errorf("open analysis cache: %w", err)
	}
	defer analysisCache.Close()

	fingerprint := cache.Fingerprint(files)
	if rec, ok := analysisCache.GetProjectResult(fingerprint); ok {
		result, err := decodeCachedResult(rec)
		if err == nil {
			result.FromCache = true
			j.progress("done", "served from cache")
			return result, nil
		}
		j.Logger.Warn("cached project result corrupted, re-analyzing", "err", err)
	}

	j.progress("parse", "building dependency graph")

	tsParser, err := parser.NewTreeSitterParser()
	if err != nil {
		return nil, fmt.Errorf("init tree-sitter parser: %w", err)
	}
	defer tsParser.Close()

	symResolver := resolver.New(j.Root, j.loadTSAliases())
	builder := graph.NewBuilder(j.Root, analysisCache, tsParser, symResolver, j.Logger)
	depGraph := builder.Build(files)

	orphanDetector := orphan.New(j.Root, j.Config.GrepShield)
	orphanFiles := orphanDetector.DetectOrphans(depGraph)

	j.progress("link", "tracking references and definitions")

	wisdomRegistry := wisdom.Load(j.Config.WisdomRulesPath, j.Logger)
	tracker := reference.NewTracker(j.Root, j.Config.LibraryMode, wisdomRegistry)

	fileByPath := make(map[string]model.DiscoveredFile, len(files))
	for _, f := range files {
		fileByPath[f.Path] = f
	}

	for _, entities := range builder.ExtractedEntities {
		for _, e := range entities {
			tracker.AddDefinition(e)
		}
	}
	tracker.ApplyFrameworkLifecycleProtection()

	tracker.LoadConfigReferences(configref.New(j.Root).ParseAll())
	tracker.DetectMetaprogrammingDanger()

	for path, f := range fileByPath {
		if f.Class != model.ClassSource && f.Class != model.ClassTest {
			continue
		}
		imports := builder.ExtractedImports[path]
		j.extractReferences(tracker, builder, f, imports)
	}

	j.progress("shield", "running shield procedure")

	dead, attributions := tracker.FindDeadSymbols(j.Config.GrepShield)

	stats := orphan.Stats(orphanFiles, len(files))
	stats.TotalDefinitions = len(tracker.Definitions)
	stats.DeadSymbolCount = len(dead)
	stats.PerShieldCounts = make(map[model.ShieldReason]int)
	for _, a := range attributions {
		stats.PerShieldCounts[a.Reason]++
	}

	result := &model.ProjectResult{
		OrphanFiles:  orphanFiles,
		DeadSymbols:  dead,
		Attributions: attributions,
		Stats:        stats,
	}

	if rec, err := encodeCachedResult(result); err == nil {
		_ = analysisCache.SetProjectResult(fingerprint, rec)
	} else {
		j.Logger.Warn("failed to encode project result for cache", "err", err)
	}

	j.progress("done", "analysis complete")
	return result, nil
}

// extractReferences re-parses a file with the graph builder's parser and
// walks it to populate the reference tracker, then folds in framework
// heuristics.
func (j *Janitor) extractReferences(t *reference.Tracker, b *graph.Builder, f model.DiscoveredFile, imports []*model.Import) {
	tree, content, err := b.TreeFor(f)
	if err != nil {
		j.Logger.Warn("failed to parse file for reference extraction", "path", f.Path, "err", err)
		return
	}
	defer tree.Close()

	root := tree.RootNode()
	isPackageInit := isPackageInitFile(f.Path)

	switch f.Language {
	case model.LangPython:
		t.ExtractPythonReferences(f.Path, root, content, imports, isPackageInit)
		marks := heuristics.ApplyPythonHeuristics(root, content)
		t.ApplyHeuristicMarks(marks)
	case model.LangJavaScript, model.LangTypeScript:
		t.ExtractJSReferences(f.Path, root, content, imports, isPackageInit)
		importMap := heuristics.BuildImportMap(imports)
		marks := heuristics.ApplyJSHeuristics(root, content, importMap, t.LibraryMode)
		t.ApplyHeuristicMarks(marks)
	}
}

func isPackageInitFile(path string) bool {
	base := filepath.Base(path)
	if base == "__init__.py" {
		return true
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem == "index"
}

// loadTSAliases reads compilerOptions.paths from tsconfig.json at the
// project root, if present, for the JS/TS resolver's alias support.
func (j *Janitor) loadTSAliases() map[string]string {
	data, err := os.ReadFile(filepath.Join(j.Root, "tsconfig.json"))
	if err != nil {
		return nil
	}
	pathsResult := gjson.GetBytes(data, "compilerOptions.paths")
	if !pathsResult.Exists() {
		return nil
	}
	raw := make(map[string][]string)
	pathsResult.ForEach(func(alias, targets gjson.Result) bool {
		var list []string
		for _, t := range targets.Array() {
			list = append(list, t.String())
		}
		raw[alias.String()] = list
		return true
	})
	return resolver.NormalizeTSConfigPaths(raw)
}

func (j *Janitor) progress(stage, message string) {
	if j.OnProgress != nil {
		j.OnProgress(stage, message)
	}
}

// encodeCachedResult/decodeCachedResult (de)serialize a ProjectResult into
// the cache's whole-project record, so a future run with an unchanged
// fingerprint can skip the entire pipeline.
func encodeCachedResult(result *model.ProjectResult) (cache.ProjectResultRecord, error) {
	dead, err := json.Marshal(result.DeadSymbols)
	if err != nil {
		return cache.ProjectResultRecord{}, err
	}
	orphans, err := json.Marshal(result.OrphanFiles)
	if err != nil {
		return cache.ProjectResultRecord{}, err
	}
	attributions, err := json.Marshal(result.Attributions)
	if err != nil {
		return cache.ProjectResultRecord{}, err
	}
	stats, err := json.Marshal(result.Stats)
	if err != nil {
		return cache.ProjectResultRecord{}, err
	}
	return cache.ProjectResultRecord{DeadSymbols: dead, OrphanFiles: orphans, Attributions: attributions, Stats: stats}, nil
}

func decodeCachedResult(rec *cache.ProjectResultRecord) (*model.ProjectResult, error) {
	result := &model.ProjectResult{}
	if err := json.Unmarshal(rec.DeadSymbols, &result.DeadSymbols); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rec.OrphanFiles, &result.OrphanFiles); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rec.Attributions, &result.Attributions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rec.Stats, &result.Stats); err != nil {
		return nil, err
	}
	return result, nil
}
