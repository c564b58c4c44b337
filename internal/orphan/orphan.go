// Package orphan detects files with zero incoming dependency edges,
// excluding vendored code, immortal directories, and recognized entry
// points.
package orphan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/gjson"

	"github.com/go-janitor/janitor/internal/model"
)

var vendoredPatterns = map[string]bool{
	"vendor": true, "extern": true, "third_party": true, "blib2to3": true,
	"_internal": true, "dist": true, "build": true, "node_modules": true,
	".tox": true, ".venv": true, "venv": true, ".virtualenv": true,
	"site-packages": true, "__pycache__": true,
}

// Detector finds orphan files given a dependency graph and a project root.
type Detector struct {
	Root                string
	GrepShieldEnabled   bool
	metadataEntryPoints map[string]bool
}

func New(root string, grepShield bool) *Detector {
	d := &Detector{Root: root, GrepShieldEnabled: grepShield}
	d.metadataEntryPoints = d.parseMetadataEntryPoints()
	return d
}

// DetectOrphans returns the absolute paths of every in-scope file with
// in-degree zero that survives the vendored filter, the directory shield,
// the entry-point check, and (if enabled) the grep shield.
func (d *Detector) DetectOrphans(g *model.DependencyGraph) []string {
	var orphans []string
	for _, node := range g.Nodes {
		if g.InDegree(node) != 0 {
			continue
		}
		if d.isVendored(node) {
			continue
		}
		if d.IsImmortal(node) {
			continue
		}
		if d.isEntryPoint(node) {
			continue
		}
		if d.GrepShieldEnabled && d.isReferencedInDocs(node) {
			continue
		}
		orphans = append(orphans, node)
	}
	sort.Strings(orphans)
	return orphans
}

func pathParts(root, path string) []string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil
	}
	return strings.Split(filepath.ToSlash(rel), "/")
}

func (d *Detector) isVendored(path string) bool {
	for _, part := range pathParts(d.Root, path) {
		if vendoredPatterns[strings.ToLower(part)] {
			return true
		}
	}
	return false
}

// IsImmortal reports whether path lives under one of the directory-shield
// directories.
func (d *Detector) IsImmortal(path string) bool {
	for _, part := range pathParts(d.Root, path) {
		if model.ImmortalDirectories[strings.ToLower(part)] {
			return true
		}
	}
	return false
}

func (d *Detector) isEntryPoint(path string) bool {
	name := filepath.Base(path)
	if name == "__init__.py" || name == "__main__.py" {
		return true
	}

	parts := pathParts(d.Root, path)
	for _, part := range parts {
		switch strings.ToLower(part) {
		case "tests", "test", "examples", "example", "docs", "doc", "benchmarks",
			"benchmark", "docs_src", "scripts", "action", "actions", "profiling",
			"tools", "blib2to3", "sandbox", "bin":
			return true
		}
	}

	relPath := filepath.ToSlash(strings.Join(parts, "/"))
	if relPath == "src/main.py" {
		return true
	}
	if len(parts) == 1 {
		// direct child of project root
		return true
	}

	if d.metadataEntryPoints[path] {
		return true
	}

	if strings.HasSuffix(path, ".py") {
		if content, err := os.ReadFile(path); err == nil {
			text := string(content)
			if strings.Contains(text, "typer.Typer(") || strings.Contains(text, "typer.Typer =") {
				return true
			}
			if strings.Contains(text, `if __name__ == "__main__"`) {
				return true
			}
		}
	}

	return false
}

var grepStopWords = map[string]bool{
	"main": true, "app": true, "index": true, "test": true,
	"conftest": true, "setup": true, "config": true,
}

// isReferencedInDocs is the grep shield: searches a narrow set of
// documentation and metadata files for the orphan's bare filename before
// falling back to letting it be reported.
func (d *Detector) isReferencedInDocs(path string) bool {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if grepStopWords[strings.ToLower(stem)] {
		return false
	}

	searchExtensions := map[string]bool{".md": true, ".yml": true, ".yaml": true, ".rst": true, ".txt": true, ".toml": true, ".json": true}

	searchPaths := []string{
		filepath.Join(d.Root, "docs"),
		filepath.Join(d.Root, "docs_src"),
		filepath.Join(d.Root, "documentation"),
		filepath.Join(d.Root, "README.md"),
		filepath.Join(d.Root, "mkdocs.yml"),
		filepath.Join(d.Root, "readthedocs.yml"),
		filepath.Join(d.Root, ".readthedocs.yml"),
		filepath.Join(d.Root, "pyproject.toml"),
	}

	lowerStem := strings.ToLower(stem)

	for _, sp := range searchPaths {
		info, err := os.Stat(sp)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			if containsStem(sp, lowerStem) {
				return true
			}
			continue
		}
		found := false
		_ = filepath.WalkDir(sp, func(p string, de os.DirEntry, err error) error {
			if err != nil || de.IsDir() || found {
				return nil
			}
			if !searchExtensions[strings.ToLower(filepath.Ext(p))] {
				return nil
			}
			if containsStem(p, lowerStem) {
				found = true
			}
			return nil
		})
		if found {
			return true
		}
	}

	return false
}

func containsStem(path, lowerStem string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), lowerStem)
}

// --- metadata entry points: pyproject.toml, setup.cfg, package.json ---

type pyprojectEntryPoints struct {
	Project struct {
		Scripts      map[string]string            `toml:"scripts"`
		EntryPoints  map[string]map[string]string `toml:"entry-points"`
	} `toml:"project"`
	Tool struct {
		Flit struct {
			Metadata struct {
				Scripts map[string]string `toml:"scripts"`
			} `toml:"metadata"`
		} `toml:"flit"`
	} `toml:"tool"`
}

func (d *Detector) parseMetadataEntryPoints() map[string]bool {
	entryPoints := make(map[string]bool)

	pyprojectPath := filepath.Join(d.Root, "pyproject.toml")
	var pp pyprojectEntryPoints
	if _, err := toml.DecodeFile(pyprojectPath, &pp); err == nil {
		for _, val := range pp.Project.Scripts {
			for _, p := range d.resolveMetadataValue(val) {
				entryPoints[p] = true
			}
		}
		for _, group := range pp.Project.EntryPoints {
			for _, val := range group {
				for _, p := range d.resolveMetadataValue(val) {
					entryPoints[p] = true
				}
			}
		}
		for _, val := range pp.Tool.Flit.Metadata.Scripts {
			for _, p := range d.resolveMetadataValue(val) {
				entryPoints[p] = true
			}
		}
	}

	// setup.cfg: any section whose name contains "entry_points"
	setupCfgPath := filepath.Join(d.Root, "setup.cfg")
	if content, err := os.ReadFile(setupCfgPath); err == nil {
		inEntryPointsSection := false
		for _, line := range strings.Split(string(content), "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
				inEntryPointsSection = strings.Contains(strings.ToLower(trimmed), "entry_points")
				continue
			}
			if inEntryPointsSection && strings.Contains(trimmed, "=") {
				val := strings.TrimSpace(strings.SplitN(trimmed, "=", 2)[1])
				for _, p := range d.resolveMetadataValue(val) {
					entryPoints[p] = true
				}
			}
		}
	}

	// package.json: bin, browser, module, exports
	packageJSONPath := filepath.Join(d.Root, "package.json")
	if content, err := os.ReadFile(packageJSONPath); err == nil {
		doc := gjson.ParseBytes(content)
		d.addPackageJSONPaths(doc.Get("bin"), entryPoints)
		d.addPackageJSONPaths(doc.Get("browser"), entryPoints)
		if mod := doc.Get("module"); mod.Type == gjson.String {
			entryPoints[d.resolveProjectPath(mod.String())] = true
		}
		d.extractExportPaths(doc.Get("exports"), entryPoints)
	}

	return entryPoints
}

func (d *Detector) addPackageJSONPaths(v gjson.Result, entryPoints map[string]bool) {
	switch {
	case v.Type == gjson.String:
		entryPoints[d.resolveProjectPath(v.String())] = true
	case v.IsObject():
		v.ForEach(func(key, val gjson.Result) bool {
			if strings.HasPrefix(key.String(), "./") || strings.Contains(key.String(), "/") {
				entryPoints[d.resolveProjectPath(key.String())] = true
			}
			if val.Type == gjson.String {
				entryPoints[d.resolveProjectPath(val.String())] = true
			}
			return true
		})
	}
}

func (d *Detector) extractExportPaths(v gjson.Result, entryPoints map[string]bool) {
	switch {
	case v.Type == gjson.String:
		s := v.String()
		if strings.HasPrefix(s, "./") || strings.Contains(s, "/") {
			entryPoints[d.resolveProjectPath(s)] = true
		}
	case v.IsObject():
		v.ForEach(func(_, val gjson.Result) bool {
			d.extractExportPaths(val, entryPoints)
			return true
		})
	case v.IsArray():
		for _, item := range v.Array() {
			d.extractExportPaths(item, entryPoints)
		}
	}
}

func (d *Detector) resolveProjectPath(rel string) string {
	abs, err := filepath.Abs(filepath.Join(d.Root, rel))
	if err != nil {
		return filepath.Join(d.Root, rel)
	}
	return abs
}

// resolveMetadataValue resolves a "pkg.mod:func" style descriptor value to
// candidate file paths, matching both flat-layout and src-layout projects.
func (d *Detector) resolveMetadataValue(val string) []string {
	var resolved []string
	for _, line := range strings.Split(strings.TrimSpace(val), "\n") {
		line = strings.TrimSpace(line)
		if idx := strings.Index(line, "="); idx >= 0 && strings.Count(line, "=") >= 1 && !strings.Contains(line, "://") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				line = strings.TrimSpace(parts[1])
			}
		}
		modulePart := strings.TrimSpace(strings.SplitN(line, ":", 2)[0])
		if modulePart == "" {
			continue
		}
		relPath := strings.ReplaceAll(modulePart, ".", string(filepath.Separator))
		candidates := []string{
			filepath.Join(d.Root, relPath+".py"),
			filepath.Join(d.Root, "src", relPath+".py"),
			filepath.Join(d.Root, relPath, "__init__.py"),
			filepath.Join(d.Root, "src", relPath, "__init__.py"),
		}
		for _, c := range candidates {
			if info, err := os.Stat(c); err == nil && !info.IsDir() {
				if abs, err := filepath.Abs(c); err == nil {
					resolved = append(resolved, abs)
				}
			}
		}
	}
	return resolved
}

// Stats computes the orphan breakdown reporting fields.
func Stats(orphans []string, totalFiles int) model.Stats {
	byExt := make(map[string]int)
	for _, o := range orphans {
		byExt[filepath.Ext(o)]++
	}
	return model.Stats{
		TotalFiles:        totalFiles,
		OrphanCount:       len(orphans),
		OrphanByExtension: byExt,
	}
}
