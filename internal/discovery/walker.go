// Package discovery finds and classifies source files under a project
// root for the dependency graph builder and extractor.
package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/go-janitor/janitor/internal/model"
)

// excludedDirs lists directory names the walker never descends into. This
// mirrors the Dependency Graph Builder's fixed excluded-directory set so
// that discovery and graph construction never disagree about what counts
// as project code.
var excludedDirs = map[string]bool{
	"venv": true, ".venv": true, "env": true, ".virtualenv": true,
	"vendor": true, "extern": true, "third_party": true,
	"blib2to3": true, "_internal": true, ".tox": true,
	"site-packages": true, "dist": true, "build": true,
	"__pycache__": true, "node_modules": true, ".git": true,
	".janitor_trash": true, ".janitor_cache": true,
}

var langExtensions = map[string]model.Language{
	".py":  model.LangPython,
	".js":  model.LangJavaScript,
	".jsx": model.LangJavaScript,
	".ts":  model.LangTypeScript,
	".tsx": model.LangTypeScript,
}

// Walker discovers and classifies source files in a directory tree.
type Walker struct {
	IncludeVendored bool
}

func NewWalker() *Walker {
	return &Walker{}
}

// Discover walks rootDir, returning every in-scope file in deterministic
// sorted order, already language- and class-tagged.
func (w *Walker) Discover(rootDir string) ([]model.DiscoveredFile, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("cannot access root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", rootDir)
	}

	var gitIgnore *ignore.GitIgnore
	gitignorePath := filepath.Join(rootDir, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		gitIgnore, err = ignore.CompileIgnoreFile(gitignorePath)
		if err != nil {
			return nil, fmt.Errorf("parse .gitignore: %w", err)
		}
	}

	var files []model.DiscoveredFile

	err = godirwalk.Walk(rootDir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsSymlink() {
				return godirwalk.SkipThis
			}

			name := de.Name()

			if de.IsDir() {
				if path != rootDir && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				if excludedDirs[name] && !(name == "vendor" && w.IncludeVendored) {
					return filepath.SkipDir
				}
				return nil
			}

			ext := strings.ToLower(filepath.Ext(name))
			lang, supported := langExtensions[ext]
			if !supported {
				return nil
			}

			relPath, err := filepath.Rel(rootDir, path)
			if err != nil {
				return nil
			}
			relPath = filepath.ToSlash(relPath)

			if gitIgnore != nil && gitIgnore.MatchesPath(relPath) {
				return nil
			}

			fi, err := os.Stat(path)
			if err != nil {
				return nil
			}

			class := classify(lang, name)
			files = append(files, model.DiscoveredFile{
				Path:     path,
				RelPath:  relPath,
				Language: lang,
				Class:    class,
				ModTime:  fi.ModTime().Unix(),
				Size:     fi.Size(),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk error: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func classify(lang model.Language, name string) model.FileClass {
	switch lang {
	case model.LangPython:
		return classifyPythonFile(name)
	case model.LangJavaScript, model.LangTypeScript:
		return classifyJSFile(name)
	default:
		return model.ClassSource
	}
}

// classifyPythonFile classifies by filename: test_*.py / *_test.py are
// tests, leading-dot files are excluded, else source.
func classifyPythonFile(name string) model.FileClass {
	base := strings.TrimSuffix(name, ".py")
	if strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test") || base == "conftest" {
		return model.ClassTest
	}
	if strings.HasPrefix(name, ".") {
		return model.ClassExcluded
	}
	return model.ClassSource
}

// classifyJSFile classifies JS/TS/JSX/TSX files by filename.
func classifyJSFile(name string) model.FileClass {
	lower := strings.ToLower(name)
	for _, suf := range []string{".test.ts", ".spec.ts", ".test.tsx", ".spec.tsx", ".test.js", ".spec.js", ".test.jsx", ".spec.jsx"} {
		if strings.HasSuffix(lower, suf) {
			return model.ClassTest
		}
	}
	if strings.HasSuffix(lower, ".d.ts") {
		return model.ClassGenerated
	}
	if strings.HasPrefix(name, ".") {
		return model.ClassExcluded
	}
	return model.ClassSource
}

// DetectProjectLanguages checks rootDir for language indicators.
func DetectProjectLanguages(rootDir string) []model.Language {
	var langs []model.Language

	pyIndicators := []string{"pyproject.toml", "setup.py", "setup.cfg", "requirements.txt"}
	pyDetected := false
	for _, f := range pyIndicators {
		if fileExists(filepath.Join(rootDir, f)) {
			pyDetected = true
			break
		}
	}
	if !pyDetected {
		pyDetected = hasFileWithExt(rootDir, ".py")
	}
	if pyDetected {
		langs = append(langs, model.LangPython)
	}

	if hasFileWithExt(rootDir, ".js") || hasFileWithExt(rootDir, ".jsx") {
		langs = append(langs, model.LangJavaScript)
	}

	tsDetected := fileExists(filepath.Join(rootDir, "tsconfig.json")) ||
		hasFileWithExt(rootDir, ".ts") || hasFileWithExt(rootDir, ".tsx") ||
		packageJSONHasTypeScript(filepath.Join(rootDir, "package.json"))
	if tsDetected {
		langs = append(langs, model.LangTypeScript)
	}

	return langs
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func hasFileWithExt(dir, ext string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ext {
			return true
		}
	}
	return false
}

func packageJSONHasTypeScript(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}
	if _, ok := pkg.Dependencies["typescript"]; ok {
		return true
	}
	_, ok := pkg.DevDependencies["typescript"]
	return ok
}
