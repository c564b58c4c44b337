// Package resolver turns a raw import string found in one file into the
// absolute path of the file it refers to, following each language's own
// module resolution rules.
package resolver

import (
	"os"
	"path/filepath"
	"strings"
)

// SymbolResolver resolves import strings to files on disk relative to a
// fixed project root. tsAliases holds tsconfig.json `compilerOptions.paths`
// entries, normalized from `{"@app/*": ["src/*"]}` to `{"@app": "src"}` by
// the caller (the first target wins when an alias lists more than one).
type SymbolResolver struct {
	Root      string
	TSAliases map[string]string
}

func New(root string, tsAliases map[string]string) *SymbolResolver {
	return &SymbolResolver{Root: root, TSAliases: tsAliases}
}

// ResolveSourceFile determines the absolute file path an import string
// refers to, or "" if it cannot be resolved on disk (e.g. a third-party
// package).
func (r *SymbolResolver) ResolveSourceFile(currentFile, importString string) string {
	if importString == "" {
		return ""
	}

	ext := strings.ToLower(filepath.Ext(currentFile))
	switch ext {
	case ".py", ".pyi":
		return r.resolvePythonImport(currentFile, importString)
	case ".js", ".jsx", ".ts", ".tsx":
		return r.resolveJSImport(currentFile, importString)
	default:
		return ""
	}
}

// --- Python ---

func (r *SymbolResolver) resolvePythonImport(currentFile, importString string) string {
	if strings.HasPrefix(importString, ".") {
		return r.resolvePythonRelative(currentFile, importString)
	}
	return r.resolvePythonAbsolute(importString)
}

// resolvePythonRelative implements the dot-counting rule: one leading dot
// keeps the current package directory, each further dot ascends one more
// level, exactly as CPython's relative import resolution does.
func (r *SymbolResolver) resolvePythonRelative(currentFile, importString string) string {
	dots := 0
	for _, c := range importString {
		if c == '.' {
			dots++
		} else {
			break
		}
	}
	modulePart := importString[dots:]

	baseDir := filepath.Dir(currentFile)
	for i := 0; i < dots-1; i++ {
		baseDir = filepath.Dir(baseDir)
	}

	if modulePart == "" {
		return r.checkPythonPath(baseDir)
	}

	relPath := strings.ReplaceAll(modulePart, ".", string(filepath.Separator))
	return r.checkPythonPath(filepath.Join(baseDir, relPath))
}

// resolvePythonAbsolute tries project_root/<path>, then project_root/src/<path>,
// matching the common src-layout convention.
func (r *SymbolResolver) resolvePythonAbsolute(importString string) string {
	relPath := strings.ReplaceAll(importString, ".", string(filepath.Separator))
	if found := r.checkPythonPath(filepath.Join(r.Root, relPath)); found != "" {
		return found
	}
	return r.checkPythonPath(filepath.Join(r.Root, "src", relPath))
}

func (r *SymbolResolver) checkPythonPath(pathNoExt string) string {
	asFile := pathNoExt + ".py"
	if isFile(asFile) {
		return asFile
	}
	asPackage := filepath.Join(pathNoExt, "__init__.py")
	if isFile(asPackage) {
		return asPackage
	}
	return ""
}

// --- JavaScript / TypeScript ---

var jsProbeExtensions = []string{".ts", ".tsx", ".d.ts", ".js", ".jsx", ".json"}

func (r *SymbolResolver) resolveJSImport(currentFile, importString string) string {
	if strings.HasPrefix(importString, ".") {
		candidate := filepath.Join(filepath.Dir(currentFile), importString)
		return r.probeJSPath(candidate)
	}

	for alias, target := range r.TSAliases {
		if strings.HasPrefix(importString, alias) {
			remainder := strings.TrimPrefix(importString, alias)
			remainder = strings.TrimPrefix(remainder, "/")
			candidate := filepath.Join(r.Root, target, remainder)
			return r.probeJSPath(candidate)
		}
	}

	candidate := filepath.Join(r.Root, importString)
	return r.probeJSPath(candidate)
}

// probeJSPath tries the exact path, then each of the standard extensions,
// then falls back to an index file if the path names a directory.
func (r *SymbolResolver) probeJSPath(path string) string {
	if isFile(path) {
		return path
	}
	for _, ext := range jsProbeExtensions {
		candidate := path + ext
		if isFile(candidate) {
			return candidate
		}
	}
	if isDir(path) {
		for _, ext := range jsProbeExtensions {
			indexFile := filepath.Join(path, "index"+ext)
			if isFile(indexFile) {
				return indexFile
			}
		}
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// NormalizeTSConfigPaths converts a tsconfig.json `compilerOptions.paths`
// map of the form {"@app/*": ["src/*"]} into {"@app": "src"}, taking the
// first target when more than one is listed.
func NormalizeTSConfigPaths(paths map[string][]string) map[string]string {
	aliases := make(map[string]string, len(paths))
	for alias, targets := range paths {
		cleanAlias := strings.ReplaceAll(alias, "/*", "")
		if len(targets) == 0 {
			continue
		}
		cleanTarget := strings.ReplaceAll(targets[0], "/*", "")
		aliases[cleanAlias] = cleanTarget
	}
	return aliases
}
