// Package configref scans infrastructure and framework descriptor files
// for symbol references that textual code analysis alone would miss:
// Lambda/SAM handler strings, Django settings lists, Docker Compose
// commands, Airflow DAG declarations, and npm/tsconfig fields. All of it
// is intentionally done with regular expressions over raw file text rather
// than full parsers for the YAML/Python targets, since these formats are
// read for a handful of known string patterns, not round-tripped.
package configref

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Reference is one (symbol, config file, reason) match.
type Reference struct {
	Symbol     string
	ConfigFile string
	Reason     string
}

// Extractor scans a fixed set of descriptor files under a project root.
type Extractor struct {
	root       string
	references map[string][]Reference
}

func New(root string) *Extractor {
	return &Extractor{root: root, references: make(map[string][]Reference)}
}

// ParseAll runs every descriptor scan and returns symbol -> references.
func (e *Extractor) ParseAll() map[string][]Reference {
	e.parseServerlessYML()
	e.parseSAMTemplate()
	e.parseDjangoSettings()
	e.parseDockerCompose()
	e.parseAirflowDAGs()
	e.parsePackageJSON()
	e.parseTSConfig()
	e.parsePyprojectEntryPoints()
	return e.references
}

func (e *Extractor) addReference(symbol, configFile, reason string) {
	if symbol == "" {
		return
	}
	e.references[symbol] = append(e.references[symbol], Reference{Symbol: symbol, ConfigFile: configFile, Reason: reason})
}

func readFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

var handlerPattern = regexp.MustCompile(`handler:\s*([a-zA-Z0-9_.]+)`)

func (e *Extractor) parseServerlessYML() {
	path := filepath.Join(e.root, "serverless.yml")
	content, ok := readFile(path)
	if !ok {
		return
	}
	for _, m := range handlerPattern.FindAllStringSubmatch(content, -1) {
		parts := strings.Split(m[1], ".")
		if len(parts) >= 2 {
			e.addReference(parts[len(parts)-1], "serverless.yml", "Lambda Handler: "+m[1])
		}
	}
}

var samHandlerPattern = regexp.MustCompile(`Handler:\s*([a-zA-Z0-9_.]+)`)

func (e *Extractor) parseSAMTemplate() {
	for _, name := range []string{"template.yaml", "template.yml"} {
		content, ok := readFile(filepath.Join(e.root, name))
		if !ok {
			continue
		}
		for _, m := range samHandlerPattern.FindAllStringSubmatch(content, -1) {
			parts := strings.Split(m[1], ".")
			if len(parts) >= 2 {
				e.addReference(parts[len(parts)-1], name, "SAM Handler: "+m[1])
			}
		}
	}
}

var (
	installedAppsPattern = regexp.MustCompile(`(?s)INSTALLED_APPS\s*=\s*\[(.*?)\]`)
	middlewarePattern    = regexp.MustCompile(`(?s)MIDDLEWARE\s*=\s*\[(.*?)\]`)
	quotedStringPattern  = regexp.MustCompile(`["']([a-zA-Z0-9_.]+)["']`)
)

func (e *Extractor) parseDjangoSettings() {
	candidates := []string{
		filepath.Join(e.root, "settings.py"),
		filepath.Join(e.root, "config", "settings.py"),
		filepath.Join(e.root, "project", "settings.py"),
	}
	_ = filepath.WalkDir(e.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d == nil || !d.IsDir() {
			return nil
		}
		if d.Name() == "settings" {
			candidates = append(candidates, filepath.Join(path, "__init__.py"), filepath.Join(path, "base.py"))
		}
		return nil
	})

	for _, settingsFile := range candidates {
		content, ok := readFile(settingsFile)
		if !ok {
			continue
		}
		relPath, _ := filepath.Rel(e.root, settingsFile)

		if m := installedAppsPattern.FindStringSubmatch(content); m != nil {
			for _, app := range quotedStringPattern.FindAllStringSubmatch(m[1], -1) {
				for _, part := range strings.Split(app[1], ".") {
					e.addReference(part, relPath, "Django INSTALLED_APPS: "+app[1])
				}
			}
		}

		if m := middlewarePattern.FindStringSubmatch(content); m != nil {
			for _, mw := range quotedStringPattern.FindAllStringSubmatch(m[1], -1) {
				parts := strings.Split(mw[1], ".")
				if len(parts) >= 2 {
					e.addReference(parts[len(parts)-1], relPath, "Django MIDDLEWARE: "+mw[1])
				}
			}
		}
	}
}

var (
	dockerModulePattern = regexp.MustCompile(`python\s+-m\s+([a-zA-Z0-9_.]+)`)
	dockerScriptPattern = regexp.MustCompile(`python\s+([a-zA-Z0-9_]+\.py)`)
	dockerArrayPattern  = regexp.MustCompile(`["']python["'],\s*["']([a-zA-Z0-9_]+\.py)["']`)
)

func (e *Extractor) parseDockerCompose() {
	for _, name := range []string{"docker-compose.yml", "docker-compose.yaml"} {
		content, ok := readFile(filepath.Join(e.root, name))
		if !ok {
			continue
		}
		for _, m := range dockerModulePattern.FindAllStringSubmatch(content, -1) {
			for _, part := range strings.Split(m[1], ".") {
				e.addReference(part, name, "Docker command: python -m "+m[1])
			}
		}
		for _, m := range dockerScriptPattern.FindAllStringSubmatch(content, -1) {
			moduleName := strings.TrimSuffix(m[1], ".py")
			e.addReference(moduleName, name, "Docker script: "+m[1])
		}
		for _, m := range dockerArrayPattern.FindAllStringSubmatch(content, -1) {
			moduleName := strings.TrimSuffix(m[1], ".py")
			e.addReference(moduleName, name, "Docker script: "+m[1])
		}
	}
}

var (
	airflowCallablePattern = regexp.MustCompile(`python_callable\s*=\s*([a-zA-Z0-9_]+)`)
	airflowTaskIDPattern   = regexp.MustCompile(`task_id\s*=\s*["']([a-zA-Z0-9_]+)["']`)
)

func (e *Extractor) parseAirflowDAGs() {
	_ = filepath.WalkDir(e.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d == nil {
			return nil
		}
		if d.IsDir() && d.Name() != "dags" {
			return nil
		}
		if !d.IsDir() || d.Name() != "dags" {
			return nil
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".py") {
				continue
			}
			dagFile := filepath.Join(path, entry.Name())
			content, ok := readFile(dagFile)
			if !ok {
				continue
			}
			relPath, _ := filepath.Rel(e.root, dagFile)
			for _, m := range airflowCallablePattern.FindAllStringSubmatch(content, -1) {
				e.addReference(m[1], relPath, "Airflow python_callable: "+m[1])
			}
			for _, m := range airflowTaskIDPattern.FindAllStringSubmatch(content, -1) {
				e.addReference(m[1], relPath, "Airflow task_id: "+m[1])
			}
		}
		return nil
	})
}

var jsFilePattern = regexp.MustCompile(`[a-zA-Z0-9_/-]+\.(?:js|ts|jsx|tsx|mjs|cjs)`)

func (e *Extractor) parsePackageJSON() {
	path := filepath.Join(e.root, "package.json")
	content, ok := readFile(path)
	if !ok {
		return
	}
	doc := gjson.Parse(content)

	doc.Get("scripts").ForEach(func(scriptName, command gjson.Result) bool {
		for _, match := range jsFilePattern.FindAllString(command.String(), -1) {
			name := strings.TrimSuffix(filepath.Base(match), filepath.Ext(match))
			e.addReference(name, "package.json", "npm script \""+scriptName.String()+"\": "+match)
		}
		return true
	})

	bin := doc.Get("bin")
	if bin.IsObject() {
		bin.ForEach(func(cliName, filePath gjson.Result) bool {
			name := strings.TrimSuffix(filepath.Base(filePath.String()), filepath.Ext(filePath.String()))
			e.addReference(name, "package.json", "bin entry point \""+cliName.String()+"\": "+filePath.String())
			return true
		})
	} else if bin.Type == gjson.String {
		name := strings.TrimSuffix(filepath.Base(bin.String()), filepath.Ext(bin.String()))
		e.addReference(name, "package.json", "bin entry point: "+bin.String())
	}

	if main := doc.Get("main"); main.Exists() {
		name := strings.TrimSuffix(filepath.Base(main.String()), filepath.Ext(main.String()))
		e.addReference(name, "package.json", "main entry point: "+main.String())
	}
	if mod := doc.Get("module"); mod.Exists() {
		name := strings.TrimSuffix(filepath.Base(mod.String()), filepath.Ext(mod.String()))
		e.addReference(name, "package.json", "module entry point: "+mod.String())
	}
}

var (
	lineCommentPattern  = regexp.MustCompile(`//.*`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

func stripJSONComments(content string) string {
	content = blockCommentPattern.ReplaceAllString(content, "")
	content = lineCommentPattern.ReplaceAllString(content, "")
	return content
}

func (e *Extractor) parseTSConfig() {
	path := filepath.Join(e.root, "tsconfig.json")
	content, ok := readFile(path)
	if !ok {
		return
	}
	content = stripJSONComments(content)
	doc := gjson.Parse(content)

	doc.Get("compilerOptions.paths").ForEach(func(alias, targets gjson.Result) bool {
		for _, target := range targets.Array() {
			cleanPath := strings.TrimRight(strings.ReplaceAll(target.String(), "*", ""), "/")
			if cleanPath == "" {
				continue
			}
			dirName := filepath.Base(cleanPath)
			if dirName != "" && dirName != "." {
				e.addReference(dirName, "tsconfig.json", "path mapping \""+alias.String()+"\": "+target.String())
			}
		}
		return true
	})

	for _, f := range doc.Get("files").Array() {
		name := strings.TrimSuffix(filepath.Base(f.String()), filepath.Ext(f.String()))
		e.addReference(name, "tsconfig.json", "explicit file: "+f.String())
	}

	for _, pattern := range doc.Get("include").Array() {
		p := pattern.String()
		if !strings.Contains(p, "*") {
			name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
			if name != "" {
				e.addReference(name, "tsconfig.json", "include pattern: "+p)
			}
		}
	}
}

// parsePyprojectEntryPoints protects the function name of every
// `module:function` shaped value in pyproject.toml. The pattern runs over
// the whole file, not only the [project.scripts] / [project.entry-points]
// tables the orphan detector reads for file-level entry points.
var entryPointTargetPattern = regexp.MustCompile(`[a-zA-Z0-9_.]+:([a-zA-Z0-9_]+)`)

func (e *Extractor) parsePyprojectEntryPoints() {
	path := filepath.Join(e.root, "pyproject.toml")
	content, ok := readFile(path)
	if !ok {
		return
	}
	for _, m := range entryPointTargetPattern.FindAllStringSubmatch(content, -1) {
		e.addReference(m[1], "pyproject.toml", "entry point target: "+m[0])
	}
}
