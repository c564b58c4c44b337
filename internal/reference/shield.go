package reference

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-janitor/janitor/internal/model"
)

// contextSensitiveORMMethods are only protected by inheritance context when
// their class derives from a known ORM base — unlike a random "save" method
// on an unrelated class, which should still be flagged dead if unused.
var contextSensitiveORMMethods = map[string]bool{
	"save": true, "delete": true, "update": true, "create": true, "get": true, "filter": true,
}

var ormBases = map[string]bool{
	"Model": true, "Base": true, "Document": true, "db.Model": true, "models.Model": true,
}

var qtBases = map[string]bool{
	"QMainWindow": true, "QWidget": true, "QDialog": true, "QFrame": true, "QWindow": true,
}

var qtSlotPattern = regexp.MustCompile(`^on_[a-zA-Z0-9]+_[a-zA-Z0-9]+$`)

var extLanguage = map[string]model.Language{
	".py": model.LangPython, ".pyi": model.LangPython,
	".js": model.LangJavaScript, ".jsx": model.LangJavaScript,
	".ts": model.LangTypeScript, ".tsx": model.LangTypeScript,
}

// languageOf derives a definition's language from its file extension, since
// a single project can mix Python and JS/TS and the Wisdom Registry's
// checks are language-specific.
func languageOf(path string) model.Language {
	return extLanguage[strings.ToLower(filepath.Ext(path))]
}

// FindDeadSymbols runs the full ordered shield procedure over every tracked
// definition and returns the ones that survive every protection as dead,
// plus an attribution for every one that was protected.
func (t *Tracker) FindDeadSymbols(enableGrepShield bool) ([]model.DeadSymbol, []model.ProtectionAttribution) {
	var dead []model.DeadSymbol
	var attributions []model.ProtectionAttribution

	protect := func(key string, reason model.ShieldReason, detail string) {
		attributions = append(attributions, model.ProtectionAttribution{Key: key, Reason: reason, Detail: detail})
	}

	var grepCache map[string]string
	if enableGrepShield {
		grepCache = t.buildGrepShieldCache()
	}

	for key, e := range t.Definitions {
		// Stage 0: directory shield.
		if dir, ok := immortalDirectory(e.FilePath); ok {
			protect(key, model.ShieldDirectory, dir+"/")
			continue
		}

		refs := t.References[key]
		var external, internal bool
		for _, r := range refs {
			if r.FilePath == e.FilePath {
				internal = true
			} else {
				external = true
			}
		}
		if external {
			protect(key, model.ShieldCrossFileRef, "")
			continue
		}
		if internal {
			protect(key, model.ShieldSameFileRef, "")
			continue
		}

		// Stage 2: Wisdom Registry (framework/meta immortality).
		if t.Wisdom != nil {
			verdict := t.Wisdom.IsImmortal(qualifiedOrName(e), e.FullText, languageOf(e.FilePath))
			if verdict.Immortal {
				protect(key, model.ShieldWisdom, verdict.Framework)
				continue
			}
		}

		// Stage 2.5: library mode public symbol shield.
		if t.LibraryMode && isPublicSymbol(e) {
			protect(key, model.ShieldLibraryMode, "")
			continue
		}

		// Stage 2.6: package export shield.
		if t.PackageExports.Contains(key) {
			protect(key, model.ShieldPackageExport, "")
			continue
		}

		// Stage 2.7: config reference shield.
		if refs, ok := t.ConfigReferences[e.Name]; ok && len(refs) > 0 {
			protect(key, model.ShieldConfigReference, refs[0].Reason)
			continue
		}

		// Stage 2.8: metaprogramming danger shield.
		if t.MetaprogDangerFiles.Contains(e.FilePath) {
			protect(key, model.ShieldMetaprogDanger, "getattr/eval/exec detected in file")
			continue
		}

		// Stage: heuristic immortality (forward refs, lifespan teardown,
		// polymorphic ORM, React hooks, Express routes, export protection).
		if reason, ok := t.heuristicImmortal[key]; ok {
			protect(key, model.ShieldFrameworkHeur, reason)
			continue
		}

		// Stage 4: entry point.
		if isEntryPointSymbol(e) {
			protect(key, model.ShieldEntryPoint, "")
			continue
		}

		// Framework edge cases (Qt slots, SQLAlchemy metaprogramming,
		// inheritance context, Pydantic alias generator, FastAPI dependency
		// overrides, pytest fixtures).
		if e.ParentClass != "" && t.checkQtAutoConnection(e) {
			protect(key, model.ShieldFrameworkEdge, "Qt auto-connection slot")
			continue
		}
		if checkSQLAlchemyMetaprogramming(e) {
			protect(key, model.ShieldFrameworkEdge, "SQLAlchemy metaprogramming")
			continue
		}
		if e.ParentClass != "" && t.checkInheritanceContext(e) {
			protect(key, model.ShieldFrameworkEdge, "ORM lifecycle method")
			continue
		}
		if checkPydanticAliasGenerator(e) {
			protect(key, model.ShieldFrameworkHeur, "Pydantic v2 alias generator")
			continue
		}
		if checkFastAPIDependencyOverride(e) {
			protect(key, model.ShieldFrameworkHeur, "FastAPI dependency override")
			continue
		}
		if checkPytestFixture(e) {
			protect(key, model.ShieldFrameworkHeur, "pytest fixture")
			continue
		}

		// Stage 5: grep shield (optional, slow).
		if enableGrepShield && isDynamicallyReferenced(e.Name, e.FilePath, grepCache) {
			protect(key, model.ShieldGrep, "found in global string search")
			continue
		}

		dead = append(dead, model.DeadSymbol{Entity: e, Key: key})
	}

	return dead, attributions
}

func qualifiedOrName(e *model.Entity) string {
	if e.QualifiedName != "" {
		return e.QualifiedName
	}
	return e.Name
}

func immortalDirectory(path string) (string, bool) {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if model.ImmortalDirectories[strings.ToLower(part)] {
			return part, true
		}
	}
	return "", false
}

func isPublicSymbol(e *model.Entity) bool {
	return !strings.HasPrefix(e.Name, "_")
}

// isEntryPointSymbol protects module-level `main` functions and dunder
// `__main__`-style entry hooks that a CLI framework invokes by convention,
// not by an in-repo call the tracker could see.
func isEntryPointSymbol(e *model.Entity) bool {
	if e.ParentClass != "" {
		return false
	}
	switch e.Name {
	case "main", "__main__":
		return true
	}
	return false
}

func (t *Tracker) checkQtAutoConnection(e *model.Entity) bool {
	if !qtSlotPattern.MatchString(e.Name) {
		return false
	}
	for _, base := range t.Inheritance.Parents[e.ParentClass] {
		if qtBases[base] {
			return true
		}
	}
	content, err := os.ReadFile(e.FilePath)
	if err != nil {
		return false
	}
	text := string(content)
	if !strings.Contains(text, "PySide") && !strings.Contains(text, "PyQt") {
		return false
	}
	for base := range qtBases {
		if strings.Contains(text, base) {
			return true
		}
	}
	return false
}

func checkSQLAlchemyMetaprogramming(e *model.Entity) bool {
	if strings.Contains(e.FullText, "@declared_attr") || strings.Contains(e.FullText, "@hybrid_property") {
		return true
	}
	switch e.Name {
	case "__abstract__", "__tablename__", "__table_args__":
		return true
	}
	return false
}

func (t *Tracker) checkInheritanceContext(e *model.Entity) bool {
	if !contextSensitiveORMMethods[e.Name] {
		return false
	}
	for _, base := range t.Inheritance.Parents[e.ParentClass] {
		if ormBases[base] || strings.HasSuffix(base, ".Model") || strings.HasSuffix(base, ".Base") {
			return true
		}
	}
	return false
}

func checkPydanticAliasGenerator(e *model.Entity) bool {
	if e.Kind != model.EntityVariable || e.ParentClass == "" {
		return false
	}
	content, err := os.ReadFile(e.FilePath)
	if err != nil {
		return false
	}
	text := string(content)
	if !strings.Contains(text, "BaseModel") && !strings.Contains(text, "pydantic") {
		return false
	}
	return strings.Contains(text, "alias_generator") && strings.Contains(text, "model_config")
}

func checkFastAPIDependencyOverride(e *model.Entity) bool {
	if e.Kind != model.EntityFunction {
		return false
	}
	content, err := os.ReadFile(e.FilePath)
	if err != nil {
		return false
	}
	text := string(content)
	if !strings.Contains(text, "dependency_overrides") {
		return false
	}
	pattern := regexp.MustCompile(`dependency_overrides\[.*?\]\s*=\s*` + regexp.QuoteMeta(e.Name))
	return pattern.MatchString(text)
}

func checkPytestFixture(e *model.Entity) bool {
	if e.Kind != model.EntityFunction {
		return false
	}
	if strings.Contains(e.FullText, "@pytest.fixture") || strings.Contains(e.FullText, "@fixture") {
		return true
	}
	if strings.HasSuffix(e.FilePath, "conftest.py") {
		content, err := os.ReadFile(e.FilePath)
		if err == nil {
			text := string(content)
			if strings.Contains(text, "pytest") || strings.Contains(text, "@fixture") {
				return true
			}
		}
	}
	return false
}

var vendoredDirs = map[string]bool{
	"vendor": true, "extern": true, "third_party": true, "blib2to3": true,
	"_internal": true, "dist": true, "build": true, "node_modules": true,
	".tox": true, ".venv": true, "venv": true, ".virtualenv": true,
	"site-packages": true, "__pycache__": true,
}

func isUnderVendoredDir(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if vendoredDirs[part] {
			return true
		}
	}
	return false
}

// buildGrepShieldCache reads every non-vendored source file once so the grep
// shield doesn't re-read files per dead-symbol candidate.
func (t *Tracker) buildGrepShieldCache() map[string]string {
	cache := make(map[string]string)
	seen := make(map[string]bool)
	for _, e := range t.Definitions {
		if seen[e.FilePath] {
			continue
		}
		seen[e.FilePath] = true
		if isUnderVendoredDir(e.FilePath) {
			continue
		}
		content, err := os.ReadFile(e.FilePath)
		if err != nil {
			continue
		}
		abs, err := filepath.Abs(e.FilePath)
		if err != nil {
			abs = e.FilePath
		}
		cache[abs] = string(content)
	}
	return cache
}

// isDynamicallyReferenced is the final safety net: it looks for the symbol
// name appearing as a plain string anywhere outside its own defining file,
// catching eval()/getattr()/factory-pattern usage static analysis misses.
func isDynamicallyReferenced(symbolName, definingFile string, cache map[string]string) bool {
	definingAbs, err := filepath.Abs(definingFile)
	if err != nil {
		definingAbs = definingFile
	}
	for path, content := range cache {
		if path == definingAbs {
			continue
		}
		if strings.Contains(content, symbolName) {
			return true
		}
	}
	return false
}
