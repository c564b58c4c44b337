// Package reference implements the Reference Tracker & Shield Engine: it
// links every extracted definition to its use sites across the project and
// decides, through an ordered chain of shields, which unreferenced
// definitions are genuinely dead versus protected by a framework
// convention, a config file, a library's public API, or dynamic dispatch
// the static extractor cannot see.
package reference

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/emirpasic/gods/sets/linkedhashset"

	"github.com/go-janitor/janitor/internal/configref"
	"github.com/go-janitor/janitor/internal/heuristics"
	"github.com/go-janitor/janitor/internal/model"
	"github.com/go-janitor/janitor/internal/wisdom"
)

// frameworkLifecycleBases maps a known framework base class to the lifecycle
// method names it implicitly invokes on subclasses.
var frameworkLifecycleBases = map[string][]string{
	"unittest.TestCase": {"setUp", "tearDown", "setUpClass", "tearDownClass", "setUpModule", "tearDownModule"},
	"TestCase":           {"setUp", "tearDown", "setUpClass", "tearDownClass"},
}

// Tracker holds every definition and reference discovered across the
// project and the supporting maps the shield decision procedure consults.
type Tracker struct {
	Root        string
	LibraryMode bool

	Definitions model.DefinitionTable
	References  model.ReferenceTable

	Inheritance *model.InheritanceMap
	VarTypes    *model.VariableTypeMap

	// linkedhashset keeps package exports and dangerous files in insertion
	// order; the shield pass only queries them with Contains.
	PackageExports      *linkedhashset.Set
	MetaprogDangerFiles *linkedhashset.Set
	ConfigReferences    map[string][]configref.Reference

	Wisdom *wisdom.Registry

	grepCache         map[string]string
	heuristicImmortal map[string]string // definition key -> heuristic protection reason
}

func NewTracker(root string, libraryMode bool, reg *wisdom.Registry) *Tracker {
	return &Tracker{
		Root:                root,
		LibraryMode:         libraryMode,
		Definitions:         make(model.DefinitionTable),
		References:          make(model.ReferenceTable),
		Inheritance:         model.NewInheritanceMap(),
		VarTypes:            model.NewVariableTypeMap(),
		PackageExports:      linkedhashset.New(),
		MetaprogDangerFiles: linkedhashset.New(),
		ConfigReferences:    make(map[string][]configref.Reference),
		Wisdom:              reg,
	}
}

// AddDefinition registers an entity's definition and, for classes and
// methods, folds it into the Inheritance Map for the Inheritance Family
// Shield.
func (t *Tracker) AddDefinition(e *model.Entity) {
	key := model.DefinitionKey(e.FilePath, e.QualifiedName)
	t.Definitions[key] = e
	if _, ok := t.References[key]; !ok {
		t.References[key] = nil
	}

	switch {
	case e.Kind == model.EntityClass:
		if len(e.BaseClasses) > 0 {
			addClassHierarchy(t.Inheritance, e.Name, e.BaseClasses)
		}
	case e.ParentClass != "":
		addMethod(t.Inheritance, e.ParentClass, e.Name, key)
	}
}

func addClassHierarchy(m *model.InheritanceMap, class string, bases []string) {
	m.Parents[class] = bases
	for _, base := range bases {
		m.Children[base] = append(m.Children[base], class)
	}
}

func addMethod(m *model.InheritanceMap, class, method, key string) {
	famKey := class + "." + method
	for _, existing := range m.MethodFamilies[famKey] {
		if existing == key {
			return
		}
	}
	m.MethodFamilies[famKey] = append(m.MethodFamilies[famKey], key)
}

// methodFamily returns every symbol key implementing method across the
// inheritance hierarchy rooted/descended from class, matching the Python
// tracker's bidirectional traversal (parents AND children). visited bounds
// the transitive closure against hierarchy cycles.
func methodFamily(m *model.InheritanceMap, class, method string, visited *linkedhashset.Set) []string {
	if visited.Contains(class) {
		return nil
	}
	visited.Add(class)

	var family []string
	family = append(family, m.MethodFamilies[class+"."+method]...)
	for _, parent := range m.Parents[class] {
		family = append(family, methodFamily(m, parent, method, visited)...)
	}
	for _, child := range m.Children[class] {
		family = append(family, methodFamily(m, child, method, visited)...)
	}
	return family
}

// AddReference records a use-site and attempts to link it to a definition
// using, in order: cross-module import match (targetFile set), self/cls
// method match (classContext set), then a bare name-matching fallback.
// Linking a class activates the Constructor Shield; linking a method
// activates the Inheritance Family Shield.
func (t *Tracker) AddReference(symbolName, filePath string, line int, kind model.ReferenceKind, targetFile, classContext string) {
	ref := &model.Reference{Name: symbolName, FilePath: filePath, Line: line, Kind: kind}

	if targetFile != "" {
		targetAbs, _ := filepath.Abs(targetFile)
		for key, e := range t.Definitions {
			entityAbs, _ := filepath.Abs(e.FilePath)
			if entityAbs != targetAbs {
				continue
			}
			if e.Name != symbolName && e.QualifiedName != symbolName {
				continue
			}
			ref.Kind = refKindForEntity(e, kind)
			t.References[key] = append(t.References[key], ref)
			if e.Kind == model.EntityClass {
				t.activateConstructorShield(e, filePath, line)
			}
			return
		}
	} else if classContext != "" {
		for key, e := range t.Definitions {
			if e.ParentClass == classContext && e.Name == symbolName {
				ref.Kind = refKindForEntity(e, kind)
				t.References[key] = append(t.References[key], ref)
				t.protectMethodFamily(classContext, symbolName, filePath, line)
				return
			}
		}
	}

	for key, e := range t.Definitions {
		if e.Name != symbolName && e.QualifiedName != symbolName {
			continue
		}
		ref.Kind = refKindForEntity(e, kind)
		t.References[key] = append(t.References[key], ref)
		if e.Kind == model.EntityClass {
			t.activateConstructorShield(e, filePath, line)
		}
		if e.ParentClass != "" {
			t.protectMethodFamily(e.ParentClass, e.Name, filePath, line)
		}
		return
	}

	placeholder := "unknown::" + symbolName
	t.References[placeholder] = append(t.References[placeholder], ref)
}

// refKindForEntity upgrades a plain call reference to an instantiation
// reference when it resolves to a class, matching spec.md's distinct
// "instantiation" kind for ClassName(...) construction.
func refKindForEntity(e *model.Entity, kind model.ReferenceKind) model.ReferenceKind {
	if kind == model.RefCall && e.Kind == model.EntityClass {
		return model.RefInstantiation
	}
	return kind
}

// AddStringReference links a dynamically-constructed dotted path (e.g. a
// Celery task name or Django model label) to its defining Entity for the
// String-to-Symbol Shield, emitting a reference only when a matching
// Entity actually exists — unlike AddReference, an unmatched string never
// falls back to an "unknown::" placeholder.
func (t *Tracker) AddStringReference(symbolName, filePath string, line int) {
	for key, e := range t.Definitions {
		if e.Name != symbolName && e.QualifiedName != symbolName {
			continue
		}
		t.References[key] = append(t.References[key], &model.Reference{
			Name: symbolName, FilePath: filePath, Line: line, Kind: model.RefStringReference,
		})
		return
	}
}

// activateConstructorShield implicitly references every dunder method of a
// referenced class, and its JS/TS `constructor` method: Python invokes
// __init__/__new__/__call__ and `new` invokes constructor without the
// tracker ever seeing a literal call to them.
func (t *Tracker) activateConstructorShield(class *model.Entity, refFile string, refLine int) {
	for key, e := range t.Definitions {
		if e.ParentClass != class.Name || !(isDunder(e.Name) || e.Name == "constructor") {
			continue
		}
		t.References[key] = append(t.References[key], &model.Reference{
			Name: class.Name + "." + e.Name, FilePath: refFile, Line: refLine, Kind: model.RefImplicitClassUsage,
		})
	}
}

func (t *Tracker) protectMethodFamily(class, method, refFile string, refLine int) {
	for _, key := range methodFamily(t.Inheritance, class, method, linkedhashset.New()) {
		t.References[key] = append(t.References[key], &model.Reference{
			Name: method, FilePath: refFile, Line: refLine, Kind: model.RefInheritanceFamily,
		})
	}
}

// ApplyFrameworkLifecycleProtection protects lifecycle methods (setUp,
// tearDown, ...) on classes that inherit from a known framework base.
// Must run after every AddDefinition call for the project.
func (t *Tracker) ApplyFrameworkLifecycleProtection() {
	for _, e := range t.Definitions {
		if e.Kind != model.EntityClass || len(e.BaseClasses) == 0 {
			continue
		}
		for _, base := range e.BaseClasses {
			methods, ok := frameworkLifecycleBases[base]
			if !ok {
				for frameworkBase, m := range frameworkLifecycleBases {
					if strings.HasSuffix(base, "."+frameworkBase) {
						methods, ok = m, true
						break
					}
				}
			}
			if !ok {
				continue
			}
			for key, method := range t.Definitions {
				if method.ParentClass != e.Name {
					continue
				}
				if !contains(methods, method.Name) {
					continue
				}
				t.References[key] = append(t.References[key], &model.Reference{
					Name: method.Name, FilePath: method.FilePath, Line: method.Line, Kind: model.RefFrameworkLifecycle,
				})
			}
		}
	}
}

// ApplyHeuristicMarks folds the output of internal/heuristics into the
// tracker: reference marks count toward reachability, immortal marks bypass
// it outright via the heuristic protection table the shield pass consults.
func (t *Tracker) ApplyHeuristicMarks(marks []heuristics.Mark) {
	for _, m := range marks {
		switch m.Kind {
		case heuristics.MarkReference:
			t.AddReference(m.Name, "<heuristic>", 0, model.RefHeuristic, "", "")
		case heuristics.MarkImmortal:
			t.MarkImmortal(m.Name, m.Reason)
		}
	}
}

// MarkImmortal flags every definition named symbolName as protected,
// independent of reference counting, recording reason for attribution.
func (t *Tracker) MarkImmortal(symbolName, reason string) {
	if t.heuristicImmortal == nil {
		t.heuristicImmortal = make(map[string]string)
	}
	for _, e := range t.Definitions {
		if e.Name == symbolName || e.QualifiedName == symbolName {
			t.heuristicImmortal[model.DefinitionKey(e.FilePath, e.QualifiedName)] = reason
		}
	}
}

func isDunder(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") && len(name) > 4
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// TrackPackageExport records that symbolName, imported into an __init__.py
// at initFilePath, is part of the package's public surface (Package Export
// Shield).
func (t *Tracker) TrackPackageExport(symbolName, initFilePath, resolvedModuleFile string) {
	if resolvedModuleFile == "" {
		return
	}
	key := model.DefinitionKey(resolvedModuleFile, symbolName)
	if _, ok := t.Definitions[key]; ok {
		t.PackageExports.Add(key)
		return
	}
	// fall back to a name-only scan since qualified name may differ
	for k, e := range t.Definitions {
		if filepath.Clean(e.FilePath) == filepath.Clean(resolvedModuleFile) && e.Name == symbolName {
			t.PackageExports.Add(k)
			return
		}
	}
}

// LoadConfigReferences stores the Config Reference Extractor's output,
// indexed by bare symbol name for the Config Reference Shield.
func (t *Tracker) LoadConfigReferences(refs map[string][]configref.Reference) {
	t.ConfigReferences = refs
}

var dangerPatterns = []string{
	"getattr(", "setattr(", "hasattr(", "delattr(",
	"eval(", "exec(", "compile(",
	"importlib.", "__import__(", ".__dict__",
}

// DetectMetaprogrammingDanger scans every file backing a definition for
// dynamic-execution patterns; every symbol in a flagged file is protected,
// since static analysis cannot trace what getattr/eval might resolve to.
func (t *Tracker) DetectMetaprogrammingDanger() {
	scanned := make(map[string]bool)
	for _, e := range t.Definitions {
		if scanned[e.FilePath] {
			continue
		}
		scanned[e.FilePath] = true

		content, err := os.ReadFile(e.FilePath)
		if err != nil {
			t.MetaprogDangerFiles.Add(e.FilePath)
			continue
		}
		text := string(content)
		for _, p := range dangerPatterns {
			if strings.Contains(text, p) {
				t.MetaprogDangerFiles.Add(e.FilePath)
				break
			}
		}
	}
}
