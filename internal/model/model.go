// Package model defines the shared data types that flow through the
// dependency graph builder, extractor, resolver, cache, and reference
// tracker.
package model

import tree_sitter "github.com/tree-sitter/go-tree-sitter"

// Language identifies one of the three supported source languages.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
)

// FileClass distinguishes source files from tests, generated, and excluded
// files during discovery.
type FileClass int

const (
	ClassSource FileClass = iota
	ClassTest
	ClassGenerated
	ClassExcluded
)

func (c FileClass) String() string {
	switch c {
	case ClassSource:
		return "source"
	case ClassTest:
		return "test"
	case ClassGenerated:
		return "generated"
	case ClassExcluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// DiscoveredFile is one file found by the Walker, already language- and
// class-tagged.
type DiscoveredFile struct {
	Path     string // absolute path
	RelPath  string // relative to project root
	Language Language
	Class    FileClass
	ModTime  int64
	Size     int64
}

// ParsedFile pairs a DiscoveredFile with its parsed syntax tree. The Tree
// must be closed by whoever owns the parse (see parser.TreeSitterParser).
type ParsedFile struct {
	File    DiscoveredFile
	Tree    *tree_sitter.Tree
	Content []byte
}

// EntityKind distinguishes the kinds of definitions the extractor records.
type EntityKind int

const (
	EntityFunction EntityKind = iota
	EntityClass
	EntityMethod
	EntityVariable
)

func (k EntityKind) String() string {
	switch k {
	case EntityFunction:
		return "function"
	case EntityClass:
		return "class"
	case EntityMethod:
		return "method"
	case EntityVariable:
		return "variable"
	default:
		return "unknown"
	}
}

// Entity is a single definition discovered in a source file: a function,
// class, method, or module-level variable.
type Entity struct {
	Kind          EntityKind
	Name          string        // bare identifier, e.g. "foo"
	QualifiedName string        // "ClassName.method" for methods, else Name
	FilePath      string
	Line          int
	EndLine       int
	IsExported    bool // language-specific export/visibility rule
	IsDunder      bool // Python __init__ etc.
	ParentClass   string
	Decorators    []string
	BaseClasses   []string // direct superclasses, for class entities only
	FullText      string   // source text of the definition, decorators included
}

// DefinitionKey is the global key a definition is stored under:
// "<file_path>::<qualified_name>".
func DefinitionKey(filePath, qualifiedName string) string {
	return filePath + "::" + qualifiedName
}

// ImportKind distinguishes how a module was imported.
type ImportKind int

const (
	ImportDefault ImportKind = iota
	ImportNamed
	ImportNamespace
	ImportSideEffect
	ImportRequire
)

// Import is one import/require statement extracted from a file, prior to
// resolution.
type Import struct {
	SourceModule   string // raw module specifier, e.g. "./util" or "os.path"
	ImportedNames  []string
	LocalAliases   map[string]string // local name -> imported name
	Kind           ImportKind
	IsNamespace    bool
	Line           int
	ResolvedPath   string // filled in by the resolver; empty if unresolved
}

// ReferenceKind distinguishes the syntactic shape of a reference.
type ReferenceKind int

const (
	RefCall ReferenceKind = iota
	RefAttribute
	RefName
	RefDecorator
	RefTypeAnnotation
	RefInheritance
	RefInstantiation       // ClassName(...) construction, not an ordinary call
	RefUsage               // bare identifier outside any def/bind/import/decorator position
	RefImplicitClassUsage  // Constructor Shield: a class with no visible Foo(...) call site
	RefInheritanceFamily   // Inheritance Family Shield: same-named method elsewhere in the hierarchy
	RefFrameworkLifecycle  // lifecycle hook a framework base class calls (e.g. unittest setUp/tearDown)
	RefDependencyInjection // Annotated[T, Depends(f)] / Security(f) / Inject(f)
	RefStringReference     // Celery/Django-style "a.b.c" string-to-symbol lookup
	RefHeuristic           // framework-specific heuristic mark (React hooks, Qt slots, ...)
)

// Reference is one use-site of a name, prior to linking against a
// definition.
type Reference struct {
	Name          string
	QualifiedHint string // e.g. "obj.method" when the receiver's class is known
	Kind          ReferenceKind
	FilePath      string
	Line          int
	InferredType  string // class name if the receiver's type was narrowed
}

// DefinitionTable maps a global definition key to its Entity.
type DefinitionTable map[string]*Entity

// ReferenceTable maps a global definition key to the references that point
// at it, across the whole project.
type ReferenceTable map[string][]*Reference

// InheritanceMap tracks class hierarchies for the Inheritance Family
// Shield and Constructor Shield.
type InheritanceMap struct {
	Parents        map[string][]string // class -> direct parent class names
	Children       map[string][]string // class -> direct child class names
	MethodFamilies map[string][]string // "ClassName.method" -> that class's own definition keys; the hierarchy walk goes through Parents/Children
}

func NewInheritanceMap() *InheritanceMap {
	return &InheritanceMap{
		Parents:        make(map[string][]string),
		Children:       make(map[string][]string),
		MethodFamilies: make(map[string][]string),
	}
}

// VariableTypeMap records the inferred or narrowed class of variables,
// keyed by variable name, for a single in-progress walk of one file. It
// supports scope push/pop since narrowing is lexically scoped.
type VariableTypeMap struct {
	scopes []map[string]string
}

func NewVariableTypeMap() *VariableTypeMap {
	return &VariableTypeMap{scopes: []map[string]string{make(map[string]string)}}
}

func (v *VariableTypeMap) PushScope() {
	v.scopes = append(v.scopes, make(map[string]string))
}

func (v *VariableTypeMap) PopScope() {
	if len(v.scopes) > 1 {
		v.scopes = v.scopes[:len(v.scopes)-1]
	}
}

func (v *VariableTypeMap) Set(name, className string) {
	v.scopes[len(v.scopes)-1][name] = className
}

func (v *VariableTypeMap) Lookup(name string) (string, bool) {
	for i := len(v.scopes) - 1; i >= 0; i-- {
		if t, ok := v.scopes[i][name]; ok {
			return t, true
		}
	}
	return "", false
}

// DependencyGraph is a directed graph over file paths: an edge A->B means
// A imports B.
type DependencyGraph struct {
	Forward map[string][]string // file -> files it imports
	Reverse map[string][]string // file -> files that import it
	Nodes   []string            // all known files, in discovery order
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		Forward: make(map[string][]string),
		Reverse: make(map[string][]string),
	}
}

// AddEdge records that from imports to. Duplicate edges are ignored.
func (g *DependencyGraph) AddEdge(from, to string) {
	for _, existing := range g.Forward[from] {
		if existing == to {
			return
		}
	}
	g.Forward[from] = append(g.Forward[from], to)
	g.Reverse[to] = append(g.Reverse[to], from)
}

// AddNode registers a file as part of the graph even if it has no edges.
func (g *DependencyGraph) AddNode(path string) {
	if _, ok := g.Forward[path]; ok {
		return
	}
	for _, n := range g.Nodes {
		if n == path {
			return
		}
	}
	g.Nodes = append(g.Nodes, path)
}

// InDegree returns the number of files that import path.
func (g *DependencyGraph) InDegree(path string) int {
	return len(g.Reverse[path])
}

// WisdomRule is one entry from the community or premium rule registry.
type WisdomRule struct {
	Pattern   string
	MatchType string // "exact", "prefix", "suffix", "syntax", "decorator"
	Framework string
	Tier      string // "community" or "premium"
	Reason    string
	Language  Language
}

// ShieldReason names which of the 12 shield clauses protected a symbol, for
// attribution reporting.
type ShieldReason string

const (
	ShieldDirectory        ShieldReason = "directory"
	ShieldCrossFileRef     ShieldReason = "cross_file_reference"
	ShieldSameFileRef      ShieldReason = "same_file_reference"
	ShieldWisdom           ShieldReason = "wisdom_rule"
	ShieldLibraryMode      ShieldReason = "library_mode"
	ShieldPackageExport    ShieldReason = "package_export"
	ShieldConfigReference  ShieldReason = "config_reference"
	ShieldMetaprogDanger   ShieldReason = "metaprogramming_danger"
	ShieldEntryPoint       ShieldReason = "entry_point_heuristic"
	ShieldFrameworkEdge    ShieldReason = "framework_edge_case"
	ShieldFrameworkHeur    ShieldReason = "framework_heuristic"
	ShieldGrep             ShieldReason = "grep_shield"
)

// ImmortalDirectories are the directories whose contents the symbol
// directory shield (spec.md §4.6/§6) treats as run by an external harness
// rather than imported by project code: tests, examples, docs, scripts, and
// similar conventionally entry-point-only trees. Shared by the Orphan
// Detector and the Reference Tracker's directory shield so both layers
// agree on scope.
var ImmortalDirectories = map[string]bool{
	"tests": true, "test": true,
	"examples": true, "example": true,
	"docs": true, "doc": true, "docs_src": true, "documentation": true,
	"scripts": true, "script": true,
	"requirements": true,
	"tutorial":     true, "tutorials": true,
	"benchmarks": true, "benchmark": true,
	"sandbox": true, "bin": true,
	"action": true, "actions": true,
	"profiling": true, "tools": true,
	"blib2to3": true,
}

// DeadSymbol is one definition the Reference Tracker concluded is
// unreferenced.
type DeadSymbol struct {
	Entity *Entity
	Key    string
}

// ProtectionAttribution records why a symbol was NOT flagged dead.
type ProtectionAttribution struct {
	Key    string
	Reason ShieldReason
	Detail string
}

// ProjectResult is the full output of one analyze() run.
type ProjectResult struct {
	OrphanFiles   []string
	DeadSymbols   []DeadSymbol
	Attributions  []ProtectionAttribution
	Stats         Stats
	FromCache     bool
}

// Stats carries the supplemented reporting fields (orphan breakdown,
// per-shield counts) described alongside the core pipeline.
type Stats struct {
	TotalFiles           int
	TotalDefinitions      int
	OrphanCount           int
	OrphanByExtension     map[string]int
	DeadSymbolCount       int
	PerShieldCounts       map[ShieldReason]int
}
