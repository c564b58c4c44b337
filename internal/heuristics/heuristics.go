// Package heuristics implements framework-aware detection rules that the
// reference tracker cannot derive from plain syntax-reference walking alone:
// string-typed forward references, async context-manager teardown code,
// polymorphic ORM registration, React hook dependency arrays, Express route
// handlers, and module export protection.
//
// Each heuristic walks a parsed tree and returns Marks; the reference
// tracker folds them into its reference table and immortal set, it never
// calls back into the heuristics themselves.
package heuristics

import "github.com/go-janitor/janitor/internal/model"

// MarkKind distinguishes a plain reference (counts toward reachability)
// from an immortality grant (the symbol is treated as always reachable).
type MarkKind int

const (
	MarkReference MarkKind = iota
	MarkImmortal
)

// Mark is a single heuristic finding: either "treat name as referenced"
// or "treat name as immortal", with a human-readable reason for the latter.
type Mark struct {
	Kind   MarkKind
	Name   string
	Reason string
}

func reference(name string) Mark {
	return Mark{Kind: MarkReference, Name: name}
}

func immortal(name, reason string) Mark {
	return Mark{Kind: MarkImmortal, Name: name, Reason: reason}
}

// ImportOrigin describes where a locally-bound name came from, letting
// heuristics that check a module origin (React hooks, Express apps) avoid
// false positives on identically-named local functions.
type ImportOrigin struct {
	SourceModule string
	OriginalName string
}

// ImportMap is keyed by the local (possibly aliased) name bound by an
// import statement.
type ImportMap map[string]ImportOrigin

// BuildImportMap flattens a file's extracted imports into a local-name ->
// origin lookup, resolving aliases back to their original imported name.
func BuildImportMap(imports []*model.Import) ImportMap {
	m := make(ImportMap)
	for _, imp := range imports {
		for local, original := range imp.LocalAliases {
			m[local] = ImportOrigin{SourceModule: imp.SourceModule, OriginalName: original}
		}
	}
	return m
}
