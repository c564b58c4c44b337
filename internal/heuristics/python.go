package heuristics

import (
	"unicode"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/go-janitor/janitor/internal/astutil"
)

// ApplyPythonHeuristics runs every Python-specific heuristic over root and
// returns the combined set of Marks.
func ApplyPythonHeuristics(root *tree_sitter.Node, content []byte) []Mark {
	var marks []Mark
	marks = append(marks, forwardRefs(root, content)...)
	marks = append(marks, lifespanTeardown(root, content)...)
	marks = append(marks, polymorphicORM(root, content)...)
	return marks
}

// forwardRefs scans type annotations for string literals, e.g.
// `x: List['User']`, and treats the quoted name as referenced: Pydantic and
// dataclasses resolve these lazily by name, so the tracker would otherwise
// see no usage of User at all.
func forwardRefs(root *tree_sitter.Node, content []byte) []Mark {
	var marks []Mark
	astutil.WalkTree(root, func(node *tree_sitter.Node) {
		if node.Kind() != "type" {
			return
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil || child.Kind() != "string" {
				continue
			}
			name := astutil.StripQuotes(astutil.NodeText(child, content))
			if isIdentifier(name) {
				marks = append(marks, reference(name))
				return
			}
		}
	})
	return marks
}

// lifespanTeardown finds @asynccontextmanager functions and marks every
// identifier that appears lexically after the yield statement as immortal:
// that code only runs during application shutdown, so ordinary reachability
// analysis never observes it executing.
func lifespanTeardown(root *tree_sitter.Node, content []byte) []Mark {
	var marks []Mark
	astutil.WalkTree(root, func(node *tree_sitter.Node) {
		if node.Kind() != "decorated_definition" {
			return
		}

		hasDecorator := false
		var funcBody *tree_sitter.Node

		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "decorator":
				astutil.WalkTree(child, func(dec *tree_sitter.Node) {
					if dec.Kind() == "identifier" && astutil.NodeText(dec, content) == "asynccontextmanager" {
						hasDecorator = true
					}
				})
			case "function_definition":
				for j := uint(0); j < child.ChildCount(); j++ {
					fc := child.Child(j)
					if fc != nil && fc.Kind() == "block" {
						funcBody = fc
						break
					}
				}
			}
		}

		if !hasDecorator || funcBody == nil {
			return
		}

		yieldNode := findYieldNode(funcBody)
		if yieldNode == nil {
			return
		}

		scanning := false
		for i := uint(0); i < funcBody.ChildCount(); i++ {
			stmt := funcBody.Child(i)
			if stmt == nil {
				continue
			}
			if stmt.StartByte() == yieldNode.StartByte() && stmt.EndByte() == yieldNode.EndByte() {
				scanning = true
				continue
			}
			if scanning {
				marks = append(marks, identifiersImmortal(stmt, content, "Lifespan teardown (post-yield)")...)
			}
		}
	})
	return marks
}

func findYieldNode(node *tree_sitter.Node) *tree_sitter.Node {
	if node.Kind() == "yield" && node.IsNamed() {
		return node
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			if found := findYieldNode(child); found != nil {
				return found
			}
		}
	}
	return nil
}

func identifiersImmortal(node *tree_sitter.Node, content []byte, reason string) []Mark {
	var marks []Mark
	astutil.WalkTree(node, func(n *tree_sitter.Node) {
		if n.Kind() == "identifier" {
			marks = append(marks, immortal(astutil.NodeText(n, content), reason))
		}
	})
	return marks
}

// polymorphicORM finds classes assigning __mapper_args__ in their body and
// marks the class name immortal: SQLAlchemy instantiates polymorphic
// subclasses from its mapper registry based on a discriminator column, never
// via a literal constructor call the tracker could see.
func polymorphicORM(root *tree_sitter.Node, content []byte) []Mark {
	var marks []Mark
	astutil.WalkTree(root, func(node *tree_sitter.Node) {
		if node.Kind() != "class_definition" {
			return
		}

		var className string
		var hasMapperArgs bool

		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "identifier":
				if className == "" {
					className = astutil.NodeText(child, content)
				}
			case "block":
				hasMapperArgs = blockHasMapperArgs(child, content)
			}
		}

		if className != "" && hasMapperArgs {
			marks = append(marks, immortal(className, "Polymorphic ORM (__mapper_args__)"))
		}
	})
	return marks
}

func blockHasMapperArgs(node *tree_sitter.Node, content []byte) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "expression_statement" {
			for j := uint(0); j < child.ChildCount(); j++ {
				expr := child.Child(j)
				if expr == nil || expr.Kind() != "assignment" {
					continue
				}
				for k := uint(0); k < expr.ChildCount(); k++ {
					assignTarget := expr.Child(k)
					if assignTarget != nil && assignTarget.Kind() == "identifier" &&
						astutil.NodeText(assignTarget, content) == "__mapper_args__" {
						return true
					}
				}
			}
		}
		if blockHasMapperArgs(child, content) {
			return true
		}
	}
	return false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !(unicode.IsLetter(r) || r == '_') {
			return false
		}
		if i > 0 && !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}
