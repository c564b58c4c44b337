package heuristics

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/go-janitor/janitor/internal/astutil"
)

var reactHookNames = map[string]bool{"useEffect": true, "useCallback": true, "useMemo": true}
var expressRouteMethods = map[string]bool{"get": true, "post": true, "put": true, "delete": true, "patch": true, "use": true, "all": true}

// ApplyJSHeuristics runs every JS/TS-specific heuristic over root and
// returns the combined set of Marks. importMap lets the hook/route
// heuristics confirm a call actually originates from react/express rather
// than a same-named local helper.
func ApplyJSHeuristics(root *tree_sitter.Node, content []byte, importMap ImportMap, libraryMode bool) []Mark {
	var marks []Mark
	marks = append(marks, reactHooks(root, content, importMap)...)
	marks = append(marks, expressRoutes(root, content, importMap)...)
	marks = append(marks, exportProtection(root, content, libraryMode)...)
	return marks
}

// reactHooks scans useEffect/useCallback/useMemo calls and treats every
// identifier in the dependency array (their second argument) as referenced:
// the linter-enforced dependency list is itself a usage site, even though it
// never calls the named value.
func reactHooks(root *tree_sitter.Node, content []byte, importMap ImportMap) []Mark {
	var marks []Mark
	astutil.WalkTree(root, func(node *tree_sitter.Node) {
		if node.Kind() != "call_expression" {
			return
		}
		fn := node.ChildByFieldName("function")
		if fn == nil {
			return
		}
		funcName := astutil.NodeText(fn, content)

		isReactHook := false
		if origin, ok := importMap[funcName]; ok {
			if origin.SourceModule == "react" && reactHookNames[origin.OriginalName] {
				isReactHook = true
			}
		} else if reactHookNames[funcName] {
			isReactHook = true
		}
		if !isReactHook {
			return
		}

		args := node.ChildByFieldName("arguments")
		if args == nil {
			return
		}
		var positional []*tree_sitter.Node
		for i := uint(0); i < args.ChildCount(); i++ {
			child := args.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case ",", "(", ")":
				continue
			}
			positional = append(positional, child)
		}
		if len(positional) < 2 || positional[1].Kind() != "array" {
			return
		}
		marks = append(marks, scanDependencyArray(positional[1], content)...)
	})
	return marks
}

func scanDependencyArray(arrayNode *tree_sitter.Node, content []byte) []Mark {
	var marks []Mark
	for i := uint(0); i < arrayNode.ChildCount(); i++ {
		child := arrayNode.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier":
			marks = append(marks, reference(astutil.NodeText(child, content)))
		case "[", "]", ",":
			continue
		default:
			astutil.WalkTree(child, func(n *tree_sitter.Node) {
				if n.Kind() == "identifier" {
					marks = append(marks, reference(astutil.NodeText(n, content)))
				}
			})
		}
	}
	return marks
}

// expressRoutes scans app.get()/router.post() style calls and marks every
// identifier argument (the route handler, plus any middleware before it) as
// immortal, since Express invokes them by reference at request time, not by
// a name the tracker can see called anywhere else.
func expressRoutes(root *tree_sitter.Node, content []byte, importMap ImportMap) []Mark {
	var marks []Mark
	astutil.WalkTree(root, func(node *tree_sitter.Node) {
		if node.Kind() != "call_expression" {
			return
		}
		fn := node.ChildByFieldName("function")
		if fn == nil || fn.Kind() != "member_expression" {
			return
		}
		property := fn.ChildByFieldName("property")
		object := fn.ChildByFieldName("object")
		if property == nil || object == nil {
			return
		}
		method := astutil.NodeText(property, content)
		objectName := astutil.NodeText(object, content)
		if !expressRouteMethods[method] {
			return
		}

		isExpress := false
		if origin, ok := importMap[objectName]; ok {
			if origin.SourceModule == "express" {
				isExpress = true
			}
		} else if objectName == "app" || objectName == "router" {
			isExpress = true
		}
		if !isExpress {
			return
		}

		args := node.ChildByFieldName("arguments")
		if args == nil {
			return
		}
		for i := uint(0); i < args.ChildCount(); i++ {
			arg := args.Child(i)
			if arg != nil && arg.Kind() == "identifier" {
				marks = append(marks, immortal(astutil.NodeText(arg, content), "Express route handler"))
			}
		}
	})
	return marks
}

// exportProtection marks `export default` as always immortal (it's the
// package/application entry point), and, in library mode, extends the same
// protection to every named export: a library's public API is reachable
// from outside this repository, so ordinary in-repo reference counting
// would otherwise flag it dead.
func exportProtection(root *tree_sitter.Node, content []byte, libraryMode bool) []Mark {
	var marks []Mark
	astutil.WalkTree(root, func(node *tree_sitter.Node) {
		if node.Kind() != "export_statement" {
			return
		}

		isDefault := false
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child != nil && astutil.NodeText(child, content) == "default" {
				isDefault = true
				break
			}
		}

		if isDefault {
			for i := uint(0); i < node.ChildCount(); i++ {
				child := node.Child(i)
				if child == nil {
					continue
				}
				switch child.Kind() {
				case "identifier":
					marks = append(marks, immortal(astutil.NodeText(child, content), "Export default"))
				case "function_declaration", "class_declaration":
					if nameNode := child.ChildByFieldName("name"); nameNode != nil {
						marks = append(marks, immortal(astutil.NodeText(nameNode, content), "Export default"))
					}
				}
			}
			return
		}

		if !libraryMode {
			return
		}

		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "export_clause":
				marks = append(marks, exportClauseNames(child, content)...)
			case "lexical_declaration", "variable_declaration":
				marks = append(marks, exportedDeclarationNames(child, content)...)
			case "function_declaration", "class_declaration":
				if nameNode := child.ChildByFieldName("name"); nameNode != nil {
					marks = append(marks, immortal(astutil.NodeText(nameNode, content), "Export declaration"))
				}
			}
		}
	})
	return marks
}

// exportClauseNames handles `export { A, B as C }`.
func exportClauseNames(clauseNode *tree_sitter.Node, content []byte) []Mark {
	var marks []Mark
	for i := uint(0); i < clauseNode.ChildCount(); i++ {
		spec := clauseNode.Child(i)
		if spec == nil || spec.Kind() != "export_specifier" {
			continue
		}
		if nameNode := spec.ChildByFieldName("name"); nameNode != nil {
			marks = append(marks, immortal(astutil.NodeText(nameNode, content), "Named export"))
			continue
		}
		for j := uint(0); j < spec.ChildCount(); j++ {
			c := spec.Child(j)
			if c != nil && c.Kind() == "identifier" {
				marks = append(marks, immortal(astutil.NodeText(c, content), "Named export"))
				break
			}
		}
	}
	return marks
}

// exportedDeclarationNames handles `export const x = 1`, including
// destructured bindings like `export const { a, b } = obj`.
func exportedDeclarationNames(declNode *tree_sitter.Node, content []byte) []Mark {
	var marks []Mark
	for i := uint(0); i < declNode.ChildCount(); i++ {
		declarator := declNode.Child(i)
		if declarator == nil || declarator.Kind() != "variable_declarator" {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		switch nameNode.Kind() {
		case "identifier":
			marks = append(marks, immortal(astutil.NodeText(nameNode, content), "Exported variable"))
		case "array_pattern", "object_pattern":
			marks = append(marks, destructuredNames(nameNode, content)...)
		}
	}
	return marks
}

func destructuredNames(node *tree_sitter.Node, content []byte) []Mark {
	var marks []Mark
	if node.Kind() == "identifier" {
		marks = append(marks, immortal(astutil.NodeText(node, content), "Exported destructured"))
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "shorthand_property_identifier", "shorthand_property_identifier_pattern":
			marks = append(marks, immortal(astutil.NodeText(child, content), "Exported destructured"))
		case ":", "{", "}", "[", "]", ",":
			continue
		default:
			marks = append(marks, destructuredNames(child, content)...)
		}
	}
	return marks
}
