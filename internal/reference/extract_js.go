package reference

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/go-janitor/janitor/internal/astutil"
	"github.com/go-janitor/janitor/internal/model"
)

// ExtractJSReferences walks a parsed JavaScript/TypeScript file, recording
// every call, `new` instantiation, member access, JSX element usage, and
// decorator as a reference, then resolves each import against the already
// resolved import list so cross-file references link via file path.
func (t *Tracker) ExtractJSReferences(filePath string, root *tree_sitter.Node, content []byte, imports []*model.Import, isIndexFile bool) {
	for _, imp := range imports {
		if imp.ResolvedPath == "" {
			continue
		}
		for local, origin := range imp.LocalAliases {
			symbolName := origin
			if symbolName == "default" || symbolName == "*" {
				symbolName = local
			}
			t.AddReference(symbolName, filePath, imp.Line, model.RefName, imp.ResolvedPath, "")
			if isIndexFile {
				t.TrackPackageExport(symbolName, filePath, imp.ResolvedPath)
			}
		}
	}

	walker := &jsRefWalker{tracker: t, filePath: filePath, content: content}
	walker.walk(root)
}

type jsRefWalker struct {
	tracker  *Tracker
	filePath string
	content  []byte
}

func (w *jsRefWalker) walk(node *tree_sitter.Node) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "call_expression":
		w.handleCall(node)
	case "new_expression":
		w.handleNew(node)
	case "jsx_opening_element", "jsx_self_closing_element":
		w.handleJSXElement(node)
	case "decorator":
		w.handleDecorator(node)
	case "type_annotation":
		w.handleTypeAnnotation(node)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		w.walk(node.Child(i))
	}
}

func (w *jsRefWalker) handleCall(node *tree_sitter.Node) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}
	line := astutil.LineOf(node)

	switch fn.Kind() {
	case "identifier":
		w.tracker.AddReference(astutil.NodeText(fn, w.content), w.filePath, line, model.RefCall, "", "")
	case "member_expression":
		object := fn.ChildByFieldName("object")
		property := fn.ChildByFieldName("property")
		if object == nil || property == nil {
			return
		}
		method := astutil.NodeText(property, w.content)
		objectText := astutil.NodeText(object, w.content)

		if objectText == "this" {
			if classNode := astutil.FindAncestor(node, "class_declaration"); classNode != nil {
				nameNode := classNode.ChildByFieldName("name")
				w.tracker.AddReference(method, w.filePath, line, model.RefCall, "", astutil.NodeText(nameNode, w.content))
				return
			}
		}

		if object.Kind() == "identifier" {
			if inferredType, ok := w.tracker.VarTypes.Lookup(objectText); ok {
				w.tracker.AddReference(method, w.filePath, line, model.RefCall, "", inferredType)
				return
			}
		}

		w.tracker.AddReference(method, w.filePath, line, model.RefAttribute, "", "")
	}
}

// handleNew links `new ClassName()` to the class, which activates the
// Constructor Shield for its `constructor` method, the JS/TS equivalent of
// Python's implicit __init__ dispatch.
func (w *jsRefWalker) handleNew(node *tree_sitter.Node) {
	fn := node.ChildByFieldName("constructor")
	if fn == nil || fn.Kind() != "identifier" {
		return
	}
	w.tracker.AddReference(astutil.NodeText(fn, w.content), w.filePath, astutil.LineOf(node), model.RefCall, "", "")
}

// handleJSXElement treats <Component .../> as a reference to the Component
// identifier, since JSX usage never shows up as a plain call_expression.
func (w *jsRefWalker) handleJSXElement(node *tree_sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := astutil.NodeText(nameNode, w.content)
	if name == "" || name[0] < 'A' || name[0] > 'Z' {
		return // lowercase tags are host elements (div, span), not component references
	}
	w.tracker.AddReference(name, w.filePath, astutil.LineOf(node), model.RefName, "", "")
}

func (w *jsRefWalker) handleDecorator(node *tree_sitter.Node) {
	line := astutil.LineOf(node)
	astutil.WalkUntil(node, func(n *tree_sitter.Node) bool {
		if n.Kind() == "call_expression" {
			return false
		}
		if n.Kind() == "identifier" {
			w.tracker.AddReference(astutil.NodeText(n, w.content), w.filePath, line, model.RefDecorator, "", "")
			return false
		}
		return true
	})
}

func (w *jsRefWalker) handleTypeAnnotation(node *tree_sitter.Node) {
	line := astutil.LineOf(node)
	astutil.WalkTree(node, func(n *tree_sitter.Node) {
		if n.Kind() == "type_identifier" {
			w.tracker.AddReference(astutil.NodeText(n, w.content), w.filePath, line, model.RefTypeAnnotation, "", "")
		}
	})
}
