package reference

import (
	"strings"
	"unicode"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/go-janitor/janitor/internal/astutil"
	"github.com/go-janitor/janitor/internal/model"
)

// ExtractPythonReferences walks a parsed Python file, recording every call,
// attribute access, decorator, and type annotation as a reference, then
// resolves each import against the already-resolved import list so
// cross-file references link via file path, not just bare name.
func (t *Tracker) ExtractPythonReferences(filePath string, root *tree_sitter.Node, content []byte, imports []*model.Import, isPackageInit bool) {
	for _, imp := range imports {
		if imp.ResolvedPath == "" {
			continue
		}
		names := imp.ImportedNames
		if len(names) == 0 && imp.SourceModule != "" {
			parts := strings.Split(imp.SourceModule, ".")
			names = []string{parts[len(parts)-1]}
		}
		for _, name := range names {
			t.AddReference(name, filePath, imp.Line, model.RefName, imp.ResolvedPath, "")
			if isPackageInit {
				t.TrackPackageExport(name, filePath, imp.ResolvedPath)
			}
		}
	}

	walker := &pyRefWalker{tracker: t, filePath: filePath, content: content}
	walker.walk(root)
}

type pyRefWalker struct {
	tracker  *Tracker
	filePath string
	content  []byte
}

func (w *pyRefWalker) walk(node *tree_sitter.Node) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "call":
		w.handleCall(node)
	case "decorator":
		w.handleDecorator(node)
	case "type":
		w.handleTypeAnnotation(node)
	case "assignment":
		w.handleAssignment(node)
	case "if_statement":
		w.handleIfStatement(node)
		return
	case "identifier":
		w.handleIdentifierUsage(node)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		w.walk(node.Child(i))
	}
}

func (w *pyRefWalker) handleCall(node *tree_sitter.Node) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}
	line := astutil.LineOf(node)

	switch fn.Kind() {
	case "identifier":
		name := astutil.NodeText(fn, w.content)
		w.tracker.AddReference(name, w.filePath, line, model.RefCall, "", "")
		if dependencyInjectionCallees[name] {
			w.handleDependencyInjectionCall(node, line)
		}
		if stringToSymbolCallees[name] {
			w.handleStringToSymbolCall(node, line)
		}
	case "attribute":
		object := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if object == nil || attr == nil {
			return
		}
		method := astutil.NodeText(attr, w.content)
		objectText := astutil.NodeText(object, w.content)

		if objectText == "self" || objectText == "cls" {
			if className := astutil.FindAncestor(node, "class_definition"); className != nil {
				nameNode := className.ChildByFieldName("name")
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

func (w *pyRefWalker) handleDecorator(node *tree_sitter.Node) {
	line := astutil.LineOf(node)
	astutil.WalkUntil(node, func(n *tree_sitter.Node) bool {
		if n.Kind() == "call" {
			return false // handled by handleCall on its own walk pass
		}
		if n.Kind() == "identifier" {
			w.tracker.AddReference(astutil.NodeText(n, w.content), w.filePath, line, model.RefDecorator, "", "")
			return false
		}
		return true
	})
}

func (w *pyRefWalker) handleTypeAnnotation(node *tree_sitter.Node) {
	line := astutil.LineOf(node)
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "identifier" {
			w.tracker.AddReference(astutil.NodeText(child, w.content), w.filePath, line, model.RefTypeAnnotation, "", "")
		}
	}
}

// handleAssignment infers `x = ClassName()` bindings so later `x.method()`
// calls can resolve through the Inheritance Family Shield via classContext.
func (w *pyRefWalker) handleAssignment(node *tree_sitter.Node) {
	if node.ChildCount() < 3 {
		return
	}
	left := node.Child(0)
	right := node.Child(2)
	if left == nil || right == nil || left.Kind() != "identifier" || right.Kind() != "call" {
		return
	}
	fn := right.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "identifier" {
		return
	}
	typeName := astutil.NodeText(fn, w.content)
	if typeName == "" || !unicode.IsUpper(rune(typeName[0])) {
		return
	}
	w.tracker.VarTypes.Set(astutil.NodeText(left, w.content), typeName)
}

// handleIfStatement narrows the variable-type map for the duration of an
// `if isinstance(x, T):` body, per spec.md's scope-push rule: later method
// calls on x inside the body resolve against T instead of (or on top of)
// whatever was previously recorded for x.
func (w *pyRefWalker) handleIfStatement(node *tree_sitter.Node) {
	varName, className, narrows := isinstanceNarrowing(node.ChildByFieldName("condition"), w.content)
	consequence := node.ChildByFieldName("consequence")

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if narrows && sameNode(child, consequence) {
			w.tracker.VarTypes.PushScope()
			w.tracker.VarTypes.Set(varName, className)
			w.walk(child)
			w.tracker.VarTypes.PopScope()
			continue
		}
		w.walk(child)
	}
}

// isinstanceNarrowing reports the (variable, class) pair an `isinstance(x,
// T)` condition narrows, if condition has that exact two-identifier shape.
func isinstanceNarrowing(condition *tree_sitter.Node, content []byte) (varName, className string, ok bool) {
	if condition == nil || condition.Kind() != "call" {
		return "", "", false
	}
	fn := condition.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "identifier" || astutil.NodeText(fn, content) != "isinstance" {
		return "", "", false
	}
	args := condition.ChildByFieldName("arguments")
	if args == nil {
		return "", "", false
	}

	var positional []*tree_sitter.Node
	for i := uint(0); i < args.ChildCount(); i++ {
		child := args.Child(i)
		if child != nil && child.Kind() == "identifier" {
			positional = append(positional, child)
		}
	}
	if len(positional) < 2 {
		return "", "", false
	}
	return astutil.NodeText(positional[0], content), astutil.NodeText(positional[1], content), true
}

// dependencyInjectionCallees are the FastAPI-style marker calls whose sole
// argument names the actual dependency being injected (spec.md's Type-hint
// DI shield), typically nested inside an `Annotated[T, Depends(f)]` hint.
var dependencyInjectionCallees = map[string]bool{
	"Depends": true, "Security": true, "Inject": true,
}

func (w *pyRefWalker) handleDependencyInjectionCall(node *tree_sitter.Node, line int) {
	args := node.ChildByFieldName("arguments")
	if args == nil {
		return
	}
	for i := uint(0); i < args.ChildCount(); i++ {
		arg := args.Child(i)
		if arg != nil && arg.Kind() == "identifier" {
			w.tracker.AddReference(astutil.NodeText(arg, w.content), w.filePath, line, model.RefDependencyInjection, "", "")
			return
		}
	}
}

// stringToSymbolCallees are call names whose string argument dynamically
// names a symbol rather than calling one directly (Celery's signature/s/si,
// RQ/Dramatiq-style task lookups, Django's get_model/get_task).
var stringToSymbolCallees = map[string]bool{
	"signature": true, "s": true, "si": true, "task": true,
	"get_model": true, "get_task": true,
}

func (w *pyRefWalker) handleStringToSymbolCall(node *tree_sitter.Node, line int) {
	args := node.ChildByFieldName("arguments")
	if args == nil {
		return
	}
	for i := uint(0); i < args.ChildCount(); i++ {
		arg := args.Child(i)
		if arg == nil || arg.Kind() != "string" {
			continue
		}
		value := astutil.StripQuotes(astutil.NodeText(arg, w.content))
		if !strings.Contains(value, ".") {
			return
		}
		parts := strings.Split(value, ".")
		symbol := parts[len(parts)-1]
		if symbol != "" {
			w.tracker.AddStringReference(symbol, w.filePath, line)
		}
		return
	}
}

// handleIdentifierUsage implements the general identifier usage reference:
// any identifier not in a binding/defining position (a def's own name, a
// parameter's own name, anything inside an import statement or decorator,
// or the left-hand side of an assignment) is a use of whatever it names,
// even when it is never called, decorated, or type-annotated — a name
// passed as a bare value (`handler = my_func`, `register(my_func)`, an
// entry in a list literal) must still count as live.
func (w *pyRefWalker) handleIdentifierUsage(node *tree_sitter.Node) {
	if isBindingPosition(node) {
		return
	}
	name := astutil.NodeText(node, w.content)
	if name == "" {
		return
	}
	w.tracker.AddReference(name, w.filePath, astutil.LineOf(node), model.RefUsage, "", "")
}

func isBindingPosition(node *tree_sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}

	switch parent.Kind() {
	case "function_definition", "class_definition":
		if sameNode(parent.ChildByFieldName("name"), node) {
			return true
		}
	case "parameters":
		return true
	case "typed_parameter", "default_parameter", "typed_default_parameter":
		if parent.ChildCount() > 0 && sameNode(parent.Child(0), node) {
			return true
		}
	}

	if astutil.FindAncestor(node, "decorator", "import_statement", "import_from_statement") != nil {
		return true
	}

	if assign := astutil.FindAncestor(node, "assignment"); assign != nil {
		if left := assign.ChildByFieldName("left"); left != nil &&
			node.StartByte() >= left.StartByte() && node.EndByte() <= left.EndByte() {
			return true
		}
	}

	return false
}

func sameNode(a, b *tree_sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}
