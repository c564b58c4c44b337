package extractor

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/go-janitor/janitor/internal/astutil"
	"github.com/go-janitor/janitor/internal/model"
)

// ExtractPython walks a parsed Python file and returns every
// function/class/method definition in it (nested ones included), plus every
// import.
func ExtractPython(filePath string, root *tree_sitter.Node, content []byte) ([]*model.Entity, []*model.Import) {
	var entities []*model.Entity
	var imports []*model.Import

	astutil.WalkTree(root, func(node *tree_sitter.Node) {
		switch node.Kind() {
		case "function_definition":
			entities = append(entities, pyFunctionEntity(filePath, node, content))
		case "class_definition":
			entities = append(entities, pyClassEntity(filePath, node, content))
		case "import_statement":
			imports = append(imports, pyImportStatement(node, content)...)
		case "import_from_statement":
			imports = append(imports, pyImportFromStatement(node, content)...)
		}
	})

	return entities, imports
}

func pyDecorators(node *tree_sitter.Node, content []byte) []string {
	parent := node.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return nil
	}
	var decorators []string
	for i := uint(0); i < parent.ChildCount(); i++ {
		child := parent.Child(i)
		if child != nil && child.Kind() == "decorator" {
			decorators = append(decorators, astutil.NodeText(child, content))
		}
	}
	return decorators
}

// pyFullText returns the source text of a definition node, including its
// decorators when present, so downstream edge-case checks (SQLAlchemy
// @declared_attr, @pytest.fixture, and similar decorator-driven rules) can
// scan it without re-walking the tree.
func pyFullText(node *tree_sitter.Node, content []byte) string {
	target := node
	if parent := node.Parent(); parent != nil && parent.Kind() == "decorated_definition" {
		target = parent
	}
	return astutil.NodeText(target, content)
}

func pyParentClass(node *tree_sitter.Node, content []byte) string {
	current := node.Parent()
	for current != nil {
		if current.Kind() == "class_definition" {
			if name := current.ChildByFieldName("name"); name != nil {
				return astutil.NodeText(name, content)
			}
		}
		current = current.Parent()
	}
	return ""
}

func pyFunctionEntity(filePath string, node *tree_sitter.Node, content []byte) *model.Entity {
	nameNode := node.ChildByFieldName("name")
	name := astutil.NodeText(nameNode, content)
	parentClass := pyParentClass(node, content)

	kind := model.EntityFunction
	qualified := name
	if parentClass != "" {
		kind = model.EntityMethod
		qualified = parentClass + "." + name
	}

	return &model.Entity{
		Kind:          kind,
		Name:          name,
		QualifiedName: qualified,
		FilePath:      filePath,
		Line:          astutil.LineOf(node),
		EndLine:       int(node.EndPosition().Row) + 1,
		IsExported:    !strings.HasPrefix(name, "_"),
		IsDunder:      strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__"),
		ParentClass:   parentClass,
		Decorators:    pyDecorators(node, content),
		FullText:      pyFullText(node, content),
	}
}

func pyClassEntity(filePath string, node *tree_sitter.Node, content []byte) *model.Entity {
	nameNode := node.ChildByFieldName("name")
	name := astutil.NodeText(nameNode, content)

	return &model.Entity{
		Kind:          model.EntityClass,
		Name:          name,
		QualifiedName: name,
		FilePath:      filePath,
		Line:          astutil.LineOf(node),
		EndLine:       int(node.EndPosition().Row) + 1,
		IsExported:    !strings.HasPrefix(name, "_"),
		Decorators:    pyDecorators(node, content),
		BaseClasses:   PyBaseClasses(node, content),
		FullText:      pyFullText(node, content),
	}
}

// PyBaseClasses returns the names of the direct base classes listed in a
// class_definition's argument_list ("superclasses" field), used to build
// the Inheritance Map.
func PyBaseClasses(node *tree_sitter.Node, content []byte) []string {
	superclasses := node.ChildByFieldName("superclasses")
	if superclasses == nil {
		return nil
	}
	var bases []string
	for i := uint(0); i < superclasses.ChildCount(); i++ {
		child := superclasses.Child(i)
		if child != nil && (child.Kind() == "identifier" || child.Kind() == "attribute") {
			bases = append(bases, astutil.NodeText(child, content))
		}
	}
	return bases
}

func pyImportStatement(node *tree_sitter.Node, content []byte) []*model.Import {
	var imports []*model.Import
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			module := astutil.NodeText(child, content)
			imports = append(imports, &model.Import{
				SourceModule: module,
				Kind:         model.ImportDefault,
				Line:         astutil.LineOf(node),
			})
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil {
				continue
			}
			module := astutil.NodeText(nameNode, content)
			imp := &model.Import{SourceModule: module, Kind: model.ImportDefault, Line: astutil.LineOf(node)}
			if aliasNode != nil {
				imp.LocalAliases = map[string]string{astutil.NodeText(aliasNode, content): module}
			}
			imports = append(imports, imp)
		}
	}
	return imports
}

func pyImportFromStatement(node *tree_sitter.Node, content []byte) []*model.Import {
	moduleNode := node.ChildByFieldName("module_name")
	module := ""
	if moduleNode != nil {
		module = astutil.NodeText(moduleNode, content)
	} else {
		// relative import with no module name: "from . import x"
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child != nil && child.Kind() == "relative_import" {
				module = astutil.NodeText(child, content)
			}
		}
	}

	imp := &model.Import{SourceModule: module, Kind: model.ImportNamed, Line: astutil.LineOf(node), LocalAliases: map[string]string{}}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			name := astutil.NodeText(child, content)
			if name != module {
				imp.ImportedNames = append(imp.ImportedNames, name)
				imp.LocalAliases[name] = name
			}
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil {
				continue
			}
			name := astutil.NodeText(nameNode, content)
			imp.ImportedNames = append(imp.ImportedNames, name)
			local := name
			if aliasNode != nil {
				local = astutil.NodeText(aliasNode, content)
			}
			imp.LocalAliases[local] = name
		case "wildcard_import":
			imp.Kind = model.ImportNamespace
			imp.IsNamespace = true
		}
	}

	return []*model.Import{imp}
}
