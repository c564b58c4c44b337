package extractor

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/go-janitor/janitor/internal/astutil"
	"github.com/go-janitor/janitor/internal/model"
)

// ExtractJS walks a parsed JavaScript or TypeScript file and returns every
// function/class/method definition, plus every import (ESM and CommonJS
// require()).
func ExtractJS(filePath string, root *tree_sitter.Node, content []byte) ([]*model.Entity, []*model.Import) {
	var entities []*model.Entity
	var imports []*model.Import

	astutil.WalkTree(root, func(node *tree_sitter.Node) {
		switch node.Kind() {
		case "function_declaration", "generator_function_declaration":
			if e := jsFunctionEntity(filePath, node, content); e != nil {
				entities = append(entities, e)
			}
		case "class_declaration":
			entities = append(entities, jsClassEntity(filePath, node, content))
			entities = append(entities, jsMethodEntities(filePath, node, content)...)
		case "lexical_declaration", "variable_declaration":
			entities = append(entities, jsArrowFunctionEntities(filePath, node, content)...)
		case "import_statement":
			if imp := jsImportStatement(node, content); imp != nil {
				imports = append(imports, imp)
			}
		case "lexical_declaration_require":
			// handled via call_expression below
		case "call_expression":
			if imp := jsRequireCall(node, content); imp != nil {
				imports = append(imports, imp)
			}
		}
	})

	return entities, imports
}

func jsFunctionEntity(filePath string, node *tree_sitter.Node, content []byte) *model.Entity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := astutil.NodeText(nameNode, content)
	return &model.Entity{
		Kind:          model.EntityFunction,
		Name:          name,
		QualifiedName: name,
		FilePath:      filePath,
		Line:          astutil.LineOf(node),
		EndLine:       int(node.EndPosition().Row) + 1,
		IsExported:    jsIsExported(node, content),
		FullText:      astutil.NodeText(node, content),
	}
}

func jsClassEntity(filePath string, node *tree_sitter.Node, content []byte) *model.Entity {
	nameNode := node.ChildByFieldName("name")
	name := astutil.NodeText(nameNode, content)
	return &model.Entity{
		Kind:          model.EntityClass,
		Name:          name,
		QualifiedName: name,
		FilePath:      filePath,
		Line:          astutil.LineOf(node),
		EndLine:       int(node.EndPosition().Row) + 1,
		IsExported:    jsIsExported(node, content),
		BaseClasses:   jsBaseClasses(node, content),
		FullText:      astutil.NodeText(node, content),
	}
}

// jsBaseClasses extracts the identifier(s) named in a `class X extends Y`
// heritage clause.
func jsBaseClasses(node *tree_sitter.Node, content []byte) []string {
	heritage := node.ChildByFieldName("heritage")
	if heritage == nil {
		return nil
	}
	var bases []string
	astutil.WalkTree(heritage, func(n *tree_sitter.Node) {
		if n.Kind() == "identifier" {
			bases = append(bases, astutil.NodeText(n, content))
		}
	})
	return bases
}

func jsMethodEntities(filePath string, classNode *tree_sitter.Node, content []byte) []*model.Entity {
	className := astutil.NodeText(classNode.ChildByFieldName("name"), content)
	body := classNode.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var entities []*model.Entity
	for i := uint(0); i < body.ChildCount(); i++ {
		member := body.Child(i)
		if member == nil || member.Kind() != "method_definition" {
			continue
		}
		nameNode := member.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := astutil.NodeText(nameNode, content)
		entities = append(entities, &model.Entity{
			Kind:          model.EntityMethod,
			Name:          name,
			QualifiedName: className + "." + name,
			FilePath:      filePath,
			Line:          astutil.LineOf(member),
			EndLine:       int(member.EndPosition().Row) + 1,
			ParentClass:   className,
			IsExported:    !strings.HasPrefix(name, "_") && !strings.HasPrefix(name, "#"),
			FullText:      astutil.NodeText(member, content),
		})
	}
	return entities
}

// jsArrowFunctionEntities finds `const foo = () => {...}` / `function(){}`
// bindings at statement level, which behave like function declarations for
// reference tracking purposes (React components, route handlers).
func jsArrowFunctionEntities(filePath string, declNode *tree_sitter.Node, content []byte) []*model.Entity {
	var entities []*model.Entity
	for i := uint(0); i < declNode.ChildCount(); i++ {
		declarator := declNode.Child(i)
		if declarator == nil || declarator.Kind() != "variable_declarator" {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		valueNode := declarator.ChildByFieldName("value")
		if nameNode == nil || valueNode == nil {
			continue
		}
		switch valueNode.Kind() {
		case "arrow_function", "function_expression":
			name := astutil.NodeText(nameNode, content)
			entities = append(entities, &model.Entity{
				Kind:          model.EntityFunction,
				Name:          name,
				QualifiedName: name,
				FilePath:      filePath,
				Line:          astutil.LineOf(declNode),
				EndLine:       int(declNode.EndPosition().Row) + 1,
				IsExported:    jsIsExported(declNode, content),
				FullText:      astutil.NodeText(declNode, content),
			})
		}
	}
	return entities
}

// jsIsExported checks whether node (or its statement ancestor) is wrapped
// in an export_statement.
func jsIsExported(node *tree_sitter.Node, content []byte) bool {
	current := node
	for current != nil {
		if current.Kind() == "export_statement" {
			return true
		}
		current = current.Parent()
	}
	return false
}

func jsImportStatement(node *tree_sitter.Node, content []byte) *model.Import {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return nil
	}
	module := astutil.StripQuotes(astutil.NodeText(sourceNode, content))

	imp := &model.Import{SourceModule: module, Kind: model.ImportNamed, Line: astutil.LineOf(node), LocalAliases: map[string]string{}}

	astutil.WalkTree(node, func(n *tree_sitter.Node) {
		switch n.Kind() {
		case "namespace_import":
			if alias := n.NamedChild(0); alias != nil {
				local := astutil.NodeText(alias, content)
				imp.LocalAliases[local] = "*"
				imp.IsNamespace = true
				imp.Kind = model.ImportNamespace
			}
		case "import_specifier":
			nameNode := n.ChildByFieldName("name")
			aliasNode := n.ChildByFieldName("alias")
			if nameNode == nil {
				return
			}
			name := astutil.NodeText(nameNode, content)
			local := name
			if aliasNode != nil {
				local = astutil.NodeText(aliasNode, content)
			}
			imp.ImportedNames = append(imp.ImportedNames, name)
			imp.LocalAliases[local] = name
		case "identifier":
			if n.Parent() != nil && n.Parent().Kind() == "import_clause" {
				local := astutil.NodeText(n, content)
				imp.LocalAliases[local] = "default"
				imp.Kind = model.ImportDefault
			}
		}
	})

	return imp
}

// jsRequireCall recognizes `const x = require('module')` and
// `const { a, b } = require('module')` CommonJS bindings.
func jsRequireCall(node *tree_sitter.Node, content []byte) *model.Import {
	fn := node.ChildByFieldName("function")
	if fn == nil || astutil.NodeText(fn, content) != "require" {
		return nil
	}
	args := node.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return nil
	}
	firstArg := args.NamedChild(0)
	if firstArg == nil || firstArg.Kind() != "string" {
		return nil
	}
	module := astutil.StripQuotes(astutil.NodeText(firstArg, content))

	declarator := node.Parent()
	if declarator == nil || declarator.Kind() != "variable_declarator" {
		return &model.Import{SourceModule: module, Kind: model.ImportRequire, Line: astutil.LineOf(node)}
	}

	nameNode := declarator.ChildByFieldName("name")
	imp := &model.Import{SourceModule: module, Kind: model.ImportRequire, Line: astutil.LineOf(node), LocalAliases: map[string]string{}}
	if nameNode == nil {
		return imp
	}
	switch nameNode.Kind() {
	case "identifier":
		local := astutil.NodeText(nameNode, content)
		imp.LocalAliases[local] = "default"
	case "object_pattern":
		for i := uint(0); i < nameNode.NamedChildCount(); i++ {
			prop := nameNode.NamedChild(i)
			if prop == nil || prop.Kind() != "shorthand_property_identifier_pattern" {
				continue
			}
			name := astutil.NodeText(prop, content)
			imp.ImportedNames = append(imp.ImportedNames, name)
			imp.LocalAliases[name] = name
		}
	}
	return imp
}
