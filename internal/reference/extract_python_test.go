package reference

import (
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-janitor/janitor/internal/model"
	"github.com/go-janitor/janitor/internal/parser"
)

func containsRefKind(refs []*model.Reference, kind model.ReferenceKind) bool {
	for _, r := range refs {
		if r.Kind == kind {
			return true
		}
	}
	return false
}

func parsePython(t *testing.T, src string) ([]byte, *tree_sitter.Node) {
	t.Helper()
	p, err := parser.NewTreeSitterParser()
	require.NoError(t, err)
	t.Cleanup(p.Close)

	content := []byte(src)
	tree, err := p.ParseFile(model.LangPython, ".py", content)
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	root := tree.RootNode()
	return content, root
}

func TestExtractPythonReferences_DirectCall(t *testing.T) {
	tr := newTestTracker(t)
	src := "def helper():\n    pass\n\ndef main():\n    helper()\n"
	content, root := parsePython(t, src)

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "helper", QualifiedName: "helper", FilePath: "mod.py"})
	tr.ExtractPythonReferences("mod.py", root, content, nil, false)

	refs := tr.References[model.DefinitionKey("mod.py", "helper")]
	assert.NotEmpty(t, refs)
	assert.True(t, containsRefKind(refs, model.RefCall))
}

func TestExtractPythonReferences_SelfMethodCall(t *testing.T) {
	tr := newTestTracker(t)
	src := "class Job:\n    def run(self):\n        self.execute()\n\n    def execute(self):\n        pass\n"
	content, root := parsePython(t, src)

	tr.AddDefinition(&model.Entity{Kind: model.EntityMethod, Name: "execute", QualifiedName: "Job.execute", FilePath: "job.py", ParentClass: "Job"})
	tr.ExtractPythonReferences("job.py", root, content, nil, false)

	assert.NotEmpty(t, tr.References[model.DefinitionKey("job.py", "Job.execute")])
}

func TestExtractPythonReferences_Decorator(t *testing.T) {
	tr := newTestTracker(t)
	src := "@app.route\ndef view():\n    pass\n"
	content, root := parsePython(t, src)

	tr.ExtractPythonReferences("views.py", root, content, nil, false)

	refs := tr.References["unknown::app"]
	require.Len(t, refs, 1)
	assert.Equal(t, model.RefDecorator, refs[0].Kind)
}

func TestExtractPythonReferences_AssignmentInfersVarType(t *testing.T) {
	tr := newTestTracker(t)
	src := "class Widget:\n    def render(self):\n        pass\n\ndef build():\n    w = Widget()\n    w.render()\n"
	content, root := parsePython(t, src)

	tr.AddDefinition(&model.Entity{Kind: model.EntityMethod, Name: "render", QualifiedName: "Widget.render", FilePath: "w.py", ParentClass: "Widget"})
	tr.ExtractPythonReferences("w.py", root, content, nil, false)

	assert.NotEmpty(t, tr.References[model.DefinitionKey("w.py", "Widget.render")])
}

func TestExtractPythonReferences_BareValueAssignmentEmitsUsage(t *testing.T) {
	tr := newTestTracker(t)
	src := "def my_func():\n    pass\n\ndef wire():\n    handler = my_func\n"
	content, root := parsePython(t, src)

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "my_func", QualifiedName: "my_func", FilePath: "mod.py"})
	tr.ExtractPythonReferences("mod.py", root, content, nil, false)

	refs := tr.References[model.DefinitionKey("mod.py", "my_func")]
	require.NotEmpty(t, refs)
	assert.True(t, containsRefKind(refs, model.RefUsage))
}

func TestExtractPythonReferences_CallArgumentIdentifierEmitsUsage(t *testing.T) {
	tr := newTestTracker(t)
	src := "def my_func():\n    pass\n\ndef wire():\n    register(my_func)\n"
	content, root := parsePython(t, src)

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "my_func", QualifiedName: "my_func", FilePath: "mod.py"})
	tr.ExtractPythonReferences("mod.py", root, content, nil, false)

	refs := tr.References[model.DefinitionKey("mod.py", "my_func")]
	require.NotEmpty(t, refs)
	assert.True(t, containsRefKind(refs, model.RefUsage))
}

func TestExtractPythonReferences_AssignmentLeftHandSideIsNotUsage(t *testing.T) {
	tr := newTestTracker(t)
	// "result" is bound (excluded) on the left of the assignment, then used
	// once (not excluded) in the return statement — exactly one reference,
	// not two, confirms the left-hand side itself was skipped.
	src := "def build():\n    result = 1\n    return result\n"
	content, root := parsePython(t, src)

	tr.ExtractPythonReferences("mod.py", root, content, nil, false)

	assert.Len(t, tr.References["unknown::result"], 1)
}

func TestExtractPythonReferences_DependencyInjectionShield(t *testing.T) {
	tr := newTestTracker(t)
	src := "def create_task():\n    pass\n\ndef handler(task: Annotated[Task, Depends(create_task)]):\n    pass\n"
	content, root := parsePython(t, src)

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "create_task", QualifiedName: "create_task", FilePath: "mod.py"})
	tr.ExtractPythonReferences("mod.py", root, content, nil, false)

	refs := tr.References[model.DefinitionKey("mod.py", "create_task")]
	require.NotEmpty(t, refs)
	assert.True(t, containsRefKind(refs, model.RefDependencyInjection))
}

func TestExtractPythonReferences_StringToSymbolShield(t *testing.T) {
	tr := newTestTracker(t)
	src := "def trigger():\n    signature('app.tasks.send_email')\n"
	content, root := parsePython(t, src)

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "send_email", QualifiedName: "send_email", FilePath: "tasks.py"})
	tr.ExtractPythonReferences("mod.py", root, content, nil, false)

	refs := tr.References[model.DefinitionKey("tasks.py", "send_email")]
	require.NotEmpty(t, refs)
	assert.True(t, containsRefKind(refs, model.RefStringReference))
}

func TestExtractPythonReferences_StringToSymbolShieldNoMatchingEntity(t *testing.T) {
	tr := newTestTracker(t)
	src := "def trigger():\n    signature('app.tasks.ghost')\n"
	content, root := parsePython(t, src)

	tr.ExtractPythonReferences("mod.py", root, content, nil, false)

	assert.Empty(t, tr.References["unknown::ghost"])
}

func TestExtractPythonReferences_IsinstanceNarrowsMethodResolution(t *testing.T) {
	tr := newTestTracker(t)
	src := "class Foo:\n    def bar(self):\n        pass\n\n" +
		"def handle(x):\n    if isinstance(x, Foo):\n        x.bar()\n"
	content, root := parsePython(t, src)

	tr.AddDefinition(&model.Entity{Kind: model.EntityMethod, Name: "bar", QualifiedName: "Foo.bar", FilePath: "mod.py", ParentClass: "Foo"})
	tr.ExtractPythonReferences("mod.py", root, content, nil, false)

	assert.NotEmpty(t, tr.References[model.DefinitionKey("mod.py", "Foo.bar")])
}

func TestExtractPythonReferences_ImportTracksPackageExport(t *testing.T) {
	tr := newTestTracker(t)
	src := "from .util import helper\n"
	content, root := parsePython(t, src)

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "helper", QualifiedName: "helper", FilePath: "util.py"})
	imports := []*model.Import{{SourceModule: ".util", ImportedNames: []string{"helper"}, ResolvedPath: "util.py", Line: 1}}

	tr.ExtractPythonReferences("__init__.py", root, content, imports, true)

	assert.True(t, tr.PackageExports.Contains(model.DefinitionKey("util.py", "helper")))
}
