package heuristics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-janitor/janitor/internal/model"
	"github.com/go-janitor/janitor/internal/parser"
)

func findMark(marks []Mark, name string) (Mark, bool) {
	for _, m := range marks {
		if m.Name == name {
			return m, true
		}
	}
	return Mark{}, false
}

func applyPython(t *testing.T, src string) []Mark {
	t.Helper()
	p, err := parser.NewTreeSitterParser()
	require.NoError(t, err)
	t.Cleanup(p.Close)

	content := []byte(src)
	tree, err := p.ParseFile(model.LangPython, ".py", content)
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	return ApplyPythonHeuristics(tree.RootNode(), content)
}

func TestForwardRefs_StringAnnotationIsReferenced(t *testing.T) {
	marks := applyPython(t, "class User:\n    pass\n\ndef build(x: 'User'):\n    pass\n")

	m, ok := findMark(marks, "User")
	require.True(t, ok)
	assert.Equal(t, MarkReference, m.Kind)
}

func TestLifespanTeardown_MarksPostYieldIdentifiersImmortal(t *testing.T) {
	src := "@asynccontextmanager\n" +
		"async def lifespan(app):\n" +
		"    yield\n" +
		"    cleanup_resources()\n"
	marks := applyPython(t, src)

	m, ok := findMark(marks, "cleanup_resources")
	require.True(t, ok)
	assert.Equal(t, MarkImmortal, m.Kind)
	assert.Equal(t, "Lifespan teardown (post-yield)", m.Reason)
}

func TestLifespanTeardown_IgnoresPreYieldIdentifiers(t *testing.T) {
	src := "@asynccontextmanager\n" +
		"async def lifespan(app):\n" +
		"    setup_resources()\n" +
		"    yield\n"
	marks := applyPython(t, src)

	_, ok := findMark(marks, "setup_resources")
	assert.False(t, ok)
}

func TestLifespanTeardown_IgnoresUndecoratedFunctions(t *testing.T) {
	src := "async def lifespan(app):\n" +
		"    yield\n" +
		"    cleanup_resources()\n"
	marks := applyPython(t, src)

	_, ok := findMark(marks, "cleanup_resources")
	assert.False(t, ok)
}

func TestPolymorphicORM_MapperArgsMarksClassImmortal(t *testing.T) {
	src := "class Employee(Base):\n" +
		"    __mapper_args__ = {'polymorphic_identity': 'employee'}\n"
	marks := applyPython(t, src)

	m, ok := findMark(marks, "Employee")
	require.True(t, ok)
	assert.Equal(t, MarkImmortal, m.Kind)
	assert.Equal(t, "Polymorphic ORM (__mapper_args__)", m.Reason)
}

func TestPolymorphicORM_IgnoresClassesWithoutMapperArgs(t *testing.T) {
	src := "class Plain:\n    def run(self):\n        pass\n"
	marks := applyPython(t, src)

	_, ok := findMark(marks, "Plain")
	assert.False(t, ok)
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, isIdentifier("User"))
	assert.True(t, isIdentifier("_private"))
	assert.False(t, isIdentifier(""))
	assert.False(t, isIdentifier("List[User]"))
	assert.False(t, isIdentifier("3User"))
}
