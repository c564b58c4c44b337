package heuristics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-janitor/janitor/internal/model"
	"github.com/go-janitor/janitor/internal/parser"
)

func applyJS(t *testing.T, lang model.Language, ext, src string, importMap ImportMap, libraryMode bool) []Mark {
	t.Helper()
	p, err := parser.NewTreeSitterParser()
	require.NoError(t, err)
	t.Cleanup(p.Close)

	content := []byte(src)
	tree, err := p.ParseFile(lang, ext, content)
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	return ApplyJSHeuristics(tree.RootNode(), content, importMap, libraryMode)
}

func TestReactHooks_DependencyArrayIsReferenced(t *testing.T) {
	src := "useEffect(() => { doThing(); }, [userId, onChange]);\n"
	marks := applyJS(t, model.LangJavaScript, ".js", src, ImportMap{}, false)

	m, ok := findMark(marks, "userId")
	require.True(t, ok)
	assert.Equal(t, MarkReference, m.Kind)
	_, ok = findMark(marks, "onChange")
	assert.True(t, ok)
}

func TestReactHooks_ConfirmsOriginViaImportMap(t *testing.T) {
	src := "useEffect(() => {}, [value]);\n"
	importMap := ImportMap{"useEffect": {SourceModule: "react", OriginalName: "useEffect"}}
	marks := applyJS(t, model.LangJavaScript, ".js", src, importMap, false)

	_, ok := findMark(marks, "value")
	assert.True(t, ok)
}

func TestReactHooks_IgnoresLocalHelperWithSameName(t *testing.T) {
	src := "useEffect(() => {}, [value]);\n"
	importMap := ImportMap{"useEffect": {SourceModule: "./local-helpers", OriginalName: "useEffect"}}
	marks := applyJS(t, model.LangJavaScript, ".js", src, importMap, false)

	_, ok := findMark(marks, "value")
	assert.False(t, ok)
}

func TestExpressRoutes_HandlerMarkedImmortal(t *testing.T) {
	src := "app.get('/users', authenticate, listUsers);\n"
	marks := applyJS(t, model.LangJavaScript, ".js", src, ImportMap{}, false)

	m, ok := findMark(marks, "listUsers")
	require.True(t, ok)
	assert.Equal(t, MarkImmortal, m.Kind)
	assert.Equal(t, "Express route handler", m.Reason)

	_, ok = findMark(marks, "authenticate")
	assert.True(t, ok)
}

func TestExpressRoutes_IgnoresNonRouteMethodCalls(t *testing.T) {
	src := "app.listen(3000, startupCallback);\n"
	marks := applyJS(t, model.LangJavaScript, ".js", src, ImportMap{}, false)

	_, ok := findMark(marks, "startupCallback")
	assert.False(t, ok)
}

func TestExportProtection_DefaultFunctionIsImmortal(t *testing.T) {
	src := "export default function App() {}\n"
	marks := applyJS(t, model.LangJavaScript, ".js", src, ImportMap{}, false)

	m, ok := findMark(marks, "App")
	require.True(t, ok)
	assert.Equal(t, MarkImmortal, m.Kind)
	assert.Equal(t, "Export default", m.Reason)
}

func TestExportProtection_NamedExportsOnlyProtectedInLibraryMode(t *testing.T) {
	src := "export const helper = () => {};\n"

	marks := applyJS(t, model.LangJavaScript, ".js", src, ImportMap{}, false)
	_, ok := findMark(marks, "helper")
	assert.False(t, ok)

	marks = applyJS(t, model.LangJavaScript, ".js", src, ImportMap{}, true)
	m, ok := findMark(marks, "helper")
	require.True(t, ok)
	assert.Equal(t, MarkImmortal, m.Kind)
}

func TestExportProtection_DestructuredExportInLibraryMode(t *testing.T) {
	src := "export const { a, b: renamed } = obj;\n"
	marks := applyJS(t, model.LangJavaScript, ".js", src, ImportMap{}, true)

	_, ok := findMark(marks, "a")
	assert.True(t, ok)
	_, ok = findMark(marks, "renamed")
	assert.True(t, ok)
}

func TestBuildImportMap_ResolvesAliases(t *testing.T) {
	imports := []*model.Import{
		{SourceModule: "react", LocalAliases: map[string]string{"useEffect": "useEffect"}},
		{SourceModule: "./util", LocalAliases: map[string]string{"h": "helper"}},
	}
	m := BuildImportMap(imports)

	assert.Equal(t, ImportOrigin{SourceModule: "react", OriginalName: "useEffect"}, m["useEffect"])
	assert.Equal(t, ImportOrigin{SourceModule: "./util", OriginalName: "helper"}, m["h"])
}
