package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-janitor/janitor/internal/model"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFindDeadSymbols_DirectoryShieldProtectsTestDir(t *testing.T) {
	tr := newTestTracker(t)
	dir := t.TempDir()
	testDirPath := filepath.Join(dir, "tests", "helper.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(testDirPath), 0o755))
	require.NoError(t, os.WriteFile(testDirPath, []byte("def helper():\n    pass\n"), 0o644))

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "helper", QualifiedName: "helper", FilePath: testDirPath})

	dead, attributions := tr.FindDeadSymbols(false)
	assert.Empty(t, dead)
	require.Len(t, attributions, 1)
	assert.Equal(t, model.ShieldDirectory, attributions[0].Reason)
}

func TestFindDeadSymbols_UnreferencedSymbolIsDead(t *testing.T) {
	tr := newTestTracker(t)
	dir := t.TempDir()
	path := writeTempFile(t, dir, "mod.py", "def orphaned():\n    pass\n")

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "orphaned", QualifiedName: "orphaned", FilePath: path})

	dead, attributions := tr.FindDeadSymbols(false)
	require.Len(t, dead, 1)
	assert.Empty(t, attributions)
	assert.Equal(t, "orphaned", dead[0].Entity.Name)
}

func TestFindDeadSymbols_CrossFileReferenceProtects(t *testing.T) {
	tr := newTestTracker(t)
	dir := t.TempDir()
	path := writeTempFile(t, dir, "mod.py", "def used():\n    pass\n")

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "used", QualifiedName: "used", FilePath: path})
	tr.AddReference("used", filepath.Join(dir, "main.py"), 2, model.RefCall, "", "")

	dead, attributions := tr.FindDeadSymbols(false)
	assert.Empty(t, dead)
	require.Len(t, attributions, 1)
	assert.Equal(t, model.ShieldCrossFileRef, attributions[0].Reason)
}

func TestFindDeadSymbols_PackageExportShieldProtects(t *testing.T) {
	tr := newTestTracker(t)
	dir := t.TempDir()
	path := writeTempFile(t, dir, "mod.py", "def public_api():\n    pass\n")

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "public_api", QualifiedName: "public_api", FilePath: path})
	tr.TrackPackageExport("public_api", filepath.Join(dir, "__init__.py"), path)

	dead, attributions := tr.FindDeadSymbols(false)
	assert.Empty(t, dead)
	require.Len(t, attributions, 1)
	assert.Equal(t, model.ShieldPackageExport, attributions[0].Reason)
}

func TestFindDeadSymbols_MetaprogrammingDangerShieldProtects(t *testing.T) {
	tr := newTestTracker(t)
	dir := t.TempDir()
	path := writeTempFile(t, dir, "dynamic.py", "def resolver():\n    return getattr(obj, 'x')\n")

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "resolver", QualifiedName: "resolver", FilePath: path})
	tr.DetectMetaprogrammingDanger()

	dead, attributions := tr.FindDeadSymbols(false)
	assert.Empty(t, dead)
	require.Len(t, attributions, 1)
	assert.Equal(t, model.ShieldMetaprogDanger, attributions[0].Reason)
}

func TestFindDeadSymbols_EntryPointShieldProtectsMain(t *testing.T) {
	// No Wisdom registry: the community rules list "main" as an exact match,
	// and the Wisdom clause runs before the entry-point clause.
	tr := NewTracker(t.TempDir(), false, nil)
	dir := t.TempDir()
	path := writeTempFile(t, dir, "app.py", "def main():\n    pass\n")

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "main", QualifiedName: "main", FilePath: path})

	dead, attributions := tr.FindDeadSymbols(false)
	assert.Empty(t, dead)
	require.Len(t, attributions, 1)
	assert.Equal(t, model.ShieldEntryPoint, attributions[0].Reason)
}

func TestFindDeadSymbols_LibraryModeProtectsPublicSymbol(t *testing.T) {
	tr := NewTracker(t.TempDir(), true, nil)
	dir := t.TempDir()
	path := writeTempFile(t, dir, "api.py", "def public_fn():\n    pass\n")

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "public_fn", QualifiedName: "public_fn", FilePath: path})

	dead, attributions := tr.FindDeadSymbols(false)
	assert.Empty(t, dead)
	require.Len(t, attributions, 1)
	assert.Equal(t, model.ShieldLibraryMode, attributions[0].Reason)
}

func TestFindDeadSymbols_GrepShieldCatchesDynamicStringUsage(t *testing.T) {
	// No Wisdom registry: the community rules list "handle_" as a prefix,
	// and the Wisdom clause runs before the grep clause.
	tr := NewTracker(t.TempDir(), false, nil)
	dir := t.TempDir()
	defPath := writeTempFile(t, dir, "handlers.py", "def handle_event():\n    pass\n")
	registryPath := writeTempFile(t, dir, "registry.py", "HANDLERS = {'event': 'handle_event'}\n")

	tr.AddDefinition(&model.Entity{Kind: model.EntityFunction, Name: "handle_event", QualifiedName: "handle_event", FilePath: defPath})
	tr.AddDefinition(&model.Entity{Kind: model.EntityVariable, Name: "HANDLERS", QualifiedName: "HANDLERS", FilePath: registryPath})
	tr.AddReference("HANDLERS", registryPath, 1, model.RefName, "", "")

	dead, attributions := tr.FindDeadSymbols(true)
	assert.Empty(t, dead)
	require.Len(t, attributions, 2)
	reasons := []model.ShieldReason{attributions[0].Reason, attributions[1].Reason}
	assert.Contains(t, reasons, model.ShieldGrep)
	assert.Contains(t, reasons, model.ShieldSameFileRef)
}

func TestLanguageOf(t *testing.T) {
	assert.Equal(t, model.LangPython, languageOf("/a/b/c.py"))
	assert.Equal(t, model.LangTypeScript, languageOf("/a/b/c.tsx"))
	assert.Equal(t, model.LangJavaScript, languageOf("/a/b/c.js"))
	assert.Equal(t, model.Language(""), languageOf("/a/b/c.go"))
}
