package graph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-janitor/janitor/internal/cache"
	"github.com/go-janitor/janitor/internal/model"
	"github.com/go-janitor/janitor/internal/parser"
	"github.com/go-janitor/janitor/internal/resolver"
)

func newTestBuilder(t *testing.T, root string) *Builder {
	t.Helper()
	c, err := cache.Open(root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	p, err := parser.NewTreeSitterParser()
	require.NoError(t, err)
	t.Cleanup(p.Close)

	r := resolver.New(root, nil)
	return NewBuilder(root, c, p, r, nil)
}

func discoverFile(t *testing.T, root, relPath string, content string) model.DiscoveredFile {
	t.Helper()
	path := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)

	return model.DiscoveredFile{
		Path:     path,
		RelPath:  relPath,
		Language: model.LangPython,
		Class:    model.ClassSource,
		ModTime:  info.ModTime().UnixNano(),
		Size:     info.Size(),
	}
}

func TestBuild_ResolvesImportEdgeBetweenFiles(t *testing.T) {
	root := t.TempDir()
	b := newTestBuilder(t, root)

	util := discoverFile(t, root, "util.py", "def helper():\n    pass\n")
	main := discoverFile(t, root, "main.py", "from util import helper\n\nhelper()\n")

	g := b.Build([]model.DiscoveredFile{util, main})

	assert.Contains(t, g.Forward[main.Path], util.Path)
	assert.Contains(t, g.Reverse[util.Path], main.Path)
	assert.NotEmpty(t, b.ExtractedEntities[util.Path])
	assert.NotEmpty(t, b.ExtractedImports[main.Path])
}

func TestBuild_SkipsExcludedAndGeneratedFiles(t *testing.T) {
	root := t.TempDir()
	b := newTestBuilder(t, root)

	excluded := discoverFile(t, root, "vendor/third_party.py", "def noop():\n    pass\n")
	excluded.Class = model.ClassExcluded
	generated := discoverFile(t, root, "gen/schema_pb2.py", "X = 1\n")
	generated.Class = model.ClassGenerated

	g := b.Build([]model.DiscoveredFile{excluded, generated})
	assert.Empty(t, g.Nodes)
}

func TestBuild_SecondRunUsesCache(t *testing.T) {
	root := t.TempDir()
	b := newTestBuilder(t, root)

	util := discoverFile(t, root, "util.py", "def helper():\n    pass\n")
	b.Build([]model.DiscoveredFile{util})
	// bbolt holds an exclusive file lock, so the first run's cache must be
	// closed before the second run can open it.
	require.NoError(t, b.Cache.Close())

	b2 := newTestBuilder(t, root)
	g2 := b2.Build([]model.DiscoveredFile{util})

	assert.Contains(t, g2.Nodes, util.Path)
	assert.NotEmpty(t, b2.ExtractedEntities[util.Path])
}

func TestTreeFor_ParsesFileOnDemand(t *testing.T) {
	root := t.TempDir()
	b := newTestBuilder(t, root)

	f := discoverFile(t, root, "solo.py", "def standalone():\n    pass\n")

	tree, content, err := b.TreeFor(f)
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	assert.NotEmpty(t, content)
	assert.Greater(t, tree.RootNode().ChildCount(), uint(0))
}

func TestBuild_MissingFileRecordsNilDependenciesWithoutPanicking(t *testing.T) {
	root := t.TempDir()
	b := newTestBuilder(t, root)

	missing := model.DiscoveredFile{
		Path:     filepath.Join(root, "gone.py"),
		RelPath:  "gone.py",
		Language: model.LangPython,
		Class:    model.ClassSource,
		ModTime:  time.Now().UnixNano(),
		Size:     0,
	}

	g := b.Build([]model.DiscoveredFile{missing})
	assert.Contains(t, g.Nodes, missing.Path)
	assert.Empty(t, g.Forward[missing.Path])
}
