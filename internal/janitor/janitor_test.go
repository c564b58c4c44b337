package janitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-janitor/janitor/internal/config"
)

func writeProjectFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	path := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestAnalyze_FindsOrphanFileAndDeadSymbol(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "main.py", "def main():\n    pass\n\nif __name__ == '__main__':\n    main()\n")
	// Files at the project root count as entry points, so the orphan lives
	// in a subdirectory.
	writeProjectFile(t, root, "pkg/orphan.py", "def never_imported():\n    pass\n")
	writeProjectFile(t, root, "util.py", "def used():\n    pass\n\ndef unused():\n    pass\n")
	writeProjectFile(t, root, "consumer.py", "from util import used\n\nused()\n")

	j := New(root, config.Defaults(), nil)
	result, err := j.Analyze()
	require.NoError(t, err)

	orphanPaths := make([]string, len(result.OrphanFiles))
	copy(orphanPaths, result.OrphanFiles)
	assert.Contains(t, orphanPaths, filepath.Join(root, "pkg", "orphan.py"))

	var deadNames []string
	for _, d := range result.DeadSymbols {
		deadNames = append(deadNames, d.Entity.Name)
	}
	assert.Contains(t, deadNames, "unused")
	assert.NotContains(t, deadNames, "used")
	assert.NotContains(t, deadNames, "main")
}

func TestAnalyze_SecondRunServesFromCache(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "main.py", "def main():\n    pass\n\nif __name__ == '__main__':\n    main()\n")

	j := New(root, config.Defaults(), nil)
	first, err := j.Analyze()
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := j.Analyze()
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Stats.TotalFiles, second.Stats.TotalFiles)
}

func TestAnalyze_EmptyProjectReturnsEmptyResult(t *testing.T) {
	root := t.TempDir()
	j := New(root, config.Defaults(), nil)

	result, err := j.Analyze()
	require.NoError(t, err)
	assert.Empty(t, result.OrphanFiles)
	assert.Empty(t, result.DeadSymbols)
}

func TestAnalyze_LibraryModeProtectsPublicFunctionAcrossFiles(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "api.py", "def public_fn():\n    pass\n")

	cfg := config.Defaults()
	cfg.LibraryMode = true
	j := New(root, cfg, nil)

	result, err := j.Analyze()
	require.NoError(t, err)

	var deadNames []string
	for _, d := range result.DeadSymbols {
		deadNames = append(deadNames, d.Entity.Name)
	}
	assert.NotContains(t, deadNames, "public_fn")
}

func TestAnalyze_ReportsProgressStages(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "main.py", "def main():\n    pass\n")

	var stages []string
	j := New(root, config.Defaults(), nil)
	j.OnProgress = func(stage, message string) { stages = append(stages, stage) }

	_, err := j.Analyze()
	require.NoError(t, err)
	assert.Contains(t, stages, "discover")
	assert.Contains(t, stages, "done")
}
