package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProjectConfig_ValidYml(t *testing.T) {
	tmpDir := t.TempDir()

	content := `version: 1
library_mode: true
grep_shield: true
extra_immortal_dirs:
  - generated
languages:
  - python
  - typescript
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".janitorrc.yml"), []byte(content), 0644))

	cfg, err := LoadProjectConfig(tmpDir, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 1, cfg.Version)
	assert.True(t, cfg.LibraryMode)
	assert.True(t, cfg.GrepShield)
	assert.Equal(t, []string{"generated"}, cfg.ExtraImmortalDirs)
	assert.ElementsMatch(t, []string{"python", "typescript"}, cfg.Languages)
}

func TestLoadProjectConfig_MissingFile(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadProjectConfig(tmpDir, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadProjectConfig_InvalidLanguage(t *testing.T) {
	tmpDir := t.TempDir()

	content := `version: 1
languages:
  - cobol
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".janitorrc.yml"), []byte(content), 0644))

	_, err := LoadProjectConfig(tmpDir, "")
	assert.Error(t, err)
}

func TestLoadProjectConfig_InvalidVersion(t *testing.T) {
	tmpDir := t.TempDir()

	content := `version: 99
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".janitorrc.yml"), []byte(content), 0644))

	_, err := LoadProjectConfig(tmpDir, "")
	assert.Error(t, err)
}

func TestLoadProjectConfig_ExplicitPath(t *testing.T) {
	tmpDir := t.TempDir()

	content := `version: 1
grep_shield: true
`
	customPath := filepath.Join(tmpDir, "custom-config.yml")
	require.NoError(t, os.WriteFile(customPath, []byte(content), 0644))

	cfg, err := LoadProjectConfig(tmpDir, customPath)
	require.NoError(t, err)
	assert.True(t, cfg.GrepShield)
}

func TestLoadProjectConfig_YamlExtension(t *testing.T) {
	tmpDir := t.TempDir()

	content := `version: 1
include_vendored: true
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".janitorrc.yaml"), []byte(content), 0644))

	cfg, err := LoadProjectConfig(tmpDir, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.True(t, cfg.IncludeVendored)
}

func TestProjectConfig_VendoredDirs_IncludeVendoredEmptiesSet(t *testing.T) {
	cfg := &ProjectConfig{IncludeVendored: true}
	base := map[string]bool{"node_modules": true}
	assert.Empty(t, cfg.VendoredDirs(base))
}

func TestProjectConfig_VendoredDirs_MergesExtras(t *testing.T) {
	cfg := &ProjectConfig{ExtraVendoredDirs: []string{"bazel-out"}}
	base := map[string]bool{"node_modules": true}
	merged := cfg.VendoredDirs(base)
	assert.True(t, merged["node_modules"])
	assert.True(t, merged["bazel-out"])
}

func TestProjectConfig_ImmortalDirs_MergesExtras(t *testing.T) {
	cfg := &ProjectConfig{ExtraImmortalDirs: []string{"fixtures"}}
	base := map[string]bool{"tests": true}
	merged := cfg.ImmortalDirs(base)
	assert.True(t, merged["tests"])
	assert.True(t, merged["fixtures"])
}
