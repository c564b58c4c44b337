package wisdom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-janitor/janitor/internal/model"
)

func TestLoad_CountsEmbeddedCommunityRules(t *testing.T) {
	r := Load("", nil)
	assert.Greater(t, r.CommunityRulesCount, 0)
	assert.False(t, r.HasPremium)
	assert.Equal(t, 0, r.PremiumRulesCount)
}

func TestIsImmortal_PythonDecoratorPattern(t *testing.T) {
	r := Load("", nil)
	v := r.IsImmortal("test_it", "@pytest.fixture\ndef test_it():\n    pass\n", model.LangPython)
	assert.True(t, v.Immortal)
	assert.Equal(t, "pytest", v.Framework)
}

func TestIsImmortal_PythonExactMatch(t *testing.T) {
	r := Load("", nil)
	v := r.IsImmortal("setUp", "def setUp(self):\n    pass\n", model.LangPython)
	assert.True(t, v.Immortal)
}

func TestIsImmortal_PythonPrefixMatch(t *testing.T) {
	r := Load("", nil)
	v := r.IsImmortal("on_save", "def on_save(sender, **kwargs):\n    pass\n", model.LangPython)
	assert.True(t, v.Immortal)
}

func TestIsImmortal_PythonDunderFallback(t *testing.T) {
	r := Load("", nil)
	v := r.IsImmortal("__init__", "def __init__(self):\n    pass\n", model.LangPython)
	assert.True(t, v.Immortal)
	assert.Equal(t, "Python", v.Framework)
}

func TestIsImmortal_PythonPlainFunctionIsNotImmortal(t *testing.T) {
	r := Load("", nil)
	v := r.IsImmortal("compute_total", "def compute_total(items):\n    return sum(items)\n", model.LangPython)
	assert.False(t, v.Immortal)
}

func TestIsImmortal_JSSyntaxMarker(t *testing.T) {
	r := Load("", nil)
	v := r.IsImmortal("handler", "app.get('/x', handler)\n", model.LangJavaScript)
	assert.True(t, v.Immortal)
	assert.Equal(t, "Express", v.Framework)
}

func TestIsImmortal_JSExportFallback(t *testing.T) {
	r := Load("", nil)
	v := r.IsImmortal("thing", "export default thing;\n", model.LangJavaScript)
	assert.True(t, v.Immortal)
}

func TestLoad_PremiumRulesExtendCommunityRules(t *testing.T) {
	dir := t.TempDir()
	premiumFile := filepath.Join(dir, "extra.json")
	content := `{"immortality_rules": [{"framework": "Custom", "patterns": ["@custom.hook"]}]}`
	require.NoError(t, os.WriteFile(premiumFile, []byte(content), 0o644))

	r := Load(dir, nil)
	assert.True(t, r.HasPremium)
	assert.Equal(t, 1, r.PremiumRulesCount)

	v := r.IsImmortal("thing", "@custom.hook\ndef thing():\n    pass\n", model.LangPython)
	assert.True(t, v.Immortal)
	assert.Equal(t, "Custom", v.Framework)
}

func TestLoad_MalformedPremiumFileIsSkipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("not json"), 0o644))

	r := Load(dir, nil)
	assert.False(t, r.HasPremium)
	assert.Equal(t, 0, r.PremiumRulesCount)
}

func TestLicensingStatus_ReflectsTier(t *testing.T) {
	r := Load("", nil)
	status := r.LicensingStatus()
	assert.Equal(t, "community", status.Tier)
	assert.False(t, status.HasPremium)
	assert.Equal(t, r.CommunityRulesCount, status.TotalRules)
}
