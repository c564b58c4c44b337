// Package wisdom loads framework-aware symbol immortality rules from a
// tiered rules/ directory (community, always present; premium, optional)
// and answers "is this symbol immortal" lookups for the shield engine.
package wisdom

import (
	"embed"
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-janitor/janitor/internal/model"
)

//go:embed rules/community/*.json
var communityRulesFS embed.FS

// Rule mirrors model.WisdomRule with the match_type kept as a typed
// constant for the lookup-table switch.
type matchType string

const (
	matchExact     matchType = "exact"
	matchPrefix    matchType = "prefix"
	matchSuffix    matchType = "suffix"
	matchDecorator matchType = "decorator"
	matchSyntax    matchType = "syntax"
)

type rule struct {
	Pattern   string
	MatchType matchType
	Framework string
	Tier      string
	Reason    string
}

// Registry holds the loaded rule set and the derived lookup tables used by
// IsImmortal.
type Registry struct {
	pythonRules []rule
	jsRules     []rule

	CommunityRulesCount int
	PremiumRulesCount   int
	HasPremium          bool

	pyExact     map[string]rule
	pyPrefix    map[string]rule
	pySuffix    map[string]rule
	pyDecorator map[string]rule
	pySyntax    map[string]rule

	jsExact  map[string]rule
	jsSuffix map[string]rule
	jsSyntax map[string]rule

	logger *slog.Logger
}

// Load builds a Registry from the community rules compiled into the binary
// (internal/wisdom/rules/community/*.json) plus an optional on-disk
// premiumRulesDir of additional *.json rule files, tolerating malformed
// individual files by skipping them with a warning rather than failing the
// whole load.
func Load(premiumRulesDir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{logger: logger}

	before := len(r.pythonRules) + len(r.jsRules)
	r.loadEmbeddedDirectory(communityRulesFS, "rules/community", "community")
	r.CommunityRulesCount = len(r.pythonRules) + len(r.jsRules) - before

	if premiumRulesDir != "" {
		before = len(r.pythonRules) + len(r.jsRules)
		r.loadOSDirectory(premiumRulesDir, "premium")
		r.PremiumRulesCount = len(r.pythonRules) + len(r.jsRules) - before
		r.HasPremium = r.PremiumRulesCount > 0
	}

	r.buildLookupTables()
	return r
}

func (r *Registry) loadEmbeddedDirectory(fsys fs.FS, dir, tier string) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		r.logger.Warn("embedded wisdom rules missing", "dir", dir, "err", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		path := dir + "/" + e.Name()
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			r.logger.Warn("failed reading embedded wisdom rule file", "file", path, "err", err)
			continue
		}
		r.loadRuleFile(path, data, tier)
	}
}

func (r *Registry) loadOSDirectory(dir, tier string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return // optional directory (premium/) may legitimately not exist
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("failed reading wisdom rule file", "file", path, "err", err)
			continue
		}
		r.loadRuleFile(path, data, tier)
	}
}

func (r *Registry) loadRuleFile(path string, data []byte, tier string) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		r.logger.Warn("wisdom rule file malformed, skipping", "file", path, "err", err)
		return
	}

	switch {
	case hasKey(raw, "immortality_rules"):
		r.loadImmortalityRules(raw, tier)
	case hasKey(raw, "suffix_matches") || hasKey(raw, "exact_matches"):
		r.loadMetaPatterns(raw, tier)
	default:
		r.loadFrameworkKeyedRules(raw, tier)
	}
}

func hasKey(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

type immortalityRuleEntry struct {
	Framework string   `json:"framework"`
	Patterns  []string `json:"patterns"`
}

func (r *Registry) loadImmortalityRules(raw map[string]json.RawMessage, tier string) {
	var entries []immortalityRuleEntry
	if err := json.Unmarshal(raw["immortality_rules"], &entries); err != nil {
		return
	}
	for _, entry := range entries {
		framework := entry.Framework
		if framework == "" {
			framework = "Unknown"
		}
		for _, pattern := range entry.Patterns {
			if strings.HasPrefix(pattern, "@") {
				r.pythonRules = append(r.pythonRules, rule{Pattern: pattern, MatchType: matchDecorator, Framework: framework, Tier: tier, Reason: framework + " framework pattern"})
			} else {
				r.pythonRules = append(r.pythonRules, rule{Pattern: pattern, MatchType: matchSyntax, Framework: framework, Tier: tier, Reason: framework + " syntax marker"})
			}
		}
	}
}

type metaPatternsFile struct {
	SuffixMatches []string `json:"suffix_matches"`
	PrefixMatches []string `json:"prefix_matches"`
	ExactMatches  []string `json:"exact_matches"`
	SyntaxMarkers []string `json:"syntax_markers"`
}

func (r *Registry) loadMetaPatterns(raw map[string]json.RawMessage, tier string) {
	var m metaPatternsFile
	full, _ := json.Marshal(raw)
	if err := json.Unmarshal(full, &m); err != nil {
		return
	}
	for _, s := range m.SuffixMatches {
		r.pythonRules = append(r.pythonRules, rule{Pattern: s, MatchType: matchSuffix, Framework: "Meta", Tier: tier, Reason: "Meta pattern suffix match"})
	}
	for _, p := range m.PrefixMatches {
		r.pythonRules = append(r.pythonRules, rule{Pattern: p, MatchType: matchPrefix, Framework: "Meta", Tier: tier, Reason: "Meta pattern prefix match"})
	}
	for _, e := range m.ExactMatches {
		r.pythonRules = append(r.pythonRules, rule{Pattern: e, MatchType: matchExact, Framework: "Meta", Tier: tier, Reason: "Meta pattern exact match"})
	}
	for _, s := range m.SyntaxMarkers {
		r.pythonRules = append(r.pythonRules, rule{Pattern: s, MatchType: matchSyntax, Framework: "Meta", Tier: tier, Reason: "Python syntax marker"})
	}
}

type frameworkRules struct {
	SyntaxMarkers []string `json:"syntax_markers"`
}

func (r *Registry) loadFrameworkKeyedRules(raw map[string]json.RawMessage, tier string) {
	for framework, data := range raw {
		var fr frameworkRules
		if err := json.Unmarshal(data, &fr); err != nil {
			continue
		}
		for _, s := range fr.SyntaxMarkers {
			r.jsRules = append(r.jsRules, rule{Pattern: s, MatchType: matchSyntax, Framework: framework, Tier: tier, Reason: framework + " syntax marker"})
		}
	}
}

func (r *Registry) buildLookupTables() {
	r.pyExact = map[string]rule{}
	r.pyPrefix = map[string]rule{}
	r.pySuffix = map[string]rule{}
	r.pyDecorator = map[string]rule{}
	r.pySyntax = map[string]rule{}
	r.jsExact = map[string]rule{}
	r.jsSuffix = map[string]rule{}
	r.jsSyntax = map[string]rule{}

	for _, rl := range r.pythonRules {
		switch rl.MatchType {
		case matchExact:
			r.pyExact[rl.Pattern] = rl
		case matchPrefix:
			r.pyPrefix[rl.Pattern] = rl
		case matchSuffix:
			r.pySuffix[rl.Pattern] = rl
		case matchDecorator:
			r.pyDecorator[rl.Pattern] = rl
		case matchSyntax:
			r.pySyntax[rl.Pattern] = rl
		}
	}
	for _, rl := range r.jsRules {
		switch rl.MatchType {
		case matchExact:
			r.jsExact[rl.Pattern] = rl
		case matchSuffix:
			r.jsSuffix[rl.Pattern] = rl
		case matchSyntax:
			r.jsSyntax[rl.Pattern] = rl
		}
	}
}

// Verdict is the result of an IsImmortal lookup.
type Verdict struct {
	Immortal  bool
	Reason    string
	Framework string
	Tier      string
}

// IsImmortal checks whether symbolName (possibly qualified, e.g.
// "ClassName.method") is protected by a wisdom rule given the full text of
// its definition (including decorators).
func (r *Registry) IsImmortal(symbolName, fullText string, language model.Language) Verdict {
	if language == model.LangPython {
		return r.checkPythonImmortality(symbolName, fullText)
	}
	return r.checkJSImmortality(symbolName, fullText)
}

func (r *Registry) checkPythonImmortality(symbolName, fullText string) Verdict {
	if rl, ok := r.pyExact[symbolName]; ok {
		return Verdict{true, "Exact match: " + symbolName, rl.Framework, rl.Tier}
	}

	simpleName := symbolName
	if idx := strings.LastIndex(symbolName, "."); idx >= 0 {
		simpleName = symbolName[idx+1:]
	}
	for prefix, rl := range r.pyPrefix {
		if strings.HasPrefix(symbolName, prefix) || strings.HasPrefix(simpleName, prefix) {
			return Verdict{true, "Prefix match: " + prefix, rl.Framework, rl.Tier}
		}
	}

	for decorator, rl := range r.pyDecorator {
		if strings.Contains(fullText, decorator) {
			return Verdict{true, "Decorator: " + decorator, rl.Framework, rl.Tier}
		}
	}

	for suffix, rl := range r.pySuffix {
		for _, line := range strings.Split(fullText, "\n") {
			trimmed := strings.TrimSpace(line)
			if (strings.HasPrefix(trimmed, "@") && strings.HasSuffix(trimmed, suffix)) || strings.Contains(line, suffix) {
				return Verdict{true, "Suffix match: " + suffix, rl.Framework, rl.Tier}
			}
		}
	}

	for syntax, rl := range r.pySyntax {
		if strings.Contains(fullText, syntax) {
			return Verdict{true, "Syntax marker: " + syntax, rl.Framework, rl.Tier}
		}
	}

	if strings.HasPrefix(symbolName, "__") && strings.HasSuffix(symbolName, "__") && len(symbolName) > 4 {
		return Verdict{true, "Dunder method", "Python", "community"}
	}

	if strings.Contains(fullText, "@property") || strings.Contains(fullText, "@staticmethod") || strings.Contains(fullText, "@classmethod") {
		return Verdict{true, "Property/class method", "Python", "community"}
	}

	return Verdict{}
}

func (r *Registry) checkJSImmortality(symbolName, fullText string) Verdict {
	if rl, ok := r.jsExact[symbolName]; ok {
		return Verdict{true, "Exact match: " + symbolName, rl.Framework, rl.Tier}
	}
	for suffix, rl := range r.jsSuffix {
		if strings.HasSuffix(symbolName, suffix) {
			return Verdict{true, "Suffix match: " + suffix, rl.Framework, rl.Tier}
		}
	}
	for syntax, rl := range r.jsSyntax {
		if strings.Contains(fullText, syntax) {
			return Verdict{true, "Syntax marker: " + syntax, rl.Framework, rl.Tier}
		}
	}
	if strings.Contains(fullText, "export default") || strings.Contains(fullText, "export {") || strings.Contains(fullText, "module.exports") {
		return Verdict{true, "Export statement", "JavaScript", "community"}
	}
	return Verdict{}
}

// LicensingStatus reports which rule tiers contributed to the registry.
type LicensingStatus struct {
	Tier            string `json:"tier"`
	CommunityRules  int    `json:"community_rules"`
	PremiumRules    int    `json:"premium_rules"`
	TotalRules      int    `json:"total_rules"`
	HasPremium      bool   `json:"has_premium"`
}

func (r *Registry) LicensingStatus() LicensingStatus {
	tier := "community"
	if r.HasPremium {
		tier = "premium"
	}
	return LicensingStatus{
		Tier:           tier,
		CommunityRules: r.CommunityRulesCount,
		PremiumRules:   r.PremiumRulesCount,
		TotalRules:     r.CommunityRulesCount + r.PremiumRulesCount,
		HasPremium:     r.HasPremium,
	}
}
