// Package config handles .janitorrc.yml project-level configuration: the
// knobs that change how the analysis core behaves (library mode, grep
// shield, extra immortal/vendored directories, a premium wisdom-rules
// path) without touching environment variables or CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ProjectConfig represents the decoded .janitorrc.yml file.
type ProjectConfig struct {
	Version           int      `yaml:"version" validate:"omitempty,eq=1"`
	LibraryMode       bool     `yaml:"library_mode"`
	GrepShield        bool     `yaml:"grep_shield"`
	IncludeVendored   bool     `yaml:"include_vendored"`
	ExtraImmortalDirs []string `yaml:"extra_immortal_dirs"`
	ExtraVendoredDirs []string `yaml:"extra_vendored_dirs"`
	WisdomRulesPath   string   `yaml:"wisdom_rules_path"`
	Languages         []string `yaml:"languages" validate:"omitempty,dive,oneof=python javascript typescript"`
}

var validate = validator.New()

// Defaults returns the built-in configuration applied when no
// .janitorrc.yml is present, or merged underneath one that is.
func Defaults() *ProjectConfig {
	return &ProjectConfig{
		Version:     1,
		LibraryMode: false,
		GrepShield:  false,
		Languages:   []string{"python", "javascript", "typescript"},
	}
}

// LoadProjectConfig loads project configuration from .janitorrc.yml or
// .janitorrc.yaml. If explicitPath is provided (from --config), that file
// is loaded instead. Returns built-in defaults, not an error, when no
// config file is found — .janitorrc.yml is optional, ambient configuration.
func LoadProjectConfig(dir string, explicitPath string) (*ProjectConfig, error) {
	var configPath string

	if explicitPath != "" {
		configPath = explicitPath
	} else {
		ymlPath := filepath.Join(dir, ".janitorrc.yml")
		yamlPath := filepath.Join(dir, ".janitorrc.yaml")

		if _, err := os.Stat(ymlPath); err == nil {
			configPath = ymlPath
		} else if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			return Defaults(), nil
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read project config %s: %w", configPath, err)
	}

	cfg := &ProjectConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse project config %s: %w", configPath, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid project config %s: %w", configPath, err)
	}

	merged := Defaults()
	if err := mergo.Merge(merged, cfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge project config %s over defaults: %w", configPath, err)
	}

	return merged, nil
}

// ImmortalDirs returns the fixed immortal-directory set plus any project
// extensions, lower-cased for case-insensitive directory-name matching.
func (c *ProjectConfig) ImmortalDirs(base map[string]bool) map[string]bool {
	merged := make(map[string]bool, len(base)+len(c.ExtraImmortalDirs))
	for k := range base {
		merged[strings.ToLower(k)] = true
	}
	for _, d := range c.ExtraImmortalDirs {
		merged[strings.ToLower(d)] = true
	}
	return merged
}

// VendoredDirs returns the fixed vendored-directory set plus any project
// extensions, unless IncludeVendored opts back into scanning them.
func (c *ProjectConfig) VendoredDirs(base map[string]bool) map[string]bool {
	if c.IncludeVendored {
		return map[string]bool{}
	}
	merged := make(map[string]bool, len(base)+len(c.ExtraVendoredDirs))
	for k := range base {
		merged[k] = true
	}
	for _, d := range c.ExtraVendoredDirs {
		merged[d] = true
	}
	return merged
}
