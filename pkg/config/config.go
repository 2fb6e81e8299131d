// Package config loads auspex configuration from TOML, YAML or JSON files
// with defaults suitable for analyzing a typical TypeScript project.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for auspex.
type Config struct {
	// Resolution tunes the confidence model of the call-graph pipeline.
	Resolution ResolutionConfig `koanf:"resolution"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output"`

	// Trace settings for runtime confirmation
	Trace TraceConfig `koanf:"trace"`
}

// ResolutionConfig holds the per-stage confidence values. These are tuning
// knobs; the stage ordering and merge rules are fixed.
type ResolutionConfig struct {
	LocalExact       float64 `koanf:"local_exact"`
	LocalMethod      float64 `koanf:"local_method"`
	ImportExact      float64 `koanf:"import_exact"`
	ImportReExport   float64 `koanf:"import_reexport"`
	OptionalLocal    float64 `koanf:"optional_local"`
	OptionalImport   float64 `koanf:"optional_import"`
	CHABase          float64 `koanf:"cha_base"`
	CHAAbstractBonus float64 `koanf:"cha_abstract_bonus"`
	CHAConcreteBonus float64 `koanf:"cha_concrete_bonus"`
	RTA              float64 `koanf:"rta"`
	SymbolCacheSize  int     `koanf:"symbol_cache_size"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns   []string `koanf:"patterns"`
	Extensions []string `koanf:"extensions"`
	Dirs       []string `koanf:"dirs"`
	Gitignore  bool     `koanf:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
	TTL     int    `koanf:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format"` // text, json, markdown
	Color   bool   `koanf:"color"`
	Verbose bool   `koanf:"verbose"`
}

// TraceConfig points at a recorded execution trace.
type TraceConfig struct {
	File string `koanf:"file"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Resolution: ResolutionConfig{
			LocalExact:       1.0,
			LocalMethod:      0.95,
			ImportExact:      0.95,
			ImportReExport:   0.90,
			OptionalLocal:    0.95,
			OptionalImport:   0.90,
			CHABase:          0.8,
			CHAAbstractBonus: 0.1,
			CHAConcreteBonus: 0.05,
			RTA:              0.9,
			SymbolCacheSize:  4096,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.test.ts",
				"*.test.tsx",
				"*.spec.ts",
				"*.min.js",
				"*.d.ts",
			},
			Extensions: []string{
				".lock",
				".map",
			},
			Dirs: []string{
				"node_modules",
				".git",
				".auspex",
				"dist",
				"build",
				"coverage",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".auspex/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault tries to load config from standard locations or returns
// defaults.
func LoadOrDefault() *Config {
	configNames := []string{
		"auspex.toml",
		"auspex.yaml",
		"auspex.yml",
		"auspex.json",
		".auspex.toml",
		".auspex.yaml",
		".auspex.yml",
		".auspex.json",
	}
	searchDirs := []string{".", ".auspex"}

	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				if cfg, err := Load(path); err == nil {
					return cfg
				}
			}
		}
	}
	return DefaultConfig()
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	ext := filepath.Ext(path)
	for _, excludeExt := range c.Exclude.Extensions {
		if ext == excludeExt {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
