// Package config handles cosmorun's runtime configuration: the compile-time
// defaults (MAX_IDLE, include paths, the cross-module export whitelist) and
// an optional cosmorun.yml that overrides them, merged the way lazydocker
// merges a UserConfig over its defaults.
package config

import (
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/OpenPeeDeeP/xdg"
	yaml "github.com/jesseduffield/yaml"
)

// DefaultMaxIdle is the compile-time bound on the registry's idle
// population (spec.md §3: "typical: 32").
const DefaultMaxIdle = 32

// DefaultLoadingStackDepth bounds the per-chain loading stack (spec.md §3:
// "Bounded depth (e.g., 32)").
const DefaultLoadingStackDepth = 32

// DefaultTrampolineTableSize is the process-wide thunk table bound (spec.md
// §4.3: "<256 entries").
const DefaultTrampolineTableSize = 256

// DefaultExportWhitelist is the fixed, documented set of symbol names the
// import coordinator forwards from already-registered modules into a new
// compile's symbol scope (spec.md §4.7). It is data, not code; an
// exportWhitelist list in cosmorun.yml replaces it.
var DefaultExportWhitelist = []string{
	"malloc", "free", "realloc",
	"printf", "strlen", "strcpy", "strcmp",
	"import", "import_sym", "import_free",
}

// Config is the merged, effective configuration used by every component of
// the runtime.
type Config struct {
	MaxIdle          int      `yaml:"maxIdle,omitempty"`
	IncludePaths     []string `yaml:"includePaths,omitempty"`
	TraceLevel       int      `yaml:"traceLevel,omitempty"`
	ExportWhitelist  []string `yaml:"exportWhitelist,omitempty"`
	ModulesDir       string   `yaml:"modulesDir,omitempty"`
	DebugCacheOnExit bool     `yaml:"-"`
	ConfigDir        string   `yaml:"-"`
}

// Default returns the built-in configuration, before any cosmorun.yml or
// environment override is applied.
func Default() *Config {
	return &Config{
		MaxIdle:         DefaultMaxIdle,
		IncludePaths:    []string{".", "c_modules", "include"},
		TraceLevel:      0,
		ExportWhitelist: append([]string(nil), DefaultExportWhitelist...),
		ModulesDir:      "c_modules",
	}
}

// Load builds the effective configuration: defaults, then cosmorun.yml
// (if present) merged over them via mergo, then the two documented
// environment variables, which always win.
func Load() (*Config, error) {
	cfg := Default()

	dir, err := configDir()
	if err != nil {
		return nil, err
	}
	cfg.ConfigDir = dir

	fileCfg, err := loadFile(filepath.Join(dir, "cosmorun.yml"))
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, err
		}
	}

	if lvl := os.Getenv("COSMORUN_TRACE"); lvl != "" {
		switch lvl {
		case "1":
			cfg.TraceLevel = 1
		case "2":
			cfg.TraceLevel = 2
		default:
			cfg.TraceLevel = 0
		}
	}
	cfg.DebugCacheOnExit = os.Getenv("COSMORUN_DEBUG_CACHE") != ""

	return cfg, nil
}

// loadFile reads and parses an optional YAML override file. A missing file
// is not an error; an unparsable one is, and Load returns it.
func loadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(content, &fileCfg); err != nil {
		return nil, err
	}
	return &fileCfg, nil
}

func configDir() (string, error) {
	if dir := os.Getenv("COSMORUN_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	dirs := xdg.New("", "cosmorun")
	dir := dirs.ConfigHome()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
