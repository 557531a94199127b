package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides, e.g. PATCHES_PATCHES_GLOB.
const EnvPrefix = "PATCHES_"

// FileNames are looked up in the target root; the first one found is loaded.
var FileNames = []string{".patches.toml", "patches.toml", ".patches.yaml", ".patches.yml"}

// Config is the resolved configuration of a run.
type Config struct {
	Patches Patches `koanf:"patches"`
	Log     Log     `koanf:"log"`
	UI      UI      `koanf:"ui"`
}

// Patches controls where diffs are discovered and how their paths are read.
type Patches struct {
	// Dir is the patch directory, relative to the root unless absolute.
	Dir   string `koanf:"dir"`
	Glob  string `koanf:"glob"`
	Strip int    `koanf:"strip"`
}

type Log struct {
	Verbosity int `koanf:"verbosity"`
}

type UI struct {
	// Plain disables the interactive progress view.
	Plain bool `koanf:"plain"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"patches.dir":   "patches",
		"patches.glob":  "*.diff",
		"patches.strip": -1,
		"log.verbosity": 0,
		"ui.plain":      false,
	}
}

// Load resolves configuration for root. Layers, lowest first: defaults, the
// root's config file, PATCHES_* environment variables, overrides.
func Load(root string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	for _, name := range FileNames {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), parserFor(name)); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		break
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func parserFor(name string) koanf.Parser {
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return toml.Parser()
	}
}

// PatchDir returns the patch directory resolved against root.
func (c *Config) PatchDir(root string) string {
	if filepath.IsAbs(c.Patches.Dir) {
		return c.Patches.Dir
	}
	return filepath.Join(root, c.Patches.Dir)
}
