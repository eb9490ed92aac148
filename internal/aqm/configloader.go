package aqm

import (
	"fmt"
	"os"
	"strings"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigSearchPaths are tried in order; the first file found is loaded.
var ConfigSearchPaths = []string{
	"config.yaml",
	"config.yml",
	"config/config.yaml",
	"config/config.yml",
}

// LoadConfig reads a YAML file, then NAMESPACE_* environment variables, then
// --key=value arguments. Later sources win.
func LoadConfig(namespace string, args []string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.LoadSources(namespace, args, ConfigSearchPaths...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSources overlays file, env and argument sources on the receiver. Env
// names map to keys by dropping the prefix and turning underscores into dots
// (CUSTOMERS_MONGO_URI is mongo.uri). Because an underscore may also belong
// to a key segment, mongo.op.timeout is aliased to mongo.op_timeout.
func (c *Config) LoadSources(namespace string, args []string, paths ...string) error {
	if path := firstExisting(paths); path != "" {
		src := koanf.New(keyDelim)
		if err := src.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
			return fmt.Errorf("config: load %s: %w", path, err)
		}
		if err := c.merge(src.Raw()); err != nil {
			return err
		}
	}

	if namespace != "" {
		prefix := strings.ToUpper(strings.TrimRight(namespace, "_")) + "_"
		src := koanf.New(keyDelim)
		err := src.Load(env.Provider(prefix, keyDelim, func(name string) string {
			return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, prefix), "_", keyDelim))
		}), nil)
		if err != nil {
			return fmt.Errorf("config: load env: %w", err)
		}
		if err := c.merge(src.Raw()); err != nil {
			return err
		}
	}

	if flags := parseFlags(args); len(flags) > 0 {
		c.mu.Lock()
		err := c.ko.Load(confmap.Provider(flags, keyDelim), nil)
		c.mu.Unlock()
		if err != nil {
			return fmt.Errorf("config: load args: %w", err)
		}
	}

	c.aliasUnderscoreKeys()
	return nil
}

// aliasUnderscoreKeys joins trailing segments of every multi-segment key with
// underscores: a.b.c also answers to a.b_c and a_b_c. Existing keys win.
func (c *Config) aliasUnderscoreKeys() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.ko.Keys() {
		parts := strings.Split(key, keyDelim)
		value := c.ko.Get(key)
		for len(parts) > 1 {
			n := len(parts)
			parts = append(parts[:n-2:n-2], parts[n-2]+"_"+parts[n-1])
			alias := strings.Join(parts, keyDelim)
			if !c.ko.Exists(alias) {
				_ = c.ko.Set(alias, value)
			}
		}
	}
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// parseFlags accepts --key=value and --key value. A flag with no value is
// read as "true".
func parseFlags(args []string) map[string]any {
	flags := map[string]any{}
	for i := 0; i < len(args); i++ {
		name, ok := strings.CutPrefix(args[i], "--")
		if !ok || name == "" {
			continue
		}
		if k, v, found := strings.Cut(name, "="); found {
			flags[strings.ToLower(k)] = v
			continue
		}
		value := "true"
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			i++
			value = args[i]
		}
		flags[strings.ToLower(name)] = value
	}
	return flags
}
