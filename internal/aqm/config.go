package aqm

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const keyDelim = "."

// Config is a koanf tree addressed by dotted keys such as "mongo.uri". Key
// segments are case-insensitive and stored lower-cased.
type Config struct {
	mu sync.RWMutex
	ko *koanf.Koanf
}

func NewConfig() *Config {
	return &Config{ko: koanf.New(keyDelim)}
}

// Set stores value under key, replacing what was there.
func (c *Config) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ko.Set(normalizeKey(key), value)
}

// SetDefault stores value only when key is unset.
func (c *Config) SetDefault(key string, value any) {
	key = normalizeKey(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ko.Exists(key) {
		_ = c.ko.Set(key, value)
	}
}

// MergeYAML overlays a YAML document on the current values.
func (c *Config) MergeYAML(data []byte) error {
	var doc map[string]any
	if err := yamlv3.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: yaml: %w", err)
	}
	return c.merge(doc)
}

func (c *Config) merge(values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ko.Load(confmap.Provider(lowerKeys(values), keyDelim), nil); err != nil {
		return fmt.Errorf("config: merge: %w", err)
	}
	return nil
}

// Get returns the raw value under key. Intermediate keys yield their subtree.
func (c *Config) Get(key string) (any, bool) {
	key = normalizeKey(key)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.ko.Exists(key) {
		return nil, false
	}
	return c.ko.Get(key), true
}

// GetString formats the value under key, or returns def when it is unset or
// empty.
func (c *Config) GetString(key, def string) string {
	raw, ok := c.Get(key)
	if !ok || raw == nil {
		return def
	}
	s := fmt.Sprint(raw)
	if s == "" {
		return def
	}
	return s
}

// GetPort reads a listen address, accepting "3000", ":3000" or "host:3000".
func (c *Config) GetPort(key, def string) string {
	return NormalizePort(c.GetString(key, ""), def)
}

// Keys lists every leaf key, sorted.
func (c *Config) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ko.Keys()
}

// Unmarshal decodes the subtree at key ("" for everything) into target using
// koanf struct tags. Durations accept Go syntax ("1m30s") or bare seconds.
func (c *Config) Unmarshal(key string, target any) error {
	if target == nil {
		return errors.New("config: nil target")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	err := c.ko.UnmarshalWithConf(normalizeKey(key), target, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.ComposeDecodeHookFunc(secondsDurationHook, mapstructure.StringToTimeDurationHookFunc()),
			WeaklyTypedInput: true,
			Result:           target,
		},
	})
	if err != nil {
		return fmt.Errorf("config: decode %q: %w", key, err)
	}
	return nil
}

// NormalizePort prefixes bare port numbers with a colon. Empty input falls
// back to fallback, then ":8080".
func NormalizePort(port, fallback string) string {
	for _, candidate := range []string{port, fallback, ":8080"} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, ":") {
			return candidate
		}
		return ":" + candidate
	}
	return ":8080"
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsDurationHook reads bare numbers, including numeric strings, as
// seconds when decoding into a time.Duration.
func secondsDurationHook(_, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
	}
	return data, nil
}

func normalizeKey(key string) string {
	parts := strings.Split(strings.Trim(key, keyDelim), keyDelim)
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, keyDelim)
}

func lowerKeys(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if nested, ok := v.(map[string]any); ok {
			v = lowerKeys(nested)
		}
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}
