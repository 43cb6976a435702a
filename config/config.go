// Package config provides namespaced configuration-key resolution with
// per-key defaulting for ocrflow tool definitions.
//
// Tool definitions declare the keys they consult as CollectionKey records;
// a host supplies a Configuration of overrides per execution target.
// Resolution never fails: a missing or blank override falls back to the
// key's hard-coded default.
package config

import "strings"

// CollectionKey identifies one configurable value: a namespace (usually
// the tool identifier, or "" for framework-wide keys), a key name, and a
// hard-coded default used when no usable override exists.
type CollectionKey struct {
	Namespace string
	Key       string
	Default   string
}

// Framework-wide keys consulted by the resource resolver.
var (
	KeyOptFolder = CollectionKey{Key: "opt-folder", Default: "ocrflow"}
	KeyResources = CollectionKey{Key: "opt-resources", Default: "resources"}
	KeyModels    = CollectionKey{Key: "opt-models", Default: "models"}
)

// Target identifies the execution environment a job runs against. OptRoot
// is the base directory that resource path resolution must never escape;
// when empty, the resolver treats the filesystem root as the opt root.
type Target struct {
	Name    string `yaml:"name"`
	OptRoot string `yaml:"opt_root"`
}

// Configuration is a flat table of (namespace, key) overrides for one
// target. The zero value resolves every key to its default.
type Configuration struct {
	overrides map[string]string
}

// New creates a Configuration from a nested namespace → key → value table.
func New(overrides map[string]map[string]string) *Configuration {
	cfg := &Configuration{overrides: make(map[string]string)}
	for namespace, keys := range overrides {
		for key, value := range keys {
			cfg.overrides[tableKey(namespace, key)] = value
		}
	}
	return cfg
}

// Set records a single override.
func (c *Configuration) Set(namespace, key, value string) {
	if c.overrides == nil {
		c.overrides = make(map[string]string)
	}
	c.overrides[tableKey(namespace, key)] = value
}

// Resolve returns the override for key, trimmed, or the key's default
// when no override exists or the override trims to an empty string.
// Resolve never fails.
func (c *Configuration) Resolve(key CollectionKey) string {
	if c == nil || c.overrides == nil {
		return key.Default
	}
	value, ok := c.overrides[tableKey(key.Namespace, key.Key)]
	if !ok {
		return key.Default
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return key.Default
	}
	return trimmed
}

func tableKey(namespace, key string) string {
	return namespace + "\x00" + key
}
