// Package config loads the host-supplied settings that wire up an
// engine.Engine without being part of any one query: folding/cache/
// validation defaults, the source privacy map the formula firewall
// checks, and per-query refresh/cache overrides. Grounded on
// database.ParseGeneratorConfig's YAML-decode-into-anonymous-struct
// shape and its companion TOML schema parser in the example pack.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sqldef/powerquery/engine"
)

// EngineConfig is the YAML-loaded subset of engine.Options/engine.Engine
// that a host typically wants in a file rather than hardcoded: whether
// folding is attempted at all, how big the result cache is, the default
// staleness check, a log level, and the privacy level assigned to each
// source id the formula firewall reasons about.
type EngineConfig struct {
	FoldingEnabled bool              `yaml:"folding_enabled"`
	CacheSize      int               `yaml:"cache_size"`
	Validation     string            `yaml:"validation"` // "ttl" | "source_state" | "none"
	LogLevel       string            `yaml:"log_level"`
	Privacy        map[string]string `yaml:"privacy"` // source id -> "public" | "organizational" | "private"
}

// DefaultEngineConfig is what LoadEngineConfig returns for an empty path
// and the base a config file is decoded over: folding on, a 256-entry
// cache, TTL-only validation, info logging. A zero engine.Engine does not
// read it and has folding off.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{FoldingEnabled: true, CacheSize: 256, Validation: "ttl", LogLevel: "info"}
}

// LoadEngineConfig reads and decodes path, or returns DefaultEngineConfig
// unchanged for an empty path (mirrors ParseGeneratorConfig's "" shortcut).
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if path == "" {
		return cfg, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("config: read engine config %q: %w", path, err)
	}
	return ParseEngineConfigBytes(buf)
}

// ParseEngineConfigBytes decodes buf over DefaultEngineConfig, so a
// partial file only overrides the fields it sets.
func ParseEngineConfigBytes(buf []byte) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("config: decode engine config: %w", err)
	}
	return cfg, nil
}

// ValidationMode translates the config's string knob into
// engine.ValidationMode, defaulting to TTL-only for an unrecognized or
// empty value rather than failing the whole load.
func (c EngineConfig) ValidationMode() engine.ValidationMode {
	switch c.Validation {
	case "source_state":
		return engine.ValidationSourceState
	case "none":
		return engine.ValidationNone
	default:
		return engine.ValidationTTL
	}
}

// PrivacyPolicy translates the config's string levels into
// engine.PrivacyPolicy, skipping entries with an unrecognized level
// rather than failing the whole load.
func (c EngineConfig) PrivacyPolicy() engine.PrivacyPolicy {
	policy := make(engine.PrivacyPolicy, len(c.Privacy))
	for sourceID, level := range c.Privacy {
		switch level {
		case "public":
			policy[sourceID] = engine.PrivacyPublic
		case "organizational":
			policy[sourceID] = engine.PrivacyOrganizational
		case "private":
			policy[sourceID] = engine.PrivacyPrivate
		}
	}
	return policy
}
