// Package config loads the CLI configuration.
//
// Shared types (targets, upsert options) live in internal/config and are
// re-exported here so commands import a single package.
package config

import (
	"fmt"
	"sort"

	intconfig "github.com/leapstack-labs/leapupsert/internal/config"
	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = core.TargetConfig

// UpsertConfig is an alias for the shared upsert options.
type UpsertConfig = intconfig.UpsertConfig

// FormatsConfig is an alias for the shared temporal formats.
type FormatsConfig = intconfig.FormatsConfig

// Config holds all CLI configuration options.
type Config struct {
	StatePath    string                   `koanf:"state_path"`
	Verbose      bool                     `koanf:"verbose"`
	OutputFormat string                   `koanf:"output"`
	Upsert       UpsertConfig             `koanf:"upsert"`
	Target       *TargetConfig            `koanf:"target"`
	Targets      map[string]*TargetConfig `koanf:"targets"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
}

// DefaultTargetName names the unnamed top-level target.
const DefaultTargetName = "default"

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultStateFile = intconfig.DefaultStateFile
	DefaultOutput    = intconfig.DefaultOutput
)

// NamedTarget is a resolved target and the name it was selected by.
type NamedTarget struct {
	Name   string
	Target *TargetConfig
}

// TargetNames returns the named targets in sorted order.
func (c *Config) TargetNames() []string {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveTargets selects targets by name. Named targets inherit unset
// fields from the top-level target. No names selects the top-level target.
func (c *Config) ResolveTargets(names []string) ([]NamedTarget, error) {
	if len(names) == 0 {
		if c.Target == nil || c.Target.Type == "" {
			return nil, fmt.Errorf("no target configured\nHint: add a target block to leapupsert.yaml or pass --target")
		}
		return []NamedTarget{{Name: DefaultTargetName, Target: c.Target}}, nil
	}

	seen := make(map[string]bool, len(names))
	out := make([]NamedTarget, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		if name == DefaultTargetName && c.Target != nil {
			out = append(out, NamedTarget{Name: name, Target: c.Target})
			continue
		}
		t, ok := c.Targets[name]
		if !ok {
			return nil, fmt.Errorf("unknown target %q (configured: %v)", name, c.TargetNames())
		}
		merged := MergeTargetConfig(c.Target, t)
		intconfig.ApplyTargetDefaults(merged)
		expandTargetEnvVars(merged)
		if err := intconfig.ValidateTarget(merged); err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", name, err)
		}
		out = append(out, NamedTarget{Name: name, Target: merged})
	}
	return out, nil
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override *TargetConfig) *TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	merged.Params = make(map[string]any, len(base.Params)+len(override.Params))
	for k, v := range base.Options {
		merged.Options[k] = v
	}
	for k, v := range base.Params {
		merged.Params[k] = v
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&merged.Type, override.Type)
	set(&merged.Database, override.Database)
	set(&merged.Host, override.Host)
	set(&merged.User, override.User)
	set(&merged.Password, override.Password)
	set(&merged.Schema, override.Schema)
	set(&merged.Account, override.Account)
	set(&merged.Warehouse, override.Warehouse)
	set(&merged.Role, override.Role)
	if override.Port != 0 {
		merged.Port = override.Port
	}
	// a different engine does not inherit the base port or schema
	if override.Type != "" && override.Type != base.Type {
		if override.Port == 0 {
			merged.Port = 0
		}
		if override.Schema == "" {
			merged.Schema = ""
		}
	}

	for k, v := range override.Options {
		merged.Options[k] = v
	}
	for k, v := range override.Params {
		merged.Params[k] = v
	}
	return &merged
}
