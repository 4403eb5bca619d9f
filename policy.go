package goRBAC

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Policy is the initial configuration of an engine: permissions, roles and
// optional overrides of the engine options.
type Policy struct {
	Options     PolicyOptions   `yaml:"options,omitempty" json:"options,omitempty"`
	Permissions []PermissionDef `yaml:"permissions" json:"permissions"`
	Roles       []RoleDef       `yaml:"roles" json:"roles"`
}

// PermissionDef declares a permission. Bit pins it to an explicit bit index
// in bitmask mode; nil auto-assigns the lowest free bit.
type PermissionDef struct {
	Name string `yaml:"name" json:"name"`
	Bit  *int   `yaml:"bit,omitempty" json:"bit,omitempty"`
}

// RoleDef declares a role with its permissions and optional hierarchy level.
type RoleDef struct {
	Name        string   `yaml:"name" json:"name"`
	Permissions []string `yaml:"permissions" json:"permissions"`
	Level       *int     `yaml:"level,omitempty" json:"level,omitempty"`
}

// PolicyOptions overrides Config fields when set. Unset fields keep the
// value already present in the Config.
type PolicyOptions struct {
	Mode       string `yaml:"mode,omitempty" json:"mode,omitempty"`
	Wildcards  *bool  `yaml:"wildcards,omitempty" json:"wildcards,omitempty"`
	StrictMode *bool  `yaml:"strict,omitempty" json:"strict,omitempty"`
	LazyRoles  *bool  `yaml:"lazy_roles,omitempty" json:"lazy_roles,omitempty"`
	Cache      *bool  `yaml:"cache,omitempty" json:"cache,omitempty"`
}

// Apply returns cfg with the options applied.
func (o PolicyOptions) Apply(cfg Config) (Config, error) {
	switch o.Mode {
	case "":
	case ModeBitmask.String():
		cfg.Mode = ModeBitmask
	case ModeString.String():
		cfg.Mode = ModeString
	default:
		return cfg, invalidConfig("unknown policy mode %q", o.Mode)
	}
	if o.Wildcards != nil {
		cfg.EnableWildcards = *o.Wildcards
	}
	if o.StrictMode != nil {
		cfg.StrictMode = *o.StrictMode
	}
	if o.LazyRoles != nil {
		cfg.LazyRoles.Enabled = *o.LazyRoles
	}
	if o.Cache != nil {
		cfg.Cache.Enabled = *o.Cache
	}
	return cfg, nil
}

// ParsePolicy decodes a YAML or JSON policy document.
func ParsePolicy(data []byte) (Policy, error) {
	var p Policy
	// yaml.v3 accepts JSON documents as well.
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	return p, nil
}

// LoadPolicyFile loads a policy from a file, or from every .yaml, .yml and
// .json file of a directory merged in name order. Options from later files
// override earlier ones field by field.
func LoadPolicyFile(path string) (Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Policy{}, err
	}
	if !info.IsDir() {
		return loadPolicy(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return Policy{}, err
	}

	var merged Policy
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		p, err := loadPolicy(filepath.Join(path, entry.Name()))
		if err != nil {
			return Policy{}, fmt.Errorf("failed to load %s: %w", entry.Name(), err)
		}
		merged.merge(p)
	}
	return merged, nil
}

func loadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, err
	}
	return ParsePolicy(data)
}

func (p *Policy) merge(other Policy) {
	p.Permissions = append(p.Permissions, other.Permissions...)
	p.Roles = append(p.Roles, other.Roles...)

	if other.Options.Mode != "" {
		p.Options.Mode = other.Options.Mode
	}
	if other.Options.Wildcards != nil {
		p.Options.Wildcards = other.Options.Wildcards
	}
	if other.Options.StrictMode != nil {
		p.Options.StrictMode = other.Options.StrictMode
	}
	if other.Options.LazyRoles != nil {
		p.Options.LazyRoles = other.Options.LazyRoles
	}
	if other.Options.Cache != nil {
		p.Options.Cache = other.Options.Cache
	}
}
