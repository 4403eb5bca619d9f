package goRBAC

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const yamlPolicy = `
options:
  mode: bitmask
  strict: true
permissions:
  - name: user:read
    bit: 1
  - name: user:write
roles:
  - name: editor
    permissions: ["user:read", "post:*"]
    level: 2
  - name: viewer
    permissions: ["user:read"]
`

const jsonPolicy = `{
  "options": {"lazy_roles": true},
  "permissions": [{"name": "billing:view"}],
  "roles": [{"name": "finance", "permissions": ["billing:*"], "level": 5}]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadPolicyFileYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "policy.yaml", yamlPolicy)

	p, err := LoadPolicyFile(path)
	if err != nil {
		t.Fatalf("LoadPolicyFile failed: %v", err)
	}
	if len(p.Permissions) != 2 || p.Permissions[0].Bit == nil || *p.Permissions[0].Bit != 1 || p.Permissions[1].Bit != nil {
		t.Fatalf("unexpected permissions %+v", p.Permissions)
	}
	if len(p.Roles) != 2 || p.Roles[0].Level == nil || *p.Roles[0].Level != 2 || p.Roles[1].Level != nil {
		t.Fatalf("unexpected roles %+v", p.Roles)
	}

	cfg, err := p.Options.Apply(DefaultConfig())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !cfg.StrictMode || cfg.Mode != ModeBitmask {
		t.Fatalf("options not applied: %+v", cfg)
	}
}

func TestLoadPolicyDirectoryMerges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", yamlPolicy)
	writeFile(t, dir, "b.json", jsonPolicy)
	writeFile(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	p, err := LoadPolicyFile(dir)
	if err != nil {
		t.Fatalf("LoadPolicyFile failed: %v", err)
	}
	if len(p.Permissions) != 3 || len(p.Roles) != 3 {
		t.Fatalf("expected merged policy, got %d permissions %d roles", len(p.Permissions), len(p.Roles))
	}
	if p.Options.StrictMode == nil || !*p.Options.StrictMode || p.Options.LazyRoles == nil || !*p.Options.LazyRoles {
		t.Fatalf("options from both files expected: %+v", p.Options)
	}
}

func TestLoadPolicyFileErrors(t *testing.T) {
	if _, err := LoadPolicyFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "roles: [unterminated")
	if _, err := LoadPolicyFile(dir); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestPolicyOptionsRejectUnknownMode(t *testing.T) {
	if _, err := (PolicyOptions{Mode: "hex"}).Apply(DefaultConfig()); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestApplyPolicyBuildsEngine(t *testing.T) {
	p, err := ParsePolicy([]byte(yamlPolicy))
	if err != nil {
		t.Fatalf("ParsePolicy failed: %v", err)
	}

	engine, err := New().WithConfig(testConfig()).WithPolicy(p).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if !engine.Config().StrictMode {
		t.Fatalf("policy options should reach the engine")
	}
	if bit, _ := engine.PermissionBit("user:read"); bit != 1 {
		t.Fatalf("expected explicit bit 1, got %d", bit)
	}
	if bit, _ := engine.PermissionBit("user:write"); bit != 0 {
		t.Fatalf("expected auto bit 0, got %d", bit)
	}
	if engine.GetRoleLevel("editor") != 2 {
		t.Fatalf("expected editor level 2")
	}
	if !engine.HasPermission(User{ID: "u1", Roles: []string{"editor"}}, "post:publish") {
		t.Fatalf("expected editor wildcard grant")
	}
}
