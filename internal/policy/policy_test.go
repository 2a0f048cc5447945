package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSets(t *testing.T) {
	p := Default()

	if !p.ImportAllowed("math") {
		t.Error("expected math to be importable")
	}
	if p.ImportAllowed("os") {
		t.Error("expected os to be forbidden")
	}
	if !p.CallForbidden("eval") {
		t.Error("expected eval to be a forbidden call")
	}
	if !p.AttributeForbidden("system") {
		t.Error("expected system to be a forbidden attribute")
	}
	if !p.PrimitiveAllowed("len") {
		t.Error("expected len to be an allowed primitive")
	}
	if p.PrimitiveAllowed("open") {
		t.Error("open must never be a primitive")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if !p.ImportAllowed("json") {
		t.Error("defaults should allow json")
	}
}

func TestLoadOverridesOnlySpecifiedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := "allowed_imports:\n  - math\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !p.ImportAllowed("math") {
		t.Error("math should stay importable")
	}
	if p.ImportAllowed("json") {
		t.Error("json should be dropped by the override")
	}
	// Fields absent from the file keep their defaults.
	if !p.CallForbidden("eval") {
		t.Error("forbidden_calls should keep defaults")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("allowed_imports: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadWithHashTracksContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("allowed_imports: [math]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, h1, err := LoadWithHash(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := os.WriteFile(path, []byte("allowed_imports: [math, json]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, h2, err := LoadWithHash(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if h1 == h2 {
		t.Error("hash should change with file content")
	}

	_, hMissing, err := LoadWithHash(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("missing: %v", err)
	}
	if hMissing == "" {
		t.Error("defaults still get a hash")
	}
}

func TestDefaultPolicyYAMLRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(DefaultPolicyYAML()), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("generated YAML must parse: %v", err)
	}
	q := Default()
	for _, name := range q.AllowedPrimitives {
		if !p.PrimitiveAllowed(name) {
			t.Errorf("generated YAML lost primitive %q", name)
		}
	}
	if !p.CallForbidden("eval") || !p.AttributeForbidden("popen") {
		t.Error("generated YAML lost blacklists")
	}
}

func TestModuleRoot(t *testing.T) {
	cases := []struct{ label, want string }{
		{"math", "math"},
		{"math.star", "math"},
		{"lib/math.star", "lib"},
		{"json.star", "json"},
		{"", ""},
	}
	for _, c := range cases {
		if got := ModuleRoot(c.label); got != c.want {
			t.Errorf("ModuleRoot(%q) = %q, want %q", c.label, got, c.want)
		}
	}
}
