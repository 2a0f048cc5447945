// Package policy holds the immutable whitelist/blacklist configuration that
// governs both static validation and the contents of the execution
// namespace. A Policy is loaded once per process and shared read-only by
// every validator and runner call; nothing mutates it after load.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy is the four name sets of the two-stage gate. The slice fields exist
// for YAML; lookups go through the methods below. Always obtain a Policy
// from Default, New, or Load so the lookup sets are built.
type Policy struct {
	AllowedImports      []string `yaml:"allowed_imports"`
	AllowedPrimitives   []string `yaml:"allowed_primitives"`
	ForbiddenCalls      []string `yaml:"forbidden_calls"`
	ForbiddenAttributes []string `yaml:"forbidden_attributes"`

	imports    map[string]bool
	primitives map[string]bool
	calls      map[string]bool
	attrs      map[string]bool
}

// Default returns the built-in policy: the three modules the runtime serves,
// the pure universe builtins, and the classic dangerous-name blacklists.
func Default() *Policy {
	p := &Policy{
		AllowedImports: []string{"math", "json", "time"},
		AllowedPrimitives: []string{
			"abs", "all", "any", "bool", "bytes", "dict", "dir",
			"enumerate", "fail", "float", "getattr", "hasattr", "hash",
			"int", "len", "list", "max", "min", "print", "range", "repr",
			"reversed", "set", "sorted", "str", "tuple", "type", "zip",
		},
		ForbiddenCalls: []string{
			"eval", "exec", "compile", "open", "input", "__import__",
			"globals", "locals", "super", "help", "exit", "quit",
		},
		ForbiddenAttributes: []string{"system", "popen", "spawn", "fork", "kill"},
	}
	p.finalize()
	return p
}

// New builds a policy from explicit name sets. Intended for tests and
// embedding hosts; file-based deployments use Load.
func New(imports, primitives, calls, attrs []string) *Policy {
	p := &Policy{
		AllowedImports:      imports,
		AllowedPrimitives:   primitives,
		ForbiddenCalls:      calls,
		ForbiddenAttributes: attrs,
	}
	p.finalize()
	return p
}

// Load loads a policy from a YAML file. Empty path falls back to
// ~/.taskgate/policy.yaml. A missing file returns the defaults; invalid
// YAML returns an error. Fields absent from the file keep their defaults.
func Load(path string) (*Policy, error) {
	p, _, err := LoadWithHash(path)
	return p, err
}

// LoadWithHash loads a policy and returns the SHA-256 hash of the raw YAML
// bytes on disk. When no file exists (defaults used), the hash is the
// SHA-256 of empty input.
func LoadWithHash(path string) (*Policy, string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Default(), emptyHash(), nil
		}
		path = filepath.Join(home, ".taskgate", "policy.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), emptyHash(), nil
		}
		return nil, "", fmt.Errorf("failed to read policy: %w", err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields.
	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, "", fmt.Errorf("failed to parse policy: %w", err)
	}
	p.finalize()

	return p, hash, nil
}

func emptyHash() string {
	h := sha256.Sum256(nil)
	return "sha256:" + hex.EncodeToString(h[:])
}

func (p *Policy) finalize() {
	p.imports = toSet(p.AllowedImports)
	p.primitives = toSet(p.AllowedPrimitives)
	p.calls = toSet(p.ForbiddenCalls)
	p.attrs = toSet(p.ForbiddenAttributes)
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// ImportAllowed reports whether a module root name may be loaded.
func (p *Policy) ImportAllowed(root string) bool { return p.imports[root] }

// PrimitiveAllowed reports whether a builtin stays callable in the
// execution namespace.
func (p *Policy) PrimitiveAllowed(name string) bool { return p.primitives[name] }

// CallForbidden reports whether a bare name is blacklisted in call position.
func (p *Policy) CallForbidden(name string) bool { return p.calls[name] }

// AttributeForbidden reports whether an attribute name is blacklisted in
// call position.
func (p *Policy) AttributeForbidden(name string) bool { return p.attrs[name] }

// AllowedImportList renders the import whitelist for violation messages,
// sorted for stable output.
func (p *Policy) AllowedImportList() string {
	names := make([]string, len(p.AllowedImports))
	copy(names, p.AllowedImports)
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// ModuleRoot returns the root component of a load() module label: the text
// before the first path separator, with a trailing ".star" stripped.
func ModuleRoot(label string) string {
	root := label
	if i := strings.IndexByte(root, '/'); i >= 0 {
		root = root[:i]
	}
	return strings.TrimSuffix(root, ".star")
}

// DefaultPolicyYAML returns a commented YAML policy for init-policy.
func DefaultPolicyYAML() string {
	return `# taskgate policy configuration
# Generated by: taskgate init-policy
#
# The policy is loaded once at process start and shared read-only by every
# validation and execution. Changing it is a deployment-time decision.

# Module roots that scripts may load(). The runtime serves math, json, and
# time; listing a module here that the runtime does not provide makes the
# import validate but fail at load time.
allowed_imports:
  - math
  - json
  - time

# Builtins that stay callable inside the execution namespace. Every other
# universe builtin is shadowed by a stub that fails when called.
allowed_primitives:
  - abs
  - all
  - any
  - bool
  - bytes
  - dict
  - dir
  - enumerate
  - fail
  - float
  - getattr
  - hasattr
  - hash
  - int
  - len
  - list
  - max
  - min
  - print
  - range
  - repr
  - reversed
  - set
  - sorted
  - str
  - tuple
  - type
  - zip

# Bare names rejected by the validator when they appear as a call's callee,
# anywhere in the script. Second line of defense: none of these exist in the
# execution namespace either.
forbidden_calls:
  - eval
  - exec
  - compile
  - open
  - input
  - __import__
  - globals
  - locals
  - super
  - help
  - exit
  - quit

# Attribute names rejected when invoked as a method, anywhere in the script.
forbidden_attributes:
  - system
  - popen
  - spawn
  - fork
  - kill
`
}
