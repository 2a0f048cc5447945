package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.PolicyPath == "" {
		// A nonexistent path loads the built-in defaults.
		cfg.PolicyPath = filepath.Join(t.TempDir(), "missing-policy.yaml")
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create MCP server: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestValidateToolAccepts(t *testing.T) {
	s := newTestServer(t, Config{})
	_, out, err := s.handleValidate(context.Background(), &mcpsdk.CallToolRequest{}, ValidateInput{
		Code: "def run(params):\n    return 1\n",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Valid || len(out.Errors) != 0 {
		t.Fatalf("expected valid, got %+v", out)
	}
}

func TestValidateToolRejects(t *testing.T) {
	s := newTestServer(t, Config{})
	_, out, err := s.handleValidate(context.Background(), &mcpsdk.CallToolRequest{}, ValidateInput{
		Code: "load(\"os.star\", \"os\")\n",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Valid || len(out.Errors) == 0 {
		t.Fatalf("expected itemized violations, got %+v", out)
	}
}

func TestRunTool(t *testing.T) {
	s := newTestServer(t, Config{})
	result, out, err := s.handleRun(context.Background(), &mcpsdk.CallToolRequest{}, RunInput{
		Code:   "def run(params):\n    return params[\"a\"] + params[\"b\"]\n",
		Params: map[string]any{"a": 1, "b": 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatal("expected success, got error result")
	}
	if !out.Success || out.Data != int64(3) {
		t.Fatalf("expected data 3, got %+v", out)
	}
}

func TestRunToolBlockedByValidation(t *testing.T) {
	s := newTestServer(t, Config{})
	result, out, err := s.handleRun(context.Background(), &mcpsdk.CallToolRequest{}, RunInput{
		Code: "def run(params):\n    return eval(\"1\")\n",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected error result")
	}
	if out.Success || !strings.Contains(out.Error, "validation failed") {
		t.Fatalf("expected validation block, got %+v", out)
	}
}

func TestRunToolRecordsHistory(t *testing.T) {
	histPath := filepath.Join(t.TempDir(), "history.db")
	s := newTestServer(t, Config{HistoryPath: histPath})
	_, _, err := s.handleRun(context.Background(), &mcpsdk.CallToolRequest{}, RunInput{
		Code: "def run(params):\n    return 1\n",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	st, err := s.hist.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 1 {
		t.Fatalf("expected 1 recorded execution, got %d", st.Total)
	}
}

func TestReloadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("allowed_imports: [math]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, Config{PolicyPath: path})

	code := "load(\"math.star\", \"math\")\n\ndef run(params):\n    return math.pi\n"
	_, out, err := s.handleValidate(context.Background(), &mcpsdk.CallToolRequest{}, ValidateInput{Code: code})
	if err != nil || !out.Valid {
		t.Fatalf("math should validate before reload: %v %+v", err, out)
	}

	if err := os.WriteFile(path, []byte("allowed_imports: [json]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.ReloadPolicy(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	_, out, err = s.handleValidate(context.Background(), &mcpsdk.CallToolRequest{}, ValidateInput{Code: code})
	if err != nil {
		t.Fatal(err)
	}
	if out.Valid {
		t.Fatal("math should be rejected after reload")
	}
}
