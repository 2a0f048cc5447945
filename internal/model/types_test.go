package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestResultMarshalSuccess(t *testing.T) {
	res := Result{Success: true, Data: int64(3), Stdout: "hi\n"}
	out, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `"error":null`) {
		t.Errorf("expected null error on success, got %s", s)
	}
	if !strings.Contains(s, `"data":3`) {
		t.Errorf("expected data 3, got %s", s)
	}
}

func TestResultMarshalFailure(t *testing.T) {
	res := Failure("fail: boom", "partial\n", "")
	out, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `"data":null`) {
		t.Errorf("expected null data on failure, got %s", s)
	}
	if !strings.Contains(s, `"error":"fail: boom"`) {
		t.Errorf("expected error text, got %s", s)
	}
	if !strings.Contains(s, `"stdout":"partial\n"`) {
		t.Errorf("expected partial stdout preserved, got %s", s)
	}
}

func TestReportMessagesOrder(t *testing.T) {
	rep := Report{Violations: []Violation{
		{Kind: KindForbiddenImport, Message: "first"},
		{Kind: KindStructural, Message: "second"},
	}}
	msgs := rep.Messages()
	if len(msgs) != 2 || msgs[0] != "first" || msgs[1] != "second" {
		t.Fatalf("expected detection order preserved, got %v", msgs)
	}
}

func TestSourceHashDeterministic(t *testing.T) {
	a := SourceHash("def run(params):\n    return 1\n")
	b := SourceHash("def run(params):\n    return 1\n")
	if a != b {
		t.Fatalf("hash not deterministic: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "sha256:") {
		t.Fatalf("expected sha256 prefix, got %s", a)
	}
	if a == SourceHash("def run(params):\n    return 2\n") {
		t.Fatal("different sources must not collide")
	}
}
