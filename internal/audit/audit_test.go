package audit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	return l, path
}

func testEntry(kind, outcome string) Entry {
	return Entry{
		RequestID:  "r-test",
		Kind:       kind,
		SourceHash: "sha256:abc",
		Outcome:    outcome,
		PolicyHash: "sha256:def",
	}
}

func TestSequentialWritesProduceValidChain(t *testing.T) {
	l, path := newTestLog(t)

	for i := 0; i < 5; i++ {
		if err := l.Record(testEntry("execute", "success")); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	l.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected valid chain, got error at line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Lines != 5 {
		t.Fatalf("expected 5 lines, got %d", result.Lines)
	}
}

func TestVerifyDetectsTamperedEntry(t *testing.T) {
	l, path := newTestLog(t)

	for i := 0; i < 3; i++ {
		if err := l.Record(testEntry("validate", "valid")); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	l.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lines[1] = strings.Replace(lines[1], `"valid"`, `"invalid"`, 1)
	os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644)

	result := Verify(path)
	if result.Valid {
		t.Fatal("expected tamper detection")
	}
	if result.ErrorLine == 0 {
		t.Fatal("expected an error line")
	}
}

func TestReopenContinuesChain(t *testing.T) {
	l, path := newTestLog(t)
	if err := l.Record(testEntry("execute", "failure")); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := l2.Record(testEntry("execute", "success")); err != nil {
		t.Fatal(err)
	}
	l2.Close()

	result := Verify(path)
	if !result.Valid || result.Lines != 2 {
		t.Fatalf("chain broken across reopen: %+v", result)
	}
}

func TestConcurrentRecords(t *testing.T) {
	l, path := newTestLog(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Record(testEntry("execute", "success"))
		}()
	}
	wg.Wait()
	l.Close()

	result := Verify(path)
	if !result.Valid || result.Lines != 10 {
		t.Fatalf("concurrent writes broke the chain: %+v", result)
	}
}
