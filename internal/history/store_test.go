package history

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)

	entries := []Execution{
		{Timestamp: "2026-08-24T10:00:00.000Z", SourceHash: "sha256:a", Success: true, DurationMS: 5},
		{Timestamp: "2026-08-24T10:00:01.000Z", SourceHash: "sha256:b", Success: false, Error: "fail: boom", DurationMS: 2},
		{Timestamp: "2026-08-24T10:00:02.000Z", SourceHash: "sha256:c", Success: true, DurationMS: 9, StdoutBytes: 3},
	}
	for _, e := range entries {
		if _, err := s.Record(e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	recent, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(recent))
	}
	if recent[0].SourceHash != "sha256:c" {
		t.Fatalf("expected newest first, got %s", recent[0].SourceHash)
	}
	if recent[1].Success || recent[1].Error != "fail: boom" {
		t.Fatalf("failure not preserved: %+v", recent[1])
	}
}

func TestRecordGeneratesUniqueIDs(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.Record(Execution{SourceHash: "sha256:x", Success: true})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.Record(Execution{SourceHash: "sha256:x", Success: true})
	if err != nil {
		t.Fatal(err)
	}
	if id1 == "" || id2 == "" || id1 == id2 {
		t.Fatalf("expected distinct generated IDs, got %q and %q", id1, id2)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 4; i++ {
		if _, err := s.Record(Execution{SourceHash: "sha256:x", Success: i%2 == 0}); err != nil {
			t.Fatal(err)
		}
	}
	st, err := s.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 4 || st.Failed != 2 {
		t.Fatalf("expected 4 total / 2 failed, got %+v", st)
	}
}

func TestRecentLimit(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		if _, err := s.Record(Execution{SourceHash: "sha256:x", Success: true}); err != nil {
			t.Fatal(err)
		}
	}
	recent, err := s.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(recent))
	}
}
