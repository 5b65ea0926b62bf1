package resource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// setupTestStore creates a store rooted at a temp directory
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

// TestInitIdempotent tests that Init can be called repeatedly without
// clobbering existing content
func TestInitIdempotent(t *testing.T) {
	s := setupTestStore(t)

	if err := s.Init("r1"); err != nil {
		t.Fatalf("failed to init resource: %v", err)
	}
	if !s.Exists("r1") {
		t.Fatal("resource directory was not created")
	}
	if _, err := os.Stat(s.WorkDir("r1")); err != nil {
		t.Fatalf("working directory was not created: %v", err)
	}

	// Write some state, then re-init and verify it survives
	if err := s.Begin("r1", 1000); err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if err := s.Init("r1"); err != nil {
		t.Fatalf("failed to re-init resource: %v", err)
	}
	if got := s.ReadStatus("r1"); got != StatusPending {
		t.Errorf("expected status pending after re-init, got %s", got)
	}
}

// TestInitRejectsBadIDs tests identifier validation
func TestInitRejectsBadIDs(t *testing.T) {
	s := setupTestStore(t)

	for _, id := range []string{"", ".", "..", "a/b", `a\b`, IndexDirName} {
		if err := s.Init(id); err == nil {
			t.Errorf("expected error for identifier %q", id)
		}
	}
}

// TestReadStatusUnknown tests that missing, empty, and torn status
// markers all read as unknown
func TestReadStatusUnknown(t *testing.T) {
	s := setupTestStore(t)

	if got := s.ReadStatus("never-seen"); got != StatusUnknown {
		t.Errorf("expected unknown for missing marker, got %s", got)
	}

	if err := s.Init("r1"); err != nil {
		t.Fatalf("failed to init: %v", err)
	}
	if got := s.ReadStatus("r1"); got != StatusUnknown {
		t.Errorf("expected unknown for empty marker, got %s", got)
	}

	// Torn marker
	if err := os.WriteFile(filepath.Join(s.Dir("r1"), statusFile), []byte("compl"), 0o644); err != nil {
		t.Fatalf("failed to corrupt marker: %v", err)
	}
	if got := s.ReadStatus("r1"); got != StatusUnknown {
		t.Errorf("expected unknown for torn marker, got %s", got)
	}
}

// TestBeginFinishComplete tests the full pending -> complete lifecycle
func TestBeginFinishComplete(t *testing.T) {
	s := setupTestStore(t)

	if err := s.Begin("r1", 1000); err != nil {
		t.Fatalf("failed to begin: %v", err)
	}

	snap, err := s.ReadState("r1")
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}
	if snap.Status != StatusPending {
		t.Errorf("expected pending, got %s", snap.Status)
	}
	if snap.StartTime != 1000 {
		t.Errorf("expected start time 1000, got %d", snap.StartTime)
	}
	if snap.EndTime != 0 {
		t.Errorf("expected unset end time, got %d", snap.EndTime)
	}
	if snap.Result != nil {
		t.Errorf("expected no result while pending, got %v", snap.Result)
	}

	result := map[string]any{"val": float64(10)}
	if err := s.Finish("r1", StatusComplete, result, 2000); err != nil {
		t.Fatalf("failed to finish: %v", err)
	}

	snap, err = s.ReadState("r1")
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}
	if snap.Status != StatusComplete {
		t.Errorf("expected complete, got %s", snap.Status)
	}
	if snap.EndTime != 2000 {
		t.Errorf("expected end time 2000, got %d", snap.EndTime)
	}
	got, ok := snap.Result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", snap.Result)
	}
	if got["val"] != float64(10) {
		t.Errorf("expected val 10, got %v", got["val"])
	}
}

// TestFinishError tests that an errored resource keeps no result and
// preserves accumulated error text
func TestFinishError(t *testing.T) {
	s := setupTestStore(t)

	if err := s.Begin("r1", 1000); err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if err := s.WriteError("r1", "first failure\n"); err != nil {
		t.Fatalf("failed to write error: %v", err)
	}
	if err := s.Finish("r1", StatusError, nil, 2000); err != nil {
		t.Fatalf("failed to finish: %v", err)
	}

	snap, err := s.ReadState("r1")
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}
	if snap.Status != StatusError {
		t.Errorf("expected error status, got %s", snap.Status)
	}
	if snap.Result != nil {
		t.Errorf("expected no result on error, got %v", snap.Result)
	}

	// A second failure appends, not overwrites
	if err := s.WriteError("r1", "second failure\n"); err != nil {
		t.Fatalf("failed to append error: %v", err)
	}
	text, err := s.ReadError("r1")
	if err != nil {
		t.Fatalf("failed to read error: %v", err)
	}
	if !strings.Contains(text, "first failure") || !strings.Contains(text, "second failure") {
		t.Errorf("expected accumulated error text, got %q", text)
	}
}

// TestFinishRejectsNonTerminal tests that only terminal statuses can
// finish a resource
func TestFinishRejectsNonTerminal(t *testing.T) {
	s := setupTestStore(t)

	if err := s.Begin("r1", 1000); err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if err := s.Finish("r1", StatusPending, nil, 2000); err == nil {
		t.Error("expected error finishing with pending status")
	}
	if err := s.Finish("r1", StatusUnknown, nil, 2000); err == nil {
		t.Error("expected error finishing with unknown status")
	}
}

// TestBeginClearsPriorOutputs tests that a forced recompute discards
// result, error, and log content
func TestBeginClearsPriorOutputs(t *testing.T) {
	s := setupTestStore(t)

	if err := s.Begin("r1", 1000); err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if err := s.WriteError("r1", "old failure\n"); err != nil {
		t.Fatalf("failed to write error: %v", err)
	}
	if err := s.AppendLog("r1", "old log\n"); err != nil {
		t.Fatalf("failed to append log: %v", err)
	}
	if err := s.Finish("r1", StatusError, nil, 2000); err != nil {
		t.Fatalf("failed to finish: %v", err)
	}

	if err := s.Begin("r1", 3000); err != nil {
		t.Fatalf("failed to re-begin: %v", err)
	}

	errText, err := s.ReadError("r1")
	if err != nil {
		t.Fatalf("failed to read error: %v", err)
	}
	if errText != "" {
		t.Errorf("expected cleared error text, got %q", errText)
	}
	logText, err := s.ReadLog("r1")
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if logText != "" {
		t.Errorf("expected cleared log, got %q", logText)
	}

	snap, err := s.ReadState("r1")
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}
	if snap.Status != StatusPending {
		t.Errorf("expected pending after re-begin, got %s", snap.Status)
	}
	if snap.StartTime != 3000 {
		t.Errorf("expected start time 3000, got %d", snap.StartTime)
	}
	if snap.EndTime != 0 {
		t.Errorf("expected cleared end time, got %d", snap.EndTime)
	}
}

// TestReadOptionalAbsent tests that log and error reads for a resource
// that never produced them return empty strings
func TestReadOptionalAbsent(t *testing.T) {
	s := setupTestStore(t)

	if err := s.Init("r1"); err != nil {
		t.Fatalf("failed to init: %v", err)
	}
	text, err := s.ReadError("r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty error text, got %q", text)
	}
	text, err = s.ReadLog("r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty log text, got %q", text)
	}
}

// TestTornTimeMarkers tests that unparsable time markers read as unset
func TestTornTimeMarkers(t *testing.T) {
	s := setupTestStore(t)

	if err := s.Begin("r1", 1000); err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir("r1"), startTimeFile), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("failed to corrupt marker: %v", err)
	}
	snap, err := s.ReadState("r1")
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}
	if snap.StartTime != 0 {
		t.Errorf("expected unset start time for torn marker, got %d", snap.StartTime)
	}
}

// TestList tests resource listing excludes the index directory
func TestList(t *testing.T) {
	s := setupTestStore(t)

	for _, id := range []string{"b", "a", "c"} {
		if err := s.Init(id); err != nil {
			t.Fatalf("failed to init %s: %v", id, err)
		}
	}
	// Simulate the collection's index directory
	if err := os.MkdirAll(filepath.Join(s.base, IndexDirName), 0o755); err != nil {
		t.Fatalf("failed to create index dir: %v", err)
	}

	ids, err := s.List()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 resources, got %d: %v", len(ids), ids)
	}
	for _, id := range ids {
		if id == IndexDirName {
			t.Errorf("index directory leaked into listing: %v", ids)
		}
	}
}
