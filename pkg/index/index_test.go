package index

import (
	"path/filepath"
	"testing"

	"github.com/piwi3910/amber/pkg/resource"
)

// setupTestIndex opens an index in a temp directory
func setupTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "status"))
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

// TestPutGet tests basic upsert and lookup
func TestPutGet(t *testing.T) {
	ix := setupTestIndex(t)

	if err := ix.Put("r1", resource.StatusPending); err != nil {
		t.Fatalf("failed to put: %v", err)
	}
	status, ok, err := ix.Get("r1")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if !ok || status != resource.StatusPending {
		t.Errorf("expected pending, got %s (ok=%v)", status, ok)
	}

	// Last write wins
	if err := ix.Put("r1", resource.StatusComplete); err != nil {
		t.Fatalf("failed to overwrite: %v", err)
	}
	status, ok, err = ix.Get("r1")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if !ok || status != resource.StatusComplete {
		t.Errorf("expected complete, got %s (ok=%v)", status, ok)
	}
}

// TestGetAbsent tests lookup of a never-written identifier
func TestGetAbsent(t *testing.T) {
	ix := setupTestIndex(t)

	status, ok, err := ix.Get("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || status != resource.StatusUnknown {
		t.Errorf("expected absent, got %s (ok=%v)", status, ok)
	}
}

// TestPutUnknownRemoves tests that putting unknown removes the entry
func TestPutUnknownRemoves(t *testing.T) {
	ix := setupTestIndex(t)

	if err := ix.Put("r1", resource.StatusError); err != nil {
		t.Fatalf("failed to put: %v", err)
	}
	if err := ix.Put("r1", resource.StatusUnknown); err != nil {
		t.Fatalf("failed to remove: %v", err)
	}
	_, ok, err := ix.Get("r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected entry to be removed")
	}
}

// TestPutRejectsForeignToken tests that only fixed tokens are stored
func TestPutRejectsForeignToken(t *testing.T) {
	ix := setupTestIndex(t)

	if err := ix.Put("r1", resource.Status("done")); err == nil {
		t.Error("expected error for foreign status token")
	}
}

// TestScanKeyOrder tests that a scan yields entries in key order
func TestScanKeyOrder(t *testing.T) {
	ix := setupTestIndex(t)

	puts := map[string]resource.Status{
		"c": resource.StatusComplete,
		"a": resource.StatusPending,
		"b": resource.StatusError,
	}
	for id, status := range puts {
		if err := ix.Put(id, status); err != nil {
			t.Fatalf("failed to put %s: %v", id, err)
		}
	}

	entries, err := ix.Scan()
	if err != nil {
		t.Fatalf("failed to scan: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []string{"a", "b", "c"}
	for i, e := range entries {
		if e.ID != want[i] {
			t.Errorf("entry %d: expected id %s, got %s", i, want[i], e.ID)
		}
		if e.Status != puts[e.ID] {
			t.Errorf("entry %s: expected status %s, got %s", e.ID, puts[e.ID], e.Status)
		}
	}
}

// TestClosedIndex tests that operations on a closed index fail with
// ErrClosed instead of panicking
func TestClosedIndex(t *testing.T) {
	ix, err := Open(filepath.Join(t.TempDir(), "status"))
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	if err := ix.Put("r1", resource.StatusPending); err != ErrClosed {
		t.Errorf("expected ErrClosed from Put, got %v", err)
	}
	if _, _, err := ix.Get("r1"); err != ErrClosed {
		t.Errorf("expected ErrClosed from Get, got %v", err)
	}
	if _, err := ix.Scan(); err != ErrClosed {
		t.Errorf("expected ErrClosed from Scan, got %v", err)
	}
	// Closing twice is fine
	if err := ix.Close(); err != nil {
		t.Errorf("unexpected error on double close: %v", err)
	}
}

// TestReopen tests that entries survive close and reopen
func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status")
	ix, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	if err := ix.Put("r1", resource.StatusComplete); err != nil {
		t.Fatalf("failed to put: %v", err)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	ix, err = Open(path)
	if err != nil {
		t.Fatalf("failed to reopen index: %v", err)
	}
	defer ix.Close()
	status, ok, err := ix.Get("r1")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if !ok || status != resource.StatusComplete {
		t.Errorf("expected complete after reopen, got %s (ok=%v)", status, ok)
	}
}
