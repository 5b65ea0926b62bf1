// Package index implements the per-collection status index: an ordered
// key-value store mapping resource identifier to last-known status. The
// index is an acceleration structure over the filesystem, never a
// source of truth; on any disagreement the on-disk status wins and the
// index is corrected on the next read.
package index

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/piwi3910/amber/pkg/resource"
)

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("status index is closed")

// Index writes are not synced; the filesystem status marker is the
// durable record and the index is rebuilt from it on read-through.
var writeOpts = &pebble.WriteOptions{Sync: false}

// Entry is one (identifier, status) pair yielded by a scan.
type Entry struct {
	ID     string
	Status resource.Status
}

// Index is a status index backed by a pebble store. It is safe for
// concurrent use.
type Index struct {
	mu     sync.RWMutex
	db     *pebble.DB
	closed bool
}

// Open opens (or creates) the index at the given directory.
func Open(path string) (*Index, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open status index at %s: %w", path, err)
	}
	return &Index{db: db}, nil
}

// Put upserts the status for an identifier. StatusUnknown removes the
// entry: only the three fixed tokens are ever stored.
func (ix *Index) Put(id string, status resource.Status) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return ErrClosed
	}
	if status == resource.StatusUnknown {
		return ix.db.Delete([]byte(id), writeOpts)
	}
	if err := status.Validate(); err != nil {
		return err
	}
	return ix.db.Set([]byte(id), []byte(status), writeOpts)
}

// Get returns the last-known status for an identifier. The second
// return value is false when no entry exists or the stored value is
// not a recognized token.
func (ix *Index) Get(id string) (resource.Status, bool, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return resource.StatusUnknown, false, ErrClosed
	}
	val, closer, err := ix.db.Get([]byte(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return resource.StatusUnknown, false, nil
		}
		return resource.StatusUnknown, false, err
	}
	defer closer.Close()
	status := resource.ParseStatus(val)
	if status == resource.StatusUnknown {
		return resource.StatusUnknown, false, nil
	}
	return status, true, nil
}

// Scan returns all entries in the store's native key order. Entries
// holding unrecognized values are reported with StatusUnknown so the
// caller can reconcile them.
func (ix *Index) Scan() ([]Entry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil, ErrClosed
	}
	it := ix.db.NewIter(&pebble.IterOptions{})
	var entries []Entry
	for it.First(); it.Valid(); it.Next() {
		entries = append(entries, Entry{
			ID:     string(it.Key()),
			Status: resource.ParseStatus(it.Value()),
		})
	}
	if err := it.Close(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Close releases the underlying store. Subsequent operations return
// ErrClosed.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	return ix.db.Close()
}
