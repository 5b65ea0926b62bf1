// Package resource implements the durable on-disk representation of a
// computed resource and the state machine that governs its lifecycle.
// The filesystem is the authoritative record: every facet of a resource
// (status, timestamps, result, error trace, run log, working files) is a
// plain file that external tooling can read without going through the
// library.
package resource

import "fmt"

// Status represents the lifecycle state of a resource.
type Status string

const (
	// StatusUnknown indicates the resource was never computed, or its
	// status marker is missing or unreadable.
	StatusUnknown Status = "unknown"

	// StatusPending indicates a computation has begun and has not
	// reached a terminal state.
	StatusPending Status = "pending"

	// StatusComplete indicates the computation finished and a result
	// was persisted.
	StatusComplete Status = "complete"

	// StatusError indicates the computation failed; the captured error
	// text is persisted and no result is present.
	StatusError Status = "error"
)

// IsTerminal returns true if the status represents a finished
// computation. Terminal states are re-enterable only through a forced
// recompute.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// Validate checks if the status is one of the persistable tokens.
// StatusUnknown is a read-side sentinel and is never written.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusComplete, StatusError:
		return nil
	default:
		return fmt.Errorf("invalid resource status: %s", s)
	}
}

// ParseStatus interprets raw status marker bytes. Anything that is not
// one of the fixed tokens, including an empty or torn marker, reads as
// StatusUnknown.
func ParseStatus(raw []byte) Status {
	switch Status(raw) {
	case StatusPending:
		return StatusPending
	case StatusComplete:
		return StatusComplete
	case StatusError:
		return StatusError
	default:
		return StatusUnknown
	}
}

// Snapshot is a point-in-time view of a resource read back from disk.
// StartTime and EndTime are millisecond epoch timestamps; zero means
// unset. Result is non-nil only when Status is StatusComplete and a
// result document was persisted.
type Snapshot struct {
	ID        string `json:"id"`
	Status    Status `json:"status"`
	StartTime int64  `json:"start_time,omitempty"`
	EndTime   int64  `json:"end_time,omitempty"`
	Result    any    `json:"result,omitempty"`
}
