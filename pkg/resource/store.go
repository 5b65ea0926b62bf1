package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// On-disk facets of a resource. The names match what operators expect
// to find when inspecting a resource directory by hand.
const (
	statusFile    = "status"
	startTimeFile = "start_time"
	endTimeFile   = "end_time"
	resultFile    = "result.json"
	errorFile     = "error.log"
	logFile       = "run.log"
	storageDir    = "storage"
)

// IndexDirName is the reserved directory inside a collection that holds
// the status index. It is never a valid resource identifier.
const IndexDirName = "status"

// Store manages the per-resource directory tree under one collection
// base directory. Writes are best-effort single-file writes with no
// atomic-rename guarantee; readers treat unparsable state as unknown.
type Store struct {
	base string
}

// NewStore creates a store rooted at the collection base directory.
func NewStore(base string) *Store {
	return &Store{base: base}
}

// ValidateID rejects identifiers that cannot map to a directory name.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("resource identifier is empty")
	}
	if id == IndexDirName || id == "." || id == ".." {
		return fmt.Errorf("resource identifier %q is reserved", id)
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("resource identifier %q contains a path separator", id)
	}
	return nil
}

// Dir returns the resource's directory.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.base, id)
}

// WorkDir returns the resource's private working directory, available
// to the compute function for arbitrary side-output files.
func (s *Store) WorkDir(id string) string {
	return filepath.Join(s.base, id, storageDir)
}

// LogPath returns the path of the resource's run log.
func (s *Store) LogPath(id string) string {
	return filepath.Join(s.base, id, logFile)
}

// Exists reports whether the resource directory has been materialized.
func (s *Store) Exists(id string) bool {
	info, err := os.Stat(s.Dir(id))
	return err == nil && info.IsDir()
}

// Init idempotently materializes the resource directory, its working
// subdirectory, and an empty status marker. Existing content is never
// overwritten.
func (s *Store) Init(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := os.MkdirAll(s.WorkDir(id), 0o755); err != nil {
		return fmt.Errorf("failed to create resource directory: %w", err)
	}
	statusPath := filepath.Join(s.Dir(id), statusFile)
	if _, err := os.Stat(statusPath); os.IsNotExist(err) {
		if err := os.WriteFile(statusPath, nil, 0o644); err != nil {
			return fmt.Errorf("failed to create status marker: %w", err)
		}
	}
	return nil
}

// ReadStatus reads the status marker. Missing, empty, or torn markers
// read as StatusUnknown.
func (s *Store) ReadStatus(id string) Status {
	raw, err := os.ReadFile(filepath.Join(s.Dir(id), statusFile))
	if err != nil {
		return StatusUnknown
	}
	return ParseStatus(raw)
}

// ReadState reads the full durable state of a resource. The result is
// deserialized only when the status is complete.
func (s *Store) ReadState(id string) (Snapshot, error) {
	snap := Snapshot{
		ID:        id,
		Status:    s.ReadStatus(id),
		StartTime: readTime(filepath.Join(s.Dir(id), startTimeFile)),
		EndTime:   readTime(filepath.Join(s.Dir(id), endTimeFile)),
	}
	if snap.Status != StatusComplete {
		return snap, nil
	}
	raw, err := os.ReadFile(filepath.Join(s.Dir(id), resultFile))
	if err != nil || len(raw) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(raw, &snap.Result); err != nil {
		return snap, fmt.Errorf("failed to decode result for %q: %w", id, err)
	}
	return snap, nil
}

// Begin resets a resource for (re)computation: result, error, and log
// content are cleared, the status marker is set to pending, the start
// time is stamped and the end time is cleared. This is the single
// point that discards prior outputs.
func (s *Store) Begin(id string, now int64) error {
	if err := s.Init(id); err != nil {
		return err
	}
	dir := s.Dir(id)
	for _, name := range []string{resultFile, errorFile, logFile} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			return fmt.Errorf("failed to clear %s: %w", name, err)
		}
	}
	if err := s.writeStatus(id, StatusPending); err != nil {
		return err
	}
	if err := writeTime(filepath.Join(dir, startTimeFile), now); err != nil {
		return err
	}
	return writeTime(filepath.Join(dir, endTimeFile), 0)
}

// Finish stamps the end time and writes the terminal status. For a
// complete status the result document is serialized; for an error
// status the result stays absent and previously captured error text is
// preserved.
func (s *Store) Finish(id string, status Status, result any, now int64) error {
	if !status.IsTerminal() {
		return fmt.Errorf("cannot finish resource %q with non-terminal status %s", id, status)
	}
	if status == StatusComplete {
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to serialize result for %q: %w", id, err)
		}
		if err := os.WriteFile(filepath.Join(s.Dir(id), resultFile), raw, 0o644); err != nil {
			return fmt.Errorf("failed to write result for %q: %w", id, err)
		}
	}
	if err := writeTime(filepath.Join(s.Dir(id), endTimeFile), now); err != nil {
		return err
	}
	return s.writeStatus(id, status)
}

// WriteError appends captured error text. Repeated failures accumulate
// so the full history stays available for diagnosis.
func (s *Store) WriteError(id, text string) error {
	return appendFile(filepath.Join(s.Dir(id), errorFile), text)
}

// AppendLog appends text to the resource's run log.
func (s *Store) AppendLog(id, text string) error {
	return appendFile(filepath.Join(s.Dir(id), logFile), text)
}

// ReadError returns the captured error text, or an empty string if the
// resource never failed.
func (s *Store) ReadError(id string) (string, error) {
	return readOptional(filepath.Join(s.Dir(id), errorFile))
}

// ReadLog returns the accumulated run log, or an empty string if no
// log was written.
func (s *Store) ReadLog(id string) (string, error) {
	return readOptional(filepath.Join(s.Dir(id), logFile))
}

// List returns the identifiers of all materialized resources in the
// collection, excluding the index directory.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list collection directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == IndexDirName {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}

func (s *Store) writeStatus(id string, status Status) error {
	if err := status.Validate(); err != nil {
		return err
	}
	path := filepath.Join(s.Dir(id), statusFile)
	if err := os.WriteFile(path, []byte(status), 0o644); err != nil {
		return fmt.Errorf("failed to write status for %q: %w", id, err)
	}
	return nil
}

// writeTime writes a millisecond epoch timestamp as ASCII decimal. A
// zero timestamp writes an empty marker, read back as unset.
func writeTime(path string, ts int64) error {
	var raw []byte
	if ts != 0 {
		raw = []byte(strconv.FormatInt(ts, 10))
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write time marker: %w", err)
	}
	return nil
}

// readTime returns 0 when the marker is missing, empty, or unparsable.
func readTime(path string) int64 {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

func appendFile(path, text string) error {
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", filepath.Base(path), err)
	}
	defer fd.Close()
	if _, err := fd.WriteString(text); err != nil {
		return fmt.Errorf("failed to append to %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readOptional(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(raw), nil
}
