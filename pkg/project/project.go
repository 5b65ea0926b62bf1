// Package project implements the public surface of the Amber
// memoization engine: the collection registry and the fetch
// orchestrator. A Project binds collection names to compute functions
// and to their on-disk stores; Fetch decides cache-hit versus
// recompute and dispatches computation inline or in the background.
package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"

	"github.com/piwi3910/amber/pkg/index"
	"github.com/piwi3910/amber/pkg/resource"
	"github.com/piwi3910/amber/pkg/telemetry"
)

// Options configures a Project.
type Options struct {
	// BaseDir is the root directory of the project's on-disk state.
	BaseDir string `validate:"required"`

	// Logger is the process logger. Defaults to a no-op logger.
	Logger *telemetry.Logger

	// Metrics is the metrics collector. Defaults to a no-op collector.
	Metrics *telemetry.Metrics

	// Tracer enables tracing of fetch and compute operations.
	Tracer *telemetry.Tracer
}

// CollectionStatus is the aggregate status of a collection.
type CollectionStatus struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Complete int `json:"complete"`
	Error    int `json:"error"`
	Unknown  int `json:"unknown"`
}

// FetchOptions controls a single Fetch call.
type FetchOptions struct {
	// Args are passed through to the compute function.
	Args map[string]any

	// Recompute discards a cached terminal state and reruns the
	// computation.
	Recompute bool

	// Block runs the computation on the caller's goroutine and returns
	// the terminal snapshot. When false the computation is dispatched
	// in the background and the pending snapshot is returned.
	Block bool
}

// Project is the root of one deployment: a base directory and the
// registered collections under it. Create one per process and release
// it with Close when done.
type Project struct {
	base    string
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	mu          sync.RWMutex
	collections map[string]*Collection
}

var validate = validator.New()

// New creates a Project rooted at opts.BaseDir, creating the directory
// if needed.
func New(opts Options) (*Project, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid project options: %w", err)
	}
	if info, err := os.Stat(opts.BaseDir); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("project base path is not a directory: %s", opts.BaseDir)
	}
	if err := os.MkdirAll(opts.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = telemetry.Nop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		var err error
		metrics, err = telemetry.NewMetrics(telemetry.MetricsConfig{})
		if err != nil {
			return nil, err
		}
	}
	return &Project{
		base:        opts.BaseDir,
		log:         log.NewComponentLogger("project"),
		metrics:     metrics,
		tracer:      opts.Tracer,
		collections: make(map[string]*Collection),
	}, nil
}

// Register binds a collection name to a compute function, creating the
// collection directory and opening its status index. Names are unique
// within a Project.
func (p *Project) Register(name string, fn ComputeFunc) (*Collection, error) {
	if fn == nil {
		return nil, newError(CodeNoComputeFunc, "compute function is nil", nil).WithCollection(name)
	}
	return p.addCollection(name, fn)
}

// Attach binds a collection for inspection only: status, log, error,
// and find queries work, but Fetch fails because no compute function
// is bound. The CLI uses this to inspect a project directory.
func (p *Project) Attach(name string) (*Collection, error) {
	return p.addCollection(name, nil)
}

func (p *Project) addCollection(name string, fn ComputeFunc) (*Collection, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return nil, newError(CodeUnknownCollection, "invalid collection name", nil).WithCollection(name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.collections[name]; exists {
		return nil, newError(CodeCollectionExists, "collection name has already been used", nil).
			WithCollection(name)
	}
	base := filepath.Join(p.base, name)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, newError(CodeStoreFailed, "failed to create collection directory", err).
			WithCollection(name)
	}
	ix, err := index.Open(filepath.Join(base, resource.IndexDirName))
	if err != nil {
		return nil, newError(CodeStoreFailed, "failed to open status index", err).WithCollection(name)
	}
	c := &Collection{
		name:     name,
		fn:       fn,
		store:    resource.NewStore(base),
		index:    ix,
		log:      p.log.WithCollection(name),
		metrics:  p.metrics,
		tracer:   p.tracer,
		inflight: make(map[string]*inflight),
	}
	p.collections[name] = c
	p.metrics.SetCollectionCount(float64(len(p.collections)))
	return c, nil
}

// Close releases all status index handles. In-flight background
// computations are not joined; their index updates after Close are
// dropped and repaired on the next read-through.
func (p *Project) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, c := range p.collections {
		if err := c.index.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Project) collection(name string) (*Collection, error) {
	p.mu.RLock()
	c, ok := p.collections[name]
	p.mu.RUnlock()
	if !ok {
		return nil, newError(CodeUnknownCollection, "no such collection", nil).WithCollection(name)
	}
	return c, nil
}

// Fetch computes a new entry for a resource or returns the cached one.
// A terminal snapshot (complete or error) is returned as-is unless
// Recompute is set. Compute failures are never returned from Fetch:
// they surface as a later snapshot with status error.
func (p *Project) Fetch(ctx context.Context, collection, id string, opts FetchOptions) (resource.Snapshot, error) {
	c, err := p.collection(collection)
	if err != nil {
		return resource.Snapshot{}, err
	}
	span := trace.SpanFromContext(ctx)
	if p.tracer != nil {
		ctx, span = p.tracer.StartFetchSpan(ctx, collection, id)
		defer span.End()
	}
	snap, err := c.fetch(ctx, id, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		return snap, err
	}
	span.SetAttributes(telemetry.AttrResourceStatus.String(string(snap.Status)))
	return snap, nil
}

// Status returns the current status of one resource. Querying an
// identifier that was never fetched is a caller bug and fails with an
// unknown resource error.
func (p *Project) Status(collection, id string) (resource.Status, error) {
	c, err := p.resourceCollection(collection, id)
	if err != nil {
		return resource.StatusUnknown, err
	}
	snap, err := c.load(id)
	if err != nil {
		return resource.StatusUnknown, err
	}
	return snap.Status, nil
}

// CollectionStatus returns aggregate status counts over a collection.
// Counts come from the status index; materialized resources with no
// index entry are counted as unknown.
func (p *Project) CollectionStatus(collection string) (CollectionStatus, error) {
	c, err := p.collection(collection)
	if err != nil {
		return CollectionStatus{}, err
	}
	ids, err := c.store.List()
	if err != nil {
		return CollectionStatus{}, newError(CodeStoreFailed, "failed to list collection", err).
			WithCollection(collection)
	}
	var agg CollectionStatus
	agg.Total = len(ids)
	for _, id := range ids {
		status, ok, err := c.index.Get(id)
		if err != nil {
			return CollectionStatus{}, newError(CodeStoreFailed, "failed to read status index", err).
				WithCollection(collection)
		}
		if !ok {
			agg.Unknown++
			continue
		}
		switch status {
		case resource.StatusPending:
			agg.Pending++
		case resource.StatusComplete:
			agg.Complete++
		case resource.StatusError:
			agg.Error++
		default:
			agg.Unknown++
		}
	}
	return agg, nil
}

// FindByStatus returns the identifiers of all resources in a
// collection with the given status, in the index's native key order.
func (p *Project) FindByStatus(collection string, status resource.Status) ([]string, error) {
	c, err := p.collection(collection)
	if err != nil {
		return nil, err
	}
	entries, err := c.index.Scan()
	if err != nil {
		return nil, newError(CodeStoreFailed, "failed to scan status index", err).
			WithCollection(collection)
	}
	var ids []string
	for _, e := range entries {
		if e.Status == status {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

// FetchLog returns the accumulated run log for a resource, or an empty
// string if no log was written.
func (p *Project) FetchLog(collection, id string) (string, error) {
	c, err := p.resourceCollection(collection, id)
	if err != nil {
		return "", err
	}
	text, err := c.store.ReadLog(id)
	if err != nil {
		return "", newError(CodeStoreFailed, "failed to read run log", err).
			WithCollection(collection).WithResource(id)
	}
	return text, nil
}

// FetchError returns the captured error text for a resource, or an
// empty string if it never failed.
func (p *Project) FetchError(collection, id string) (string, error) {
	c, err := p.resourceCollection(collection, id)
	if err != nil {
		return "", err
	}
	text, err := c.store.ReadError(id)
	if err != nil {
		return "", newError(CodeStoreFailed, "failed to read error log", err).
			WithCollection(collection).WithResource(id)
	}
	return text, nil
}

// resourceCollection resolves a collection and requires the resource
// to have been materialized.
func (p *Project) resourceCollection(collection, id string) (*Collection, error) {
	c, err := p.collection(collection)
	if err != nil {
		return nil, err
	}
	if err := resource.ValidateID(id); err != nil {
		return nil, newError(CodeInvalidResource, "invalid resource identifier", err).
			WithCollection(collection).WithResource(id)
	}
	if !c.store.Exists(id) {
		return nil, newError(CodeUnknownResource, "resource does not exist", nil).
			WithCollection(collection).WithResource(id)
	}
	return c, nil
}

// Collections returns the names of all registered collections.
func (p *Project) Collections() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.collections))
	for name := range p.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
