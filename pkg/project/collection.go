package project

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/piwi3910/amber/pkg/index"
	"github.com/piwi3910/amber/pkg/resource"
	"github.com/piwi3910/amber/pkg/telemetry"
)

// ComputeFunc computes the result for one resource. The returned value
// must be JSON-serializable. A returned error (or a panic) is captured
// into the resource's error state, never propagated to Fetch callers.
type ComputeFunc func(ctx context.Context, id string, args map[string]any, rc *Context) (any, error)

// Collection is a named group of resources sharing one compute
// function, one directory tree, and one status index.
type Collection struct {
	name    string
	fn      ComputeFunc
	store   *resource.Store
	index   *index.Index
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	// mu guards the in-flight dispatch table. At most one compute
	// invocation runs per identifier; concurrent fetches for the same
	// identifier join it.
	mu       sync.Mutex
	inflight map[string]*inflight
}

type inflight struct {
	done chan struct{}
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// load reads a resource snapshot, reconciling the status index against
// the on-disk status. A never-seen identifier is materialized with
// status unknown. The filesystem always wins: any index entry that
// disagrees with the on-disk marker is corrected here.
func (c *Collection) load(id string) (resource.Snapshot, error) {
	if err := resource.ValidateID(id); err != nil {
		return resource.Snapshot{}, newError(CodeInvalidResource, "invalid resource identifier", err).
			WithCollection(c.name).WithResource(id)
	}
	if err := c.store.Init(id); err != nil {
		return resource.Snapshot{}, newError(CodeStoreFailed, "failed to initialize resource", err).
			WithCollection(c.name).WithResource(id)
	}
	diskStatus := c.store.ReadStatus(id)
	idxStatus, _, err := c.index.Get(id)
	if err != nil {
		return resource.Snapshot{}, newError(CodeStoreFailed, "failed to read status index", err).
			WithCollection(c.name).WithResource(id)
	}
	if diskStatus != idxStatus {
		if err := c.index.Put(id, diskStatus); err != nil {
			return resource.Snapshot{}, newError(CodeStoreFailed, "failed to reconcile status index", err).
				WithCollection(c.name).WithResource(id)
		}
	}
	snap, err := c.store.ReadState(id)
	if err != nil {
		return resource.Snapshot{}, newError(CodeStoreFailed, "failed to read resource state", err).
			WithCollection(c.name).WithResource(id)
	}
	return snap, nil
}

// fetch implements the orchestrator algorithm for one collection. A
// terminal snapshot is a cache hit unless recompute is forced; a cache
// miss registers an in-flight entry, resets durable state to pending,
// and dispatches the compute function inline (block) or on its own
// goroutine (background).
func (c *Collection) fetch(ctx context.Context, id string, opts FetchOptions) (resource.Snapshot, error) {
	c.mu.Lock()
	fl := c.inflight[id]
	c.mu.Unlock()
	if fl != nil {
		c.metrics.RecordFetch(c.name, "join")
		return c.join(ctx, id, fl, opts.Block)
	}

	snap, err := c.load(id)
	if err != nil {
		return resource.Snapshot{}, err
	}
	if !opts.Recompute && snap.Status.IsTerminal() {
		c.metrics.RecordFetch(c.name, "hit")
		return snap, nil
	}

	if c.fn == nil {
		return snap, newError(CodeNoComputeFunc, "collection has no compute function", nil).
			WithCollection(c.name).WithResource(id)
	}

	c.mu.Lock()
	if fl = c.inflight[id]; fl != nil {
		// Lost the dispatch race; join the winner's computation.
		c.mu.Unlock()
		c.metrics.RecordFetch(c.name, "join")
		return c.join(ctx, id, fl, opts.Block)
	}
	fl = &inflight{done: make(chan struct{})}
	c.inflight[id] = fl
	c.mu.Unlock()

	c.metrics.RecordFetch(c.name, "miss")

	// Begin runs on the caller's goroutine so the pending window is
	// observable as soon as Fetch returns.
	if err := c.store.Begin(id, nowMillis()); err != nil {
		c.release(id, fl)
		return resource.Snapshot{}, newError(CodeStoreFailed, "failed to begin computation", err).
			WithCollection(c.name).WithResource(id)
	}
	c.putIndex(id, resource.StatusPending)

	if opts.Block {
		c.run(ctx, id, opts.Args, fl)
		return c.load(id)
	}

	// Fire-and-forget: the background task is detached from the
	// caller's context and runs to completion on its own.
	go c.run(context.Background(), id, opts.Args, fl)
	return c.load(id)
}

// join waits on an in-flight computation (blocking mode) or returns
// the current pending snapshot immediately (background mode).
func (c *Collection) join(ctx context.Context, id string, fl *inflight, block bool) (resource.Snapshot, error) {
	if block {
		select {
		case <-fl.done:
		case <-ctx.Done():
			return resource.Snapshot{}, ctx.Err()
		}
	}
	return c.load(id)
}

// run drives one compute invocation to its terminal state. Failures
// and panics are captured into the resource's error state; run itself
// never surfaces them.
func (c *Collection) run(ctx context.Context, id string, args map[string]any, fl *inflight) {
	defer c.release(id, fl)

	invocation := uuid.New().String()
	log := c.log.WithResource(id).WithInvocation(invocation)
	c.metrics.RecordComputeStarted(c.name)
	started := time.Now()

	span := trace.SpanFromContext(ctx)
	if c.tracer != nil {
		ctx, span = c.tracer.StartComputeSpan(ctx, c.name, id, invocation)
	}
	defer span.End()

	rc, err := newContext(c, c.store, id, invocation)
	if err == nil {
		defer rc.close()
		log.Debug("computing resource")
		var result any
		result, err = c.invoke(ctx, id, args, rc)
		if err == nil {
			err = c.store.Finish(id, resource.StatusComplete, result, nowMillis())
		}
	}

	if err != nil {
		if werr := c.store.WriteError(id, err.Error()+"\n"); werr != nil {
			log.WithError(werr).Error("failed to record compute error")
		}
		if ferr := c.store.Finish(id, resource.StatusError, nil, nowMillis()); ferr != nil {
			log.WithError(ferr).Error("failed to finish errored resource")
		}
		c.putIndex(id, resource.StatusError)
		c.metrics.RecordComputeFinished(c.name, string(resource.StatusError), time.Since(started))
		telemetry.RecordError(span, err)
		log.WithError(err).Warn("compute failed")
		return
	}

	c.putIndex(id, resource.StatusComplete)
	c.metrics.RecordComputeFinished(c.name, string(resource.StatusComplete), time.Since(started))
	telemetry.RecordSuccess(span)
	log.Debug("compute complete")
}

// invoke calls the compute function with panic recovery. A panic is
// converted into an error carrying the stack, mirroring how a failed
// invocation is recorded.
func (c *Collection) invoke(ctx context.Context, id string, args map[string]any, rc *Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compute function panicked: %v\n%s", r, debug.Stack())
		}
	}()
	if args == nil {
		args = map[string]any{}
	}
	return c.fn(ctx, id, args, rc)
}

func (c *Collection) release(id string, fl *inflight) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
	close(fl.done)
}

// putIndex updates the status index. Index write failures are logged
// and swallowed: the index is an acceleration structure and the next
// read-through repairs it from the durable status marker.
func (c *Collection) putIndex(id string, status resource.Status) {
	if err := c.index.Put(id, status); err != nil {
		c.log.WithResource(id).WithError(err).Warn("failed to update status index")
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
