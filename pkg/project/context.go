package project

import (
	"fmt"
	"os"

	"github.com/piwi3910/amber/pkg/resource"
	"github.com/piwi3910/amber/pkg/telemetry"
)

// Context is passed as the last argument to every compute function. It
// exposes the resource's private working directory and a logging sink
// whose output is appended to the resource's run log.
type Context struct {
	collection string
	resourceID string
	invocation string
	dir        string
	logger     *telemetry.Logger
	logFile    *os.File
}

// newContext opens the resource's run log for append and binds a
// scoped logger to it. The caller must close the context when the
// compute invocation finishes.
func newContext(c *Collection, store *resource.Store, id, invocation string) (*Context, error) {
	fd, err := os.OpenFile(store.LogPath(id), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log for %q: %w", id, err)
	}
	logger := telemetry.NewSinkLogger(fd, "debug").
		WithCollection(c.name).
		WithResource(id).
		WithInvocation(invocation)
	return &Context{
		collection: c.name,
		resourceID: id,
		invocation: invocation,
		dir:        store.WorkDir(id),
		logger:     logger,
		logFile:    fd,
	}, nil
}

// Dir returns the resource's private working directory. The compute
// function may write arbitrary side-output files here; they survive as
// plain files but are not part of the result.
func (c *Context) Dir() string {
	return c.dir
}

// Logger returns the logging sink scoped to this compute invocation.
// Everything written here lands in the resource's run log.
func (c *Context) Logger() *telemetry.Logger {
	return c.logger
}

// Collection returns the collection name the resource belongs to.
func (c *Context) Collection() string {
	return c.collection
}

// ResourceID returns the identifier of the resource being computed.
func (c *Context) ResourceID() string {
	return c.resourceID
}

// Invocation returns the unique ID of this compute invocation.
func (c *Context) Invocation() string {
	return c.invocation
}

func (c *Context) close() {
	if c.logFile != nil {
		_ = c.logFile.Close()
	}
}
