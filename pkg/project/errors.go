package project

import (
	"errors"
	"fmt"
)

// Code identifies a class of project-level failure for programmatic
// handling. Compute failures never carry a Code: they are absorbed
// into the resource's error state rather than returned to callers.
type Code string

const (
	// CodeUnknownCollection indicates the collection name is not registered.
	CodeUnknownCollection Code = "UNKNOWN_COLLECTION"

	// CodeUnknownResource indicates a query against an identifier that
	// was never fetched.
	CodeUnknownResource Code = "UNKNOWN_RESOURCE"

	// CodeCollectionExists indicates the collection name is already taken.
	CodeCollectionExists Code = "COLLECTION_EXISTS"

	// CodeNoComputeFunc indicates a fetch against an inspection-only
	// collection that has no compute function bound.
	CodeNoComputeFunc Code = "NO_COMPUTE_FUNC"

	// CodeInvalidResource indicates a malformed resource identifier.
	CodeInvalidResource Code = "INVALID_RESOURCE"

	// CodeStoreFailed indicates the durable store or status index
	// could not be read or written.
	CodeStoreFailed Code = "STORE_FAILED"
)

// Error is a classified project error with collection and resource
// context.
type Error struct {
	// Code is the failure classification.
	Code Code

	// Message is the human-readable error message.
	Message string

	// Collection is the collection name, if applicable.
	Collection string

	// Resource is the resource identifier, if applicable.
	Resource string

	// Err is the underlying error that caused this error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Collection != "" && e.Resource != "" {
		msg = fmt.Sprintf("%s (collection=%s, resource=%s)", msg, e.Collection, e.Resource)
	} else if e.Collection != "" {
		msg = fmt.Sprintf("%s (collection=%s)", msg, e.Collection)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithCollection adds collection context to the error.
func (e *Error) WithCollection(name string) *Error {
	e.Collection = name
	return e
}

// WithResource adds resource context to the error.
func (e *Error) WithResource(id string) *Error {
	e.Resource = id
	return e
}

// IsUnknownCollection returns true if the error is an unknown
// collection error.
func IsUnknownCollection(err error) bool {
	return hasCode(err, CodeUnknownCollection)
}

// IsUnknownResource returns true if the error is an unknown resource
// error.
func IsUnknownResource(err error) bool {
	return hasCode(err, CodeUnknownResource)
}

// IsCollectionExists returns true if the error is a duplicate
// collection registration error.
func IsCollectionExists(err error) bool {
	return hasCode(err, CodeCollectionExists)
}

func hasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
