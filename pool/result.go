package pool

import (
	"errors"

	"svcpool/service"
)

var (
	// ErrPoolClosed is returned once Close has been called.
	ErrPoolClosed = errors.New("pool: closed")
	// ErrInterrupted is returned when the caller's context ended while it
	// waited for a connection. It wraps the context error.
	ErrInterrupted = errors.New("pool: interrupted while waiting for connection")
	// ErrStaleHandle is returned by calls on a handle whose connection died.
	ErrStaleHandle = errors.New("pool: handle belongs to a dead connection")
)

// Reason explains the outcome of QueryService.
type Reason int

const (
	Found Reason = iota
	NotFound
	// TransportFailure: the connection failed before the host answered.
	TransportFailure
	Interrupted
	PoolClosed
	// RemoteFailure: the host answered the query with an error, e.g. it was
	// rate limited or could not build the instance.
	RemoteFailure
)

var reasonNames = [...]string{
	Found:            "found",
	NotFound:         "not_found",
	TransportFailure: "transport_failure",
	Interrupted:      "interrupted",
	PoolClosed:       "closed",
	RemoteFailure:    "remote_failure",
}

func (r Reason) String() string {
	if r >= 0 && int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Result is the outcome of QueryService. Handle is set only when Reason is
// Found; Err is set for every other reason except NotFound.
type Result struct {
	Code   service.Code
	Handle *Handle
	Reason Reason
	Err    error
}

// OK reports whether a handle was obtained.
func (r Result) OK() bool {
	return r.Reason == Found
}
