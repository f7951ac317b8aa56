// Package message defines the envelope exchanged between a pool and its service host.
//
// RPCMessage is serialized by the codec layer and wrapped in a protocol frame.
package message

import (
	"errors"
	"fmt"
)

// Control methods answered by the host itself rather than by a service instance.
const (
	QueryMethod   = "Pool.Query"
	ReleaseMethod = "Pool.Release"
)

// Status classifies the outcome of a call.
type Status uint8

const (
	StatusOK          Status = iota
	StatusNotFound           // unknown code, handle, service or method
	StatusRemoteError        // the service method returned an error
	StatusTransport          // the connection failed before a reply arrived (never sent by a host)
	StatusTimeout            // the call ran out of time
	StatusRateLimited        // the host rejected the call
	StatusBadRequest         // the request could not be decoded
)

var statusNames = map[Status]string{
	StatusOK:          "ok",
	StatusNotFound:    "not-found",
	StatusRemoteError: "remote-error",
	StatusTransport:   "transport",
	StatusTimeout:     "timeout",
	StatusRateLimited: "rate-limited",
	StatusBadRequest:  "bad-request",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// RPCMessage carries a single request or response.
//
//   - On request:  Handle addresses a service instance (0 for control methods),
//     ServiceMethod is "Service.Method", Payload holds the JSON args.
//   - On response: Status and Error describe the outcome, Payload holds the JSON reply.
type RPCMessage struct {
	Handle        uint64
	ServiceMethod string
	Status        Status
	Error         string
	Payload       []byte
}

// Failed builds a response carrying only a failure.
func Failed(status Status, format string, args ...any) *RPCMessage {
	return &RPCMessage{Status: status, Error: fmt.Sprintf(format, args...)}
}

// OK reports whether the message carries a successful outcome.
func (m *RPCMessage) OK() bool {
	return m.Status == StatusOK && m.Error == ""
}

// Err returns nil for a successful message and a *CallError otherwise.
func (m *RPCMessage) Err() error {
	if m.OK() {
		return nil
	}
	status := m.Status
	if status == StatusOK {
		status = StatusRemoteError
	}
	return &CallError{Status: status, Method: m.ServiceMethod, Message: m.Error}
}

// CallError is a failed call as seen by the caller.
type CallError struct {
	Status  Status
	Method  string
	Message string
}

func (e *CallError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Status, e.Message)
}

// StatusOf extracts the Status carried by err, StatusOK for nil and
// StatusRemoteError for errors that are not a *CallError.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Status
	}
	return StatusRemoteError
}

// QueryArgs asks the host to resolve a service code.
type QueryArgs struct {
	Code int
}

// QueryReply names the freshly minted instance. Handle is 0 when the code is unknown.
type QueryReply struct {
	Handle  uint64
	Service string
}

// ReleaseArgs drops an instance from the connection's handle table.
type ReleaseArgs struct {
	Handle uint64
}

// ReleaseReply reports whether the handle existed.
type ReleaseReply struct {
	Released bool
}
