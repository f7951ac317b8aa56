package pool

import (
	"context"
	"fmt"
	"strings"

	"svcpool/message"
	"svcpool/middleware"
	"svcpool/service"
	"svcpool/transport"
)

// Handle is a reference to one service instance on the host. It is only
// valid while the connection it was obtained on is alive; after a reconnect
// the caller queries again.
type Handle struct {
	code   service.Code
	remote transport.Remote
	ep     *transport.Endpoint
	invoke middleware.HandlerFunc
}

func (h *Handle) Code() service.Code { return h.code }

// Service is the service name the host reported, e.g. "Compute".
func (h *Handle) Service() string { return h.remote.Service }

// ID is the host-side handle id.
func (h *Handle) ID() uint64 { return h.remote.ID }

// Alive reports whether the connection behind the handle is still up.
func (h *Handle) Alive() bool { return h.ep.Alive() }

// Call invokes method on the instance. method is either "Method" or
// "Service.Method". args and reply travel as JSON.
func (h *Handle) Call(ctx context.Context, method string, args, reply any) error {
	if !h.ep.Alive() {
		return ErrStaleHandle
	}
	if !strings.Contains(method, ".") {
		method = h.remote.Service + "." + method
	}

	err := transport.Call(ctx, h.invoke, h.remote.ID, method, args, reply)
	if message.StatusOf(err) == message.StatusTransport && !h.ep.Alive() {
		return fmt.Errorf("%w: %w", ErrStaleHandle, err)
	}
	return err
}

// Release tells the host to drop the instance. Releasing a handle of a dead
// connection is a no-op: the host dropped it together with the connection.
func (h *Handle) Release(ctx context.Context) error {
	if !h.ep.Alive() {
		return nil
	}
	_, err := h.ep.Release(ctx, h.remote.ID)
	return err
}
