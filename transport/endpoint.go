package transport

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"svcpool/codec"
	"svcpool/message"

	"go.uber.org/zap"
)

// Remote names a service instance minted on the host.
type Remote struct {
	ID      uint64
	Service string
}

// Endpoint is one live connection to a service host. It resolves service
// codes to remote instances and carries calls to them.
//
// Once Dead fires the endpoint is permanently unusable.
type Endpoint struct {
	t      *ClientTransport
	logger *zap.Logger
}

// NewEndpoint takes ownership of conn.
func NewEndpoint(conn net.Conn, codecType codec.CodecType, heartbeat time.Duration, logger *zap.Logger) *Endpoint {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Stringer("remote", conn.RemoteAddr()))
	return &Endpoint{
		t:      NewClientTransport(conn, codecType, heartbeat, logger),
		logger: logger,
	}
}

// Invoke sends one request and waits for its reply. It never returns nil:
// failures come back as messages with a non-OK Status, which gives Invoke
// the middleware.HandlerFunc shape.
func (e *Endpoint) Invoke(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	seq, ch, err := e.t.Send(req)
	if err != nil {
		return message.Failed(message.StatusTransport, "%v", err)
	}

	select {
	case resp := <-ch:
		return resp
	case <-ctx.Done():
		e.t.Forget(seq)
		return message.Failed(message.StatusTimeout, "%v", ctx.Err())
	}
}

// Call invokes method on the instance behind handle with JSON-encoded args
// and decodes the reply into reply.
func (e *Endpoint) Call(ctx context.Context, handle uint64, method string, args, reply any) error {
	return Call(ctx, e.Invoke, handle, method, args, reply)
}

// Call runs one request through invoke, which may be Endpoint.Invoke or a
// middleware chain around it.
func Call(ctx context.Context, invoke func(context.Context, *message.RPCMessage) *message.RPCMessage, handle uint64, method string, args, reply any) error {
	payload, err := json.Marshal(args)
	if err != nil {
		return err
	}

	resp := invoke(ctx, &message.RPCMessage{
		Handle:        handle,
		ServiceMethod: method,
		Payload:       payload,
	})
	if err := resp.Err(); err != nil {
		return err
	}
	if reply == nil || len(resp.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Payload, reply)
}

// Dispatch asks the host to resolve code. An unrecognized code yields a nil
// Remote and a nil error.
func (e *Endpoint) Dispatch(ctx context.Context, code int) (*Remote, error) {
	var reply message.QueryReply
	if err := e.Call(ctx, 0, message.QueryMethod, message.QueryArgs{Code: code}, &reply); err != nil {
		return nil, err
	}
	if reply.Handle == 0 {
		return nil, nil
	}
	return &Remote{ID: reply.Handle, Service: reply.Service}, nil
}

// Release drops a remote instance. It reports whether the host still knew it.
func (e *Endpoint) Release(ctx context.Context, id uint64) (bool, error) {
	var reply message.ReleaseReply
	if err := e.Call(ctx, 0, message.ReleaseMethod, message.ReleaseArgs{Handle: id}, &reply); err != nil {
		return false, err
	}
	return reply.Released, nil
}

// Dead fires at most once, when the host becomes unreachable.
func (e *Endpoint) Dead() <-chan struct{} {
	return e.t.Dead()
}

// Err is the cause of death, nil while alive.
func (e *Endpoint) Err() error {
	return e.t.Err()
}

// Alive reports whether Dead has not fired yet.
func (e *Endpoint) Alive() bool {
	return e.t.Err() == nil
}

// RemoteAddr is the host address.
func (e *Endpoint) RemoteAddr() net.Addr {
	return e.t.Conn().RemoteAddr()
}

// Close releases the connection and stops the background loops. Idempotent.
func (e *Endpoint) Close() error {
	return e.t.Close()
}
