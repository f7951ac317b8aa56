package middleware

import (
	"context"
	"time"

	"svcpool/message"
)

// TimeOutMiddleware gives every call at most timeout. A call that overruns
// is answered with StatusTimeout; its handler keeps running in the
// background with a canceled context.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.RPCMessage, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) > 0 {
					// canceled by the caller rather than by the deadline
					return message.Failed(message.StatusTimeout, "%s canceled: %v", req.ServiceMethod, ctx.Err())
				}
				return message.Failed(message.StatusTimeout, "%s timed out after %s", req.ServiceMethod, timeout)
			}
		}
	}
}
