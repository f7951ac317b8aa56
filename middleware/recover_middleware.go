package middleware

import (
	"context"

	"svcpool/message"

	"go.uber.org/zap"
)

// RecoverMiddleware turns a panicking handler into a RemoteError reply so a
// single bad service method cannot take the host down.
func RecoverMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) (resp *message.RPCMessage) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panicked", zap.String("method", req.ServiceMethod), zap.Any("panic", r))
					resp = message.Failed(message.StatusRemoteError, "internal error: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}
