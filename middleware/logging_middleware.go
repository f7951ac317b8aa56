package middleware

import (
	"context"
	"time"

	"svcpool/message"

	"go.uber.org/zap"
)

func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			start := time.Now()
			resp := next(ctx, req)
			fields := []zap.Field{
				zap.String("method", req.ServiceMethod),
				zap.Uint64("handle", req.Handle),
				zap.Duration("duration", time.Since(start)),
			}
			if !resp.OK() {
				logger.Warn("call failed", append(fields, zap.Stringer("status", resp.Status), zap.String("error", resp.Error))...)
				return resp
			}
			logger.Debug("call", fields...)
			return resp
		}
	}
}
