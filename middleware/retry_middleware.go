package middleware

import (
	"context"
	"time"

	"svcpool/message"

	"go.uber.org/zap"
)

// RetryMiddleware re-issues calls that failed with a timeout or were rate
// limited, doubling baseDelay after every attempt. Transport failures are not
// retried: the connection they ran on is gone and the pool is already
// replacing it.
func RetryMiddleware(maxRetries int, baseDelay time.Duration, logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			resp := next(ctx, req)
			for i := 0; i < maxRetries && retryable(resp); i++ {
				logger.Info("retrying call",
					zap.Int("attempt", i+1),
					zap.String("method", req.ServiceMethod),
					zap.Stringer("status", resp.Status),
					zap.String("error", resp.Error))

				timer := time.NewTimer(baseDelay * time.Duration(1<<i))
				select {
				case <-ctx.Done():
					timer.Stop()
					return resp
				case <-timer.C:
				}
				resp = next(ctx, req)
			}
			return resp
		}
	}
}

func retryable(resp *message.RPCMessage) bool {
	return resp.Status == message.StatusTimeout || resp.Status == message.StatusRateLimited
}
