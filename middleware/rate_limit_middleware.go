package middleware

import (
	"context"

	"svcpool/message"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware admits r calls per second with bursts of up to burst
// and answers the rest with StatusRateLimited. Pool.Release is never limited.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			if req.ServiceMethod != message.ReleaseMethod && !limiter.Allow() {
				return message.Failed(message.StatusRateLimited, "rate limit exceeded for %s", req.ServiceMethod)
			}
			return next(ctx, req)
		}
	}
}
