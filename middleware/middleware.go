// Package middleware wraps call handlers in an onion of cross-cutting behavior.
//
// The same HandlerFunc shape serves both sides: the host wraps its service
// dispatcher, and a pool wraps the outbound call made through a handle.
package middleware

import (
	"context"

	"svcpool/message"
)

type HandlerFunc func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so that the first one runs outermost:
// Chain(A, B, C)(h) == A(B(C(h))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
