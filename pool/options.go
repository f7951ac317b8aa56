package pool

import (
	"time"

	"svcpool/codec"
	"svcpool/middleware"

	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

const (
	defaultBackoffInitial = 50 * time.Millisecond
	defaultBackoffMax     = 5 * time.Second
)

type options struct {
	logger         *zap.Logger
	scope          tally.Scope
	codec          codec.CodecType
	heartbeat      time.Duration
	connectTimeout time.Duration
	backoffInitial time.Duration
	backoffMax     time.Duration
	middlewares    []middleware.Middleware
}

func defaultOptions() options {
	return options{
		logger:         zap.NewNop(),
		scope:          tally.NoopScope,
		codec:          codec.CodecTypeJSON,
		backoffInitial: defaultBackoffInitial,
		backoffMax:     defaultBackoffMax,
	}
}

// Option customizes a Pool.
type Option func(*options)

// WithLogger sets the logger. The pool logs under the name "pool".
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTally reports pool metrics to scope.
func WithTally(scope tally.Scope) Option {
	return func(o *options) {
		if scope != nil {
			o.scope = scope
		}
	}
}

// WithCodec selects the codec used on the connection.
func WithCodec(ct codec.CodecType) Option {
	return func(o *options) { o.codec = ct }
}

// WithHeartbeat makes an idle connection send heartbeats every interval so a
// silently dead host is noticed without traffic. Zero disables heartbeats.
func WithHeartbeat(interval time.Duration) Option {
	return func(o *options) { o.heartbeat = interval }
}

// WithConnectTimeout bounds every single bind attempt. Zero means an attempt
// is bounded only by Close.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(o *options) { o.connectTimeout = timeout }
}

// WithBackoff sets the delay before the first retry of a failed bind and the
// cap the doubling delay never exceeds.
func WithBackoff(initial, max time.Duration) Option {
	return func(o *options) {
		if initial > 0 {
			o.backoffInitial = initial
		}
		if max >= o.backoffInitial {
			o.backoffMax = max
		} else {
			o.backoffMax = o.backoffInitial
		}
	}
}

// WithMiddleware wraps every Handle.Call. The first middleware runs outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}
