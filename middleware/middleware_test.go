package middleware

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"svcpool/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// echoHandler answers immediately.
func echoHandler(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	return &message.RPCMessage{
		ServiceMethod: req.ServiceMethod,
		Payload:       []byte("ok"),
	}
}

// slowHandler takes 200ms.
func slowHandler(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	time.Sleep(200 * time.Millisecond)
	return echoHandler(ctx, req)
}

var addReq = &message.RPCMessage{Handle: 1, ServiceMethod: "Compute.Add"}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handler := LoggingMiddleware(zap.New(core))(echoHandler)

	resp := handler(context.Background(), addReq)
	require.NotNil(t, resp)
	assert.Equal(t, "ok", string(resp.Payload))

	entries := logs.FilterMessage("call").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Compute.Add", entries[0].ContextMap()["method"])
}

func TestLoggingFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	failing := func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
		return message.Failed(message.StatusNotFound, "unknown handle")
	}
	LoggingMiddleware(zap.New(core))(failing)(context.Background(), addReq)

	entries := logs.FilterMessage("call failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "not-found", entries[0].ContextMap()["status"])
}

func TestTimeoutPass(t *testing.T) {
	resp := TimeOutMiddleware(500*time.Millisecond)(echoHandler)(context.Background(), addReq)
	assert.True(t, resp.OK())
}

func TestTimeoutExceeded(t *testing.T) {
	resp := TimeOutMiddleware(50*time.Millisecond)(slowHandler)(context.Background(), addReq)
	assert.Equal(t, message.StatusTimeout, resp.Status)
	assert.Equal(t, "Compute.Add timed out after 50ms", resp.Error)
}

func TestTimeoutCallerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := TimeOutMiddleware(time.Second)(slowHandler)(ctx, addReq)
	assert.Equal(t, message.StatusTimeout, resp.Status)
	assert.Contains(t, resp.Error, "canceled")
}

func TestRateLimit(t *testing.T) {
	// rate=1 per second, burst=2: the first two pass, the third is rejected
	handler := RateLimitMiddleware(1, 2)(echoHandler)

	for i := 0; i < 2; i++ {
		resp := handler(context.Background(), addReq)
		require.True(t, resp.OK(), "request %d should pass, got %s", i, resp.Error)
	}

	resp := handler(context.Background(), addReq)
	assert.Equal(t, message.StatusRateLimited, resp.Status)

	release := &message.RPCMessage{ServiceMethod: message.ReleaseMethod}
	assert.True(t, handler(context.Background(), release).OK())
}

func TestRetryRecovers(t *testing.T) {
	var calls atomic.Int32
	flaky := func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
		if calls.Add(1) < 3 {
			return message.Failed(message.StatusTimeout, "request timed out")
		}
		return echoHandler(ctx, req)
	}

	resp := RetryMiddleware(3, time.Millisecond, zap.NewNop())(flaky)(context.Background(), addReq)
	assert.True(t, resp.OK())
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrySkipsPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	broken := func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
		calls.Add(1)
		return message.Failed(message.StatusTransport, "connection reset")
	}

	resp := RetryMiddleware(3, time.Millisecond, zap.NewNop())(broken)(context.Background(), addReq)
	assert.Equal(t, message.StatusTransport, resp.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	limited := func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
		calls.Add(1)
		cancel()
		return message.Failed(message.StatusRateLimited, "rate limit exceeded")
	}

	resp := RetryMiddleware(5, time.Hour, zap.NewNop())(limited)(ctx, addReq)
	assert.Equal(t, message.StatusRateLimited, resp.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRecover(t *testing.T) {
	panicky := func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
		panic("kaboom")
	}
	resp := RecoverMiddleware(zap.NewNop())(panicky)(context.Background(), addReq)
	assert.Equal(t, message.StatusRemoteError, resp.Status)
	assert.Contains(t, resp.Error, "kaboom")
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	resp := Chain(tag("a"), tag("b"), TimeOutMiddleware(500*time.Millisecond))(echoHandler)(context.Background(), addReq)
	assert.True(t, resp.OK())
	assert.Equal(t, []string{"a", "b"}, order)
}
