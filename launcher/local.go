package launcher

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"svcpool/middleware"
	"svcpool/server"
	"svcpool/service"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Local runs the service host inside this process. The host is created by
// the first Bind, so a pool bound to a Local never waits for an external
// process to appear.
type Local struct {
	services    *service.Registry
	logger      *zap.Logger
	middlewares []middleware.Middleware

	mu     sync.Mutex
	svr    *server.Server
	starts atomic.Int64
}

// NewLocal prepares a host for services. Nothing listens until the first Bind.
func NewLocal(services *service.Registry, logger *zap.Logger, mws ...middleware.Middleware) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{services: services, logger: logger, middlewares: mws}
}

// Bind starts the host if it is not running and connects to it.
func (l *Local) Bind(ctx context.Context) (net.Conn, error) {
	addr, err := l.ensure(ctx)
	if err != nil {
		return nil, err
	}
	var dialer net.Dialer
	return dialer.DialContext(ctx, "tcp", addr)
}

func (l *Local) ensure(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.svr != nil {
		return l.svr.Addr().String(), nil
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("start local host: %w", err)
	}
	svr := server.NewServer(l.services, server.WithLogger(l.logger))
	for _, mw := range l.middlewares {
		svr.Use(mw)
	}
	go func() {
		if err := svr.ServeListener(listener, "", nil); err != nil {
			l.logger.Error("local host stopped serving", zap.Error(err))
		}
	}()

	select {
	case <-svr.Ready():
	case <-ctx.Done():
		// ServeListener owns the listener now; let it come up before tearing it down
		<-svr.Ready()
		svr.Shutdown(time.Second)
		return "", ctx.Err()
	}

	l.svr = svr
	n := l.starts.Inc()
	l.logger.Info("local host started", zap.Stringer("addr", listener.Addr()), zap.Int64("start", n))
	return listener.Addr().String(), nil
}

// Starts reports how many times the host has been started.
func (l *Local) Starts() int64 {
	return l.starts.Load()
}

// Running reports whether the host is up.
func (l *Local) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.svr != nil
}

// Handles reports the number of service instances the host holds.
func (l *Local) Handles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.svr == nil {
		return 0
	}
	return l.svr.Handles()
}

// Kill drops every connection to the host while keeping it running, as if
// the link to the host broke. Returns the number of dropped connections.
func (l *Local) Kill() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.svr == nil {
		return 0
	}
	return l.svr.CloseConnections()
}

// Stop shuts the host down. The next Bind starts a new one.
func (l *Local) Stop(timeout time.Duration) error {
	l.mu.Lock()
	svr := l.svr
	l.svr = nil
	l.mu.Unlock()
	if svr == nil {
		return nil
	}
	return svr.Shutdown(timeout)
}
