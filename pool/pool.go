// Package pool keeps one shared connection to a service host and hands out
// handles to the services behind it.
//
// The connection is established in the background as soon as the pool is
// built. Callers that arrive before it is up wait on a rendezvous that fires
// when a bind succeeds. When the connection dies the pool discards it and
// starts binding again right away; handles obtained on the dead connection
// become stale and callers query for fresh ones.
//
//	New ──→ Connecting ──bind ok──→ Connected ──death──→ Dying ──→ Connecting ...
//	             ↑ bind failed, backoff │
//	             └──────────────────────┘
package pool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"svcpool/message"
	"svcpool/middleware"
	"svcpool/service"
	"svcpool/transport"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Binder produces a connection to a service host. Implementations may start
// the host first if it is not running.
type Binder interface {
	Bind(ctx context.Context) (net.Conn, error)
}

// BinderFunc adapts a function to Binder.
type BinderFunc func(ctx context.Context) (net.Conn, error)

func (f BinderFunc) Bind(ctx context.Context) (net.Conn, error) {
	return f(ctx)
}

// Pool owns the connection to one service host.
type Pool struct {
	binder   Binder
	opts     options
	logger   *zap.Logger
	observer *observer

	// mu serializes connect, endpoint replacement and death handling.
	mu       sync.Mutex
	endpoint *transport.Endpoint
	pending  *rendezvous

	state    atomic.Int32
	attempts atomic.Int64

	ctx       context.Context // canceled by Close, aborts binds in flight
	cancel    context.CancelFunc
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New builds a pool and starts connecting in the background.
func New(binder Binder, opts ...Option) *Pool {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		binder:   binder,
		opts:     o,
		logger:   o.logger.Named("pool"),
		observer: newObserver(o.scope),
		ctx:      ctx,
		cancel:   cancel,
		closed:   make(chan struct{}),
	}

	p.mu.Lock()
	p.connectLocked()
	p.mu.Unlock()
	return p
}

// State reports the current connection state.
func (p *Pool) State() State {
	return State(p.state.Load())
}

// Attempts reports how many connections have been established so far.
func (p *Pool) Attempts() int64 {
	return p.attempts.Load()
}

// QueryService obtains a handle to the service registered under code.
//
// It waits for a live connection for as long as ctx allows. The returned
// error is non-nil only when that wait ends without a connection:
// ErrInterrupted (wrapping ctx.Err()) or ErrPoolClosed. Every other outcome,
// including a failed dispatch, is described by Result.Reason.
func (p *Pool) QueryService(ctx context.Context, code service.Code) (Result, error) {
	ep, err := p.acquire(ctx)
	if err != nil {
		reason := Interrupted
		if errors.Is(err, ErrPoolClosed) {
			reason = PoolClosed
		}
		p.observer.query(reason)
		return Result{Code: code, Reason: reason, Err: err}, err
	}

	remote, err := ep.Dispatch(ctx, int(code))
	switch {
	case err != nil && ctx.Err() != nil:
		err = fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		p.observer.query(Interrupted)
		return Result{Code: code, Reason: Interrupted, Err: err}, err
	case err != nil:
		reason := RemoteFailure
		if message.StatusOf(err) == message.StatusTransport {
			reason = TransportFailure
		}
		p.logger.Warn("query failed", zap.Stringer("code", code), zap.Stringer("reason", reason), zap.Error(err))
		p.observer.query(reason)
		return Result{Code: code, Reason: reason, Err: err}, nil
	case remote == nil:
		p.logger.Debug("no service for code", zap.Stringer("code", code))
		p.observer.query(NotFound)
		return Result{Code: code, Reason: NotFound}, nil
	}

	p.observer.query(Found)
	return Result{
		Code:   code,
		Reason: Found,
		Handle: &Handle{
			code:   code,
			remote: *remote,
			ep:     ep,
			invoke: p.chain(ep),
		},
	}, nil
}

func (p *Pool) chain(ep *transport.Endpoint) middleware.HandlerFunc {
	if len(p.opts.middlewares) == 0 {
		return ep.Invoke
	}
	return middleware.Chain(p.opts.middlewares...)(ep.Invoke)
}

// acquire returns a live endpoint, waiting on the pending rendezvous when
// there is none.
func (p *Pool) acquire(ctx context.Context) (*transport.Endpoint, error) {
	for {
		p.mu.Lock()
		if p.isClosed() {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if ep := p.endpoint; ep != nil {
			if ep.Alive() {
				p.mu.Unlock()
				return ep, nil
			}
			// died and the watcher has not caught up yet
			p.handleDeathLocked(ep)
		}
		r := p.connectLocked()
		p.mu.Unlock()

		select {
		case <-r.done:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		case <-p.closed:
			return nil, ErrPoolClosed
		}
	}
}

// connectLocked returns the rendezvous of the attempt in progress, starting
// one if there is none. Requires p.mu.
func (p *Pool) connectLocked() *rendezvous {
	if p.pending != nil {
		return p.pending
	}
	r := newRendezvous()
	if p.isClosed() {
		return r
	}
	p.pending = r
	p.state.Store(int32(Connecting))
	p.wg.Add(1)
	go p.establish(r)
	return r
}

// establish binds until it succeeds or the pool closes.
func (p *Pool) establish(r *rendezvous) {
	defer p.wg.Done()

	delay := p.opts.backoffInitial
	for attempt := 1; ; attempt++ {
		conn, err := p.bind()
		if err == nil {
			p.install(r, conn)
			return
		}
		if p.isClosed() {
			return
		}

		p.observer.connectFailure()
		p.logger.Warn("bind failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-p.closed:
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = min(delay*2, p.opts.backoffMax)
	}
}

func (p *Pool) bind() (net.Conn, error) {
	ctx := p.ctx
	if p.opts.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.connectTimeout)
		defer cancel()
	}
	return p.binder.Bind(ctx)
}

// install publishes a fresh connection and releases everyone waiting on r.
func (p *Pool) install(r *rendezvous, conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isClosed() {
		conn.Close()
		return
	}

	ep := transport.NewEndpoint(conn, p.opts.codec, p.opts.heartbeat, p.logger)
	p.endpoint = ep
	p.pending = nil
	p.state.Store(int32(Connected))
	n := p.attempts.Inc()
	p.observer.connect()
	p.logger.Info("connected", zap.Stringer("remote", ep.RemoteAddr()), zap.Int64("connection", n))

	p.wg.Add(1)
	go p.watch(ep)
	r.fire()
}

// watch waits for ep to die.
func (p *Pool) watch(ep *transport.Endpoint) {
	defer p.wg.Done()
	select {
	case <-ep.Dead():
		p.handleDeath(ep)
	case <-p.closed:
	}
}

// handleDeath replaces ep if it is still the current endpoint. Signals for
// an endpoint that was already replaced are ignored.
func (p *Pool) handleDeath(ep *transport.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.endpoint != ep || p.isClosed() {
		return
	}
	p.handleDeathLocked(ep)
}

// Requires p.mu and p.endpoint == ep.
func (p *Pool) handleDeathLocked(ep *transport.Endpoint) {
	p.state.Store(int32(Dying))
	p.observer.death()
	p.logger.Warn("connection died, reconnecting", zap.Stringer("remote", ep.RemoteAddr()), zap.Error(ep.Err()))

	ep.Close()
	p.endpoint = nil
	p.connectLocked()
}

func (p *Pool) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// Close stops reconnecting, closes the connection and waits for the pool's
// goroutines. Callers blocked in QueryService get ErrPoolClosed. Idempotent.
func (p *Pool) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		close(p.closed)
		p.cancel()
		p.state.Store(int32(Closed))
		ep := p.endpoint
		p.endpoint = nil
		p.pending = nil
		p.mu.Unlock()

		if ep != nil {
			err = multierr.Append(err, ep.Close())
		}
		p.wg.Wait()
		p.logger.Info("pool closed", zap.Int64("connections", p.attempts.Load()))
	})
	return err
}
