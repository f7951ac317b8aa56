package pool

import "sync"

// Provider builds a Pool on first use, exactly once, no matter how many
// goroutines ask for it at the same time. A Provider is an ordinary value
// that can be handed to whoever needs a pool.
type Provider struct {
	once  sync.Once
	build func() *Pool
	pool  *Pool
}

func NewProvider(build func() *Pool) *Provider {
	return &Provider{build: build}
}

// Get returns the pool, building it on the first call.
func (p *Provider) Get() *Pool {
	p.once.Do(func() {
		p.pool = p.build()
	})
	return p.pool
}

var (
	sharedOnce sync.Once
	shared     *Pool
)

// Shared returns the process-wide pool. The arguments of the first call win;
// later calls ignore theirs.
func Shared(binder Binder, opts ...Option) *Pool {
	sharedOnce.Do(func() {
		shared = New(binder, opts...)
	})
	return shared
}
