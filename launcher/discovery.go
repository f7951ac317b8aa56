package launcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"svcpool/loadbalance"
	"svcpool/registry"

	"go.uber.org/zap"
)

// ErrNoHosts is returned when discovery knows no instance of the host.
var ErrNoHosts = errors.New("launcher: no hosts discovered")

// Discovery binds to one of the instances registered under a host name.
// It follows registry changes through Watch and falls back to Discover
// while it has not seen any instance yet.
type Discovery struct {
	registry registry.Registry
	balancer loadbalance.Balancer
	host     string
	logger   *zap.Logger

	watchOnce sync.Once
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}

	mu        sync.RWMutex
	instances []registry.ServiceInstance
}

func NewDiscovery(reg registry.Registry, balancer loadbalance.Balancer, host string, logger *zap.Logger) *Discovery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discovery{
		registry: reg,
		balancer: balancer,
		host:     host,
		logger:   logger.Named("discovery").With(zap.String("host", host), zap.String("balancer", balancer.Name())),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (d *Discovery) Bind(ctx context.Context) (net.Conn, error) {
	d.watchOnce.Do(func() {
		go d.watch(d.registry.Watch(d.host))
	})

	instances := d.cached()
	if len(instances) == 0 {
		var err error
		if instances, err = d.registry.Discover(d.host); err != nil {
			return nil, fmt.Errorf("discover %s: %w", d.host, err)
		}
	}
	if len(instances) == 0 {
		return nil, ErrNoHosts
	}

	inst, err := d.balancer.Pick(instances)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("picked instance", zap.String("addr", inst.Addr))

	var dialer net.Dialer
	return dialer.DialContext(ctx, "tcp", inst.Addr)
}

func (d *Discovery) watch(updates <-chan []registry.ServiceInstance) {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			return
		case instances, ok := <-updates:
			if !ok {
				return
			}
			d.mu.Lock()
			d.instances = instances
			d.mu.Unlock()
			d.logger.Info("instances changed", zap.Int("count", len(instances)))
		}
	}
}

func (d *Discovery) cached() []registry.ServiceInstance {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.instances
}

// Close stops following the registry. It does not close the registry.
func (d *Discovery) Close() error {
	d.stopOnce.Do(func() { close(d.stop) })
	// never watched, nothing to wait for
	d.watchOnce.Do(func() { close(d.done) })
	<-d.done
	return nil
}
