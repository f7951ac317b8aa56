package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"svcpool/config"
	"svcpool/launcher"
	"svcpool/loadbalance"
	"svcpool/middleware"
	"svcpool/pool"
	"svcpool/registry"
	"svcpool/service"

	"github.com/uber-go/tally"
	"go.uber.org/multierr"
)

// session is a pool plus whatever its binder needs torn down afterwards.
type session struct {
	pool    *pool.Pool
	local   *launcher.Local // set in local mode
	closers []func() error
}

func openSession(scope tally.Scope) (*session, error) {
	s := &session{}
	var binder pool.Binder

	switch conf.Client.Mode {
	case config.ModeDial:
		binder = launcher.Dial{Address: conf.Client.Address}
	case config.ModeDiscovery:
		etcd, err := registry.NewEtcdRegistry(conf.Etcd, logger)
		if err != nil {
			return nil, fmt.Errorf("connect etcd: %w", err)
		}
		hostname, _ := os.Hostname()
		balancer, err := loadbalance.New(conf.Client.Balancer, fmt.Sprintf("%s/%d", hostname, os.Getpid()))
		if err != nil {
			etcd.Close()
			return nil, err
		}
		discovery := launcher.NewDiscovery(etcd, balancer, conf.HostName, logger)
		s.closers = append(s.closers, discovery.Close, etcd.Close)
		binder = discovery
	default:
		s.local = launcher.NewLocal(service.DefaultRegistry(conf.Key), logger, middleware.RecoverMiddleware(logger))
		s.closers = append(s.closers, func() error { return s.local.Stop(time.Second) })
		binder = s.local
	}

	s.pool = pool.New(binder,
		pool.WithLogger(logger),
		pool.WithTally(scope),
		pool.WithCodec(conf.Codec),
		pool.WithHeartbeat(conf.Client.Heartbeat),
		pool.WithConnectTimeout(conf.Client.ConnectTimeout),
		pool.WithBackoff(conf.Client.BackoffInitial, conf.Client.BackoffMax),
		pool.WithMiddleware(
			middleware.LoggingMiddleware(logger),
			middleware.RetryMiddleware(conf.Client.Retries, 50*time.Millisecond, logger),
		),
	)
	return s, nil
}

// Close closes the pool first so it does not reconnect to a host being stopped.
func (s *session) Close() error {
	err := s.pool.Close()
	for _, c := range s.closers {
		err = multierr.Append(err, c())
	}
	return err
}

func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if conf.Client.CallTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, conf.Client.CallTimeout)
}
