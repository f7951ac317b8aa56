// etcd-backed Registry.
//
//	Key:   /svcpool/{name}/{addr}
//	Value: JSON-encoded ServiceInstance
//
// Entries are attached to a TTL lease kept alive in the background; a host
// that crashes drops out once its lease expires.

package registry

import (
	"context"
	"encoding/json"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const keyPrefix = "/svcpool/"

// EtcdRegistry implements Registry on etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client
	ctx    context.Context // cancelled by Close, ends keepalives and watches
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, logger *zap.Logger) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EtcdRegistry{client: c, ctx: ctx, cancel: cancel, logger: logger.Named("registry")}, nil
}

func instanceKey(name, addr string) string {
	return keyPrefix + name + "/" + addr
}

// Register puts the instance under a fresh lease of ttl seconds and keeps the
// lease alive until Close. The lease id stays local so one EtcdRegistry can
// register several hosts.
func (r *EtcdRegistry) Register(name string, instance ServiceInstance, ttl int64) error {
	lease, err := r.client.Grant(r.ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	if _, err = r.client.Put(r.ctx, instanceKey(name, instance.Addr), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(r.ctx, lease.ID)
	if err != nil {
		return err
	}

	// drain keepalive responses so the channel never fills up
	go func() {
		for range ch {
		}
		r.logger.Debug("lease keepalive ended", zap.String("name", name), zap.String("addr", instance.Addr))
	}()
	r.logger.Info("registered host", zap.String("name", name), zap.String("addr", instance.Addr), zap.Int64("ttl", ttl))
	return nil
}

// Deregister removes an instance right away instead of waiting for its lease.
func (r *EtcdRegistry) Deregister(name string, addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.client.Delete(ctx, instanceKey(name, addr))
	return err
}

// Watch re-reads the instance list on every change under the name prefix.
func (r *EtcdRegistry) Watch(name string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	go func() {
		defer close(ch)
		for range r.client.Watch(r.ctx, keyPrefix+name+"/", clientv3.WithPrefix()) {
			instances, err := r.Discover(name)
			if err != nil {
				r.logger.Warn("discover after watch event failed", zap.String("name", name), zap.Error(err))
				continue
			}
			select {
			case ch <- instances:
			case <-r.ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Discover lists every registered instance of name.
func (r *EtcdRegistry) Discover(name string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(r.ctx, keyPrefix+name+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.logger.Warn("skipping malformed instance", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

// Close stops keepalives and watches and closes the etcd client.
func (r *EtcdRegistry) Close() error {
	r.cancel()
	return r.client.Close()
}
