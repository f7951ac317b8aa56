// Package loadbalance picks which discovered host a pool binds to.
//
//   - RoundRobin:      spread successive binds evenly
//   - WeightedRandom:  favor bigger hosts
//   - ConsistentHash:  keep a client on the same host across reconnects
package loadbalance

import (
	"errors"

	"svcpool/registry"
)

var errNoInstances = errors.New("no instances available")

// Balancer selects one host. Pick runs on every bind and must be goroutine-safe.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)
	Name() string
}

// New returns the balancer registered under name; key only matters for "consistent-hash".
func New(name, key string) (Balancer, error) {
	switch name {
	case "round-robin", "":
		return &RoundRobinBalancer{}, nil
	case "weighted-random":
		return &WeightedRandomBalancer{}, nil
	case "consistent-hash":
		return NewConsistentHashBalancer(key), nil
	default:
		return nil, errors.New("unknown balancer " + name)
	}
}
