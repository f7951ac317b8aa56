// Package registry keeps track of which service hosts are reachable, so that a
// pool can find one to bind to.
package registry

// ServiceInstance is one running host.
type ServiceInstance struct {
	Addr    string
	Weight  int // relative share for weighted balancing
	Version string
}

// Registry is a phonebook of hosts, keyed by host name.
type Registry interface {
	Register(name string, instance ServiceInstance, ttl int64) error
	Deregister(name string, addr string) error
	Discover(name string) ([]ServiceInstance, error)
	// Watch emits the full instance list every time it changes.
	Watch(name string) <-chan []ServiceInstance
}
