package registry

import (
	"sync"
)

// MemoryRegistry is an in-process Registry. TTLs are ignored: entries live
// until deregistered.
type MemoryRegistry struct {
	mu        sync.Mutex
	instances map[string][]ServiceInstance
	watchers  map[string][]chan []ServiceInstance
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		instances: make(map[string][]ServiceInstance),
		watchers:  make(map[string][]chan []ServiceInstance),
	}
}

// Register adds or replaces the instance with the same address.
func (m *MemoryRegistry) Register(name string, inst ServiceInstance, ttl int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	insts := m.instances[name]
	for i := range insts {
		if insts[i].Addr == inst.Addr {
			insts[i] = inst
			m.notifyLocked(name)
			return nil
		}
	}
	m.instances[name] = append(insts, inst)
	m.notifyLocked(name)
	return nil
}

func (m *MemoryRegistry) Deregister(name string, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	insts := m.instances[name]
	for i, inst := range insts {
		if inst.Addr == addr {
			m.instances[name] = append(insts[:i:i], insts[i+1:]...)
			m.notifyLocked(name)
			break
		}
	}
	return nil
}

func (m *MemoryRegistry) Discover(name string) ([]ServiceInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ServiceInstance(nil), m.instances[name]...), nil
}

// Watch returns a channel holding at most the latest snapshot; a slow reader
// skips intermediate states.
func (m *MemoryRegistry) Watch(name string) <-chan []ServiceInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan []ServiceInstance, 1)
	m.watchers[name] = append(m.watchers[name], ch)
	return ch
}

func (m *MemoryRegistry) notifyLocked(name string) {
	snapshot := append([]ServiceInstance(nil), m.instances[name]...)
	for _, ch := range m.watchers[name] {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}
