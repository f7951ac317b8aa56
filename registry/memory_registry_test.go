package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegisterDiscoverDeregister(t *testing.T) {
	reg := NewMemoryRegistry()
	inst1 := ServiceInstance{Addr: "127.0.0.1:8001", Weight: 10}
	inst2 := ServiceInstance{Addr: "127.0.0.1:8002", Weight: 5}

	require.NoError(t, reg.Register("host", inst1, 10))
	require.NoError(t, reg.Register("host", inst2, 10))

	instances, err := reg.Discover("host")
	require.NoError(t, err)
	assert.Equal(t, []ServiceInstance{inst1, inst2}, instances)

	// re-registering the same address replaces the entry
	inst1.Weight = 1
	require.NoError(t, reg.Register("host", inst1, 10))
	instances, _ = reg.Discover("host")
	assert.Equal(t, []ServiceInstance{inst1, inst2}, instances)

	require.NoError(t, reg.Deregister("host", inst1.Addr))
	instances, _ = reg.Discover("host")
	assert.Equal(t, []ServiceInstance{inst2}, instances)

	instances, _ = reg.Discover("unknown")
	assert.Empty(t, instances)
}

func TestMemoryWatchKeepsLatest(t *testing.T) {
	reg := NewMemoryRegistry()
	ch := reg.Watch("host")

	require.NoError(t, reg.Register("host", ServiceInstance{Addr: "a"}, 10))
	require.NoError(t, reg.Register("host", ServiceInstance{Addr: "b"}, 10))

	latest := <-ch
	assert.Equal(t, []ServiceInstance{{Addr: "a"}, {Addr: "b"}}, latest)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected stale snapshot %v", extra)
	default:
	}
}
