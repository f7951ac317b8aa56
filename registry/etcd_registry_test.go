package registry

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// TestEtcdRegisterAndDiscover needs a running etcd; point SVCPOOL_TEST_ETCD at it.
func TestEtcdRegisterAndDiscover(t *testing.T) {
	endpoint := os.Getenv("SVCPOOL_TEST_ETCD")
	if endpoint == "" {
		t.Skip("SVCPOOL_TEST_ETCD not set")
	}

	reg, err := NewEtcdRegistry([]string{endpoint}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer reg.Close()

	inst1 := ServiceInstance{Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0"}
	inst2 := ServiceInstance{Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0"}

	require.NoError(t, reg.Register("test-host", inst1, 10))
	require.NoError(t, reg.Register("test-host", inst2, 10))

	instances, err := reg.Discover("test-host")
	require.NoError(t, err)
	assert.ElementsMatch(t, []ServiceInstance{inst1, inst2}, instances)

	require.NoError(t, reg.Deregister("test-host", inst1.Addr))
	time.Sleep(100 * time.Millisecond)

	instances, err = reg.Discover("test-host")
	require.NoError(t, err)
	assert.Equal(t, []ServiceInstance{inst2}, instances)

	require.NoError(t, reg.Deregister("test-host", inst2.Addr))
}
