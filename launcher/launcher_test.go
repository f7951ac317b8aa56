package launcher

import (
	"context"
	"testing"
	"time"

	"svcpool/loadbalance"
	"svcpool/pool"
	"svcpool/registry"
	"svcpool/server"
	"svcpool/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startHost(t *testing.T, reg registry.Registry) *server.Server {
	t.Helper()
	svr := server.NewServer(service.DefaultRegistry(service.DefaultKey), server.WithName("hosts"))
	go svr.Serve("tcp", "127.0.0.1:0", "", reg)
	select {
	case <-svr.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("host did not start")
	}
	t.Cleanup(func() { svr.Shutdown(time.Second) })
	return svr
}

func add(t *testing.T, p *pool.Pool, a, b int) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := p.QueryService(ctx, service.Compute)
	require.NoError(t, err)
	require.True(t, res.OK(), "%s: %v", res.Reason, res.Err)
	var reply service.AddReply
	require.NoError(t, res.Handle.Call(ctx, "Add", &service.AddArgs{A: a, B: b}, &reply))
	return reply.Result
}

func TestDial(t *testing.T) {
	svr := startHost(t, nil)
	p := pool.New(Dial{Address: svr.Addr().String()})
	defer p.Close()

	assert.Equal(t, 24, add(t, p, 12, 12))
}

func TestDialUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial{Network: "tcp", Address: "127.0.0.1:1"}.Bind(ctx)
	assert.Error(t, err)
}

func TestLocalStartsOnFirstBind(t *testing.T) {
	local := NewLocal(service.DefaultRegistry(service.DefaultKey), zaptest.NewLogger(t))
	t.Cleanup(func() { local.Stop(time.Second) })
	assert.False(t, local.Running())

	p := pool.New(local, pool.WithBackoff(time.Millisecond, 10*time.Millisecond))
	t.Cleanup(func() { p.Close() })

	assert.Equal(t, 3, add(t, p, 1, 2))
	assert.True(t, local.Running())
	assert.Equal(t, int64(1), local.Starts())
}

func TestLocalRestartsAfterStop(t *testing.T) {
	local := NewLocal(service.DefaultRegistry(service.DefaultKey), zaptest.NewLogger(t))
	t.Cleanup(func() { local.Stop(time.Second) })
	p := pool.New(local, pool.WithBackoff(time.Millisecond, 10*time.Millisecond))
	t.Cleanup(func() { p.Close() })

	require.Equal(t, 2, add(t, p, 1, 1))
	require.NoError(t, local.Stop(time.Second))

	require.Eventually(t, func() bool {
		return p.Attempts() == 2 && p.State() == pool.Connected
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, add(t, p, 2, 2))
	assert.Equal(t, int64(2), local.Starts())
}

func TestLocalKillKeepsHost(t *testing.T) {
	local := NewLocal(service.DefaultRegistry(service.DefaultKey), zaptest.NewLogger(t))
	t.Cleanup(func() { local.Stop(time.Second) })
	p := pool.New(local, pool.WithBackoff(time.Millisecond, 10*time.Millisecond))
	t.Cleanup(func() { p.Close() })

	require.Equal(t, 2, add(t, p, 1, 1))
	assert.Equal(t, 1, local.Kill())

	require.Eventually(t, func() bool { return p.Attempts() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 6, add(t, p, 3, 3))
	assert.Equal(t, int64(1), local.Starts())
}

func TestDiscoveryPicksRegisteredHosts(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	a := startHost(t, reg)
	b := startHost(t, reg)

	d := NewDiscovery(reg, &loadbalance.RoundRobinBalancer{}, "hosts", zaptest.NewLogger(t))
	defer d.Close()

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		conn, err := d.Bind(context.Background())
		require.NoError(t, err)
		seen[conn.RemoteAddr().String()] = true
		conn.Close()
	}
	assert.Equal(t, map[string]bool{a.Addr().String(): true, b.Addr().String(): true}, seen)
}

func TestDiscoveryFollowsRegistry(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	d := NewDiscovery(reg, &loadbalance.RoundRobinBalancer{}, "hosts", zaptest.NewLogger(t))
	defer d.Close()

	_, err := d.Bind(context.Background())
	assert.ErrorIs(t, err, ErrNoHosts)

	svr := startHost(t, reg)
	require.Eventually(t, func() bool { return len(d.cached()) == 1 }, time.Second, 5*time.Millisecond)

	p := pool.New(d)
	defer p.Close()
	assert.Equal(t, 10, add(t, p, 4, 6))
	assert.Equal(t, svr.Addr().String(), d.cached()[0].Addr)
}

func TestDiscoveryCloseWithoutBind(t *testing.T) {
	d := NewDiscovery(registry.NewMemoryRegistry(), &loadbalance.RoundRobinBalancer{}, "hosts", nil)
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
}
