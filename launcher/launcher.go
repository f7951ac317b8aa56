// Package launcher implements the ways a pool can reach its service host.
//
//   - Dial:      a host at a fixed address
//   - Local:     an in-process host, started on first bind and restarted after Stop
//   - Discovery: a host picked from a registry by a load balancer
//
// Each type satisfies pool.Binder.
package launcher

import (
	"context"
	"net"
)

// Dial binds to a host at a fixed address.
type Dial struct {
	Network string // "tcp" when empty
	Address string
}

func (d Dial) Bind(ctx context.Context) (net.Conn, error) {
	network := d.Network
	if network == "" {
		network = "tcp"
	}
	var dialer net.Dialer
	return dialer.DialContext(ctx, network, d.Address)
}
