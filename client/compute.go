package client

import (
	"context"

	"svcpool/service"
)

// Compute is the client side of the Compute service.
type Compute struct {
	h Invoker
}

func NewCompute(h Invoker) (*Compute, error) {
	if err := checkService(h, service.Compute); err != nil {
		return nil, err
	}
	return &Compute{h: h}, nil
}

// DialCompute queries a Compute handle and wraps it.
func DialCompute(ctx context.Context, q Querier) (*Compute, error) {
	h, err := Dial(ctx, q, service.Compute)
	if err != nil {
		return nil, err
	}
	return NewCompute(h)
}

func (c *Compute) Add(ctx context.Context, a, b int) (int, error) {
	var reply service.AddReply
	if err := c.h.Call(ctx, "Add", &service.AddArgs{A: a, B: b}, &reply); err != nil {
		return 0, err
	}
	return reply.Result, nil
}

// Close releases the instance on the host. The stub is unusable afterwards.
func (c *Compute) Close(ctx context.Context) error {
	return c.h.Release(ctx)
}
