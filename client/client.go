// Package client provides typed stubs for the services a pool hands out.
//
// A stub wraps a handle obtained from pool.QueryService. Stubs never create
// handles themselves; when a handle goes stale the caller queries again and
// builds a new stub. The host keeps every queried instance until the stub is
// closed or the connection drops, so close stubs that are done.
package client

import (
	"context"
	"errors"
	"fmt"

	"svcpool/pool"
	"svcpool/service"
)

var (
	// ErrWrongService is returned when a stub is built from a handle of another service.
	ErrWrongService = errors.New("client: handle belongs to another service")
	// ErrNotFound is returned when the host does not know the requested code.
	ErrNotFound = errors.New("client: service not found")
	// ErrUnavailable is returned when the host could not be asked.
	ErrUnavailable = errors.New("client: service unavailable")
)

// Invoker is the part of a pool.Handle a stub uses.
type Invoker interface {
	Service() string
	Call(ctx context.Context, method string, args, reply any) error
	Release(ctx context.Context) error
}

// Querier hands out handles; *pool.Pool is one.
type Querier interface {
	QueryService(ctx context.Context, code service.Code) (pool.Result, error)
}

// Dial queries code and turns every unsuccessful outcome into an error.
func Dial(ctx context.Context, q Querier, code service.Code) (*pool.Handle, error) {
	res, err := q.QueryService(ctx, code)
	if err != nil {
		return nil, err
	}
	switch res.Reason {
	case pool.Found:
		return res.Handle, nil
	case pool.NotFound:
		return nil, fmt.Errorf("%w: code %s", ErrNotFound, code)
	default:
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, res.Err)
	}
}

func checkService(h Invoker, want service.Code) error {
	if h == nil {
		return fmt.Errorf("%w: nil handle", ErrWrongService)
	}
	if h.Service() != want.String() {
		return fmt.Errorf("%w: want %s, got %s", ErrWrongService, want, h.Service())
	}
	return nil
}
