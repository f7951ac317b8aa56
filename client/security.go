package client

import (
	"context"

	"svcpool/service"
)

// SecurityCenter is the client side of the SecurityCenter service. The
// transformation is a shared-key XOR: it obscures text, it does not protect it.
type SecurityCenter struct {
	h Invoker
}

func NewSecurityCenter(h Invoker) (*SecurityCenter, error) {
	if err := checkService(h, service.SecurityCenter); err != nil {
		return nil, err
	}
	return &SecurityCenter{h: h}, nil
}

// DialSecurityCenter queries a SecurityCenter handle and wraps it.
func DialSecurityCenter(ctx context.Context, q Querier) (*SecurityCenter, error) {
	h, err := Dial(ctx, q, service.SecurityCenter)
	if err != nil {
		return nil, err
	}
	return NewSecurityCenter(h)
}

func (s *SecurityCenter) Encrypt(ctx context.Context, text string) (string, error) {
	return s.transform(ctx, "Encrypt", text)
}

func (s *SecurityCenter) Decrypt(ctx context.Context, text string) (string, error) {
	return s.transform(ctx, "Decrypt", text)
}

// Close releases the instance on the host.
func (s *SecurityCenter) Close(ctx context.Context) error {
	return s.h.Release(ctx)
}

func (s *SecurityCenter) transform(ctx context.Context, method, text string) (string, error) {
	var reply service.CipherReply
	if err := s.h.Call(ctx, method, &service.CipherArgs{Text: []byte(text)}, &reply); err != nil {
		return "", err
	}
	return string(reply.Text), nil
}
