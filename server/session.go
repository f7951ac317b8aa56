package server

import (
	"context"
	"net"
	"sync"

	"svcpool/protocol"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
)

// session is the host side of one bound connection.
type session struct {
	conn      net.Conn
	writeMu   sync.Mutex // one frame at a time, responses are written concurrently
	handles   *xsync.MapOf[uint64, *instance]
	nextID    atomic.Uint64
	closeOnce sync.Once
}

func newSession(conn net.Conn) *session {
	return &session{
		conn:    conn,
		handles: xsync.NewMapOf[uint64, *instance](),
	}
}

func (s *session) write(h *protocol.Header, body []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return protocol.Encode(s.conn, h, body)
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}

type sessionKey struct{}

func withSession(ctx context.Context, s *session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFrom(ctx context.Context) *session {
	s, _ := ctx.Value(sessionKey{}).(*session)
	return s
}
