// Package transport implements the client side of one connection to a service host.
//
// ClientTransport multiplexes concurrent calls over a single connection: each
// request gets a sequence id and a background recvLoop routes every response
// to the channel of the caller waiting for that id.
//
//	goroutine-1 ──Send(seq=1)──┐
//	goroutine-2 ──Send(seq=2)──┼──→ single conn ──→ host
//	goroutine-3 ──Send(seq=3)──┘
//
//	recvLoop:  ←── response(seq=2) → pending[2] → goroutine-2 wakes up
//
// When the connection breaks the transport dies exactly once: every pending
// caller gets a StatusTransport reply and Dead() closes.
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"svcpool/codec"
	"svcpool/message"
	"svcpool/protocol"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	// ErrEndpointDead is returned for sends on a transport whose connection is gone.
	ErrEndpointDead = errors.New("transport: endpoint is dead")
	// ErrGoodbye is the death cause when the host announced its shutdown.
	ErrGoodbye = errors.New("transport: host said goodbye")
	// ErrClosed is the death cause after a local Close.
	ErrClosed = errors.New("transport: closed")
)

// ClientTransport manages a single multiplexed connection.
type ClientTransport struct {
	conn    net.Conn
	codec   codec.CodecType
	seq     atomic.Uint32
	pending *xsync.MapOf[uint32, chan *message.RPCMessage]
	// sending serializes whole frames on conn and orders pending
	// registration against markDead.
	sending sync.Mutex
	logger  *zap.Logger

	dead      chan struct{}
	deadOnce  sync.Once
	deadErr   error // written once before dead closes
	stop      chan struct{}
	closeOnce sync.Once
}

// NewClientTransport takes ownership of conn and starts recvLoop and, when
// heartbeat is positive, heartbeatLoop.
func NewClientTransport(conn net.Conn, codecType codec.CodecType, heartbeat time.Duration, logger *zap.Logger) *ClientTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &ClientTransport{
		conn:    conn,
		codec:   codecType,
		pending: xsync.NewMapOf[uint32, chan *message.RPCMessage](),
		logger:  logger,
		dead:    make(chan struct{}),
		stop:    make(chan struct{}),
	}
	go t.recvLoop()
	if heartbeat > 0 {
		go t.heartbeatLoop(heartbeat)
	}
	return t
}

// Send encodes msg and writes it as one frame. The returned channel receives
// exactly one reply, or nothing if the caller abandons it through Forget.
func (t *ClientTransport) Send(msg *message.RPCMessage) (uint32, <-chan *message.RPCMessage, error) {
	body, err := codec.GetCodec(t.codec).Encode(msg)
	if err != nil {
		return 0, nil, err
	}

	t.sending.Lock()
	defer t.sending.Unlock()

	select {
	case <-t.dead:
		return 0, nil, ErrEndpointDead
	default:
	}

	seq := t.seq.Inc()
	header := protocol.Header{
		CodecType: byte(t.codec),
		MsgType:   protocol.MsgTypeRequest,
		Seq:       seq,
	}

	// register before writing, the reply may beat the return of Encode
	respChan := make(chan *message.RPCMessage, 1)
	t.pending.Store(seq, respChan)

	if err := protocol.Encode(t.conn, &header, body); err != nil {
		t.pending.Delete(seq)
		go t.markDead(err)
		return 0, nil, fmt.Errorf("%w: %v", ErrEndpointDead, err)
	}
	return seq, respChan, nil
}

// Forget drops a pending request whose caller stopped waiting.
func (t *ClientTransport) Forget(seq uint32) {
	t.pending.Delete(seq)
}

// recvLoop is the only reader of conn; frame boundaries require sequential reads.
func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.markDead(err)
			return
		}

		switch header.MsgType {
		case protocol.MsgTypeResponse:
		case protocol.MsgTypeGoodbye:
			t.markDead(ErrGoodbye)
			return
		default:
			continue
		}

		resp := &message.RPCMessage{}
		if err := codec.GetCodec(codec.CodecType(header.CodecType)).Decode(body, resp); err != nil {
			resp = message.Failed(message.StatusBadRequest, "decode reply: %v", err)
		}

		if channel, ok := t.pending.LoadAndDelete(header.Seq); ok {
			channel <- resp
		}
	}
}

// heartbeatLoop keeps idle connections alive and notices a dead peer even
// when no calls are in flight.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	header := &protocol.Header{MsgType: protocol.MsgTypeHeartbeat}
	for {
		select {
		case <-t.stop:
			return
		case <-t.dead:
			return
		case <-ticker.C:
		}

		t.sending.Lock()
		err := protocol.Encode(t.conn, header, nil)
		t.sending.Unlock()
		if err != nil {
			t.markDead(err)
			return
		}
	}
}

// markDead runs once per transport: it records the cause, closes the
// connection and Dead(), then fails every pending caller.
func (t *ClientTransport) markDead(cause error) {
	t.deadOnce.Do(func() {
		t.deadErr = cause
		t.conn.Close()
		close(t.dead)

		select {
		case <-t.stop:
		default:
			t.logger.Warn("connection lost", zap.Stringer("remote", t.conn.RemoteAddr()), zap.Error(cause))
		}

		// Send checks dead under this lock, so nothing registers after the drain
		t.sending.Lock()
		defer t.sending.Unlock()
		t.pending.Range(func(seq uint32, channel chan *message.RPCMessage) bool {
			// recvLoop may have filled this channel a moment ago
			select {
			case channel <- message.Failed(message.StatusTransport, "connection lost: %v", cause):
			default:
			}
			t.pending.Delete(seq)
			return true
		})
	})
}

// Dead closes once the connection is gone.
func (t *ClientTransport) Dead() <-chan struct{} {
	return t.dead
}

// Err reports why the transport died, nil while it is alive.
func (t *ClientTransport) Err() error {
	select {
	case <-t.dead:
		return t.deadErr
	default:
		return nil
	}
}

// Close shuts the transport down. Safe to call more than once.
func (t *ClientTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.stop)
		t.markDead(ErrClosed)
	})
	return nil
}

// Conn returns the underlying connection.
func (t *ClientTransport) Conn() net.Conn {
	return t.conn
}
