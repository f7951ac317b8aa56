// Package server implements the service host: the remote process a pool binds to.
//
// Each accepted connection gets a session with its own handle table. A
// Pool.Query request mints a fresh service instance from the registry and
// files it under a new handle id; later requests address that instance by id.
// Handles never outlive their connection.
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each request: go handleRequest
//	    → Codec.Decode → Middleware Chain → businessHandler → Codec.Encode → write response
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"
	"sync"
	"time"

	"svcpool/codec"
	"svcpool/message"
	"svcpool/middleware"
	"svcpool/protocol"
	"svcpool/registry"
	"svcpool/service"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultName is the host name used for discovery when none is configured.
const DefaultName = "svcpool"

// Server hosts the services of one registry.
type Server struct {
	services    *service.Registry
	logger      *zap.Logger
	name        string // name announced to the discovery registry
	weight      int
	ttl         int64
	listener    net.Listener
	wg          sync.WaitGroup // in-flight requests
	admitMu     sync.Mutex     // orders wg.Add in handleConn against the shutdown flag
	conns       sync.WaitGroup // connection goroutines
	serveDone   chan struct{}
	shutdown    atomic.Bool
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc
	sessions    *xsync.MapOf[*session, struct{}]
	ready       chan struct{}
	readyOnce   sync.Once

	registry      registry.Registry // nil when not announcing
	advertiseAddr string
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithName sets the host name announced for discovery.
func WithName(name string) Option {
	return func(s *Server) { s.name = name }
}

// WithAnnounce sets the weight and lease TTL (seconds) of the discovery entry.
func WithAnnounce(weight int, ttl int64) Option {
	return func(s *Server) {
		s.weight = weight
		s.ttl = ttl
	}
}

// NewServer creates a host serving the codes of services.
func NewServer(services *service.Registry, opts ...Option) *Server {
	s := &Server{
		services:  services,
		logger:    zap.NewNop(),
		name:      DefaultName,
		weight:    10,
		ttl:       10,
		sessions:  xsync.NewMapOf[*session, struct{}](),
		ready:     make(chan struct{}),
		serveDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("host")
	return s
}

// Register adds a service to the host's registry.
func (svr *Server) Register(code service.Code, name string, factory service.Factory) error {
	return svr.services.Register(code, name, factory)
}

// Use registers a middleware. Middlewares run in the order they were added.
// Must be called before Serve.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Serve listens on address and serves until Shutdown.
//
// advertiseAddr is the routable address announced to reg; it differs from
// address when listening on a wildcard like ":8080". Pass a nil reg to skip
// discovery.
func (svr *Server) Serve(network, address string, advertiseAddr string, reg registry.Registry) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return svr.ServeListener(listener, advertiseAddr, reg)
}

// ServeListener serves on an existing listener until Shutdown.
func (svr *Server) ServeListener(listener net.Listener, advertiseAddr string, reg registry.Registry) error {
	svr.listener = listener
	defer close(svr.serveDone)

	// built once at startup: Chain(A, B)(h) runs A → B → h
	svr.handler = middleware.Chain(svr.middlewares...)(svr.businessHandler)

	if advertiseAddr == "" {
		advertiseAddr = listener.Addr().String()
	}
	svr.advertiseAddr = advertiseAddr
	if reg != nil {
		svr.registry = reg
		err := reg.Register(svr.name, registry.ServiceInstance{
			Addr:   advertiseAddr,
			Weight: svr.weight,
		}, svr.ttl)
		if err != nil {
			listener.Close()
			return fmt.Errorf("announce %s: %w", svr.name, err)
		}
	}

	svr.logger.Info("host serving",
		zap.String("name", svr.name),
		zap.Stringer("addr", listener.Addr()),
		zap.Any("codes", svr.services.Codes()))
	svr.readyOnce.Do(func() { close(svr.ready) })

	for {
		conn, err := listener.Accept()
		if err != nil {
			// Shutdown closes the listener on purpose
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		svr.conns.Add(1)
		go svr.handleConn(conn)
	}
}

// Ready closes once the server accepts connections.
func (svr *Server) Ready() <-chan struct{} {
	return svr.ready
}

// Addr is the listening address. Only valid after Ready.
func (svr *Server) Addr() net.Addr {
	return svr.listener.Addr()
}

// handleConn reads frames sequentially and hands every request to its own goroutine.
func (svr *Server) handleConn(conn net.Conn) {
	defer svr.conns.Done()
	sess := newSession(conn)
	svr.sessions.Store(sess, struct{}{})
	svr.logger.Info("bind", zap.Stringer("remote", conn.RemoteAddr()))

	defer func() {
		svr.sessions.Delete(sess)
		sess.close()
		svr.logger.Info("unbind", zap.Stringer("remote", conn.RemoteAddr()), zap.Int("dropped_handles", sess.handles.Size()))
		sess.handles.Clear()
	}()

	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			return
		}

		switch header.MsgType {
		case protocol.MsgTypeRequest:
			if !svr.admit() {
				continue
			}
			go svr.handleRequest(header, body, sess)
		case protocol.MsgTypeHeartbeat:
		default:
			svr.logger.Warn("unexpected frame", zap.Stringer("type", header.MsgType))
		}
	}
}

// admit counts a request as in flight unless Shutdown has begun.
func (svr *Server) admit() bool {
	svr.admitMu.Lock()
	defer svr.admitMu.Unlock()
	if svr.shutdown.Load() {
		return false
	}
	svr.wg.Add(1)
	return true
}

// handleRequest decodes, runs the middleware chain and writes the reply.
func (svr *Server) handleRequest(header *protocol.Header, body []byte, sess *session) {
	defer svr.wg.Done()

	c := codec.GetCodec(codec.CodecType(header.CodecType))
	var resp *message.RPCMessage
	msg := message.RPCMessage{}
	if err := c.Decode(body, &msg); err != nil {
		resp = message.Failed(message.StatusBadRequest, "decode request: %v", err)
	} else {
		resp = svr.handler(withSession(context.Background(), sess), &msg)
	}

	result, err := c.Encode(resp)
	if err != nil {
		svr.logger.Error("encode reply", zap.String("method", msg.ServiceMethod), zap.Error(err))
		return
	}

	replyHeader := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeResponse,
		Seq:       header.Seq,
	}
	if err := sess.write(&replyHeader, result); err != nil {
		svr.logger.Debug("write reply", zap.String("method", msg.ServiceMethod), zap.Error(err))
	}
}

// CloseConnections drops every live connection while the host keeps
// listening. Clients see the remote end die. Returns the number dropped.
func (svr *Server) CloseConnections() int {
	n := 0
	svr.sessions.Range(func(sess *session, _ struct{}) bool {
		sess.close()
		n++
		return true
	})
	return n
}

// Sessions reports the number of live connections.
func (svr *Server) Sessions() int {
	return svr.sessions.Size()
}

// Handles reports the number of live service instances across all connections.
func (svr *Server) Handles() int {
	n := 0
	svr.sessions.Range(func(sess *session, _ struct{}) bool {
		n += sess.handles.Size()
		return true
	})
	return n
}

// Shutdown stops the host:
//  1. deregister from discovery so no new pools pick this host
//  2. stop accepting
//  3. wait for in-flight requests, up to timeout
//  4. say goodbye on every connection and close it
//
// Shutdown returns once every connection goroutine has exited.
func (svr *Server) Shutdown(timeout time.Duration) error {
	var errs error
	if svr.registry != nil {
		errs = multierr.Append(errs, svr.registry.Deregister(svr.name, svr.advertiseAddr))
	}

	// the flag goes first so that Serve treats the Accept error as intentional.
	// Once it is set under admitMu no request can be added to wg.
	svr.admitMu.Lock()
	svr.shutdown.Store(true)
	svr.admitMu.Unlock()
	if svr.listener != nil {
		if err := svr.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = multierr.Append(errs, err)
		}
		// no conns.Add may race the Wait below
		<-svr.serveDone
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		errs = multierr.Append(errs, errors.New("timeout waiting for ongoing requests to finish"))
	}

	svr.sessions.Range(func(sess *session, _ struct{}) bool {
		_ = sess.write(&protocol.Header{MsgType: protocol.MsgTypeGoodbye}, nil)
		sess.close()
		return true
	})
	svr.conns.Wait()
	svr.logger.Info("host stopped", zap.String("name", svr.name))
	return errs
}

// businessHandler answers control methods itself and forwards everything
// else to the instance addressed by req.Handle.
func (svr *Server) businessHandler(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	sess := sessionFrom(ctx)
	if sess == nil {
		return message.Failed(message.StatusBadRequest, "no session")
	}

	switch req.ServiceMethod {
	case message.QueryMethod:
		return svr.query(sess, req)
	case message.ReleaseMethod:
		return svr.release(sess, req)
	}

	serviceName, methodName, ok := strings.Cut(req.ServiceMethod, ".")
	if !ok || serviceName == "" || methodName == "" {
		return message.Failed(message.StatusBadRequest, "invalid service method format %q", req.ServiceMethod)
	}

	inst, ok := sess.handles.Load(req.Handle)
	if !ok {
		return message.Failed(message.StatusNotFound, "unknown handle %d", req.Handle)
	}
	if inst.name != serviceName {
		return message.Failed(message.StatusNotFound, "handle %d is %s, not %s", req.Handle, inst.name, serviceName)
	}
	method, ok := inst.method[methodName]
	if !ok {
		return message.Failed(message.StatusNotFound, "%s has no method %s", serviceName, methodName)
	}

	argv := reflect.New(method.ArgType)
	replyv := reflect.New(method.ReplyType)
	if err := json.Unmarshal(req.Payload, argv.Interface()); err != nil {
		return message.Failed(message.StatusBadRequest, "decode args: %v", err)
	}

	methodErr := inst.call(method, argv, replyv)

	payload, err := json.Marshal(replyv.Interface())
	if err != nil {
		return message.Failed(message.StatusRemoteError, "encode reply: %v", err)
	}
	resp := &message.RPCMessage{
		Handle:        req.Handle,
		ServiceMethod: req.ServiceMethod,
		Payload:       payload,
	}
	if methodErr != nil {
		resp.Status = message.StatusRemoteError
		resp.Error = methodErr.Error()
	}
	return resp
}

func (svr *Server) query(sess *session, req *message.RPCMessage) *message.RPCMessage {
	var args message.QueryArgs
	if err := json.Unmarshal(req.Payload, &args); err != nil {
		return message.Failed(message.StatusBadRequest, "decode query: %v", err)
	}

	reply := message.QueryReply{}
	if name, rcvr, ok := svr.services.Resolve(service.Code(args.Code)); ok {
		inst, err := newInstance(name, rcvr)
		if err != nil {
			return message.Failed(message.StatusRemoteError, "%v", err)
		}
		reply.Handle = sess.nextID.Inc()
		reply.Service = name
		sess.handles.Store(reply.Handle, inst)
	}
	return encodeReply(req, reply)
}

func (svr *Server) release(sess *session, req *message.RPCMessage) *message.RPCMessage {
	var args message.ReleaseArgs
	if err := json.Unmarshal(req.Payload, &args); err != nil {
		return message.Failed(message.StatusBadRequest, "decode release: %v", err)
	}
	_, released := sess.handles.LoadAndDelete(args.Handle)
	return encodeReply(req, message.ReleaseReply{Released: released})
}

func encodeReply(req *message.RPCMessage, reply any) *message.RPCMessage {
	payload, err := json.Marshal(reply)
	if err != nil {
		return message.Failed(message.StatusRemoteError, "encode reply: %v", err)
	}
	return &message.RPCMessage{ServiceMethod: req.ServiceMethod, Payload: payload}
}
