package transport

import (
	"context"
	"crypto/tls"
	"net"
	"sync"

	"github.com/infinoted/libinfinity/internal/ioloop"
	"github.com/infinoted/libinfinity/pkg/logger"
)

// AcceptedHandler is called once per accepted connection, on the loop's
// dispatch thread, with a Conn already wrapping the accepted socket and a
// server-role StateMachine ready to begin stream negotiation (spec §4.B,
// "mirrored" server role). It is the hook the directory/session layer
// attaches to in order to drive the new connection's XMPP handshake.
type AcceptedHandler func(conn *Conn, sm *StateMachine)

// Server is the bind/listen/accept loop feeding accepted connections into
// per-connection XMPP state machines on the same ioloop.Loop, reproduced
// from infd-tcp-server.c's accept-and-hand-off shape: the blocking
// net.Listener.Accept call runs on its own goroutine (this environment has
// no single-threaded edge-triggered poller for listening sockets) but every
// accepted connection is handed to the loop via AddDispatch so application
// code downstream of AcceptedHandler still only ever runs on the loop
// thread, preserving the single-threaded cooperative contract of §5.
type Server struct {
	loop     *ioloop.Loop
	policy   SecurityPolicy
	tlsConf  *tls.Config
	onAccept AcceptedHandler

	mu       sync.Mutex
	listener net.Listener
}

// NewServer constructs a Server bound to no socket yet; call Listen to
// start accepting. tlsConf may be nil when policy is OnlyUnsecured.
func NewServer(loop *ioloop.Loop, policy SecurityPolicy, tlsConf *tls.Config, onAccept AcceptedHandler) *Server {
	return &Server{loop: loop, policy: policy, tlsConf: tlsConf, onAccept: onAccept}
}

// Listen binds addr (e.g. ":6523", the spec's default port) and starts
// accepting connections in the background until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go s.acceptLoop(ctx, ln)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	return nil
}

// Addr returns the bound listener's address, useful for tests that bind
// to port 0 and need to learn the ephemeral port chosen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Error("transport: accept: %v", err)
				return
			}
		}
		s.handleAccepted(raw)
	}
}

// handleAccepted wraps the raw socket and schedules the application
// callback onto the loop thread, so the accepting goroutine never runs
// user code directly (spec §5: "all callbacks run on the loop thread").
func (s *Server) handleAccepted(raw net.Conn) {
	conn := &Conn{raw: raw, status: StatusConnected, network: "tcp/ip"}
	sm := NewStateMachine(RoleServer, s.policy)
	s.loop.AddDispatch(func() {
		if s.onAccept != nil {
			s.onAccept(conn, sm)
		}
	})
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
