// Package gdbserver runs the accept-one-connection server loop: bind,
// accept, then drive pkg/rsp's Codec and Session until a termination
// command or disconnect. Grounded on service/dap/server.go's Run/
// serveDAPCodec shape (single accepted connection, deferred cleanup), with
// the loop driven by the session's Running flag rather than a stop channel,
// and adapted from DAP's JSON-over-stdio transport to RSP's packet-over-TCP
// transport.
package gdbserver

import (
	"fmt"
	"net"
	"syscall"

	"github.com/kdumptools/vmcore-gdbstub/pkg/logflags"
	"github.com/kdumptools/vmcore-gdbstub/pkg/rsp"
	"golang.org/x/sys/unix"
)

// Server owns the listening socket and the single session it serves.
type Server struct {
	addr     string
	listener net.Listener
	session  *rsp.Session
}

// New constructs a Server bound to no socket yet; call Listen then Run.
func New(addr string, session *rsp.Session) *Server {
	return &Server{addr: addr, session: session}
}

// Listen binds addr with SO_REUSEADDR set via a ListenConfig.Control
// callback, so a restarted server doesn't fail to bind on a socket still
// draining in TIME_WAIT.
func (s *Server) Listen() error {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	ln, err := lc.Listen(nil, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gdbserver: listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound listener's address, for logging and tests where
// the port is chosen dynamically (":0").
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run accepts exactly one connection and drives it to completion, then
// closes the listener. No accept-after-disconnect: one lifetime, one
// client, matching §4.6's "one lifetime, one client" rule.
func (s *Server) Run() error {
	defer s.listener.Close()

	log := logflags.ServerLogger()
	log.Infof("listening on %s", s.listener.Addr())

	conn, err := s.listener.Accept()
	if err != nil {
		return fmt.Errorf("gdbserver: accept: %w", err)
	}
	defer conn.Close()

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			return fmt.Errorf("gdbserver: setting TCP_NODELAY: %w", err)
		}
	}
	log.Infof("accepted connection from %s", conn.RemoteAddr())

	return s.serve(conn)
}

func (s *Server) serve(conn net.Conn) error {
	codec := rsp.NewCodec(conn)
	wire := logflags.WireLogger()

	for s.session.Running {
		payload, ok, err := codec.Receive()
		if err != nil {
			return nil // connection lost: exit cleanly, matching §4.6 step 3
		}
		if !ok {
			continue // bad checksum; codec already sent '-'
		}
		wire.Debugf("-> %s", payload)

		reply := s.session.Dispatch(payload)
		codec.SetNoAckMode(s.session.NoAckMode)

		wire.Debugf("<- %s", reply)
		if err := codec.Send(reply); err != nil {
			return fmt.Errorf("gdbserver: sending reply: %w", err)
		}
	}
	return nil
}
