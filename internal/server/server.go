// Package server implements the connection state machine and the
// listener/accept loop around it: spec.md §4.4's ClientFacing,
// ReplicaFacing and UpstreamPrimary connection roles, plus the two global
// background tasks (keyspace sweep, journal retention sweep) spec.md §5
// describes.
package server

import (
	"fmt"
	"net"
	"strings"
	"time"

	"gridctl/internal/cmd"
	"gridctl/internal/logger"
	"gridctl/internal/repl"
	"gridctl/internal/store"
)

// keyspaceSweepInterval and journalSweepInterval match spec.md §5's
// "periodic keyspace sweep (10s interval)" and "journal retention sweep
// (~2ms interval)".
const (
	keyspaceSweepInterval = 10 * time.Second
	journalSweepInterval  = 2 * time.Millisecond
)

// Config is the server's external configuration, supplied by the cobra
// entrypoint glue (spec.md §6's "out of scope: argument parsing"). EmptyRDB
// is the opaque, fixed empty-snapshot payload spec.md §6 describes as
// "supplied to the core" rather than generated by it.
type Config struct {
	Addr      string // e.g. ":6379"
	ReplicaOf string // "<host> <port>", empty for a primary
	EmptyRDB  []byte
}

// Server owns the listener, the shared keyspace and replication state, and
// the command registry every Connection dispatches through.
type Server struct {
	cfg         Config
	ln          net.Listener
	addr        string
	store       *store.Keyspace
	journal     *repl.Journal
	manager     *repl.Manager
	recognizers []cmd.Recognizer

	emptyRDB []byte
	stop     chan struct{}
}

// New constructs a Server. It does not bind a socket or start any
// goroutine yet; call Start for that.
func New(cfg Config) *Server {
	role := "master"
	if cfg.ReplicaOf != "" {
		role = "slave"
	}
	return &Server{
		cfg:         cfg,
		store:       store.New(),
		journal:     repl.NewJournal(),
		manager:     repl.NewManager(role),
		recognizers: cmd.DefaultRecognizers(),
		emptyRDB:    cfg.EmptyRDB,
		stop:        make(chan struct{}),
	}
}

// Addr returns the address the listener actually bound to.
func (s *Server) Addr() string { return s.addr }

// Start binds the listener (after first performing the replica handshake,
// if configured as a replica -- spec.md §4.6 requires the handshake to
// complete "before accepting clients"), then launches the accept loop and
// the two background sweepers.
func (s *Server) Start() error {
	if s.cfg.ReplicaOf != "" {
		if err := s.startAsReplica(); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	s.addr = ln.Addr().String()
	logger.Infof("server listening on %s", s.addr)

	go s.acceptLoop()
	go s.sweepKeyspace()
	go s.manager.SweepLoop(s.journal, journalSweepInterval, s.stop)

	return nil
}

// startAsReplica performs the handshake described in spec.md §4.6 and, on
// success, spawns the resulting socket as an UpstreamPrimary connection.
// Any handshake failure is fatal (HandshakeFatal, spec.md §7): the caller
// must not proceed to accept client connections.
func (s *Server) startAsReplica() error {
	addr := strings.TrimSpace(s.cfg.ReplicaOf)
	parts := strings.Fields(addr)
	if len(parts) != 2 {
		return fmt.Errorf("replicaof must be \"<host> <port>\", got %q", s.cfg.ReplicaOf)
	}
	upstream := net.JoinHostPort(parts[0], parts[1])
	ownPort := portOf(s.cfg.Addr)

	result, err := repl.Handshake(upstream, ownPort)
	if err != nil {
		return err
	}
	s.manager.AdoptUpstream(result.ReplID, result.Offset)

	conn := newConnection(result.Conn, s)
	conn.role = roleUpstreamPrimary
	conn.leftover = result.Leftover
	go conn.serve()
	return nil
}

func portOf(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return port
}

// Close stops the background sweepers and the listener; in-flight
// connections unwind on their own at their next suspension point.
func (s *Server) Close() error {
	close(s.stop)
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

func (s *Server) acceptLoop() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
				logger.Debugf("accept error: %v", err)
				return
			}
		}
		logger.Debugf("accepted connection from %s", c.RemoteAddr())
		conn := newConnection(c, s)
		go conn.serve()
	}
}

func (s *Server) sweepKeyspace() {
	ticker := time.NewTicker(keyspaceSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.store.ActiveSweep()
		}
	}
}
