package rtmp

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmp-chunkstream/config"
	"github.com/torresjeff/rtmp-chunkstream/metrics"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var ErrServerClosed = errors.New("rtmp: server closed")

const maxAcceptDelay = time.Second

// Server represents the RTMP server, where a client/app can stream media to. The server listens for incoming
// connections and runs one Session per connection.
type Server struct {
	Addr    string
	Logger  *zap.Logger
	Handler Handler
	// Config defaults to config.Default() when nil. A non-empty Addr takes precedence over Config.Addr.
	Config  *config.Config
	Metrics *metrics.Collector

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool
	active   atomic.Int64
}

// Listen starts the server and listens for any incoming connections. If no Addr (host:port) has been assigned
// to the server, the configured address is used, ":1935" by default.
func (s *Server) Listen() error {
	s.init()
	if s.Addr == "" {
		s.Addr = s.Config.Addr
	}

	tcpAddress, err := net.ResolveTCPAddr("tcp", s.Addr)
	if err != nil {
		return errors.Errorf("[server] error resolving tcp address: %s", err)
	}

	// Start listening on the specified address
	listener, err := net.ListenTCP("tcp", tcpAddress)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Close is called, which makes it return ErrServerClosed.
func (s *Server) Serve(listener net.Listener) error {
	s.init()
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		listener.Close()
		return ErrServerClosed
	}
	s.listener = listener
	s.mu.Unlock()

	s.Logger.Info(fmt.Sprint("[server] Listening on ", listener.Addr().String()))

	// How long to sleep after a failed Accept, doubled on every consecutive failure like net/http does.
	var tempDelay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > maxAcceptDelay {
				tempDelay = maxAcceptDelay
			}
			s.Logger.Error(fmt.Sprint("[server] Error accepting incoming connection ", err, "; retrying in ", tempDelay))
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0
		s.Logger.Info(fmt.Sprint("[server] Accepted incoming connection from ", conn.RemoteAddr().String()))

		if !s.track(conn) {
			conn.Close()
			return ErrServerClosed
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	socketr := bufio.NewReaderSize(conn, s.Config.BufferSize)
	socketw := bufio.NewWriterSize(conn, s.Config.BufferSize)
	sess, err := NewSession(s.Logger, conn, socketr, socketw, s.Handler,
		WithSessionConfig(s.Config),
		WithMetrics(s.Metrics),
	)
	if err != nil {
		s.Logger.Error(fmt.Sprint("[server] Error creating session ", err))
		return
	}

	s.active.Inc()
	defer s.active.Dec()

	s.Logger.Info(fmt.Sprint("[server] Starting session with sessionId ", sess.GetID()))
	if err := sess.Start(); err != nil && !s.closed.Load() {
		s.Logger.Error(fmt.Sprint("[server] Session with sessionId ", sess.GetID(), " ended with an error: ", err))
		return
	}
	s.Logger.Info(fmt.Sprint("[server] Session with sessionId ", sess.GetID(), " ended."))
}

// Close stops accepting connections, closes every open connection and waits for their sessions to end.
func (s *Server) Close() error {
	s.init()
	s.mu.Lock()
	if !s.closed.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil
	}
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// ActiveSessions returns the number of sessions currently running.
func (s *Server) ActiveSessions() int64 {
	return s.active.Load()
}

func (s *Server) init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	if s.Config == nil {
		s.Config = config.Default()
	}
	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}
