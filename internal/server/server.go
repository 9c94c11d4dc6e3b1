// Package server implements ripplekv's network front end: a single
// goroutine, non-blocking, edge-triggered epoll event loop that accepts
// TCP connections, frames RESP-2 commands off each connection's input
// buffer, and dispatches them against a store.Store.
//
// There is exactly one goroutine touching the connection table and
// every conn's buffers: the event loop goroutine started by Run. No
// per-connection locking exists; cross-goroutine coordination is limited
// to channels: the stop channel Run checks before each epoll_wait, plus
// the channels Addr and Stop wait on for setup and exit.
package server

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ripplekv/ripplekv/pkg/store"
)

// DefaultMaxConnections caps concurrently accepted connections.
const DefaultMaxConnections = 1024

// DefaultIdleTimeout is how long a connection may sit with no activity
// before the event loop's idle sweep closes it.
const DefaultIdleTimeout = 60 * time.Second

// maxEpollEvents bounds how many ready events epoll_wait returns per
// call.
const maxEpollEvents = 64

// pollTimeoutMillis is how long epoll_wait blocks with no ready fds
// before returning anyway, giving Run a chance to notice a stop
// request and to run its idle-connection sweep even under silence.
const pollTimeoutMillis = 1000

// Metrics receives notifications about connection activity. A nil
// Metrics is valid; internal/telemetry provides an implementation
// backed by Prometheus collectors.
type Metrics interface {
	SetActiveConnections(n int)
	RecordCommand(command, outcome string)
}

// Logger is the subset of a structured logger Server needs.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// Options configures a Server.
type Options struct {
	Port           int
	MaxConnections int
	IdleTimeout    time.Duration
	Metrics        Metrics
	Logger         Logger
}

// Server owns the listening socket, the epoll instance, and every
// accepted connection's state. Create one with New and drive it with
// Run; Stop requests a graceful shutdown from another goroutine.
type Server struct {
	opts       Options
	dispatcher *dispatcher

	listenFD int
	epfd     int
	port     int

	connections map[int]*conn

	stopCh  chan struct{}
	doneCh  chan struct{}
	readyCh chan struct{}
}

// New builds a Server dispatching commands against kv. Call Run to
// start serving; it does not return until Stop is called or a fatal
// setup error occurs.
func New(kv *store.Store, opts Options) *Server {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = DefaultMaxConnections
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Server{
		opts:        opts,
		dispatcher:  newDispatcher(kv, opts.Metrics),
		connections: make(map[int]*conn),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		readyCh:     make(chan struct{}),
	}
}

// Addr blocks until the listening socket is bound and returns the port
// it is bound to: the requested Options.Port, or the kernel-assigned
// ephemeral port when Options.Port was 0. Intended for tests that need
// a guaranteed-free port.
func (s *Server) Addr() int {
	<-s.readyCh
	return s.port
}

// Run binds the listening socket, creates the epoll instance, and
// blocks serving connections until Stop is called. It returns any
// setup error; once the loop is running, per-connection errors are
// logged rather than returned, while a failure of epoll_wait itself
// shuts the server down and is returned.
func (s *Server) Run() error {
	listenFD, boundPort, err := listen(s.opts.Port)
	if err != nil {
		return err
	}
	s.listenFD = listenFD
	s.port = boundPort

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(listenFD)
		return fmt.Errorf("server: epoll_create1: %w", err)
	}
	s.epfd = epfd

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, listenFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(listenFD),
	}); err != nil {
		unix.Close(epfd)
		unix.Close(listenFD)
		return fmt.Errorf("server: epoll_ctl add listener: %w", err)
	}

	s.log().Infow("server listening", "port", s.port, "max_connections", s.opts.MaxConnections)
	close(s.readyCh)
	defer close(s.doneCh)

	events := make([]unix.EpollEvent, maxEpollEvents)
	for {
		select {
		case <-s.stopCh:
			s.shutdown()
			return nil
		default:
		}

		n, err := unix.EpollWait(epfd, events, pollTimeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			s.log().Errorw("epoll_wait failed", "error", err)
			s.shutdown()
			return fmt.Errorf("server: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == s.listenFD {
				s.acceptNewConnections()
				continue
			}
			s.handleEvent(fd, events[i].Events)
		}

		s.sweepIdleConnections()
	}
}

// Stop requests a graceful shutdown and blocks until Run has closed
// every connection and returned. It is safe to call from any
// goroutine.
func (s *Server) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	<-s.doneCh
}

func (s *Server) acceptNewConnections() {
	_ = acceptAll(s.listenFD, func(fd int, remoteAddr string) {
		if len(s.connections) >= s.opts.MaxConnections {
			s.log().Warnw("rejecting connection, at capacity", "fd", fd)
			unix.Close(fd)
			return
		}

		if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
			Events: unix.EPOLLIN | unix.EPOLLET,
			Fd:     int32(fd),
		}); err != nil {
			s.log().Warnw("epoll_ctl add failed", "fd", fd, "error", err)
			unix.Close(fd)
			return
		}

		s.connections[fd] = newConn(fd, remoteAddr)
		s.reportActive()
		s.log().Debugw("accepted connection", "fd", fd, "remote_addr", remoteAddr)
	})
}

func (s *Server) handleEvent(fd int, events uint32) {
	c, ok := s.connections[fd]
	if !ok {
		unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		unix.Close(fd)
		return
	}

	if events&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		s.closeConnection(c)
		return
	}

	if events&unix.EPOLLIN != 0 {
		if !c.handleRead(s.dispatcher.dispatch) {
			s.closeConnection(c)
			return
		}
		s.syncEpollInterest(c)
	}

	if events&unix.EPOLLOUT != 0 {
		if !c.handleWrite() {
			s.closeConnection(c)
			return
		}
		s.syncEpollInterest(c)
	}
}

// syncEpollInterest keeps EPOLLOUT registered on c's fd exactly while
// it has queued output: write-readiness is only watched for when there
// is something to write, to avoid epoll_wait spinning on an
// always-writable socket.
func (s *Server) syncEpollInterest(c *conn) {
	events := uint32(unix.EPOLLIN | unix.EPOLLET)
	if c.hasPendingWrites() {
		events |= unix.EPOLLOUT
	}
	unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, c.fd, &unix.EpollEvent{
		Events: events,
		Fd:     int32(c.fd),
	})
}

func (s *Server) closeConnection(c *conn) {
	unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, c.fd, nil)
	delete(s.connections, c.fd)
	c.close()
	s.reportActive()
	s.log().Debugw("closed connection", "fd", c.fd, "remote_addr", c.remoteAddr)
}

// sweepIdleConnections closes any connection that has had no read or
// write activity for longer than IdleTimeout. It runs once per
// epoll_wait cycle from the same goroutine that owns the connection
// table, so it needs no locking. The tradeoff is that the sweep
// granularity is bounded by pollTimeoutMillis, not wall-clock exactness.
func (s *Server) sweepIdleConnections() {
	now := time.Now()
	var stale []*conn
	for _, c := range s.connections {
		if c.idleFor(now) > s.opts.IdleTimeout {
			stale = append(stale, c)
		}
	}
	for _, c := range stale {
		s.log().Debugw("closing idle connection", "fd", c.fd, "remote_addr", c.remoteAddr)
		s.closeConnection(c)
	}
}

func (s *Server) shutdown() {
	for _, c := range s.connections {
		c.close()
	}
	s.connections = make(map[int]*conn)
	s.reportActive()

	if s.epfd != 0 {
		unix.Close(s.epfd)
	}
	if s.listenFD != 0 {
		unix.Close(s.listenFD)
	}
	s.log().Infow("server stopped")
}

func (s *Server) reportActive() {
	if s.opts.Metrics != nil {
		s.opts.Metrics.SetActiveConnections(len(s.connections))
	}
}

func (s *Server) log() Logger {
	if s.opts.Logger != nil {
		return s.opts.Logger
	}
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debugw(string, ...interface{}) {}
func (nopLogger) Infow(string, ...interface{})  {}
func (nopLogger) Warnw(string, ...interface{})  {}
func (nopLogger) Errorw(string, ...interface{}) {}
