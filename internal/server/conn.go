package server

import (
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ripplekv/ripplekv/pkg/resp"
)

// connState is a connection's position in its Connected -> Closing ->
// Closed lifecycle.
type connState int

const (
	connConnected connState = iota
	connClosing
	connClosed
)

const (
	// maxReadChunk bounds a single recv() call.
	maxReadChunk = 64 * 1024
	// maxInputBuffer caps how much unparsed input a connection may
	// accumulate before it is dropped as misbehaving.
	maxInputBuffer = 10 * 1024 * 1024
)

// conn tracks one client connection's socket, buffers, and state. All
// methods assume they are called from the single event loop goroutine
// that owns the epoll instance conn is registered with; there is no
// internal locking.
type conn struct {
	fd    int
	state connState

	inputBuffer []byte
	// outputQueue holds not-yet-fully-sent response chunks, in send
	// order. A partial write trims the front element in place rather
	// than popping it.
	outputQueue [][]byte

	lastActivity time.Time
	remoteAddr   string
}

func newConn(fd int, remoteAddr string) *conn {
	return &conn{
		fd:           fd,
		state:        connConnected,
		lastActivity: time.Now(),
		remoteAddr:   remoteAddr,
	}
}

func (c *conn) touch() { c.lastActivity = time.Now() }

func (c *conn) hasPendingWrites() bool { return len(c.outputQueue) > 0 }

// addResponse enqueues a RESP-2-encoded response for sending. It is a
// no-op once the connection has stopped accepting new writes.
func (c *conn) addResponse(b []byte) {
	if c.state != connConnected || len(b) == 0 {
		return
	}
	c.outputQueue = append(c.outputQueue, b)
}

// handleRead drains the socket in a loop, required because the
// connection is registered edge-triggered, so a single recv() per
// readiness notification would leave data stranded in the kernel
// buffer until the next unrelated event. It appends each chunk to the
// input buffer and hands off to processBuffer after every read.
//
// It returns false when the connection should be closed: EOF, a hard
// socket error, an oversized input buffer, or a protocol error from
// the dispatcher's caller.
func (c *conn) handleRead(dispatch func(verb string, args []string) []byte) bool {
	var buf [maxReadChunk]byte

	for {
		n, err := unix.Read(c.fd, buf[:])
		if n > 0 {
			c.touch()
			if len(c.inputBuffer)+n > maxInputBuffer {
				return false
			}
			c.inputBuffer = append(c.inputBuffer, buf[:n]...)
			if !c.processBuffer(dispatch) {
				return false
			}
			continue
		}
		if n == 0 {
			// Peer closed its write side.
			c.state = connClosing
			return false
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return true
		}
		if err == unix.EINTR {
			continue
		}
		return false
	}
}

// processBuffer parses as many complete RESP-2 command arrays as are
// present at the front of the input buffer, dispatches each, and
// queues its response. It stops at the first incomplete value, leaving
// the remaining bytes for the next read. A malformed command (wrong
// RESP shape or a non-array top-level value) closes the connection.
func (c *conn) processBuffer(dispatch func(verb string, args []string) []byte) bool {
	pos := 0
	for pos < len(c.inputBuffer) {
		v, n, err := resp.Parse(c.inputBuffer[pos:])
		if err == resp.ErrIncomplete {
			break
		}
		if err != nil {
			c.addResponse(encodeProtocolError(err.Error()))
			c.inputBuffer = c.inputBuffer[pos:]
			return false
		}
		if v.Kind != resp.Array || v.IsNull || len(v.Elems) == 0 {
			c.addResponse(encodeProtocolError("expected a non-empty command array"))
			c.inputBuffer = c.inputBuffer[pos:]
			return false
		}

		verb := strings.ToUpper(v.Elems[0].Str)
		args := make([]string, 0, len(v.Elems)-1)
		for _, e := range v.Elems[1:] {
			args = append(args, e.Str)
		}

		c.addResponse(dispatch(verb, args))
		pos += n
	}
	c.inputBuffer = c.inputBuffer[pos:]
	return true
}

// handleWrite sends as much of the front of the output queue as the
// socket will currently accept, trimming or popping entries as they
// drain. It returns false on a hard error or peer-closed write side;
// EAGAIN simply means try again once EPOLLOUT fires next.
func (c *conn) handleWrite() bool {
	for len(c.outputQueue) > 0 {
		head := c.outputQueue[0]
		n, err := unix.Write(c.fd, head)
		if n > 0 {
			c.touch()
			if n == len(head) {
				c.outputQueue = c.outputQueue[1:]
			} else {
				c.outputQueue[0] = head[n:]
				return true
			}
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return true
		}
		if err == unix.EINTR {
			continue
		}
		return false
	}
	return true
}

// idleFor reports how long it has been since the connection last sent
// or received a byte.
func (c *conn) idleFor(now time.Time) time.Duration {
	return now.Sub(c.lastActivity)
}

func (c *conn) close() {
	if c.state == connClosed {
		return
	}
	unix.Close(c.fd)
	c.state = connClosed
}
