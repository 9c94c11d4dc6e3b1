// Package client provides a client SDK for a single ripplekv server. It
// speaks RESP-2 over a pooled set of TCP connections, exposing the
// three commands the server understands: SET, GET, and DEL.
//
// Basic usage:
//
//	cl, err := client.New(config.ClientConfig{Address: "localhost:9001"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer cl.Close()
//
//	if err := cl.Set("user:123", []byte("john_doe"), 0); err != nil {
//		log.Fatal(err)
//	}
//	value, ok, err := cl.Get("user:123")
//
// There is exactly one server to talk to (ripplekv does not cluster),
// so, unlike a multi-node client, there is no node selection or
// consistent hashing here: just a pool of connections to one address.
package client

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ripplekv/ripplekv/pkg/config"
	"github.com/ripplekv/ripplekv/pkg/resp"
)

// ErrPoolExhausted is returned when the pool is at its connection cap,
// every pooled connection is in use, and none is released within the
// connection timeout.
var ErrPoolExhausted = errors.New("client: connection pool exhausted")

// Client is a thread-safe RESP-2 client for one ripplekv server.
type Client struct {
	cfg  config.ClientConfig
	pool *connectionPool
}

// New creates a connection pool against cfg.Address. It does not
// eagerly connect; connections are created on demand and reused.
func New(cfg config.ClientConfig) (*Client, error) {
	if cfg.ConnTimeoutSecs <= 0 {
		cfg.ConnTimeoutSecs = config.DefaultConnTimeoutSec
	}
	if cfg.Address == "" {
		cfg.Address = config.DefaultServerAddress
	}
	return &Client{
		cfg:  cfg,
		pool: newConnectionPool(cfg.Address, time.Duration(cfg.ConnTimeoutSecs)*time.Second, 16),
	}, nil
}

// Close releases all pooled connections.
func (c *Client) Close() error {
	return c.pool.closeAll()
}

// Set stores value under key. A ttl of zero means no expiration.
func (c *Client) Set(key string, value []byte, ttl time.Duration) error {
	var args []string
	if ttl > 0 {
		args = []string{key, string(value), "EX", fmt.Sprintf("%d", int64(ttl.Seconds()))}
	} else {
		args = []string{key, string(value)}
	}

	reply, err := c.roundTrip(resp.EncodeCommand("SET", args...))
	if err != nil {
		return err
	}
	if reply.Kind == resp.Error {
		return fmt.Errorf("ripplekv: %s", reply.Str)
	}
	return nil
}

// Get retrieves the value stored for key. ok is false if the key is
// absent or has expired.
func (c *Client) Get(key string) (value []byte, ok bool, err error) {
	reply, err := c.roundTrip(resp.EncodeCommand("GET", key))
	if err != nil {
		return nil, false, err
	}
	if reply.Kind == resp.Error {
		return nil, false, fmt.Errorf("ripplekv: %s", reply.Str)
	}
	if reply.IsNull {
		return nil, false, nil
	}
	return []byte(reply.Str), true, nil
}

// Del removes key. It returns whether the key was present.
func (c *Client) Del(key string) (bool, error) {
	reply, err := c.roundTrip(resp.EncodeCommand("DEL", key))
	if err != nil {
		return false, err
	}
	if reply.Kind == resp.Error {
		return false, fmt.Errorf("ripplekv: %s", reply.Str)
	}
	return reply.Int == 1, nil
}

// roundTrip borrows a connection from the pool, sends an already
// RESP-2-encoded request, reads one reply, and returns the connection
// to the pool (or discards it on error). On a connection-level failure
// it tries again with another pooled or newly dialed connection, making
// RetryAttempts attempts in all (at least one).
func (c *Client) roundTrip(request []byte) (resp.Value, error) {
	attempts := c.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := c.pool.acquire()
		if err != nil {
			lastErr = err
			continue
		}

		reply, err := sendAndReceive(conn, request, c.pool.connTimeout)
		if err != nil {
			conn.Close()
			c.pool.mu.Lock()
			c.pool.created--
			c.pool.mu.Unlock()
			lastErr = err
			continue
		}

		c.pool.release(conn)
		return reply, nil
	}
	return resp.Value{}, fmt.Errorf("client: request failed after %d attempts: %w", attempts, lastErr)
}

func sendAndReceive(conn net.Conn, request []byte, timeout time.Duration) (resp.Value, error) {
	if timeout > 0 {
		conn.SetDeadline(time.Now().Add(timeout))
	}

	if _, err := conn.Write(request); err != nil {
		return resp.Value{}, fmt.Errorf("client: write: %w", err)
	}

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		v, _, err := resp.Parse(buf)
		if err == nil {
			return v, nil
		}
		if err != resp.ErrIncomplete {
			return resp.Value{}, fmt.Errorf("client: malformed reply: %w", err)
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			return resp.Value{}, fmt.Errorf("client: read: %w", err)
		}
	}
}

// connectionPool hands out connections to one server address, dialing
// new ones up to maxConns and reusing returned ones via a buffered
// channel.
type connectionPool struct {
	address     string
	connTimeout time.Duration
	maxConns    int

	mu      sync.Mutex
	created int
	idle    chan net.Conn
}

func newConnectionPool(address string, connTimeout time.Duration, maxConns int) *connectionPool {
	return &connectionPool{
		address:     address,
		connTimeout: connTimeout,
		maxConns:    maxConns,
		idle:        make(chan net.Conn, maxConns),
	}
}

func (p *connectionPool) acquire() (net.Conn, error) {
	select {
	case conn := <-p.idle:
		return conn, nil
	default:
	}

	p.mu.Lock()
	if p.created >= p.maxConns {
		p.mu.Unlock()
		select {
		case conn := <-p.idle:
			return conn, nil
		case <-time.After(p.connTimeout):
			return nil, ErrPoolExhausted
		}
	}
	p.created++
	p.mu.Unlock()

	conn, err := net.DialTimeout("tcp", p.address, p.connTimeout)
	if err != nil {
		p.mu.Lock()
		p.created--
		p.mu.Unlock()
		return nil, fmt.Errorf("client: dial %s: %w", p.address, err)
	}
	return conn, nil
}

func (p *connectionPool) release(conn net.Conn) {
	select {
	case p.idle <- conn:
	default:
		conn.Close()
		p.mu.Lock()
		p.created--
		p.mu.Unlock()
	}
}

func (p *connectionPool) closeAll() error {
	close(p.idle)
	var firstErr error
	for conn := range p.idle {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
