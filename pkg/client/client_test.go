package client

import (
	"net"
	"testing"
	"time"

	"github.com/ripplekv/ripplekv/pkg/config"
	"github.com/ripplekv/ripplekv/pkg/resp"
)

// fakeServer accepts connections and replies to every request with
// a fixed RESP-2 value, letting tests exercise the client's wire
// handling without a real store.Store behind it.
func fakeServer(t *testing.T, reply resp.Value) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 4096)
				for {
					n, err := conn.Read(buf)
					if n == 0 || err != nil {
						return
					}
					conn.Write(resp.Encode(reply))
				}
			}()
		}
	}()

	return ln.Addr().String()
}

func TestSetSuccess(t *testing.T) {
	addr := fakeServer(t, resp.NewSimpleString("OK"))
	cl, err := New(config.ClientConfig{Address: addr, ConnTimeoutSecs: 1, RetryAttempts: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cl.Close()

	if err := cl.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
}

func TestGetHit(t *testing.T) {
	addr := fakeServer(t, resp.NewBulkString("hello"))
	cl, err := New(config.ClientConfig{Address: addr, ConnTimeoutSecs: 1, RetryAttempts: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cl.Close()

	v, ok, err := cl.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(v) != "hello" {
		t.Fatalf("Get = %q, %v; want hello, true", v, ok)
	}
}

func TestGetMiss(t *testing.T) {
	addr := fakeServer(t, resp.NewNullBulkString())
	cl, err := New(config.ClientConfig{Address: addr, ConnTimeoutSecs: 1, RetryAttempts: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cl.Close()

	_, ok, err := cl.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected a miss for a null bulk string reply")
	}
}

func TestDelReturnsServerError(t *testing.T) {
	addr := fakeServer(t, resp.NewError("ERR boom"))
	cl, err := New(config.ClientConfig{Address: addr, ConnTimeoutSecs: 1, RetryAttempts: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cl.Close()

	if _, err := cl.Del("k"); err == nil {
		t.Fatal("expected an error from a RESP-2 error reply")
	}
}

func TestConnectionReuse(t *testing.T) {
	addr := fakeServer(t, resp.NewSimpleString("OK"))
	cl, err := New(config.ClientConfig{Address: addr, ConnTimeoutSecs: 1, RetryAttempts: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cl.Close()

	for i := 0; i < 5; i++ {
		if err := cl.Set("k", []byte("v"), 0); err != nil {
			t.Fatalf("Set #%d: %v", i, err)
		}
	}
	if cl.pool.created > 1 {
		t.Errorf("expected connections to be reused, created = %d", cl.pool.created)
	}
}

func TestDialFailureReturnsError(t *testing.T) {
	cl, err := New(config.ClientConfig{Address: "127.0.0.1:1", ConnTimeoutSecs: 1, RetryAttempts: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cl.Close()

	if err := cl.Set("k", []byte("v"), time.Second); err == nil {
		t.Fatal("expected a dial error against a closed port")
	}
}
