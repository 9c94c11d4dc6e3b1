package server

import (
	"bufio"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/ripplekv/ripplekv/pkg/store"
)

// startTestServer boots a real Server on an ephemeral port and returns a
// dialer for it plus a cleanup func, so tests exercise the actual epoll
// event loop end to end over loopback TCP.
func startTestServer(t *testing.T) (dial func() net.Conn, stop func()) {
	t.Helper()

	kv := store.New(store.Options{ReaperInterval: -1})
	srv := New(kv, Options{Port: 0, MaxConnections: 8})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	port := srv.Addr()

	return func() net.Conn {
			conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), time.Second)
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			return conn
		}, func() {
			srv.Stop()
			kv.Close()
			if err := <-errCh; err != nil {
				t.Errorf("Run returned error: %v", err)
			}
		}
}

func readReply(t *testing.T, r *bufio.Reader, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	if _, err := readFull(r, buf); err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	return buf
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestEndToEndSetGetDel(t *testing.T) {
	dial, stop := startTestServer(t)
	defer stop()

	conn := dial()
	defer conn.Close()
	r := bufio.NewReader(conn)

	conn.Write([]byte("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"))
	if got := readReply(t, r, len("+OK\r\n")); string(got) != "+OK\r\n" {
		t.Fatalf("SET reply = %q, want +OK\\r\\n", got)
	}

	conn.Write([]byte("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"))
	if got := readReply(t, r, len("$1\r\nv\r\n")); string(got) != "$1\r\nv\r\n" {
		t.Fatalf("GET reply = %q, want $1\\r\\nv\\r\\n", got)
	}

	conn.Write([]byte("*2\r\n$3\r\nDEL\r\n$1\r\nk\r\n"))
	if got := readReply(t, r, len(":1\r\n")); string(got) != ":1\r\n" {
		t.Fatalf("DEL reply = %q, want :1\\r\\n", got)
	}

	conn.Write([]byte("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"))
	if got := readReply(t, r, len("$-1\r\n")); string(got) != "$-1\r\n" {
		t.Fatalf("GET after DEL reply = %q, want $-1\\r\\n", got)
	}
}

func TestEndToEndUnknownCommandKeepsConnectionOpen(t *testing.T) {
	dial, stop := startTestServer(t)
	defer stop()

	conn := dial()
	defer conn.Close()
	r := bufio.NewReader(conn)

	conn.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	want := "-ERR unknown command 'PING'\r\n"
	if got := readReply(t, r, len(want)); string(got) != want {
		t.Fatalf("PING reply = %q, want %q", got, want)
	}

	conn.Write([]byte("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"))
	if got := readReply(t, r, len("+OK\r\n")); string(got) != "+OK\r\n" {
		t.Fatalf("SET after unknown command = %q, want +OK\\r\\n; connection should stay open", got)
	}
}

func TestEndToEndPipelinedRequests(t *testing.T) {
	dial, stop := startTestServer(t)
	defer stop()

	conn := dial()
	defer conn.Close()
	r := bufio.NewReader(conn)

	conn.Write([]byte("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"))

	if got := readReply(t, r, len("+OK\r\n")); string(got) != "+OK\r\n" {
		t.Fatalf("first pipelined reply = %q, want +OK\\r\\n", got)
	}
	if got := readReply(t, r, len("$1\r\nv\r\n")); string(got) != "$1\r\nv\r\n" {
		t.Fatalf("second pipelined reply = %q, want $1\\r\\nv\\r\\n", got)
	}
}

func TestEndToEndMaxConnectionsRejectsNewcomer(t *testing.T) {
	kv := store.New(store.Options{ReaperInterval: -1})
	defer kv.Close()
	srv := New(kv, Options{Port: 0, MaxConnections: 1})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()
	defer func() {
		srv.Stop()
		if err := <-errCh; err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	}()

	port := srv.Addr()
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	first, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer first.Close()

	// give the event loop a moment to register the first connection
	// before the second one races it for the one available slot.
	time.Sleep(200 * time.Millisecond)

	second, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if n, err := second.Read(buf); n != 0 || err == nil {
		t.Errorf("expected the second connection to be closed immediately, got n=%d err=%v", n, err)
	}
}
