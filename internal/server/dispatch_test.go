package server

import (
	"testing"

	"github.com/ripplekv/ripplekv/pkg/store"
)

func newTestDispatcher(t *testing.T) *dispatcher {
	t.Helper()
	kv := store.New(store.Options{ReaperInterval: -1})
	t.Cleanup(kv.Close)
	return newDispatcher(kv, nil)
}

func TestDispatchSetGetDel(t *testing.T) {
	d := newTestDispatcher(t)

	if got := string(d.dispatch("SET", []string{"k", "v"})); got != "+OK\r\n" {
		t.Fatalf("SET reply = %q, want +OK\\r\\n", got)
	}
	if got := string(d.dispatch("GET", []string{"k"})); got != "$1\r\nv\r\n" {
		t.Fatalf("GET reply = %q, want $1\\r\\nv\\r\\n", got)
	}
	if got := string(d.dispatch("DEL", []string{"k"})); got != ":1\r\n" {
		t.Fatalf("DEL reply = %q, want :1\\r\\n", got)
	}
	if got := string(d.dispatch("DEL", []string{"k"})); got != ":0\r\n" {
		t.Fatalf("second DEL reply = %q, want :0\\r\\n", got)
	}
	if got := string(d.dispatch("GET", []string{"k"})); got != "$-1\r\n" {
		t.Fatalf("GET after DEL reply = %q, want $-1\\r\\n", got)
	}
}

func TestDispatchBinarySafeValue(t *testing.T) {
	d := newTestDispatcher(t)

	d.dispatch("SET", []string{"k", "\x00\x01\x02"})
	if got := string(d.dispatch("GET", []string{"k"})); got != "$3\r\n\x00\x01\x02\r\n" {
		t.Fatalf("GET reply = %q, want a 3-byte bulk string with the raw bytes", got)
	}
}

func TestDispatchSetArityAndExpire(t *testing.T) {
	d := newTestDispatcher(t)

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no args", nil, "-ERR wrong number of arguments for 'set' command\r\n"},
		{"one arg", []string{"k"}, "-ERR wrong number of arguments for 'set' command\r\n"},
		{"EX without seconds", []string{"k", "v", "EX"}, "-ERR invalid expire time in 'set' command\r\n"},
		{"EX non-integer", []string{"k", "v", "EX", "soon"}, "-ERR invalid expire time in 'set' command\r\n"},
		{"EX negative", []string{"k", "v", "EX", "-1"}, "-ERR invalid expire time in 'set' command\r\n"},
		{"EX valid", []string{"k", "v", "EX", "10"}, "+OK\r\n"},
	}
	for _, tc := range cases {
		if got := string(d.dispatch("SET", tc.args)); got != tc.want {
			t.Errorf("%s: SET reply = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestDispatchWrongArityGetDel(t *testing.T) {
	d := newTestDispatcher(t)

	if got := string(d.dispatch("GET", nil)); got != "-ERR wrong number of arguments for 'get' command\r\n" {
		t.Errorf("GET with no args reply = %q", got)
	}
	if got := string(d.dispatch("DEL", []string{"a", "b"})); got != "-ERR wrong number of arguments for 'del' command\r\n" {
		t.Errorf("DEL with two args reply = %q", got)
	}
}

func TestDispatchUnknownVerb(t *testing.T) {
	d := newTestDispatcher(t)

	if got := string(d.dispatch("PING", nil)); got != "-ERR unknown command 'PING'\r\n" {
		t.Errorf("PING reply = %q", got)
	}
}
