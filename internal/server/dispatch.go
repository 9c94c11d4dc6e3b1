package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ripplekv/ripplekv/pkg/resp"
	"github.com/ripplekv/ripplekv/pkg/store"
)

// handlerFunc processes one parsed command's argument list (the verb
// itself is not included) and returns the RESP-2-encoded response bytes
// to enqueue on the connection's output queue.
type handlerFunc func(args []string) []byte

// dispatcher maps an uppercased command verb to the handler that serves
// it, closing over a single Store instance. It is built once per server
// and is safe for concurrent use only because, in practice, a single
// event loop goroutine is the only caller.
type dispatcher struct {
	handlers map[string]handlerFunc
	metrics  Metrics
}

// newDispatcher registers the SET/GET/DEL handlers against kv. A nil
// metrics is valid and disables per-command counters.
func newDispatcher(kv *store.Store, metrics Metrics) *dispatcher {
	d := &dispatcher{handlers: make(map[string]handlerFunc), metrics: metrics}

	d.handlers["SET"] = func(args []string) []byte {
		if len(args) < 2 {
			return resp.Encode(resp.NewError("ERR wrong number of arguments for 'set' command"))
		}

		ttl := store.NoTTL
		if len(args) >= 3 && args[2] == "EX" {
			if len(args) < 4 {
				return resp.Encode(resp.NewError("ERR invalid expire time in 'set' command"))
			}
			seconds, err := strconv.Atoi(args[3])
			if err != nil || seconds < 0 {
				return resp.Encode(resp.NewError("ERR invalid expire time in 'set' command"))
			}
			ttl = time.Duration(seconds) * time.Second
		}

		kv.Set(args[0], []byte(args[1]), ttl)
		return resp.Encode(resp.NewSimpleString("OK"))
	}

	d.handlers["GET"] = func(args []string) []byte {
		if len(args) != 1 {
			return resp.Encode(resp.NewError("ERR wrong number of arguments for 'get' command"))
		}
		value, ok := kv.Get(args[0])
		if !ok {
			return resp.Encode(resp.NewNullBulkString())
		}
		return resp.Encode(resp.NewBulkString(string(value)))
	}

	d.handlers["DEL"] = func(args []string) []byte {
		if len(args) != 1 {
			return resp.Encode(resp.NewError("ERR wrong number of arguments for 'del' command"))
		}
		if kv.Del(args[0]) {
			return resp.Encode(resp.NewInteger(1))
		}
		return resp.Encode(resp.NewInteger(0))
	}

	return d
}

// dispatch looks up verb's handler and runs it, recovering from panics
// so a bug in one handler cannot take the whole event loop down: the
// connection stays open and receives an internal-error reply instead.
func (d *dispatcher) dispatch(verb string, args []string) (reply []byte) {
	handler, ok := d.handlers[verb]
	if !ok {
		d.record(verb, "error")
		return encodeUnknownCommand(verb)
	}

	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			outcome = "error"
			reply = encodeInternalError(fmt.Sprintf("%v", r))
		}
		d.record(verb, outcome)
	}()
	return handler(args)
}

func (d *dispatcher) record(command, outcome string) {
	if d.metrics != nil {
		d.metrics.RecordCommand(command, outcome)
	}
}
