// Command-line entry points aside, this file documents ripplekv as a
// whole: an in-memory key-value store with TTL expiration and
// byte-budget LRU eviction, exposed over the RESP-2 wire protocol.
//
// # Architecture Overview
//
// ripplekv consists of several layers, each its own package:
//
//   - pkg/hashtable: chained hash table for O(1) average key lookup
//   - pkg/lru: recency index driving eviction order
//   - pkg/store: the keyspace (hash table + LRU + byte budget + TTL reaper under one mutex)
//   - pkg/resp: RESP-2 encoding and incremental parsing
//   - internal/server: single-threaded epoll event loop, connection state machine, command dispatch
//   - internal/telemetry: Prometheus metrics
//   - pkg/client: RESP-2 client SDK
//   - pkg/config: validated runtime configuration
//
// # Quick Start
//
// Server:
//
//	./ripplekv-server -p 9001 -c 1024
//
// Client SDK:
//
//	import "github.com/ripplekv/ripplekv/pkg/client"
//	import "github.com/ripplekv/ripplekv/pkg/config"
//
//	cl, _ := client.New(config.ClientConfig{Address: "localhost:9001"})
//	defer cl.Close()
//
//	cl.Set("user:123", []byte("john_doe"), time.Hour)
//	value, ok, err := cl.Get("user:123")
//
// # Supported Commands
//
//   - SET key value [EX seconds]
//   - GET key
//   - DEL key
//
// # Eviction and Expiration
//
// Every entry counts len(key)+len(value) toward a configurable byte
// budget. Once that budget is exceeded, the least-recently-used entry
// is evicted; LRU order updates on every Get and Set. Independently,
// entries set with a TTL expire: a background reaper sweeps expired
// keys periodically, and any read hides an expired entry even before
// the reaper gets to it.
//
// # Configuration
//
// Server configuration via flags or RIPPLEKV_*-prefixed environment
// variables:
//
//	./ripplekv-server -p 9001 -c 1024
//	# or
//	RIPPLEKV_PORT=9001 RIPPLEKV_MAX_CONNECTIONS=1024 ./ripplekv-server
//
// # Package Structure
//
//   - pkg/hashtable, pkg/lru, pkg/store, pkg/resp: the storage engine and wire protocol
//   - pkg/client: client SDK
//   - pkg/config: configuration types
//   - internal/server: network front end
//   - internal/telemetry: Prometheus metrics
//   - cmd/ripplekv-server: server executable
//   - cmd/ripplekv-cli: interactive RESP-2 client
//   - cmd/ripplekv-repl: in-process REPL over the store, no network
//   - cmd/ripplekv-benchgen, cmd/ripplekv-bench: workload generation and benchmarking
//
// For detailed documentation of individual packages, see their
// respective godoc pages.
package ripplekv
