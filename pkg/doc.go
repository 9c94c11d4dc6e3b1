// Package ripplekv groups the public, importable building blocks of
// the ripplekv key-value store: the storage engine and the RESP-2
// wire protocol codec, plus the client SDK and configuration types
// built on top of them. The network front end and telemetry wiring
// live under internal/ since they're assembly, not library surface.
//
// # Storage Engine
//
// pkg/hashtable is a generic chained hash table (hash/fnv, load-factor
// driven resize). pkg/lru layers a recency index on top using
// container/list for O(1) touch/evict. pkg/store combines both with a
// byte budget and TTL expiration under a single mutex; see
// pkg/store's own doc comment for the eviction and expiration rules.
//
// # Wire Protocol
//
// pkg/resp implements RESP-2: encoding for all five reply types and
// an incremental parser that returns ErrIncomplete when a value isn't
// fully buffered yet, so callers can feed it partial reads directly
// off a socket.
//
// # Client SDK
//
//	import "github.com/ripplekv/ripplekv/pkg/client"
//	import "github.com/ripplekv/ripplekv/pkg/config"
//
//	cl, err := client.New(config.ClientConfig{Address: "localhost:9001"})
//	defer cl.Close()
//
//	err = cl.Set("user:123", []byte("john_doe"), time.Hour)
//	value, ok, err := cl.Get("user:123")
//	deleted, err := cl.Del("user:123")
//
// The client dials a single ripplekv-server over RESP-2 and pools
// connections; it does not shard across multiple nodes.
//
// # Configuration
//
// pkg/config holds plain ServerConfig/ClientConfig structs with
// Validate() methods and DefaultXxx constants. It has no opinion on
// how values get populated; the cmd/ripplekv-* binaries fill them in
// from flags and RIPPLEKV_*-prefixed environment variables.
package ripplekv
