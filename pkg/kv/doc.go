// Package kv provides a Redis-like key-value abstraction with in-memory and
// Redis-backed implementations.
//
// The Store interface covers the operations the insight store and the
// dashboard cache need: string blobs with TTL, hashes, and lists. The
// in-memory implementation gives tests and development a full-fidelity
// backend including TTL expiry; the Redis adapter wraps go-redis/v9 for
// production. A FailoverStore pairs the two so the service keeps serving
// (with reduced durability) while Redis is down.
//
// Example:
//
//	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.Set(ctx, "key", []byte("value"), 10*time.Second)
//	value, err := store.Get(ctx, "key") // kv.ErrNotFound once expired
package kv
