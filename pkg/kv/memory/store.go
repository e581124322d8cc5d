package memory

import (
	"context"
	"sync"
	"time"

	"github.com/socialpulse/socialpulse-backend/pkg/kv"
)

// Store is an in-memory implementation of the kv.Store interface with full
// TTL support. A background janitor evicts expired keys; reads also treat
// expired keys as missing so correctness never depends on janitor timing.
type Store struct {
	mu          sync.RWMutex
	strings     map[string][]byte
	hashes      map[string]map[string][]byte
	lists       map[string][][]byte
	expirations map[string]time.Time

	janitorStop chan struct{}
	janitorDone chan struct{}
	closeOnce   sync.Once
}

// New creates an in-memory store. A positive janitorInterval starts a
// background goroutine that physically removes expired keys.
func New(janitorInterval time.Duration) *Store {
	s := &Store{
		strings:     make(map[string][]byte),
		hashes:      make(map[string]map[string][]byte),
		lists:       make(map[string][][]byte),
		expirations: make(map[string]time.Time),
		janitorStop: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}

	if janitorInterval > 0 {
		go s.janitor(janitorInterval)
	} else {
		close(s.janitorDone)
	}

	return s
}

func (s *Store) janitor(interval time.Duration) {
	defer close(s.janitorDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.janitorStop:
			return
		}
	}
}

func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, expiry := range s.expirations {
		if now.After(expiry) {
			s.removeKeyLocked(key)
		}
	}
}

// isExpired reports whether key has a TTL in the past. Caller holds a lock.
func (s *Store) isExpired(key string) bool {
	expiry, ok := s.expirations[key]
	return ok && time.Now().After(expiry)
}

// removeKeyLocked removes key from every structure. Caller holds the write lock.
func (s *Store) removeKeyLocked(key string) {
	delete(s.strings, key)
	delete(s.hashes, key)
	delete(s.lists, key)
	delete(s.expirations, key)
}

// liveKeyLocked reports whether key exists and is not expired, lazily
// removing it when expired. Caller holds the write lock.
func (s *Store) liveKeyLocked(key string) bool {
	if s.isExpired(key) {
		s.removeKeyLocked(key)
		return false
	}
	_, inStrings := s.strings[key]
	_, inHashes := s.hashes[key]
	_, inLists := s.lists[key]
	return inStrings || inHashes || inLists
}

// String operations

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeKeyLocked(key)
	s.strings[key] = value
	if len(ttl) > 0 && ttl[0] > 0 {
		s.expirations[key] = time.Now().Add(ttl[0])
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveKeyLocked(key) {
		return nil, kv.ErrNotFound
	}
	value, ok := s.strings[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return value, nil
}

func (s *Store) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([][]byte, len(keys))
	for i, key := range keys {
		if !s.liveKeyLocked(key) {
			continue
		}
		if value, ok := s.strings[key]; ok {
			results[i] = value
		}
	}
	return results, nil
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, key := range keys {
		if s.liveKeyLocked(key) {
			deleted++
		}
		s.removeKeyLocked(key)
	}
	return deleted, nil
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, key := range keys {
		if s.liveKeyLocked(key) {
			count++
		}
	}
	return count, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveKeyLocked(key) {
		return false, nil
	}
	if ttl > 0 {
		s.expirations[key] = time.Now().Add(ttl)
	} else {
		delete(s.expirations, key)
	}
	return true, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveKeyLocked(key) {
		return -2 * time.Second, nil // mirrors the Redis convention for missing keys
	}
	expiry, ok := s.expirations[key]
	if !ok {
		return -1 * time.Second, nil // no TTL set
	}
	return time.Until(expiry), nil
}

// Hash operations

func (s *Store) HSet(ctx context.Context, key string, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isExpired(key) {
		s.removeKeyLocked(key)
	}
	hash, ok := s.hashes[key]
	if !ok {
		hash = make(map[string][]byte)
		s.hashes[key] = hash
	}
	hash[field] = value
	return nil
}

func (s *Store) HGet(ctx context.Context, key string, field string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveKeyLocked(key) {
		return nil, kv.ErrNotFound
	}
	hash, ok := s.hashes[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	value, ok := hash[field]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return value, nil
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveKeyLocked(key) {
		return 0, nil
	}
	hash, ok := s.hashes[key]
	if !ok {
		return 0, nil
	}
	var deleted int64
	for _, field := range fields {
		if _, exists := hash[field]; exists {
			delete(hash, field)
			deleted++
		}
	}
	if len(hash) == 0 {
		s.removeKeyLocked(key)
	}
	return deleted, nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string][]byte)
	if !s.liveKeyLocked(key) {
		return result, nil
	}
	for field, value := range s.hashes[key] {
		result[field] = value
	}
	return result, nil
}

// List operations

func (s *Store) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isExpired(key) {
		s.removeKeyLocked(key)
	}
	list := s.lists[key]
	// LPUSH prepends values one at a time, so the last argument ends up first.
	for _, value := range values {
		list = append([][]byte{value}, list...)
	}
	s.lists[key] = list
	return int64(len(list)), nil
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveKeyLocked(key) {
		return [][]byte{}, nil
	}
	list := s.lists[key]
	n := int64(len(list))

	start, stop = normalizeRange(start, stop, n)
	if start > stop || start >= n {
		return [][]byte{}, nil
	}

	result := make([][]byte, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		result = append(result, list[i])
	}
	return result, nil
}

func (s *Store) LRem(ctx context.Context, key string, count int64, value []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveKeyLocked(key) {
		return 0, nil
	}
	list := s.lists[key]

	var removed int64
	kept := make([][]byte, 0, len(list))
	if count >= 0 {
		// count == 0 removes all occurrences, count > 0 removes from the head.
		for _, item := range list {
			if string(item) == string(value) && (count == 0 || removed < count) {
				removed++
				continue
			}
			kept = append(kept, item)
		}
	} else {
		limit := -count
		for i := len(list) - 1; i >= 0; i-- {
			item := list[i]
			if string(item) == string(value) && removed < limit {
				removed++
				continue
			}
			kept = append([][]byte{item}, kept...)
		}
	}

	if len(kept) == 0 {
		s.removeKeyLocked(key)
	} else {
		s.lists[key] = kept
	}
	return removed, nil
}

func (s *Store) LTrim(ctx context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveKeyLocked(key) {
		return nil
	}
	list := s.lists[key]
	n := int64(len(list))

	start, stop = normalizeRange(start, stop, n)
	if start > stop || start >= n {
		s.removeKeyLocked(key)
		return nil
	}
	s.lists[key] = list[start : stop+1]
	return nil
}

func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveKeyLocked(key) {
		return 0, nil
	}
	return int64(len(s.lists[key])), nil
}

// Health check

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close stops the janitor and clears all data.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.janitorStop)
	})
	<-s.janitorDone

	s.mu.Lock()
	defer s.mu.Unlock()
	s.strings = make(map[string][]byte)
	s.hashes = make(map[string]map[string][]byte)
	s.lists = make(map[string][][]byte)
	s.expirations = make(map[string]time.Time)
	return nil
}

// normalizeRange resolves negative indexes and clamps to list bounds,
// following the Redis LRANGE contract.
func normalizeRange(start, stop, n int64) (int64, int64) {
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop
}
