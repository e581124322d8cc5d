// Package kvtest provides conformance tests for kv.Store implementations.
package kvtest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/socialpulse/socialpulse-backend/pkg/kv"
)

// StoreFactory creates a fresh Store instance for one test.
type StoreFactory func(t *testing.T) kv.Store

// RunConformanceTests runs the full suite against a Store implementation.
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	t.Run("StringOperations", func(t *testing.T) {
		runEach(t, factory, map[string]func(t *testing.T, store kv.Store){
			"SetGet":         testSetGet,
			"GetNonExistent": testGetNonExistent,
			"SetOverwrites":  testSetOverwrites,
			"MGet":           testMGet,
		})
	})
	t.Run("KeyOperations", func(t *testing.T) {
		runEach(t, factory, map[string]func(t *testing.T, store kv.Store){
			"Del":    testDel,
			"Exists": testExists,
		})
	})
	t.Run("TTLOperations", func(t *testing.T) {
		runEach(t, factory, map[string]func(t *testing.T, store kv.Store){
			"SetWithTTL":      testSetWithTTL,
			"ExpireAndTTL":    testExpireAndTTL,
			"ExpiredIsAbsent": testExpiredIsAbsent,
		})
	})
	t.Run("HashOperations", func(t *testing.T) {
		runEach(t, factory, map[string]func(t *testing.T, store kv.Store){
			"HSetHGet": testHSetHGet,
			"HDel":     testHDel,
			"HGetAll":  testHGetAll,
		})
	})
	t.Run("ListOperations", func(t *testing.T) {
		runEach(t, factory, map[string]func(t *testing.T, store kv.Store){
			"LPushOrder":    testLPushOrder,
			"LRangeNegativ": testLRangeNegative,
			"LTrim":         testLTrim,
			"LRem":          testLRem,
			"LLen":          testLLen,
		})
	})
	t.Run("HealthCheck", func(t *testing.T) {
		runEach(t, factory, map[string]func(t *testing.T, store kv.Store){
			"Ping": testPing,
		})
	})
}

func runEach(t *testing.T, factory StoreFactory, tests map[string]func(t *testing.T, store kv.Store)) {
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			test(t, store)
		})
	}
}

func testSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	value := []byte("hello world")

	if err := store.Set(ctx, "conf:string", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	result, err := store.Get(ctx, "conf:string")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !reflect.DeepEqual(result, value) {
		t.Fatalf("Expected %q, got %q", value, result)
	}
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	_, err := store.Get(context.Background(), "conf:missing")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func testSetOverwrites(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if err := store.Set(ctx, "conf:ow", []byte("first")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "conf:ow", []byte("second")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	result, err := store.Get(ctx, "conf:ow")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(result) != "second" {
		t.Fatalf("Expected overwrite, got %q", result)
	}
}

func testMGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if err := store.Set(ctx, "conf:m1", []byte("one")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "conf:m3", []byte("three")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	results, err := store.MGet(ctx, "conf:m1", "conf:m2", "conf:m3")
	if err != nil {
		t.Fatalf("MGet failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if string(results[0]) != "one" || results[1] != nil || string(results[2]) != "three" {
		t.Fatalf("Unexpected MGet results: %q", results)
	}
}

func testDel(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if err := store.Set(ctx, "conf:del", []byte("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	n, err := store.Del(ctx, "conf:del", "conf:del-missing")
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 deleted, got %d", n)
	}
	if _, err := store.Get(ctx, "conf:del"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after Del, got %v", err)
	}
}

func testExists(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if err := store.Set(ctx, "conf:exists", []byte("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	n, err := store.Exists(ctx, "conf:exists", "conf:absent")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 existing key, got %d", n)
	}
}

func testSetWithTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if err := store.Set(ctx, "conf:ttl", []byte("x"), 50*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := store.Get(ctx, "conf:ttl"); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	time.Sleep(80 * time.Millisecond)
	if _, err := store.Get(ctx, "conf:ttl"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after expiry, got %v", err)
	}
}

func testExpireAndTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if err := store.Set(ctx, "conf:expire", []byte("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ok, err := store.Expire(ctx, "conf:expire", time.Minute)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected Expire to report success")
	}

	ttl, err := store.TTL(ctx, "conf:expire")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("Expected TTL in (0, 1m], got %v", ttl)
	}

	ok, err = store.Expire(ctx, "conf:expire-missing", time.Minute)
	if err != nil {
		t.Fatalf("Expire on missing key failed: %v", err)
	}
	if ok {
		t.Fatal("Expected Expire on missing key to report false")
	}
}

func testExpiredIsAbsent(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if err := store.Set(ctx, "conf:gone", []byte("x"), 30*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	n, err := store.Exists(ctx, "conf:gone")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 0 {
		t.Fatal("Expected expired key to be absent from Exists")
	}
}

func testHSetHGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if err := store.HSet(ctx, "conf:hash", "field", []byte("value")); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
	result, err := store.HGet(ctx, "conf:hash", "field")
	if err != nil {
		t.Fatalf("HGet failed: %v", err)
	}
	if string(result) != "value" {
		t.Fatalf("Expected %q, got %q", "value", result)
	}
	if _, err := store.HGet(ctx, "conf:hash", "missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing field, got %v", err)
	}
}

func testHDel(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if err := store.HSet(ctx, "conf:hdel", "a", []byte("1")); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
	if err := store.HSet(ctx, "conf:hdel", "b", []byte("2")); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
	n, err := store.HDel(ctx, "conf:hdel", "a", "missing")
	if err != nil {
		t.Fatalf("HDel failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 field deleted, got %d", n)
	}
}

func testHGetAll(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if err := store.HSet(ctx, "conf:hall", "a", []byte("1")); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
	if err := store.HSet(ctx, "conf:hall", "b", []byte("2")); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
	all, err := store.HGetAll(ctx, "conf:hall")
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if len(all) != 2 || string(all["a"]) != "1" || string(all["b"]) != "2" {
		t.Fatalf("Unexpected HGetAll result: %v", all)
	}
}

func testLPushOrder(t *testing.T, store kv.Store) {
	ctx := context.Background()
	// LPUSH prepends, so the most recent push reads back first.
	for _, v := range []string{"oldest", "middle", "newest"} {
		if _, err := store.LPush(ctx, "conf:list", []byte(v)); err != nil {
			t.Fatalf("LPush failed: %v", err)
		}
	}
	items, err := store.LRange(ctx, "conf:list", 0, -1)
	if err != nil {
		t.Fatalf("LRange failed: %v", err)
	}
	want := []string{"newest", "middle", "oldest"}
	if len(items) != len(want) {
		t.Fatalf("Expected %d items, got %d", len(want), len(items))
	}
	for i, w := range want {
		if string(items[i]) != w {
			t.Fatalf("Position %d: expected %q, got %q", i, w, items[i])
		}
	}
}

func testLRangeNegative(t *testing.T, store kv.Store) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := store.LPush(ctx, "conf:neg", []byte{byte('a' + i)}); err != nil {
			t.Fatalf("LPush failed: %v", err)
		}
	}
	// Last two elements.
	items, err := store.LRange(ctx, "conf:neg", -2, -1)
	if err != nil {
		t.Fatalf("LRange failed: %v", err)
	}
	if len(items) != 2 || string(items[0]) != "b" || string(items[1]) != "a" {
		t.Fatalf("Unexpected negative-range result: %q", items)
	}
}

func testLTrim(t *testing.T, store kv.Store) {
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := store.LPush(ctx, "conf:trim", []byte{byte('0' + i)}); err != nil {
			t.Fatalf("LPush failed: %v", err)
		}
	}
	if err := store.LTrim(ctx, "conf:trim", 0, 2); err != nil {
		t.Fatalf("LTrim failed: %v", err)
	}
	n, err := store.LLen(ctx, "conf:trim")
	if err != nil {
		t.Fatalf("LLen failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("Expected 3 items after trim, got %d", n)
	}
}

func testLRem(t *testing.T, store kv.Store) {
	ctx := context.Background()
	for _, v := range []string{"x", "y", "x", "z"} {
		if _, err := store.LPush(ctx, "conf:rem", []byte(v)); err != nil {
			t.Fatalf("LPush failed: %v", err)
		}
	}
	n, err := store.LRem(ctx, "conf:rem", 0, []byte("x"))
	if err != nil {
		t.Fatalf("LRem failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 removed, got %d", n)
	}
	count, err := store.LLen(ctx, "conf:rem")
	if err != nil {
		t.Fatalf("LLen failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("Expected 2 remaining, got %d", count)
	}
}

func testLLen(t *testing.T, store kv.Store) {
	ctx := context.Background()
	n, err := store.LLen(ctx, "conf:llen-missing")
	if err != nil {
		t.Fatalf("LLen failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("Expected 0 for missing list, got %d", n)
	}
}

func testPing(t *testing.T, store kv.Store) {
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}
