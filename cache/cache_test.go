package cache

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

func TestShardedGetSet(t *testing.T) {
	c := NewSharded[string, int](4, StringHasher)

	c.Set("jacobi@16x16", 1)
	v, ok := c.Get("jacobi@16x16")
	if !ok || v != 1 {
		t.Fatalf("Get = (%d, %v), want (1, true)", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", stats)
	}
}

func TestShardedDefaultCapacity(t *testing.T) {
	c := NewSharded[uint64, int](0, Uint64Hasher)
	if c.Capacity() != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", c.Capacity(), DefaultCapacity)
	}
}

func TestShardedGetOrCreate(t *testing.T) {
	c := NewSharded[string, int](4, StringHasher)
	calls := 0
	create := func() (int, error) {
		calls++
		return 7, nil
	}

	for range 3 {
		v, err := c.GetOrCreate("k", create)
		if err != nil || v != 7 {
			t.Fatalf("GetOrCreate = (%d, %v)", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
}

func TestShardedGetOrCreateError(t *testing.T) {
	c := NewSharded[string, int](4, StringHasher)
	errBoom := errors.New("boom")

	if _, err := c.GetOrCreate("k", func() (int, error) { return 0, errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want %v", err, errBoom)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after failed create, want 0", c.Len())
	}
}

func TestShardedEviction(t *testing.T) {
	var evicted []uint64
	// Identity hash with a multiple of ShardCount lands every key in shard 0.
	c := NewSharded(2, Uint64Hasher, WithEvict(func(k uint64, _ string) {
		evicted = append(evicted, k)
	}))

	c.Set(0, "a")
	c.Set(ShardCount, "b")
	c.Get(0) // 0 becomes most recent
	c.Set(2*ShardCount, "c")

	if len(evicted) != 1 || evicted[0] != ShardCount {
		t.Fatalf("evicted = %v, want [%d]", evicted, ShardCount)
	}
	if _, ok := c.Get(0); !ok {
		t.Error("recently used key was evicted")
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestShardedSetReplaceNotifies(t *testing.T) {
	var got []string
	c := NewSharded(4, StringHasher, WithEvict(func(_ string, v string) {
		got = append(got, v)
	}))
	c.Set("k", "old")
	c.Set("k", "new")
	if len(got) != 1 || got[0] != "old" {
		t.Errorf("evicted = %v, want [old]", got)
	}
}

func TestShardedDeleteClear(t *testing.T) {
	var released atomic.Int32
	c := NewSharded(8, StringHasher, WithEvict(func(string, int) { released.Add(1) }))
	for i := range 10 {
		c.Set(strconv.Itoa(i), i)
	}

	if !c.Delete("3") {
		t.Error("Delete of present key returned false")
	}
	if c.Delete("3") {
		t.Error("second Delete returned true")
	}
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", c.Len())
	}
	if released.Load() != 10 {
		t.Errorf("evict callback ran %d times, want 10", released.Load())
	}
}

func TestShardedRange(t *testing.T) {
	c := NewSharded[string, int](8, StringHasher)
	for i := range 5 {
		c.Set(strconv.Itoa(i), i)
	}
	sum := 0
	c.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	if sum != 10 {
		t.Errorf("sum = %d, want 10", sum)
	}

	visited := 0
	c.Range(func(string, int) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Errorf("Range visited %d entries after stop, want 1", visited)
	}
}

func TestShardedConcurrent(t *testing.T) {
	c := NewSharded[string, int](16, StringHasher)
	var creates atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				key := strconv.Itoa(j % 8)
				_, _ = c.GetOrCreate(key, func() (int, error) {
					creates.Add(1)
					return j, nil
				})
			}
		}()
	}
	wg.Wait()
	if creates.Load() != 8 {
		t.Errorf("create ran %d times, want 8", creates.Load())
	}
}

func BenchmarkShardedGetHit(b *testing.B) {
	c := NewSharded[string, int](64, StringHasher)
	c.Set("residual@16x16", 1)
	b.ReportAllocs()
	for b.Loop() {
		c.Get("residual@16x16")
	}
}
