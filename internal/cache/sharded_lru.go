package cache

import (
	"hash/fnv"
	"time"
)

const defaultShardCount = 16

// Cache is implemented by LRU and ShardedLRU.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	PutFor(key K, value V, lifetime time.Duration)
	Remove(key K)
	OnEvict(fn func(K))
	Len() int
	Stats() (hits, misses int64)
}

var (
	_ Cache[string, int] = (*LRU[string, int])(nil)
	_ Cache[string, int] = (*ShardedLRU[string, int])(nil)
)

// ShardedLRU spreads keys over several LRUs by FNV-32a of keyFn(key), so
// concurrent request handlers rarely contend on one mutex.
type ShardedLRU[K comparable, V any] struct {
	shards []*LRU[K, V]
	keyFn  func(K) string
}

func NewShardedLRU[K comparable, V any](totalCapacity int, ttl time.Duration, keyFn func(K) string) *ShardedLRU[K, V] {
	return NewShardedLRUWithCount[K, V](totalCapacity, ttl, keyFn, defaultShardCount)
}

func NewShardedLRUWithCount[K comparable, V any](totalCapacity int, ttl time.Duration, keyFn func(K) string, shardCount int) *ShardedLRU[K, V] {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	perShard := max(totalCapacity/shardCount, 1)
	shards := make([]*LRU[K, V], shardCount)
	for i := range shards {
		shards[i] = NewLRU[K, V](perShard, ttl)
	}
	return &ShardedLRU[K, V]{shards: shards, keyFn: keyFn}
}

// SetClock replaces the time source of every shard.
func (s *ShardedLRU[K, V]) SetClock(nowFn func() time.Time) {
	for _, sh := range s.shards {
		sh.SetClock(nowFn)
	}
}

func (s *ShardedLRU[K, V]) shard(key K) *LRU[K, V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s.keyFn(key)))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *ShardedLRU[K, V]) Get(key K) (V, bool) {
	return s.shard(key).Get(key)
}

func (s *ShardedLRU[K, V]) Put(key K, value V) {
	s.shard(key).Put(key, value)
}

func (s *ShardedLRU[K, V]) PutFor(key K, value V, lifetime time.Duration) {
	s.shard(key).PutFor(key, value, lifetime)
}

func (s *ShardedLRU[K, V]) OnEvict(fn func(K)) {
	for _, sh := range s.shards {
		sh.OnEvict(fn)
	}
}

func (s *ShardedLRU[K, V]) Remove(key K) {
	s.shard(key).Remove(key)
}

func (s *ShardedLRU[K, V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.Len()
	}
	return total
}

func (s *ShardedLRU[K, V]) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits += h
		misses += m
	}
	return hits, misses
}
