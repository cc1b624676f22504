package shardcache

import (
	"math"
	"slices"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// EvictionPolicy selects which resident shard is evicted first.
type EvictionPolicy uint8

const (
	// LoadOrder evicts the shard that was loaded longest ago. Reading a
	// resident shard does not change its position. This is the default.
	LoadOrder EvictionPolicy = iota

	// AccessOrder evicts the shard that was read longest ago (true LRU).
	AccessOrder
)

// String returns the policy name as used in configuration files.
func (p EvictionPolicy) String() string {
	switch p {
	case LoadOrder:
		return "load-order"
	case AccessOrder:
		return "access-order"
	default:
		return "unknown"
	}
}

// residency tracks which shards have content in memory, ordered by the
// eviction policy. The list never evicts on its own; the cache decides
// when to call evictOldest.
type residency struct {
	policy EvictionPolicy
	order  *simplelru.LRU[int, struct{}]
}

func newResidency(policy EvictionPolicy, onEvict func(shard int)) *residency {
	// Size is never reached: eviction is driven by the cache's own limit,
	// which can change at runtime.
	order, err := simplelru.NewLRU[int, struct{}](math.MaxInt, func(shard int, _ struct{}) {
		onEvict(shard)
	})
	if err != nil {
		panic("shardcache: residency list: " + err.Error())
	}

	return &residency{policy: policy, order: order}
}

// hit reports whether shard is resident and, under [AccessOrder], marks it
// as most recently used.
func (r *residency) hit(shard int) bool {
	if r.policy == AccessOrder {
		_, ok := r.order.Get(shard)

		return ok
	}

	return r.order.Contains(shard)
}

func (r *residency) contains(shard int) bool {
	return r.order.Contains(shard)
}

func (r *residency) push(shard int) {
	r.order.Add(shard, struct{}{})
}

// evictOldest removes the back of the order and reports whether anything
// was removed. The eviction callback runs before it returns.
func (r *residency) evictOldest() bool {
	_, _, ok := r.order.RemoveOldest()

	return ok
}

func (r *residency) len() int {
	return r.order.Len()
}

// newestFirst returns resident shards, most recent first.
func (r *residency) newestFirst() []int {
	keys := r.order.Keys()
	slices.Reverse(keys)

	return keys
}
