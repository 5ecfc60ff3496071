// Package syncutil provides per-key locking over a bounded pool of shards.
package syncutil

import (
	"context"
	"hash/fnv"
)

const shardCount = 256

// KeyLock serializes work per key (a customer id, an intervention id).
// Distinct keys may share a shard; memory stays bounded however many keys
// are seen. Waiters can give up through their context.
type KeyLock struct {
	shards [shardCount]chan struct{}
}

// NewKeyLock creates a KeyLock with every shard unlocked.
func NewKeyLock() *KeyLock {
	k := &KeyLock{}
	for i := range k.shards {
		k.shards[i] = make(chan struct{}, 1)
	}
	return k
}

// Lock blocks until key is held and returns the release function.
func (k *KeyLock) Lock(key string) func() {
	ch := k.shard(key)
	ch <- struct{}{}
	return func() { <-ch }
}

// LockContext is Lock that returns ctx.Err() if ctx ends first.
func (k *KeyLock) LockContext(ctx context.Context, key string) (func(), error) {
	ch := k.shard(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryLock acquires key only if it is free.
func (k *KeyLock) TryLock(key string) (func(), bool) {
	ch := k.shard(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return nil, false
	}
}

func (k *KeyLock) shard(key string) chan struct{} {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return k.shards[h.Sum32()%shardCount]
}
