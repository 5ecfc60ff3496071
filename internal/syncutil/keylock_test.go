package syncutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLock_MutualExclusion(t *testing.T) {
	k := NewKeyLock()

	counter := 0
	var wg sync.WaitGroup
	const n = 100
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			unlock := k.Lock("CUST0001")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, n, counter)
}

func TestKeyLock_LockContextCancelled(t *testing.T) {
	k := NewKeyLock()

	unlock := k.Lock("INT0001")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := k.LockContext(ctx, "INT0001")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeyLock_ReleaseLetsWaiterIn(t *testing.T) {
	k := NewKeyLock()

	unlock := k.Lock("INT0002")
	acquired := make(chan struct{})
	go func() {
		release, err := k.LockContext(context.Background(), "INT0002")
		if err == nil {
			release()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released key")
	}
}

func TestKeyLock_TryLock(t *testing.T) {
	k := NewKeyLock()

	unlock, ok := k.TryLock("cmp_1")
	require.True(t, ok)

	_, ok = k.TryLock("cmp_1")
	assert.False(t, ok)

	unlock()
	again, ok := k.TryLock("cmp_1")
	require.True(t, ok)
	again()
}
