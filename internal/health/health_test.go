package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthy(context.Context) error { return nil }

func TestRegistry_Empty(t *testing.T) {
	ok, statuses := NewRegistry(0).CheckAll(context.Background())
	assert.True(t, ok)
	assert.Empty(t, statuses)
}

func TestRegistry_OrderAndAggregate(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register("postgres", healthy)
	r.Register("roster", func(context.Context) error { return errors.New("roster is empty") })

	ok, statuses := r.CheckAll(context.Background())
	assert.False(t, ok)
	require.Len(t, statuses, 2)
	assert.Equal(t, "postgres", statuses[0].Name)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, "roster", statuses[1].Name)
	assert.False(t, statuses[1].Healthy)
	assert.Equal(t, "roster is empty", statuses[1].Detail)
	assert.NotEmpty(t, statuses[1].Latency)
}

func TestRegistry_OptionalFailureKeepsHealthy(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register("postgres", healthy)
	r.RegisterOptional("prediction_service", func(context.Context) error { return errors.New("connection refused") })

	ok, statuses := r.CheckAll(context.Background())
	assert.True(t, ok)
	assert.False(t, statuses[1].Healthy)
}

func TestRegistry_SlowCheckTimesOut(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ok, statuses := r.CheckAll(context.Background())
	assert.False(t, ok)
	assert.Contains(t, statuses[0].Detail, "deadline exceeded")
}

func TestRegistry_PanickingCheck(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register("broken", func(context.Context) error { panic("nil store") })

	ok, statuses := r.CheckAll(context.Background())
	assert.False(t, ok)
	assert.Contains(t, statuses[0].Detail, "nil store")
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestPing(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register("db", Ping(fakePinger{err: errors.New("no route to host")}))

	ok, statuses := r.CheckAll(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "no route to host", statuses[0].Detail)
}
