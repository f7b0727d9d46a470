package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	Items []string `json:"items"`
	Total int64    `json:"total"`
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBackend(client), mr
}

func counting(calls *int, result page) func(context.Context) (page, error) {
	return func(context.Context) (page, error) {
		*calls++
		return result, nil
	}
}

func TestGetOrComputeCachesUntilInvalidated(t *testing.T) {
	backends := map[string]func(t *testing.T) Backend{
		"memory": func(*testing.T) Backend { return NewMemoryBackend() },
		"redis": func(t *testing.T) Backend {
			b, _ := newRedisBackend(t)
			return b
		},
	}
	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := New(mk(t), WithLogger(quietLogger()))
			calls := 0
			want := page{Items: []string{"a", "b"}, Total: 2}

			got, err := GetOrCompute(ctx, c, "k", time.Minute, counting(&calls, want))
			require.NoError(t, err)
			assert.Equal(t, want, got)

			got, err = GetOrCompute(ctx, c, "k", time.Minute, counting(&calls, page{}))
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, 1, calls)

			c.Invalidate(ctx)
			fresh := page{Items: []string{"c"}, Total: 1}
			got, err = GetOrCompute(ctx, c, "k", time.Minute, counting(&calls, fresh))
			require.NoError(t, err)
			assert.Equal(t, fresh, got)
			assert.Equal(t, 2, calls)
		})
	}
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryBackend(), WithLogger(quietLogger()))
	boom := errors.New("boom")

	_, err := GetOrCompute(ctx, c, "k", time.Minute, func(context.Context) (page, error) { return page{}, boom })
	require.ErrorIs(t, err, boom)

	calls := 0
	_, err = GetOrCompute(ctx, c, "k", time.Minute, counting(&calls, page{Total: 1}))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestGetOrComputeSurvivesBackendOutage(t *testing.T) {
	ctx := context.Background()
	backend, mr := newRedisBackend(t)
	c := New(backend, WithLogger(quietLogger()))
	mr.Close()

	calls := 0
	for i := 0; i < 2; i++ {
		got, err := GetOrCompute(ctx, c, "k", time.Minute, counting(&calls, page{Total: 3}))
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.Total)
	}
	assert.Equal(t, 2, calls)

	assert.NotPanics(t, func() { c.Invalidate(ctx) })
}

func TestNilCacheComputesDirectly(t *testing.T) {
	var c *ListCache
	calls := 0
	_, err := GetOrCompute(context.Background(), c, "k", 0, counting(&calls, page{}))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	c.Invalidate(context.Background())
}

func TestKeySeparatesScopes(t *testing.T) {
	q := struct {
		Status string `json:"status"`
		Page   int    `json:"page"`
	}{Status: "pending", Page: 1}

	a, err := Key("pin:110001", q)
	require.NoError(t, err)
	b, err := Key("pin:110002", q)
	require.NoError(t, err)
	again, err := Key("pin:110001", q)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, again)

	q.Page = 2
	other, err := Key("pin:110001", q)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestMemoryBackendExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemoryBackend()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Second))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Second)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestNewBackendFallsBackToMemory(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, ok := NewBackend(ctx, nil).(*MemoryBackend)
	assert.True(t, ok)

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 5 * time.Millisecond,
	})
	defer client.Close()
	_, ok = NewBackend(ctx, client).(*MemoryBackend)
	assert.True(t, ok)

	live, _ := newRedisBackend(t)
	_, ok = NewBackend(context.Background(), live.client).(*RedisBackend)
	assert.True(t, ok)
}
