package store

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilegate/internal/profile/metrics"
	"profilegate/internal/profile/models"
	"profilegate/pkg/platform/sentinel"
)

// unreachableRedis points at a port nothing listens on.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCachedStore_DegradesWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemory()
	m := metrics.New(prometheus.NewRegistry())
	cached := NewCached(backend, unreachableRedis(t), time.Minute, WithCacheMetrics(m))

	id, err := cached.InsertProfile(ctx, newPersisted("Doe", 5000))
	require.NoError(t, err)

	p, err := cached.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Doe", p.LastName)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CacheLookups.WithLabelValues("error")))

	require.NoError(t, cached.UpdateProfile(ctx, id, newPersisted("Doe", 5010)))
	p, err = backend.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5010.0, p.Salary)

	_, err = cached.GetProfile(ctx, 99)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestDecodeCached(t *testing.T) {
	p, ok := decodeCached([]byte(`{"id":3,"last_name":"Doe","first_name":"John","date_of_birth":"1990-01-01","salary":5000}`))
	require.True(t, ok)
	assert.Equal(t, models.ProfileID(3), p.ID)
	assert.Equal(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), p.DateOfBirth)

	_, ok = decodeCached([]byte(`{"id":3,"date_of_birth":"01/01/1990"}`))
	assert.False(t, ok)
	_, ok = decodeCached([]byte(`not json`))
	assert.False(t, ok)
}
