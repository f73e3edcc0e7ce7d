package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"profilegate/internal/profile/metrics"
	"profilegate/internal/profile/models"
)

const profileKeyPrefix = "profile:"

// Backend is the store a CachedStore reads through to.
type Backend interface {
	InsertProfile(ctx context.Context, p models.PersistedProfile) (models.ProfileID, error)
	GetProfile(ctx context.Context, id models.ProfileID) (*models.StoredProfile, error)
	UpdateProfile(ctx context.Context, id models.ProfileID, p models.PersistedProfile) error
	Ping(ctx context.Context) error
}

// CachedStore is a Redis read-through cache in front of a Backend. Cache
// failures never fail a request; the backend stays authoritative.
//
// Every update bumps a per-profile generation key before dropping the cached
// copy. A miss only fills the cache if the generation it observed before
// reading the backend is still current, so a read racing an update never
// leaves the pre-update row behind.
type CachedStore struct {
	backend Backend
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type CacheOption func(*CachedStore)

func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *CachedStore) {
		c.metrics = m
	}
}

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CachedStore) {
		c.logger = logger
	}
}

func NewCached(backend Backend, client *redis.Client, ttl time.Duration, opts ...CacheOption) *CachedStore {
	c := &CachedStore{
		backend: backend,
		client:  client,
		ttl:     ttl,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// cachedProfile is the JSON form kept in Redis.
type cachedProfile struct {
	ID          int64     `json:"id"`
	LastName    string    `json:"last_name"`
	FirstName   string    `json:"first_name"`
	DateOfBirth string    `json:"date_of_birth"`
	Salary      float64   `json:"salary"`
	CreatedAt   time.Time `json:"created_at"`
}

var errStaleFill = errors.New("profile changed during cache fill")

func profileKey(id models.ProfileID) string {
	return profileKeyPrefix + id.String()
}

func generationKey(id models.ProfileID) string {
	return profileKeyPrefix + id.String() + ":gen"
}

func (c *CachedStore) InsertProfile(ctx context.Context, p models.PersistedProfile) (models.ProfileID, error) {
	return c.backend.InsertProfile(ctx, p)
}

func (c *CachedStore) GetProfile(ctx context.Context, id models.ProfileID) (*models.StoredProfile, error) {
	raw, err := c.client.Get(ctx, profileKey(id)).Bytes()
	switch {
	case err == nil:
		if p, ok := decodeCached(raw); ok {
			c.metrics.IncrementCacheLookup("hit")
			return p, nil
		}
		c.metrics.IncrementCacheLookup("error")
	case errors.Is(err, redis.Nil):
		c.metrics.IncrementCacheLookup("miss")
	default:
		c.metrics.IncrementCacheLookup("error")
		c.logger.WarnContext(ctx, "profile cache read failed", "profile_id", id.String(), "error", err)
	}

	gen, genErr := c.client.Get(ctx, generationKey(id)).Int64()
	if errors.Is(genErr, redis.Nil) {
		gen, genErr = 0, nil
	}

	p, err := c.backend.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		c.store(ctx, p, gen)
	}
	return p, nil
}

// UpdateProfile writes through, then bumps the generation and drops the
// cached copy in one transaction.
func (c *CachedStore) UpdateProfile(ctx context.Context, id models.ProfileID, p models.PersistedProfile) error {
	if err := c.backend.UpdateProfile(ctx, id, p); err != nil {
		return err
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(id))
		pipe.Del(ctx, profileKey(id))
		return nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "profile cache invalidation failed", "profile_id", id.String(), "error", err)
	}
	return nil
}

func (c *CachedStore) Ping(ctx context.Context) error {
	return c.backend.Ping(ctx)
}

// store caches p unless the profile's generation moved past gen.
func (c *CachedStore) store(ctx context.Context, p *models.StoredProfile, gen int64) {
	b, err := json.Marshal(cachedProfile{
		ID:          int64(p.ID),
		LastName:    p.LastName,
		FirstName:   p.FirstName,
		DateOfBirth: p.DateOfBirth.Format(models.DateLayout),
		Salary:      p.Salary,
		CreatedAt:   p.CreatedAt,
	})
	if err != nil {
		return
	}
	genKey := generationKey(p.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, profileKey(p.ID), b, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.logger.DebugContext(ctx, "profile cache fill skipped", "profile_id", p.ID.String())
	default:
		c.logger.WarnContext(ctx, "profile cache write failed", "profile_id", p.ID.String(), "error", err)
	}
}

func decodeCached(raw []byte) (*models.StoredProfile, bool) {
	var cp cachedProfile
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, false
	}
	dob, err := time.Parse(models.DateLayout, cp.DateOfBirth)
	if err != nil {
		return nil, false
	}
	return &models.StoredProfile{
		ID:          models.ProfileID(cp.ID),
		LastName:    cp.LastName,
		FirstName:   cp.FirstName,
		DateOfBirth: dob,
		Salary:      cp.Salary,
		CreatedAt:   cp.CreatedAt,
	}, true
}
