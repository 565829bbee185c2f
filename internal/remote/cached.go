package remote

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
	"go.uber.org/zap"
)

// currentCacheVersion defines the version of the cached signal encoding
const currentCacheVersion = 1

// CachedRepository serves remote signals from a CacheStore while they are fresh.
type CachedRepository struct {
	contract.RemoteRepository
	store contract.CacheStore
	ttl   time.Duration
	log   *zap.Logger
}

var _ contract.RemoteRepository = &CachedRepository{} // Compile-time check

// WithCache wraps repo so signal values are read through store. A nil store returns repo unchanged.
func WithCache(repo contract.RemoteRepository, store contract.CacheStore, ttl time.Duration, logger *zap.Logger) contract.RemoteRepository {
	if store == nil {
		return repo
	}
	return &CachedRepository{
		RemoteRepository: repo,
		store:            store,
		ttl:              ttl,
		log:              contract.WithComponent(logger, "remote-cache"),
	}
}

// CacheKey creates the store key for one signal of one repository.
func CacheKey(repoURL string, signal schema.SignalName) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(repoURL+":"+string(signal))))
}

// checkCacheHit attempts to retrieve and validate a cached value
func checkCacheHit[T any](store contract.CacheStore, key string, ttl time.Duration) (T, bool) {
	var zero T
	data, version, ts, err := store.Get(key)
	if err != nil {
		return zero, false // Cache miss
	}
	if version != currentCacheVersion || time.Since(time.Unix(ts, 0)) > ttl {
		return zero, false // Stale or version mismatch
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false
	}
	return v, true
}

func cached[T any](ctx context.Context, c *CachedRepository, signal schema.SignalName, fetch func(context.Context) (T, error)) (T, error) {
	key := CacheKey(c.URL(), signal)
	if v, ok := checkCacheHit[T](c.store, key, c.ttl); ok {
		c.log.Debug("cache hit", zap.String("repo", c.Name()), zap.String("signal", string(signal)))
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	if data, err := json.Marshal(v); err == nil {
		if err := c.store.Set(key, data, currentCacheVersion, time.Now().Unix()); err != nil {
			contract.LogWarn("Failed to cache remote signal", err)
		}
	}
	return v, nil
}

func (c *CachedRepository) CreatedSince(ctx context.Context) (int, error) {
	return cached(ctx, c, schema.CreatedSince, c.RemoteRepository.CreatedSince)
}

func (c *CachedRepository) UpdatedSince(ctx context.Context) (int, error) {
	return cached(ctx, c, schema.UpdatedSince, c.RemoteRepository.UpdatedSince)
}

func (c *CachedRepository) ContributorCount(ctx context.Context) (int, error) {
	return cached(ctx, c, schema.ContributorCount, c.RemoteRepository.ContributorCount)
}

func (c *CachedRepository) OrgCount(ctx context.Context) (int, error) {
	return cached(ctx, c, schema.OrgCount, c.RemoteRepository.OrgCount)
}

func (c *CachedRepository) CommitFrequency(ctx context.Context) (float64, error) {
	return cached(ctx, c, schema.CommitFrequency, c.RemoteRepository.CommitFrequency)
}

func (c *CachedRepository) RecentReleasesCount(ctx context.Context) (int, error) {
	return cached(ctx, c, schema.RecentReleasesCount, c.RemoteRepository.RecentReleasesCount)
}

func (c *CachedRepository) UpdatedIssuesCount(ctx context.Context) (int, error) {
	return cached(ctx, c, schema.UpdatedIssuesCount, c.RemoteRepository.UpdatedIssuesCount)
}

func (c *CachedRepository) ClosedIssuesCount(ctx context.Context) (int, error) {
	return cached(ctx, c, schema.ClosedIssuesCount, c.RemoteRepository.ClosedIssuesCount)
}

func (c *CachedRepository) CommentFrequency(ctx context.Context) (float64, error) {
	return cached(ctx, c, schema.CommentFrequency, c.RemoteRepository.CommentFrequency)
}

func (c *CachedRepository) DependentsCount(ctx context.Context) (int, error) {
	return cached(ctx, c, schema.DependentsCount, c.RemoteRepository.DependentsCount)
}
