package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/cashpro/pkg/observability"
)

const (
	sessionKeyPrefix    = "cashpro:session"
	generationKeyPrefix = "cashpro:session-gen"
)

// CachedSessionStore is a read-through Redis cache in front of a
// SessionStore. The database stays authoritative: writes go to the inner
// store and invalidate the cached entry. Redis failures degrade to the
// inner store.
//
// Every invalidation bumps a per-token generation counter. A fill only
// lands if the generation it saw before reading the database is still
// current, so a read racing a logout or company switch cannot cache the
// old row.
type CachedSessionStore struct {
	inner   SessionStore
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewCachedSessionStore wraps inner with a Redis cache holding entries for at most ttl.
func NewCachedSessionStore(inner SessionStore, client *redis.Client, ttl time.Duration, metrics *observability.Metrics, logger *observability.Logger) *CachedSessionStore {
	return &CachedSessionStore{
		inner:   inner,
		redis:   client,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

func sessionKey(tokenHash string) string {
	return fmt.Sprintf("%s:%s", sessionKeyPrefix, tokenHash)
}

func generationKey(tokenHash string) string {
	return fmt.Sprintf("%s:%s", generationKeyPrefix, tokenHash)
}

func (c *CachedSessionStore) Create(ctx context.Context, s *Session) (*Session, error) {
	return c.inner.Create(ctx, s)
}

func (c *CachedSessionStore) GetValid(ctx context.Context, tokenHash string, now time.Time) (*Session, error) {
	key := sessionKey(tokenHash)

	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var s Session
		if jsonErr := json.Unmarshal(raw, &s); jsonErr == nil && s.ExpiresAt.After(now) {
			c.metrics.SessionCache("hit")
			return &s, nil
		}
		// Stale or undecodable; fall through to the database.
		c.redis.Del(ctx, key)
		c.metrics.SessionCache("miss")
	case errors.Is(err, redis.Nil):
		c.metrics.SessionCache("miss")
	default:
		c.metrics.SessionCache("error")
		c.logger.WithError(err).Warn("Session cache read failed")
		return c.inner.GetValid(ctx, tokenHash, now)
	}

	gen, err := c.redis.Get(ctx, generationKey(tokenHash)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.WithError(err).Warn("Session cache read failed")
		return c.inner.GetValid(ctx, tokenHash, now)
	}

	s, err := c.inner.GetValid(ctx, tokenHash, now)
	if err != nil {
		return nil, err
	}

	ttl := c.ttl
	if remaining := s.ExpiresAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	if ttl > 0 {
		c.fill(ctx, tokenHash, gen, s, ttl)
	}
	return s, nil
}

// fill caches s unless the token was invalidated after gen was read.
func (c *CachedSessionStore) fill(ctx context.Context, tokenHash, gen string, s *Session, ttl time.Duration) {
	payload, err := json.Marshal(s)
	if err != nil {
		return
	}

	genKey := generationKey(tokenHash)
	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errSessionInvalidated
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sessionKey(tokenHash), payload, ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errSessionInvalidated), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("Session invalidated during read; not cached")
	default:
		c.logger.WithError(err).Warn("Session cache write failed")
	}
}

var errSessionInvalidated = errors.New("session invalidated during read")

func (c *CachedSessionStore) Delete(ctx context.Context, tokenHash string) error {
	if err := c.inner.Delete(ctx, tokenHash); err != nil {
		return err
	}
	c.invalidate(ctx, tokenHash)
	return nil
}

func (c *CachedSessionStore) UpdateCompany(ctx context.Context, tokenHash string, companyID int64) error {
	if err := c.inner.UpdateCompany(ctx, tokenHash, companyID); err != nil {
		return err
	}
	c.invalidate(ctx, tokenHash)
	return nil
}

// DeleteExpired only touches the database; cached entries carry their own
// expiry and are rejected on read.
func (c *CachedSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return c.inner.DeleteExpired(ctx, now)
}

// invalidate bumps the generation and drops the entry in one transaction.
// The generation key expires a minute after any entry it guards could.
func (c *CachedSessionStore) invalidate(ctx context.Context, tokenHash string) {
	genKey := generationKey(tokenHash)
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, c.ttl+time.Minute)
		pipe.Del(ctx, sessionKey(tokenHash))
		return nil
	})
	if err != nil {
		c.logger.WithError(err).Warn("Session cache invalidation failed")
	}
}
