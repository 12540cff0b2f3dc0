package view

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/perse-cms/perse/internal/models"
	redispkg "github.com/perse-cms/perse/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	cacheKeyPrefix     = "perse:view:"
	cacheKeyHomepage   = cacheKeyPrefix + "home"
	cacheKeyRoute      = cacheKeyPrefix + "route:"
	cacheKeyGeneration = cacheKeyPrefix + "gen:"

	invalidateTimeout = 2 * time.Second
)

var errStaleRead = errors.New("view cache generation moved")

// Cache keeps public lookups in Redis. Only hits are cached, and every
// Redis failure degrades to a miss. A nil *Cache is a no-op.
//
// Each key has a generation counter that invalidate bumps. A miss hands out a
// ticket holding the generation it saw, and the value read from the store is
// written back only while that generation is current, so a lookup that raced
// a create cannot restore the entry the create just dropped.
type Cache struct {
	client *redispkg.Client
	ttl    time.Duration
	log    *zap.Logger
}

// ticket is the generation observed by a cache miss.
type ticket struct {
	key   string
	gen   string
	valid bool
}

func NewCache(client *redispkg.Client, ttl time.Duration, log *zap.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, log: log}
}

func routeKey(route string) string { return cacheKeyRoute + route }

func generationKey(key string) string { return cacheKeyGeneration + key }

func (c *Cache) route(ctx context.Context, route string) (*models.ViewModel, ticket, bool) {
	return c.get(ctx, routeKey(route))
}

func (c *Cache) homepage(ctx context.Context) (*models.ViewModel, ticket, bool) {
	return c.get(ctx, cacheKeyHomepage)
}

// store writes v under the ticket's key unless the key was invalidated since
// the ticket was issued.
func (c *Cache) store(ctx context.Context, t ticket, v *models.ViewModel) {
	if c == nil || !t.valid {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("view cache encode failed", zap.String("key", t.key), zap.Error(err))
		return
	}

	genKey := generationKey(t.key)
	err = c.client.Raw().Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != t.gen {
			return errStaleRead
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, t.key, data, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
		c.log.Debug("view cache write skipped, entry invalidated meanwhile", zap.String("key", t.key))
	default:
		c.log.Warn("view cache write failed", zap.String("key", t.key), zap.Error(err))
	}
}

// invalidate drops whatever a new view at route can make stale. It runs
// detached from ctx's cancellation: once a create has committed, the entries
// must go even if the request that made it is gone.
func (c *Cache) invalidate(ctx context.Context, route string, homepage bool) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()

	keys := []string{routeKey(route)}
	if homepage {
		keys = append(keys, cacheKeyHomepage)
	}
	_, err := c.client.Raw().TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, key := range keys {
			p.Incr(ctx, generationKey(key))
			p.Del(ctx, key)
		}
		return nil
	})
	if err != nil {
		c.log.Warn("view cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (c *Cache) get(ctx context.Context, key string) (*models.ViewModel, ticket, bool) {
	if c == nil {
		return nil, ticket{}, false
	}
	vals, err := c.client.Raw().MGet(ctx, key, generationKey(key)).Result()
	if err != nil || len(vals) != 2 {
		c.log.Warn("view cache read failed", zap.String("key", key), zap.Error(err))
		return nil, ticket{}, false
	}

	t := ticket{key: key, valid: true}
	if gen, ok := vals[1].(string); ok {
		t.gen = gen
	}
	raw, ok := vals[0].(string)
	if !ok || raw == "" {
		return nil, t, false
	}

	var v models.ViewModel
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		c.log.Warn("view cache entry corrupt", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key)
		return nil, t, false
	}
	return &v, t, true
}
