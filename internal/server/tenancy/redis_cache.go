package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

const (
	redisEntryPrefix = "tenantcache:"
	redisIndexPrefix = "tenantcache-idx:"
	redisGenPrefix   = "tenantcache-gen:"
	redisGenAll      = "tenantcache-gen"
)

var errStaleGeneration = errors.New("tenant cache generation moved")

// RedisCache shares resolved snapshots between instances. Redis owns expiry.
// A per-tenant set indexes every key holding that tenant, so InvalidateTenant
// needs no scan. Generation counters never expire and survive InvalidateAll.
type RedisCache struct {
	rdb redis.UniversalClient
	log logging.Logger
}

func NewRedisCache(rdb redis.UniversalClient, log logging.Logger) *RedisCache {
	return &RedisCache{rdb: rdb, log: log}
}

// Get treats any Redis failure as a miss; the resolver then reads the
// directory, which stays authoritative.
func (c *RedisCache) Get(ctx context.Context, key string) (*models.TenantSnapshot, bool) {
	data, err := c.rdb.Get(ctx, redisEntryPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn(ctx, "tenant cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	snap := &models.TenantSnapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		c.log.Warn(ctx, "tenant cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return snap, true
}

func (c *RedisCache) Put(ctx context.Context, key string, snap *models.TenantSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode tenant snapshot: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	queuePut(ctx, pipe, key, snap.ID, data, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tenant cache write: %w", err)
	}
	return nil
}

func queuePut(ctx context.Context, pipe redis.Pipeliner, key, tenantID string, data []byte, ttl time.Duration) {
	entry := redisEntryPrefix + key
	index := redisIndexPrefix + tenantID
	pipe.Set(ctx, entry, data, ttl)
	pipe.SAdd(ctx, index, entry)
	pipe.Expire(ctx, index, ttl)
}

// mgetter is satisfied by both the client and a WATCH transaction.
type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func readGeneration(ctx context.Context, rdb mgetter, key string) (Generation, error) {
	vals, err := rdb.MGet(ctx, redisGenPrefix+key, redisGenAll).Result()
	if err != nil {
		return Generation{}, fmt.Errorf("tenant cache generation: %w", err)
	}
	var gen Generation
	for i, dst := range []*uint64{&gen.Key, &gen.All} {
		v, ok := vals[i].(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Generation{}, fmt.Errorf("tenant cache generation: %w", err)
		}
		*dst = n
	}
	return gen, nil
}

func (c *RedisCache) Generation(ctx context.Context, key string) (Generation, error) {
	return readGeneration(ctx, c.rdb, key)
}

// PutIfGeneration watches both counters, so an invalidation landing between
// the check and the write aborts the transaction.
func (c *RedisCache) PutIfGeneration(ctx context.Context, key string, gen Generation, snap *models.TenantSnapshot, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("encode tenant snapshot: %w", err)
	}

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readGeneration(ctx, tx, key)
		if err != nil {
			return err
		}
		if cur != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			queuePut(ctx, pipe, key, snap.ID, data, ttl)
			return nil
		})
		return err
	}, redisGenPrefix+key, redisGenAll)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("tenant cache write: %w", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := c.rdb.TxPipeline()
	for _, k := range keys {
		pipe.Del(ctx, redisEntryPrefix+k)
		pipe.Incr(ctx, redisGenPrefix+k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tenant cache invalidate: %w", err)
	}
	return nil
}

func (c *RedisCache) InvalidateTenant(ctx context.Context, tenantID string) error {
	index := redisIndexPrefix + tenantID
	members, err := c.rdb.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("tenant cache invalidate: %w", err)
	}
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, append(members, index)...)
	pipe.Incr(ctx, redisGenAll)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tenant cache invalidate: %w", err)
	}
	return nil
}

func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, redisGenAll).Err(); err != nil {
		return fmt.Errorf("tenant cache flush: %w", err)
	}
	for _, pattern := range []string{redisEntryPrefix + "*", redisIndexPrefix + "*"} {
		iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == 100 {
				if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
					return fmt.Errorf("tenant cache flush: %w", err)
				}
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("tenant cache flush: %w", err)
		}
		if len(batch) > 0 {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("tenant cache flush: %w", err)
			}
		}
	}
	return nil
}
