package oauthstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/saasgate/internal/common"
)

const redisPrefix = "oauthstate:"

// RedisStore shares states between instances, so the callback may land on
// a different instance than the one that started the flow.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Put(ctx context.Context, key string, st State, ttl time.Duration) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode oauth state: %w", err)
	}
	if err := s.rdb.Set(ctx, redisPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("oauth state write: %w", err)
	}
	return nil
}

// Take reads and deletes in one GETDEL, so a state is honoured once even
// when two callbacks race.
func (s *RedisStore) Take(ctx context.Context, key string) (*State, error) {
	data, err := s.rdb.GetDel(ctx, redisPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrInvalidState
		}
		return nil, fmt.Errorf("oauth state read: %w", err)
	}
	st := &State{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, common.ErrInvalidState
	}
	return st, nil
}
