package runstore

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/redis"
	"github.com/kbukum/flowkit/workflow"
)

const (
	redisRunPrefix   = "flowkit:runs"
	redisOwnerPrefix = "flowkit:owner-runs:"
)

// RedisConfig configures RedisStore.
type RedisConfig struct {
	// TTL expires run documents and owner indexes. Zero keeps them.
	TTL time.Duration `mapstructure:"ttl"`
}

// RedisStore keeps each run as a JSON document and indexes runs per owner
// in a sorted set scored by start time.
type RedisStore struct {
	client *redis.Client
	runs   *redis.TypedStore[workflow.Run]
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client *redis.Client, cfg RedisConfig) *RedisStore {
	return &RedisStore{
		client: client,
		runs:   redis.NewTypedStore[workflow.Run](client, redisRunPrefix),
		ttl:    cfg.TTL,
	}
}

func storeError(err error) error {
	return errors.ExternalServiceError("redis", err)
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, run *workflow.Run) (string, error) {
	c := run.Clone()
	if c.ID == "" {
		c.ID = newID()
	}
	ok, err := s.runs.Create(ctx, c.ID, c, s.ttl)
	if err != nil {
		return "", storeError(err)
	}
	if !ok {
		return "", errors.Conflict(fmt.Sprintf("Run %s already exists.", c.ID))
	}

	idx := redisOwnerPrefix + c.OwnerID
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAdd(ctx, idx, goredis.Z{Score: float64(c.StartedAt.UnixMilli()), Member: c.ID})
		if s.ttl > 0 {
			pipe.Expire(ctx, idx, s.ttl)
		}
		return nil
	})
	if err != nil {
		return "", storeError(err)
	}
	return c.ID, nil
}

// Update implements Store.
func (s *RedisStore) Update(ctx context.Context, id string, update workflow.RunUpdate) error {
	found, err := s.runs.Update(ctx, id, s.ttl, func(r *workflow.Run) error {
		update.Apply(r)
		return nil
	})
	if err != nil {
		return storeError(err)
	}
	if !found {
		return notFound(id)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*workflow.Run, error) {
	run, err := s.runs.Load(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	if run == nil {
		return nil, notFound(id)
	}
	return run, nil
}

// List implements Store. Index entries whose document expired are skipped.
func (s *RedisStore) List(ctx context.Context, ownerID string, limit int) ([]*workflow.Run, error) {
	limit = normalizeLimit(limit)
	ids, err := s.client.ZRevRange(ctx, redisOwnerPrefix+ownerID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, storeError(err)
	}
	runs := make([]*workflow.Run, 0, len(ids))
	for _, id := range ids {
		run, err := s.runs.Load(ctx, id)
		if err != nil {
			return nil, storeError(err)
		}
		if run != nil {
			runs = append(runs, run)
		}
	}
	return runs, nil
}
