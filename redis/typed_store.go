package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrConflict means an Update lost the optimistic race too many times.
var ErrConflict = errors.New("redis: concurrent update conflict")

const maxUpdateAttempts = 5

// TypedStore keeps values of C as JSON documents under "<prefix>:<key>".
type TypedStore[C any] struct {
	client *Client
	prefix string
}

func NewTypedStore[C any](client *Client, prefix string) *TypedStore[C] {
	return &TypedStore[C]{client: client, prefix: prefix}
}

func (s *TypedStore[C]) key(id string) string {
	if s.prefix == "" {
		return id
	}
	return s.prefix + ":" + id
}

// Load returns nil, nil for a missing key.
func (s *TypedStore[C]) Load(ctx context.Context, id string) (*C, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.key(id), err)
	}
	return decode[C](raw, s.key(id))
}

// Create writes val only if the key is free and reports whether it did.
// A zero ttl never expires.
func (s *TypedStore[C]) Create(ctx context.Context, id string, val *C, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", s.key(id), err)
	}
	ok, err := s.client.SetNX(ctx, s.key(id), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("create %s: %w", s.key(id), err)
	}
	return ok, nil
}

// Update applies fn to the stored value under WATCH and writes it back in
// MULTI, retrying when another writer commits first. A missing key
// returns false without calling fn; an error from fn aborts the write.
func (s *TypedStore[C]) Update(ctx context.Context, id string, ttl time.Duration, fn func(*C) error) (bool, error) {
	key := s.key(id)
	var found bool
	txf := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if found = !IsNil(err); !found {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := decode[C](raw, key)
		if err != nil {
			return err
		}
		if err := fn(val); err != nil {
			return err
		}
		data, err := json.Marshal(val)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}

	for range maxUpdateAttempts {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("update %s: %w", key, err)
		}
		return found, nil
	}
	return false, fmt.Errorf("update %s: %w", key, ErrConflict)
}

func decode[C any](raw []byte, key string) (*C, error) {
	var val C
	if err := json.Unmarshal(raw, &val); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &val, nil
}
