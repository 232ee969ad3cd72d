package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pdf-insights/internal/retry"
)

const (
	// Key prefix for stored sessions
	sessionKeyPrefix = "session:"

	maxUpdateAttempts = 5
	conflictBackoff   = 10 * time.Millisecond
)

// RedisStore shares sessions between server replicas.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new Redis session store
func NewRedisStore(addr, password string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}, nil
}

// Get retrieves a session; a missing key is an empty state.
func (s *RedisStore) Get(ctx context.Context, id string) (State, error) {
	return decodeState(s.client.Get(ctx, sessionKeyPrefix+id).Bytes())
}

// Update is an optimistic WATCH/MULTI transaction, retried on conflict.
func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (State, error) {
	key := sessionKeyPrefix + id
	var out State

	txf := func(tx *redis.Tx) error {
		st, err := decodeState(tx.Get(ctx, key).Bytes())
		if err != nil {
			return err
		}
		if err := fn(&st); err != nil {
			return err
		}
		st.UpdatedAt = time.Now()
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.expiry())
			return nil
		})
		if err != nil {
			return err
		}
		out = st
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return State{}, err
		}
		select {
		case <-ctx.Done():
			return State{}, ctx.Err()
		case <-time.After(retry.ExponentialBackoff(attempt, conflictBackoff)):
		}
	}
	return State{}, ErrConflict
}

// Delete removes the session key.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKeyPrefix+id).Err()
}

// Close closes the redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) expiry() time.Duration {
	if s.ttl <= 0 {
		return 0 // no expiration
	}
	return s.ttl
}

func decodeState(data []byte, err error) (State, error) {
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode session: %w", err)
	}
	return st, nil
}
