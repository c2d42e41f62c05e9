package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore guarda transacciones en redis, para correr varias réplicas del
// servicio detrás de un balanceador. Update usa KEEPTTL para no renovar la
// vida absoluta del registro.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore crea un RedisStore. ttl <= 0 usa DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: "adaptivemfa:txn:", ttl: ttl}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Create(ctx context.Context, r *Record) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("transaction: marshal: %w", err)
	}
	for i := 0; i < 5; i++ {
		id := uuid.NewString()
		ok, err := s.client.SetNX(ctx, s.key(id), b, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("transaction: redis setnx: %w", err)
		}
		if ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("transaction: no se pudo generar un ID único")
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	b, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transaction: redis get: %w", err)
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("transaction: unmarshal: %w", err)
	}
	return &r, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, p Patch) error {
	// WATCH para que dos updates concurrentes no se pisen el merge.
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, s.key(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("transaction: redis get: %w", err)
		}
		var r Record
		if err := json.Unmarshal(b, &r); err != nil {
			return fmt.Errorf("transaction: unmarshal: %w", err)
		}
		p.apply(&r)
		nb, err := json.Marshal(&r)
		if err != nil {
			return fmt.Errorf("transaction: marshal: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key(id), nb, redis.KeepTTL)
			return nil
		})
		return err
	}, s.key(id))
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("transaction: redis del: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
