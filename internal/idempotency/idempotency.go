// Package idempotency реализует дедупликацию повторяемых финансовых
// операций поверх Redis. Ключ захватывается через SET NX с TTL: пока ключ
// жив, повторный вызов с тем же ключом отклоняется.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDuplicate возвращается, если операция с таким ключом уже выполнялась
// в пределах TTL.
var ErrDuplicate = errors.New("operation already performed")

// Store выполняет функцию не более одного раза на ключ в пределах TTL.
type Store interface {
	ExecuteOnce(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// RedisStore — реализация Store поверх Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore создаёт хранилище идемпотентности с указанным префиксом ключей.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "idem"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// ExecuteOnce захватывает ключ и выполняет fn. Если fn завершается ошибкой,
// ключ освобождается, чтобы вызывающий мог повторить операцию.
func (s *RedisStore) ExecuteOnce(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	full := s.prefix + ":" + key

	ok, err := s.client.SetNX(ctx, full, 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire idempotency key: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, key)
	}

	if err := fn(ctx); err != nil {
		s.client.Del(ctx, full)
		return err
	}
	return nil
}

// Disabled — хранилище, не выполняющее дедупликацию. Используется, когда
// Redis не сконфигурирован: операции выполняются без защиты от повторов.
type Disabled struct{}

// ExecuteOnce сразу выполняет fn.
func (Disabled) ExecuteOnce(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
