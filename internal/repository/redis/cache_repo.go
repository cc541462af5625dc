package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yourusername/quiz-api/internal/domain/repository"
)

// CacheRepo реализует repository.CacheRepository
type CacheRepo struct {
	client  redis.UniversalClient
	ctx     context.Context
	timeout time.Duration
}

// NewCacheRepo создает новый репозиторий кеша и возвращает ошибку при проблемах
func NewCacheRepo(client redis.UniversalClient) (*CacheRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for CacheRepo")
	}
	return &CacheRepo{
		client:  client,
		ctx:     context.Background(),
		timeout: 2 * time.Second,
	}, nil
}

// opContext ограничивает время операции: кеш не должен задерживать запрос
func (r *CacheRepo) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.ctx, r.timeout)
}

// SetJSON сохраняет структуру JSON в кеше
func (r *CacheRepo) SetJSON(key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	ctx, cancel := r.opContext()
	defer cancel()
	return r.client.Set(ctx, key, data, expiration).Err()
}

// GetJSON получает структуру JSON из кеша
func (r *CacheRepo) GetJSON(key string, dest interface{}) error {
	ctx, cancel := r.opContext()
	defer cancel()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return repository.ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete удаляет значение из кеша
func (r *CacheRepo) Delete(key string) error {
	ctx, cancel := r.opContext()
	defer cancel()
	return r.client.Del(ctx, key).Err()
}
