package memory

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/yourusername/quiz-api/internal/domain/repository"
)

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// CacheRepo реализует repository.CacheRepository в памяти.
// Значения хранятся сериализованными, как в Redis.
type CacheRepo struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	clock   func() time.Time
}

// NewCacheRepo создает пустой кеш
func NewCacheRepo() *CacheRepo {
	return &CacheRepo{entries: make(map[string]cacheEntry), clock: time.Now}
}

// SetJSON сохраняет значение в кеше
func (c *CacheRepo) SetJSON(key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := cacheEntry{data: data}
	if expiration > 0 {
		entry.expiresAt = c.clock().Add(expiration)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// GetJSON получает значение из кеша
func (c *CacheRepo) GetJSON(key string, dest interface{}) error {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || (!entry.expiresAt.IsZero() && c.clock().After(entry.expiresAt)) {
		return repository.ErrCacheMiss
	}
	return json.Unmarshal(entry.data, dest)
}

// Delete удаляет значение из кеша
func (c *CacheRepo) Delete(key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Has проверяет наличие актуального ключа (для тестов)
func (c *CacheRepo) Has(key string) bool {
	var probe json.RawMessage
	return c.GetJSON(key, &probe) == nil
}
