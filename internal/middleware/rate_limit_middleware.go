package middleware

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// RateLimitConfig содержит настройки rate limiting
type RateLimitConfig struct {
	// MaxRequests: максимум запросов за окно
	MaxRequests int
	// Window: длина окна
	Window time.Duration
	// KeyPrefix: префикс ключей в Redis
	KeyPrefix string
}

// AnswerRateLimitConfig ограничивает частоту записи ответов одним пользователем
func AnswerRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 120,
		Window:      1 * time.Minute,
		KeyPrefix:   "rl:answers",
	}
}

// WarningRateLimitConfig ограничивает поток предупреждений прокторинга
func WarningRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 30,
		Window:      1 * time.Minute,
		KeyPrefix:   "rl:warnings",
	}
}

// RateLimiter ограничивает частоту запросов счетчиками в Redis
type RateLimiter struct {
	redisClient redis.UniversalClient
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(redisClient redis.UniversalClient) *RateLimiter {
	return &RateLimiter{redisClient: redisClient}
}

// Limit возвращает Gin middleware с фиксированным окном на ключ.
// Ключ строится по пользователю из контекста (после RequireAuth), иначе по IP, плюс шаблон маршрута.
// При недоступности Redis запрос пропускается.
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c, cfg.KeyPrefix)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		var incr *redis.IntCmd
		var ttl *redis.DurationCmd
		_, err := rl.redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			ttl = pipe.PTTL(ctx, key)
			return nil
		})
		if err != nil {
			log.Printf("[RateLimiter] Ошибка Redis для ключа %s: %v. Запрос пропущен.", key, err)
			c.Next()
			return
		}

		count := int(incr.Val())
		window := ttl.Val()
		// Ключ без TTL: первый запрос в окне или потерянный EXPIRE
		if window <= 0 {
			window = cfg.Window
			if err := rl.redisClient.PExpire(ctx, key, cfg.Window).Err(); err != nil {
				log.Printf("[RateLimiter] Не удалось выставить TTL для ключа %s: %v", key, err)
			}
		}
		retryAfter := int((window + time.Second - 1) / time.Second)

		remaining := cfg.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(retryAfter))

		if count > cfg.MaxRequests {
			log.Printf("[RateLimiter] Превышен лимит: %s (%d/%d)", key, count, cfg.MaxRequests)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"error_type":  "rate_limited",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}

func rateLimitKey(c *gin.Context, prefix string) string {
	subject := "ip:" + c.ClientIP()
	if userID := c.GetUint(ContextUserID); userID != 0 {
		subject = "user:" + strconv.FormatUint(uint64(userID), 10)
	}
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return prefix + ":" + subject + ":" + route
}
