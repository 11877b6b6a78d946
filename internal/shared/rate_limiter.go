package shared

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// RateLimitEndpointConfig configuration for rate limiting per endpoint
type RateLimitEndpointConfig struct {
	Requests int
	Window   time.Duration
	KeyFunc  func(*gin.Context) string
}

// RateLimiter throttles the expensive vault operations. Regular CRUD
// traffic gets a generous default; batch and recovery endpoints get
// tight per-client budgets.
type RateLimiter struct {
	cache   *cache.Cache
	config  map[string]RateLimitEndpointConfig
	logger  *zap.Logger
	metrics *StorageMetrics
	mutex   sync.Mutex
}

// RateLimitEntry cache entry for rate limiting
type RateLimitEntry struct {
	Count     int
	ResetTime time.Time
}

func NewRateLimiter(logger *zap.Logger, metrics *StorageMetrics) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := cache.New(5*time.Minute, 10*time.Minute)

	configs := map[string]RateLimitEndpointConfig{
		"POST /tasks/bulk/update": {
			Requests: 10,
			Window:   time.Minute,
			KeyFunc:  GetClientIP,
		},
		"POST /tasks/bulk/delete": {
			Requests: 10,
			Window:   time.Minute,
			KeyFunc:  GetClientIP,
		},
		"POST /projects/import": {
			Requests: 5,
			Window:   time.Minute,
			KeyFunc:  GetClientIP,
		},
		"POST /integrity/repair": {
			Requests: 5,
			Window:   time.Minute,
			KeyFunc:  GetClientIP,
		},
		"POST /integrity/force-recovery": {
			Requests: 2,
			Window:   time.Minute,
			KeyFunc:  GetClientIP,
		},
		"POST /storage/migrate-back": {
			Requests: 5,
			Window:   time.Minute,
			KeyFunc:  GetClientIP,
		},
		"default": {
			Requests: 300,
			Window:   time.Minute,
			KeyFunc:  GetClientIP,
		},
	}

	return &RateLimiter{
		cache:   c,
		config:  configs,
		logger:  logger,
		metrics: metrics,
	}
}

// RateLimitMiddleware middleware for rate limiting
func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		methodPath := c.Request.Method + " " + path

		config, exists := rl.config[methodPath]
		if !exists {
			config = rl.config["default"]
		}

		key := rl.generateKey(c, methodPath, config.KeyFunc)

		allowed, remaining, resetTime := rl.checkRateLimit(key, config)

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			rl.metrics.RecordRateLimited(path)

			rl.logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", path),
				zap.Int("limit", config.Requests),
				zap.Duration("window", config.Window))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Too many requests. Limit: %d per %v", config.Requests, config.Window),
				"retry_after": int(time.Until(resetTime).Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// checkRateLimit checks if request is within limit
func (rl *RateLimiter) checkRateLimit(key string, config RateLimitEndpointConfig) (bool, int, time.Time) {
	now := time.Now()

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if entry, found := rl.cache.Get(key); found {
		rateLimitEntry := entry.(RateLimitEntry)

		if now.After(rateLimitEntry.ResetTime) {
			resetTime := now.Add(config.Window)
			rl.cache.Set(key, RateLimitEntry{Count: 1, ResetTime: resetTime}, config.Window)
			return true, config.Requests - 1, resetTime
		}

		if rateLimitEntry.Count >= config.Requests {
			return false, 0, rateLimitEntry.ResetTime
		}

		rateLimitEntry.Count++
		rl.cache.Set(key, rateLimitEntry, cache.DefaultExpiration)

		return true, config.Requests - rateLimitEntry.Count, rateLimitEntry.ResetTime
	}

	resetTime := now.Add(config.Window)
	rl.cache.Set(key, RateLimitEntry{Count: 1, ResetTime: resetTime}, config.Window)

	return true, config.Requests - 1, resetTime
}

// generateKey generates unique key for rate limiting
func (rl *RateLimiter) generateKey(c *gin.Context, path string, keyFunc func(*gin.Context) string) string {
	identifier := keyFunc(c)
	return fmt.Sprintf("rate_limit:%s:%s", path, identifier)
}

// SetConfig allows configuring rate limits for specific endpoints
func (rl *RateLimiter) SetConfig(path string, config RateLimitEndpointConfig) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	rl.config[path] = config
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]any {
	return map[string]any{
		"active_entries": rl.cache.ItemCount(),
		"configs":        len(rl.config),
	}
}

// GetClientIP extracts the client IP, honoring proxy headers first.
func GetClientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		ips := strings.Split(ip, ",")
		return strings.TrimSpace(ips[0])
	}

	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}

	return c.ClientIP()
}
