package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// responseCache caches serialized JSON responses for the chart read
// endpoints. With REDIS_URL configured it is shared across instances;
// otherwise it degrades to a per-process in-memory map.
type responseCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	rdb     *redis.Client
}

type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

func newResponseCache(redisURL string) *responseCache {
	c := &responseCache{entries: make(map[string]*cacheEntry)}
	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Printf("[API] bad REDIS_URL, using in-memory cache: %v", err)
			return c
		}
		c.rdb = redis.NewClient(opts)
	}
	return c
}

func (c *responseCache) get(ctx context.Context, key string) ([]byte, bool) {
	if c.rdb != nil {
		body, err := c.rdb.Get(ctx, "respcache:"+key).Bytes()
		if err == nil {
			return body, true
		}
		if err != redis.Nil {
			log.Printf("[API] redis get: %v", err)
		}
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.body, true
}

func (c *responseCache) set(ctx context.Context, key string, body []byte, ttl time.Duration) {
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, "respcache:"+key, body, ttl).Err(); err != nil {
			log.Printf("[API] redis set: %v", err)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{body: body, expiresAt: time.Now().Add(ttl)}
}

// wrap caches a handler's JSON response for the given TTL, keyed by path
// plus query string. Only 2xx responses are cached.
func (c *responseCache) wrap(ttl time.Duration, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path + "?" + r.URL.RawQuery

		if body, ok := c.get(r.Context(), key); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.Write(body)
			return
		}

		rec := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		handler(rec, r)

		if rec.statusCode >= 200 && rec.statusCode < 300 && len(rec.body) > 0 {
			c.set(r.Context(), key, rec.body, ttl)
		}
	}
}

// responseRecorder captures the response body while still writing to the client.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body = append(r.body, b...)
	return r.ResponseWriter.Write(b)
}
