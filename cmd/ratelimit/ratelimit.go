package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kcearns/landing-server/cmd/config"
)

// RateLimiter implements a per-client sliding window rate limiter
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	limit   int
	window  time.Duration
	expiry  time.Duration
	exempt  map[string]bool
	now     func() time.Time

	cleanupTicker *time.Ticker
	done          chan struct{}
	closeOnce     sync.Once
}

type clientBucket struct {
	requests []time.Time
	lastSeen time.Time
}

// New creates a new rate limiter. Requests to exemptPaths bypass the limiter
// entirely and are not counted.
func New(cfg config.RateLimitConfig, exemptPaths ...string) *RateLimiter {
	exempt := make(map[string]bool, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = true
	}

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}

	rl := &RateLimiter{
		clients:       make(map[string]*clientBucket),
		limit:         cfg.RequestsPerWindow,
		window:        cfg.Window,
		expiry:        cfg.ClientExpiry,
		exempt:        exempt,
		now:           time.Now,
		cleanupTicker: time.NewTicker(interval),
		done:          make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Allow checks if a request from the given client should be allowed
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	bucket, exists := rl.clients[client]
	if !exists {
		bucket = &clientBucket{}
		rl.clients[client] = bucket
	}
	bucket.lastSeen = now

	// Drop requests that slid out of the window
	cutoff := now.Add(-rl.window)
	valid := bucket.requests[:0]
	for _, t := range bucket.requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	bucket.requests = valid

	if len(bucket.requests) >= rl.limit {
		return false
	}

	bucket.requests = append(bucket.requests, now)
	return true
}

// cleanup removes idle client buckets until Close is called
func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.evictIdle()
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.expiry)
	for client, bucket := range rl.clients {
		if bucket.lastSeen.Before(cutoff) {
			delete(rl.clients, client)
		}
	}
}

// clientCount returns the number of tracked clients
func (rl *RateLimiter) clientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.done)
	})
}

// Middleware returns an HTTP middleware that applies rate limiting
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.Allow(getClientIP(r)) {
			w.Header().Set("Retry-After", retryAfter(rl.window))
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfter formats the window as whole seconds, rounded up
func retryAfter(window time.Duration) string {
	secs := int64((window + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// getClientIP extracts the real client IP from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (most common)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := parseFirstIP(xff); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	// Fall back to RemoteAddr
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseFirstIP extracts the first entry of a comma-separated list if it is a valid IP
func parseFirstIP(ips string) string {
	first, _, _ := strings.Cut(ips, ",")
	first = strings.TrimSpace(first)
	if net.ParseIP(first) != nil {
		return first
	}
	return ""
}
