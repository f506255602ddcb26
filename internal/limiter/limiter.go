// limiter/limiter.go
package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	mu sync.RWMutex
	// Cloudflare API rate limiter (4 requests/second with burst of 2)
	cloudflareLimiter = rate.NewLimiter(rate.Every(250*time.Millisecond), 2)
)

// Configure replaces the shared limiter settings.
func Configure(rps float64, burst int) {
	mu.Lock()
	defer mu.Unlock()
	cloudflareLimiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Wait blocks until the limiter allows the request
func Wait(ctx context.Context) error {
	mu.RLock()
	l := cloudflareLimiter
	mu.RUnlock()
	return l.Wait(ctx)
}
