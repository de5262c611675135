package middleware

import (
	"sync"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	"golang.org/x/time/rate"
)

var limiterInstance = NewIPRateLimiter(
	rate.Limit(config.GetInt("RATE_LIMIT_PER_SECOND", config.RATE_LIMIT_PER_SECOND)),
	config.GetInt("BURST_RATE_LIMIT_PER_SECOND", config.BURST_RATE_LIMIT_PER_SECOND))

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type IPRateLimiter struct {
	ips       map[string]*visitor
	mu        sync.Mutex
	rateLimit rate.Limit
	burstRate int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{ips: make(map[string]*visitor), rateLimit: r, burstRate: b}
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, exists := i.ips[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(i.rateLimit, i.burstRate)}
		i.ips[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Sweep forgets IPs not seen for idle.
func (i *IPRateLimiter) Sweep(idle time.Duration) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	removed := 0
	for ip, v := range i.ips {
		if time.Since(v.lastSeen) > idle {
			delete(i.ips, ip)
			removed++
		}
	}
	return removed
}

// StartSweeper drops idle visitors every interval until stop is closed.
func StartSweeper(interval time.Duration, stop <-chan bool) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				limiterInstance.Sweep(interval)
			case <-stop:
				return
			}
		}
	}()
}

//TODO: when the users grow
// I must offload this key-value to redis
