package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"slunch/pkg/timeutil"
)

// Per-client rate limiter pool.
type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

type limiterPool struct {
	mu            sync.Mutex
	m             map[string]*limiterEntry
	limit         rate.Limit
	burst         int
	startCleanup  sync.Once
	ttl           time.Duration
	cleanupPeriod time.Duration
	stopOnce      sync.Once
	stopCh        chan struct{}
}

// newLimiterPool allows perMinute requests per minute per key, refilled
// evenly, with burst requests available at once.
func newLimiterPool(perMinute, burst int) *limiterPool {
	if burst <= 0 {
		burst = perMinute
	}
	return &limiterPool{
		m:     make(map[string]*limiterEntry),
		limit: rate.Every(time.Minute / time.Duration(perMinute)),
		burst: burst,
	}
}

// get limiter for key, create if missing; start cleanup once
func (p *limiterPool) get(key string) *rate.Limiter {
	p.startCleanup.Do(func() {
		if p.ttl == 0 {
			p.ttl = 10 * time.Minute
		}
		if p.cleanupPeriod == 0 {
			p.cleanupPeriod = time.Minute
		}
		p.mu.Lock()
		if p.stopCh == nil {
			p.stopCh = make(chan struct{})
		}
		p.mu.Unlock()
		go p.cleanupLoop()
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	now := timeutil.Now()
	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.l
	}
	l := rate.NewLimiter(p.limit, p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: now}
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).AllowN(timeutil.Now(), 1)
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// Shutdown stops the cleanup goroutine.
func (p *limiterPool) Shutdown() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		if p.stopCh == nil {
			p.stopCh = make(chan struct{})
		}
		close(p.stopCh)
		p.mu.Unlock()
	})
}

// evict removes limiters unused for longer than the TTL.
func (p *limiterPool) evict() {
	cutoff := timeutil.Now().Add(-p.ttl)
	p.mu.Lock()
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
	p.mu.Unlock()
}

func (p *limiterPool) cleanupLoop() {
	ticker := time.NewTicker(p.cleanupPeriod)
	defer ticker.Stop()

	p.mu.Lock()
	stop := p.stopCh
	p.mu.Unlock()
	for {
		select {
		case <-ticker.C:
			p.evict()
		case <-stop:
			return
		}
	}
}
