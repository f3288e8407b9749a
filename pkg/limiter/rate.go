package limiter

import (
	"math/rand"
	"sync"
	"time"

	"github.com/crawlkit-dev/crawlkit/pkg/timeutil"
)

// RateLimiter
// Specialized component to manage rate limiting during crawling
// Responsibilities:
// - Bookkeep each hostname's last fetch timestamp
// - Compute the final delay for each hostname given various factors
// - Make sure the crawling process respect the server's policy
type RateLimiter interface {
	SetBaseDelay(baseDelay time.Duration)
	SetJitter(jitter time.Duration)
	SetRandomSeed(randomSeed int64)
	SetBackoffParam(param timeutil.BackoffParam)
	SetCrawlDelay(host string, delay time.Duration)
	Backoff(host string)
	ResetBackoff(host string)
	MarkLastFetchAsNow(host string)
	SetRNG(rng interface{})
	ResolveDelay(host string) time.Duration
}

var defaultBackoffParam = timeutil.NewBackoffParam(1*time.Second, 2.0, 30*time.Second)

type ConcurrentRateLimiter struct {
	mu           sync.RWMutex
	rngMu        sync.Mutex
	baseDelay    time.Duration
	jitter       time.Duration
	backoffParam timeutil.BackoffParam
	hostTimings  map[string]hostTiming
	rng          *rand.Rand
}

func NewConcurrentRateLimiter() *ConcurrentRateLimiter {
	return &ConcurrentRateLimiter{
		backoffParam: defaultBackoffParam,
		hostTimings:  make(map[string]hostTiming),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ConcurrentRateLimiter) SetBaseDelay(baseDelay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.baseDelay = baseDelay
}

func (r *ConcurrentRateLimiter) SetJitter(jitter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jitter = jitter
}

func (r *ConcurrentRateLimiter) SetRandomSeed(randomSeed int64) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	r.rng = rand.New(rand.NewSource(randomSeed))
}

// SetBackoffParam overrides the exponential backoff shape (initial delay,
// multiplier, cap) used by Backoff. Defaults to 1s/2.0/30s.
func (r *ConcurrentRateLimiter) SetBackoffParam(param timeutil.BackoffParam) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backoffParam = param
}

// Set delay to given host, separated from global base delay
func (r *ConcurrentRateLimiter) SetCrawlDelay(host string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming, exists := r.hostTimings[host]
	if exists {
		currentHostTiming.crawlDelay = delay
		r.hostTimings[host] = currentHostTiming
	} else {
		r.hostTimings[host] = hostTiming{
			crawlDelay: delay,
		}
	}
}

// Backoff triggers exponential backoff for the given host.
// It increments the backoff counter and computes the delay.
func (r *ConcurrentRateLimiter) Backoff(host string) {
	r.mu.Lock()
	backoffParam := r.backoffParam
	jitter := r.jitter
	r.mu.Unlock()

	rng := r.borrowRNG()

	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming, exists := r.hostTimings[host]
	nextCount := 1
	if exists {
		nextCount = currentHostTiming.backoffCount + 1
	}
	currentHostTiming.backoffCount = nextCount
	currentHostTiming.backoffDelay = timeutil.ExponentialBackoffDelay(nextCount, jitter, *rng, backoffParam)
	r.hostTimings[host] = currentHostTiming
}

// ResetBackoff resets the backoff counter for the given host.
// Called after a successful request to clear backoff state.
func (r *ConcurrentRateLimiter) ResetBackoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming, exists := r.hostTimings[host]
	if exists {
		currentHostTiming.backoffCount = 0
		currentHostTiming.backoffDelay = time.Duration(0)
		r.hostTimings[host] = currentHostTiming
	}
}

// Mark the given host lastFetch to time.Now()
func (r *ConcurrentRateLimiter) MarkLastFetchAsNow(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming, exists := r.hostTimings[host]
	if exists {
		currentHostTiming.lastFetchAt = time.Now()
		r.hostTimings[host] = currentHostTiming
	} else {
		r.hostTimings[host] = hostTiming{
			lastFetchAt: time.Now(),
		}
	}
}

// SetRNG allows injecting a custom random number generator for testing
func (r *ConcurrentRateLimiter) SetRNG(rng interface{}) {
	if randImpl, ok := rng.(*rand.Rand); ok {
		r.rngMu.Lock()
		r.rng = randImpl
		r.rngMu.Unlock()
	}
}

// borrowRNG returns the configured rng, lazily initializing it if nil.
func (r *ConcurrentRateLimiter) borrowRNG() *rand.Rand {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r.rng
}

// Compute the final delay resolution for given host
// FinalDelay = max(BaseDelay, crawlDelay, BackoffDelay) + Jitter - elapsed
func (r *ConcurrentRateLimiter) ResolveDelay(host string) time.Duration {
	// copy needed state under read lock, then compute without holding r.mu
	r.mu.RLock()
	currentHostTiming, exists := r.hostTimings[host]
	base := r.baseDelay
	jitter := r.jitter
	r.mu.RUnlock()

	// return no delay if the host not registered yet
	if !exists {
		return time.Duration(0)
	}

	rng := r.borrowRNG()

	delays := []time.Duration{base, currentHostTiming.crawlDelay, currentHostTiming.backoffDelay}

	// compute the highest delay between BaseDelay, crawlDelay, and BackoffDelay
	finalDelay := timeutil.MaxDuration(delays)

	// add jitter to the final delay
	finalDelay += timeutil.ComputeJitter(jitter, *rng)

	elapsed := time.Since(currentHostTiming.lastFetchAt)

	// return the remaining time since the host last been fetched,
	// else don't delay
	if elapsed < finalDelay {
		return finalDelay - elapsed
	}

	return time.Duration(0)
}

func (r *ConcurrentRateLimiter) BaseDelay() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.baseDelay
}

func (r *ConcurrentRateLimiter) Jitter() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jitter
}

func (r *ConcurrentRateLimiter) RNG() *rand.Rand {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng
}

func (r *ConcurrentRateLimiter) HostTimings() map[string]hostTiming {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// return a shallow copy to avoid exposing internal map for mutation
	copyMap := make(map[string]hostTiming, len(r.hostTimings))
	for k, v := range r.hostTimings {
		copyMap[k] = v
	}
	return copyMap
}
