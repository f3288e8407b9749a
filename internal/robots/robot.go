package robots

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before enqueue

Robots checks occur before a URL enters the frontier.
*/

import (
	"context"
	"net/url"
	"sync"
	"time"
)

// Robot is the admission-time robots.txt check internal/engine consults
// alongside urlutil.AdmissionRule (spec.md 4.4.1). One Robot is shared by
// every worker goroutine of a job.
type Robot interface {
	Decide(ctx context.Context, u url.URL) (Decision, *RobotsError)
}

var _ Robot = (*CachedRobot)(nil)

// ruleSetTTL bounds how long a fetched robots.txt is trusted before a
// re-fetch, so a mid-crawl robots.txt change (or host blocking crawlers
// partway through) is eventually picked up without refetching per URL.
const ruleSetTTL = 1 * time.Hour

// CachedRobot fetches robots.txt once per host per ruleSetTTL and answers
// Decide from the cached ruleSet for every URL on that host in between.
type CachedRobot struct {
	fetcher   *RobotsFetcher
	userAgent string

	mu    sync.Mutex
	rules map[string]ruleSet // key: scheme://host
}

// NewCachedRobot constructs a CachedRobot backed by fetcher.
func NewCachedRobot(fetcher *RobotsFetcher, userAgent string) *CachedRobot {
	return &CachedRobot{
		fetcher:   fetcher,
		userAgent: userAgent,
		rules:     make(map[string]ruleSet),
	}
}

// Decide fetches (or reuses a cached) robots.txt for u's host and returns
// the allow/disallow verdict for u specifically.
func (c *CachedRobot) Decide(ctx context.Context, u url.URL) (Decision, *RobotsError) {
	key := u.Scheme + "://" + u.Host

	c.mu.Lock()
	rs, ok := c.rules[key]
	stale := ok && time.Since(rs.FetchedAt()) > ruleSetTTL
	c.mu.Unlock()

	if !ok || stale {
		result, err := c.fetcher.Fetch(ctx, u.Scheme, u.Host)
		if err != nil {
			return Decision{}, err
		}
		rs = MapResponseToRuleSet(result.Response, c.userAgent, result.FetchedAt)
		c.mu.Lock()
		c.rules[key] = rs
		c.mu.Unlock()
	}

	return rs.Decide(u), nil
}
