package robots

import (
	"net/url"
	"strings"
)

/*
Decision rules (Google's robots.txt convention, which the fetcher/parser
in this package already follows for group selection):
- Longest matching prefix wins, across allow and disallow rules together.
- A tie between an allow and a disallow rule of equal length favors allow.
- No matching rule, no matching group, or an empty ruleSet all mean allowed.
*/

// Decide evaluates u.Path (plus RawQuery, since robots.txt path rules may
// include a trailing "?") against the rule set and returns the verdict.
func (r ruleSet) Decide(u url.URL) Decision {
	path := u.Path
	if u.RawQuery != "" {
		path = path + "?" + u.RawQuery
	}
	if path == "" {
		path = "/"
	}

	if !r.hasGroups {
		return Decision{Url: u, Allowed: true, Reason: EmptyRuleSet, CrawlDelay: r.CrawlDelay()}
	}
	if !r.matchedGroup {
		return Decision{Url: u, Allowed: true, Reason: UserAgentNotMatched}
	}

	bestAllow := longestMatch(r.allowRules, path)
	bestDisallow := longestMatch(r.disallowRules, path)

	switch {
	case bestAllow < 0 && bestDisallow < 0:
		return Decision{Url: u, Allowed: true, Reason: NoMatchingRules, CrawlDelay: r.CrawlDelay()}
	case bestDisallow > bestAllow:
		return Decision{Url: u, Allowed: false, Reason: DisallowedByRobots, CrawlDelay: r.CrawlDelay()}
	default:
		return Decision{Url: u, Allowed: true, Reason: AllowedByRobots, CrawlDelay: r.CrawlDelay()}
	}
}

// longestMatch returns the length of the longest rule prefix matching path,
// or -1 if none match.
func longestMatch(rules []pathRule, path string) int {
	best := -1
	for _, rule := range rules {
		prefix := rule.prefix
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(path, prefix) && len(prefix) > best {
			best = len(prefix)
		}
	}
	return best
}
