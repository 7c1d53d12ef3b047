// Package router maps inbound proxy paths onto upstream APIs.
//
// A Table is built once at startup from Rules. Rules are matched
// longest-prefix first against the literal request path; a path matches a
// rule when it equals the prefix or continues it with "/" or "?".
package router

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"commerce-gateway/internal/tokens"
)

// Rule maps a path prefix onto an upstream host and base path.
type Rule struct {
	Prefix      string `json:"prefix"`
	Upstream    string `json:"upstream"`
	RewritePath string `json:"rewrite"`

	// Buffered routes are read fully before sending so Content-Length can be
	// set. Required by upstreams that reject chunked uploads.
	Buffered bool `json:"buffered,omitempty"`

	// TokenDomain, when set, injects a cached bearer token for callers that
	// did not send their own Authorization header.
	TokenDomain tokens.Domain `json:"token_domain,omitempty"`

	upstream *url.URL
}

// Match is the result of routing one request.
type Match struct {
	Rule *Rule
	URL  *url.URL // upstream URL with rewritten path and original query
}

// Table is an immutable, specificity-ordered set of rules.
type Table struct {
	rules []Rule
}

// NewTable validates rules and orders them longest prefix first.
func NewTable(rules []Rule) (*Table, error) {
	sorted := make([]Rule, 0, len(rules))
	seen := make(map[string]bool, len(rules))

	for _, r := range rules {
		if !strings.HasPrefix(r.Prefix, "/") || len(r.Prefix) < 2 {
			return nil, fmt.Errorf("route prefix %q must start with / and be non-root", r.Prefix)
		}
		if strings.HasSuffix(r.Prefix, "/") || strings.ContainsRune(r.Prefix, '?') {
			return nil, fmt.Errorf("route prefix %q must not end with / or contain ?", r.Prefix)
		}
		if seen[r.Prefix] {
			return nil, fmt.Errorf("duplicate route prefix %q", r.Prefix)
		}
		seen[r.Prefix] = true

		u, err := url.Parse(r.Upstream)
		if err != nil {
			return nil, fmt.Errorf("route %s: invalid upstream: %w", r.Prefix, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("route %s: upstream %q must be an absolute http(s) URL", r.Prefix, r.Upstream)
		}
		if r.RewritePath != "" && !strings.HasPrefix(r.RewritePath, "/") {
			return nil, fmt.Errorf("route %s: rewrite %q must start with /", r.Prefix, r.RewritePath)
		}

		r.upstream = u
		sorted = append(sorted, r)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})

	return &Table{rules: sorted}, nil
}

// Rules returns the rules in match order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Match routes target, a request path optionally followed by "?query".
// Returns false when no rule applies.
func (t *Table) Match(target string) (*Match, bool) {
	path, query, hasQuery := strings.Cut(target, "?")

	for i := range t.rules {
		rule := &t.rules[i]
		if path != rule.Prefix && !strings.HasPrefix(path, rule.Prefix+"/") {
			continue
		}

		rest := path[len(rule.Prefix):]
		rewritten := rule.RewritePath + rest
		if rewritten == "" {
			rewritten = "/"
		}

		raw := strings.TrimSuffix(rule.upstream.String(), "/") + rewritten
		if hasQuery {
			raw += "?" + query
		}

		u, err := url.Parse(raw)
		if err != nil {
			// Inbound path was already parsed by net/http; treat as no route.
			return nil, false
		}
		return &Match{Rule: rule, URL: u}, true
	}

	return nil, false
}
