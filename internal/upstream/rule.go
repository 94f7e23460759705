package upstream

import (
	"net/url"
	"strings"

	"github.com/iTrooz/ask-relay/internal/config"
)

// Rule interface for matching fetch targets
type Rule interface {
	Match(targetURL string) bool
}

// ConfigRule implements Rule interface for config-based rules
type ConfigRule struct {
	config.TargetRule
}

// Match checks if a target URL starts with the rule's base URI.
// The prefix must end on a URL boundary so "https://a.com" does not match "https://a.com.evil".
func (r *ConfigRule) Match(targetURL string) bool {
	if r.BaseURI == "" || !strings.HasPrefix(targetURL, r.BaseURI) {
		return false
	}
	rest := targetURL[len(r.BaseURI):]
	if rest == "" || strings.HasSuffix(r.BaseURI, "/") {
		return true
	}
	return strings.ContainsRune("/?#:", rune(rest[0]))
}

// Rules decides which targets may be fetched
type Rules struct {
	mode  string
	rules []Rule
}

// NewRules builds the rule set from configuration
func NewRules(cfg config.RulesConfig) *Rules {
	rules := make([]Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if canonical, ok := canonicalURL(r.BaseURI); ok {
			r.BaseURI = canonical
		}
		rules = append(rules, &ConfigRule{TargetRule: r})
	}
	return &Rules{mode: cfg.Mode, rules: rules}
}

// Allowed reports whether targetURL may be fetched.
// In whitelist mode a target must match a rule, in blacklist mode it must match none.
// Targets that cannot be parsed are never allowed.
func (r *Rules) Allowed(targetURL string) bool {
	canonical, ok := canonicalURL(targetURL)
	if !ok {
		return false
	}

	matched := false
	for _, rule := range r.rules {
		if rule.Match(canonical) {
			matched = true
			break
		}
	}

	if r.mode == "whitelist" {
		return matched
	}
	return !matched
}

// canonicalURL rewrites raw as scheme://host[:port]/path[?query] with a lowercase
// scheme and host. Userinfo, fragments and a trailing dot on the host are dropped.
func canonicalURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", false
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}

	out := strings.ToLower(u.Scheme) + "://" + host + u.EscapedPath()
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out, true
}
