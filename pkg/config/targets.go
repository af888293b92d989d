package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// TargetPolicy decides which addresses the browser may be pointed at.
// Patterns are globs matched against the whole address, e.g.
// "https://*.example.com/**".
type TargetPolicy struct {
	allowed []glob.Glob
	denied  []glob.Glob
}

// NewTargetPolicy compiles the allow and deny lists.
func NewTargetPolicy(allowed, denied []string) (*TargetPolicy, error) {
	p := &TargetPolicy{}

	for _, pattern := range allowed {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid allowed target pattern '%s': %w", pattern, err)
		}
		p.allowed = append(p.allowed, g)
	}

	for _, pattern := range denied {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid denied target pattern '%s': %w", pattern, err)
		}
		p.denied = append(p.denied, g)
	}

	return p, nil
}

// Allows reports whether address passes the policy. Denied patterns take
// precedence; with no allowed patterns everything not denied passes.
// A nil policy allows everything.
func (p *TargetPolicy) Allows(address string) bool {
	if p == nil {
		return true
	}
	address = strings.TrimSpace(address)

	for _, pattern := range p.denied {
		if pattern.Match(address) {
			return false
		}
	}

	if len(p.allowed) == 0 {
		return true
	}

	for _, pattern := range p.allowed {
		if pattern.Match(address) {
			return true
		}
	}
	return false
}
