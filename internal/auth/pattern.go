package auth

import (
	"regexp"
	"strings"
)

// Pattern is a compiled nick!user@host mask where '*' matches any run of
// characters. Matching is anchored to the whole identity and case-sensitive.
type Pattern struct {
	mask string
	re   *regexp.Regexp
}

// Compile builds a Pattern. Every mask compiles: all characters except '*' are literal.
func Compile(mask string) Pattern {
	parts := strings.Split(mask, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	expr := `\A` + strings.Join(parts, `(?s:.*)`) + `\z`
	return Pattern{mask: mask, re: regexp.MustCompile(expr)}
}

// Match reports whether identity conforms to the whole mask.
// The zero Pattern matches nothing.
func (p Pattern) Match(identity string) bool {
	if p.re == nil {
		return false
	}
	return p.re.MatchString(identity)
}

func (p Pattern) String() string {
	return p.mask
}

// Matcher answers whether an identity is one of the configured admins.
type Matcher struct {
	patterns []Pattern
}

// NewMatcher compiles the admin masks; empty masks are skipped.
func NewMatcher(masks ...string) *Matcher {
	m := &Matcher{}
	for _, mask := range masks {
		mask = strings.TrimSpace(mask)
		if mask == "" {
			continue
		}
		m.patterns = append(m.patterns, Compile(mask))
	}
	return m
}

// IsAdmin reports whether identity (nick!user@host) matches any admin mask.
func (m *Matcher) IsAdmin(identity string) bool {
	if m == nil {
		return false
	}
	for _, p := range m.patterns {
		if p.Match(identity) {
			return true
		}
	}
	return false
}
