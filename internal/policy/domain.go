package policy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrInvalidHost is returned for empty or malformed hostnames
	ErrInvalidHost = errors.New("invalid hostname")
	// ErrPrivateHost is returned for loopback, private and link-local targets
	ErrPrivateHost = errors.New("private network address")
	// ErrNotAllowed is returned when no allow-list entry matches
	ErrNotAllowed = errors.New("domain not allowed")
)

// Entry is one allow-list record: an exact hostname or a *.suffix wildcard.
type Entry struct {
	// Pattern is the normalised form as configured, e.g. "*.example.com"
	Pattern  string
	Category string

	wildcard bool
	suffix   string
}

// ParseEntry validates and normalises one allow-list pattern.
func ParseEntry(raw, category string) (Entry, error) {
	pattern := Normalize(raw)
	if pattern == "" {
		return Entry{}, fmt.Errorf("%w: empty pattern", ErrInvalidHost)
	}

	suffix, wildcard := strings.CutPrefix(pattern, "*.")
	if strings.Contains(suffix, "*") || !validHost(suffix) {
		return Entry{}, fmt.Errorf("%w: bad pattern %q", ErrInvalidHost, raw)
	}

	return Entry{
		Pattern:  pattern,
		Category: category,
		wildcard: wildcard,
		suffix:   suffix,
	}, nil
}

// Wildcard reports whether the entry covers subdomains.
func (e Entry) Wildcard() bool { return e.wildcard }

// Matches reports whether a normalised host is covered by the entry.
// *.d matches d and any strict subdomain of d, never a host that merely
// ends with the characters of d.
func (e Entry) Matches(host string) bool {
	if !e.wildcard {
		return host == e.suffix
	}
	return host == e.suffix || strings.HasSuffix(host, "."+e.suffix)
}

// HostSet is an ordered collection of entries.
type HostSet struct {
	exact    map[string]Entry
	wildcard []Entry
}

// NewHostSet parses patterns into a set, all under one category.
func NewHostSet(category string, patterns ...string) (*HostSet, error) {
	s := &HostSet{exact: make(map[string]Entry)}
	for _, p := range patterns {
		e, err := ParseEntry(p, category)
		if err != nil {
			return nil, err
		}
		s.Add(e)
	}
	return s, nil
}

// Add inserts an entry. The first entry for an exact host wins.
func (s *HostSet) Add(e Entry) {
	if e.wildcard {
		s.wildcard = append(s.wildcard, e)
		return
	}
	if _, ok := s.exact[e.suffix]; !ok {
		s.exact[e.suffix] = e
	}
}

// Lookup returns the entry matching host, if any. host is normalised first.
func (s *HostSet) Lookup(host string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	host = Normalize(host)
	if host == "" {
		return Entry{}, false
	}
	if e, ok := s.exact[host]; ok {
		return e, true
	}
	for _, e := range s.wildcard {
		if e.Matches(host) {
			return e, true
		}
	}
	return Entry{}, false
}

// Contains reports whether host matches any entry.
func (s *HostSet) Contains(host string) bool {
	_, ok := s.Lookup(host)
	return ok
}

// Len returns the number of entries.
func (s *HostSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.exact) + len(s.wildcard)
}

// Category names a group of allow-list patterns.
type Category struct {
	Name    string
	Domains []string
}

// Policy decides whether a target hostname may be fetched.
type Policy struct {
	allowed    *HostSet
	categories []string
}

// New builds a domain policy from categorised patterns.
func New(categories []Category) (*Policy, error) {
	p := &Policy{allowed: &HostSet{exact: make(map[string]Entry)}}
	seen := make(map[string]bool)

	for _, cat := range categories {
		for _, raw := range cat.Domains {
			e, err := ParseEntry(raw, cat.Name)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}
			p.allowed.Add(e)
		}
		if cat.Name != "" && len(cat.Domains) > 0 && !seen[cat.Name] {
			seen[cat.Name] = true
			p.categories = append(p.categories, cat.Name)
		}
	}
	return p, nil
}

// Check returns nil when host may be fetched, otherwise one of
// ErrInvalidHost, ErrPrivateHost or ErrNotAllowed (wrapped).
// Private addresses are rejected before the allow-list is consulted.
func (p *Policy) Check(host string) error {
	h := Normalize(host)
	if h == "" || !validHost(h) {
		return fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	if IsPrivate(h) {
		return fmt.Errorf("%w: %s", ErrPrivateHost, h)
	}
	if !p.allowed.Contains(h) {
		return fmt.Errorf("%w: %s", ErrNotAllowed, h)
	}
	return nil
}

// CheckURL applies Check to the host of an http or https URL. It is the
// check run on every upstream redirect hop.
func (p *Policy) CheckURL(u *url.URL) error {
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: unsupported scheme", ErrInvalidHost)
	}
	return p.Check(u.Hostname())
}

// IsAllowed reports whether host passes Check.
func (p *Policy) IsAllowed(host string) bool {
	return p.Check(host) == nil
}

// CategoryOf returns the category of the entry matching host.
func (p *Policy) CategoryOf(host string) (string, bool) {
	e, ok := p.allowed.Lookup(host)
	return e.Category, ok
}

// Categories lists category names in configuration order. Safe to show
// callers: it never includes the individual patterns.
func (p *Policy) Categories() []string {
	out := make([]string, len(p.categories))
	copy(out, p.categories)
	return out
}

// Summary counts entries per category.
func (p *Policy) Summary() map[string]int {
	out := make(map[string]int, len(p.categories))
	for _, e := range p.allowed.exact {
		out[e.Category]++
	}
	for _, e := range p.allowed.wildcard {
		out[e.Category]++
	}
	return out
}

// Normalize lowercases and trims a hostname, dropping IPv6 brackets and a
// trailing root dot.
func Normalize(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	h = strings.TrimSuffix(h, ".")
	if strings.HasPrefix(h, "[") && strings.HasSuffix(h, "]") {
		h = h[1 : len(h)-1]
	}
	return h
}

// validHost accepts DNS names and IP literals. Anything carrying userinfo,
// paths, ports or whitespace is rejected.
func validHost(h string) bool {
	if h == "" || len(h) > 253 {
		return false
	}
	if strings.Contains(h, ":") {
		return isIPv6Literal(h)
	}
	for _, label := range strings.Split(h, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		for _, r := range label {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			default:
				return false
			}
		}
	}
	return true
}
