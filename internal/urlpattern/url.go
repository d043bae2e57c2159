// Package urlpattern parses browser URLs into the (domain, path, fragment)
// triple that page definitions are keyed by, and matches stored path
// patterns such as "p/{id}" against live paths.
package urlpattern

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Root is the canonical path of a domain's root page.
const Root = "@"

var placeholderRE = regexp.MustCompile(`\{[^{}/]*\}`)

// URL is an immutable parsed URL.
type URL struct {
	value    string
	domain   string
	path     string
	fragment string
}

// Parse parses a full URL. A bare domain ("example.com/login") is treated as
// https. Trailing slashes are ignored.
func Parse(raw string) URL {
	raw = strings.TrimSpace(raw)
	value := strings.TrimRight(raw, "/")
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
		value = "https://" + value
	}
	u := URL{value: value, path: Root}

	parsed, err := url.Parse(raw)
	if err != nil {
		// Fall back to a manual split so that malformed URLs still key a page.
		rest := raw[strings.Index(raw, "://")+3:]
		rest, u.fragment, _ = strings.Cut(rest, "#")
		u.domain, u.path, _ = strings.Cut(rest, "/")
		u.path = normalizePath(u.path)
		u.fragment = normalizeFragment(u.fragment)
		return u
	}

	u.domain = parsed.Host
	u.path = normalizePath(parsed.Path)
	u.fragment = normalizeFragment(parsed.Fragment)
	return u
}

// New builds a URL from a domain and a stored path. The path may be Root or
// contain "{name}" placeholders.
func New(domain, path string) URL {
	path = normalizePath(path)
	value := "https://" + domain
	if path != Root {
		value += "/" + path
	}
	return URL{value: value, domain: domain, path: path}
}

func normalizePath(path string) string {
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	path = strings.Trim(path, "/")
	if path == "" || path == Root {
		return Root
	}
	return path
}

func normalizeFragment(fragment string) string {
	return strings.Trim(strings.ReplaceAll(fragment, "/", "_"), "_")
}

// String returns the URL as given (without a trailing slash).
func (u URL) String() string { return u.value }

// Domain returns the host, including any port.
func (u URL) Domain() string { return u.domain }

// Path returns the slash-trimmed path, or Root.
func (u URL) Path() string { return u.path }

// Fragment returns the fragment with slashes folded into underscores, which
// is how page variants are named ("#/step/2/" becomes "step_2").
func (u URL) Fragment() string { return u.fragment }

// Exact reports whether the path contains no placeholder.
func (u URL) Exact() bool { return !placeholderRE.MatchString(u.path) }

// Contains reports whether s is a substring of the URL.
func (u URL) Contains(s string) bool { return strings.Contains(u.value, s) }

// Matches reports whether u, treated as a stored pattern, matches the
// candidate. Domains must be equal; paths must be equal or u's placeholders
// must each absorb exactly one non-empty, slash-free segment. A placeholder
// never matches the root.
func (u URL) Matches(candidate URL) bool {
	if u.domain != candidate.domain {
		return false
	}
	if u.path == candidate.path {
		return true
	}
	if u.Exact() || candidate.path == Root {
		return false
	}
	return compile(u.path).MatchString(candidate.path)
}

// Equal compares two URLs by domain and path using pattern matching in
// either direction.
func (u URL) Equal(other URL) bool {
	return u.Matches(other) || other.Matches(u)
}

func compile(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, loc := range placeholderRE.FindAllStringIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		b.WriteString("[^/]+")
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// DetectPatterns proposes a pattern for URLs whose path carries a numeric
// segment: the last such segment becomes "{id}". It reports whether a
// pattern was produced.
func DetectPatterns(u URL) (URL, bool) {
	if u.path == Root || !u.Exact() {
		return u, false
	}
	segments := strings.Split(u.path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if _, err := strconv.ParseUint(segments[i], 10, 64); err == nil {
			segments[i] = "{id}"
			return New(u.domain, strings.Join(segments, "/")), true
		}
	}
	return u, false
}
