// Package safeurl validates that content-supplied URLs are safe for the edge
// service to fetch: public http(s) hosts only, no credentials, no literal
// addresses, nothing that could reach internal infrastructure.
package safeurl

import (
	"net/url"
	"regexp"
	"strings"
)

var ipv4Rx = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// Hostnames that resolve to link-local metadata services or cluster-internal
// endpoints regardless of DNS.
var blockedHostnames = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
	"metadata.google":          {},
	"instance-data":            {},
	"kubernetes.default":       {},
	"169.254.169.254":          {},
}

var blockedSuffixes = []string{".internal", ".local", ".localhost"}

var allowedPorts = map[string]struct{}{
	"80":   {},
	"443":  {},
	"8080": {},
	"8443": {},
}

// IsSafePublicURL parses raw and returns the parsed URL only if it points at
// a plausibly public http(s) host. Anything else returns nil.
func IsSafePublicURL(raw string) *url.URL {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil
	}

	// Embedded credentials are a classic trick for confusing URL filters.
	if parsed.User != nil {
		return nil
	}

	hostname := strings.ToLower(parsed.Hostname())
	if hostname == "" {
		return nil
	}

	if ipv4Rx.MatchString(hostname) {
		return nil
	}

	// Any IPv6 literal. url.Hostname strips brackets, so a colon in the
	// hostname is enough to detect one.
	if strings.Contains(parsed.Host, "[") || strings.Contains(hostname, ":") {
		return nil
	}

	if _, blocked := blockedHostnames[hostname]; blocked {
		return nil
	}

	for _, suffix := range blockedSuffixes {
		if strings.HasSuffix(hostname, suffix) {
			return nil
		}
	}

	// Bare single-label hostnames (intranet, router, ...) are never public.
	if !strings.Contains(hostname, ".") {
		return nil
	}

	port := parsed.Port()
	if port == "" {
		if parsed.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	if _, ok := allowedPorts[port]; !ok {
		return nil
	}

	return parsed
}
