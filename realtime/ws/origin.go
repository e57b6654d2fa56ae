package ws

import (
	"net/http"
	"net/url"
	"strings"
)

// IsOriginAllowed validates the Origin header of r against an allow-list.
//
// Entries are full origins ("https://example.com"), hostnames ("example.com") or
// wildcard hostnames ("*.example.com", subdomains only). A request without an Origin
// header is accepted only when allowNoOrigin is set; native SSCP clients send none.
func IsOriginAllowed(r *http.Request, allowed []string, allowNoOrigin bool) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return allowNoOrigin
	}
	hostname := ""
	if u, err := url.Parse(origin); err == nil {
		hostname = strings.ToLower(u.Hostname())
	}
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
		case strings.Contains(entry, "://"):
			if strings.EqualFold(origin, entry) {
				return true
			}
		case strings.HasPrefix(entry, "*."):
			if hostname != "" && strings.HasSuffix(hostname, entry[1:]) {
				return true
			}
		case hostname == entry:
			return true
		}
	}
	return false
}

// NewOriginChecker returns a CheckOrigin function. An empty allow-list accepts every origin.
func NewOriginChecker(allowed []string, allowNoOrigin bool) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		return IsOriginAllowed(r, allowed, allowNoOrigin)
	}
}
