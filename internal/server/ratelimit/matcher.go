package ratelimit

import (
	"net/http"
	"strings"
)

// unlimited applies to health probes and metric scrapes
var unlimited = EndpointConfig{Path: "*"}

// MatchEndpoint returns the endpoint configuration for a request, or nil when
// the default limit applies. Paths use the same shape as the server's routes:
// "/history/{id}/reopen" matches one segment per wildcard, and a path ending
// in "/" matches everything below it. Literal paths win over wildcard ones.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if method == http.MethodGet && (path == "/health" || path == "/metrics") {
		ec := unlimited
		return &ec
	}

	var fallback *EndpointConfig
	for i := range configs {
		ec := &configs[i]
		if ec.Method != method {
			continue
		}
		if ec.Path == path {
			return ec
		}
		if fallback == nil && matchPattern(ec.Path, path) {
			fallback = ec
		}
	}
	return fallback
}

func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/") && !strings.Contains(pattern, "{") {
		return strings.HasPrefix(path, pattern)
	}
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i, seg := range want {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if seg != got[i] {
			return false
		}
	}
	return true
}
