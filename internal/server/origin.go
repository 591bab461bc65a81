// Package server normalizes and validates HTTP origins for WebSocket upgrade
// requests to the relay gateway.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const wildcardOrigin = "*"

// originPolicy is the allow-list consulted by the WebSocket upgrader. Origins
// compare by lowercased scheme and host; a "*" entry admits any request whose
// Origin header is a well-formed origin.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
	log      *slog.Logger
}

func newOriginPolicy(origins []string, log *slog.Logger) *originPolicy {
	policy := &originPolicy{
		allowed: make(map[string]struct{}, len(origins)),
		log:     log,
	}
	for _, origin := range origins {
		policy.add(origin)
	}
	return policy
}

func (p *originPolicy) add(origin string) {
	trimmed := strings.TrimSpace(origin)
	switch trimmed {
	case "":
		return
	case wildcardOrigin:
		p.allowAll = true
		return
	}

	key, err := originKey(trimmed)
	if err != nil {
		p.log.Warn("Ignoring invalid origin in configuration", "origin", origin, "error", err)
		return
	}
	p.allowed[key] = struct{}{}
}

// originKey reduces an origin to "scheme://host".
func originKey(origin string) (string, error) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("origin %q needs a scheme and a host", origin)
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), nil
}

func (p *originPolicy) isAllowed(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" {
		return false
	}

	key, err := originKey(header)
	if err != nil {
		return false
	}
	if p.allowAll {
		return true
	}
	_, ok := p.allowed[key]
	return ok
}

// check is the upgrader's CheckOrigin hook.
func (p *originPolicy) check(r *http.Request) bool {
	if p.isAllowed(r) {
		return true
	}
	p.log.Warn("Blocked WebSocket connection from disallowed origin", "origin", r.Header.Get("Origin"))
	return false
}
