// Package endpoint decides whether a TTS URL may be dialed.
//
// The check is a strict allow-list: scheme, host and port must each be
// named explicitly. There is no wildcard or suffix matching, so cloud
// metadata addresses and arbitrary internal hosts are unreachable.
package endpoint

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// ErrUnsafe is returned for any URL the policy refuses.
var ErrUnsafe = errors.New("unsafe endpoint")

// DefaultHosts are the hosts accepted when none are configured.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1", "tts"}

// DefaultPorts are the ports accepted when none are configured.
var DefaultPorts = []int{5000, 8000, 8880}

// Policy is an immutable host/port allow-list.
type Policy struct {
	hosts map[string]struct{}
	ports map[int]struct{}
}

// NewPolicy builds a policy. Hosts are compared case-insensitively. An
// empty hosts or ports slice falls back to the defaults.
func NewPolicy(hosts []string, ports []int) (*Policy, error) {
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	if len(ports) == 0 {
		ports = DefaultPorts
	}

	p := &Policy{
		hosts: make(map[string]struct{}, len(hosts)),
		ports: make(map[int]struct{}, len(ports)),
	}
	for _, h := range hosts {
		h = normalizeHost(h)
		if h == "" {
			return nil, errors.New("endpoint: empty host in allow-list")
		}
		if strings.ContainsAny(h, "*?") {
			return nil, fmt.Errorf("endpoint: wildcard host %q not supported", h)
		}
		p.hosts[h] = struct{}{}
	}
	for _, port := range ports {
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("endpoint: port %d out of range", port)
		}
		p.ports[port] = struct{}{}
	}
	return p, nil
}

// Hosts returns the allowed hosts, sorted.
func (p *Policy) Hosts() []string {
	out := make([]string, 0, len(p.hosts))
	for h := range p.hosts {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// Validate parses raw and checks it against the policy. The returned URL
// is safe to dial.
func (p *Policy) Validate(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty url", ErrUnsafe)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable url", ErrUnsafe)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: scheme %q not allowed", ErrUnsafe, u.Scheme)
	}
	if u.Opaque != "" {
		return nil, fmt.Errorf("%w: opaque url", ErrUnsafe)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: credentials in url", ErrUnsafe)
	}

	host := normalizeHost(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrUnsafe)
	}
	if _, ok := p.hosts[host]; !ok {
		return nil, fmt.Errorf("%w: host %q not allowed", ErrUnsafe, host)
	}

	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("%w: bad port", ErrUnsafe)
		}
		if _, ok := p.ports[port]; !ok {
			return nil, fmt.Errorf("%w: port %d not allowed", ErrUnsafe, port)
		}
	} else if strings.HasSuffix(u.Host, ":") {
		return nil, fmt.Errorf("%w: empty port", ErrUnsafe)
	}

	return u, nil
}

func normalizeHost(h string) string {
	h = strings.TrimSpace(strings.ToLower(h))
	h = strings.TrimPrefix(h, "[")
	h = strings.TrimSuffix(h, "]")
	return strings.TrimSuffix(h, ".")
}
