// Package resolver turns an operator-supplied hostname into the endpoint that actually
// serves it, following the _minecraft._tcp service-discovery convention.
package resolver

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcpanel/internal/models"
)

const (
	// Service is the SRV service label used for Minecraft Java servers.
	Service = "minecraft"

	// Proto is the SRV protocol label.
	Proto = "tcp"
)

// SRVLookuper is the subset of net.Resolver used for discovery.
// This interface allows for mocking DNS resolution in tests.
type SRVLookuper interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// Resolver resolves hostnames to endpoints.
type Resolver struct {
	lookup  SRVLookuper
	timeout time.Duration
}

// New creates a Resolver using the system DNS configuration.
func New(timeout time.Duration) *Resolver {
	return NewWithLookuper(net.DefaultResolver, timeout)
}

// NewWithLookuper creates a Resolver backed by a custom SRV lookuper.
func NewWithLookuper(lookup SRVLookuper, timeout time.Duration) *Resolver {
	return &Resolver{lookup: lookup, timeout: timeout}
}

// Resolve returns the endpoint for host.
//
// An explicit port (> 0) bypasses discovery entirely. Otherwise the first SRV record
// of _minecraft._tcp.<host> wins; any lookup failure falls back to host:25565.
// Resolution never fails.
func (r *Resolver) Resolve(ctx context.Context, host string, port int) models.Endpoint {
	if port > 0 {
		return models.Endpoint{Host: host, Port: port}
	}

	fallback := models.Endpoint{Host: host, Port: models.DefaultPort}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	_, records, err := r.lookup.LookupSRV(ctx, Service, Proto, host)
	if err != nil {
		log.Debug().Err(err).Str("host", host).Msg("SRV lookup failed, using default port")
		return fallback
	}
	if len(records) == 0 || records[0] == nil {
		log.Debug().Str("host", host).Msg("No SRV record, using default port")
		return fallback
	}

	target := strings.TrimSuffix(records[0].Target, ".")
	if target == "" || records[0].Port == 0 {
		log.Debug().Str("host", host).Msg("SRV record is empty, using default port")
		return fallback
	}

	ep := models.Endpoint{Host: target, Port: int(records[0].Port)}
	log.Debug().
		Str("host", host).
		Str("target", ep.Host).
		Int("port", ep.Port).
		Int("records", len(records)).
		Msg("SRV record resolved")

	return ep
}

// ParseAddress splits an operator-typed address into host and port.
// A missing port yields 0, meaning "not explicit". IPv6 literals must be bracketed
// when a port is attached.
func ParseAddress(addr string) (string, int, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", 0, fmt.Errorf("address is empty")
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port part (or a bare IPv6 literal)
		return strings.Trim(addr, "[]"), 0, nil
	}
	if host == "" {
		return "", 0, fmt.Errorf("address %q has no host", addr)
	}

	port, err := ParsePort(portStr)
	if err != nil {
		return "", 0, err
	}

	return host, port, nil
}

// ParsePort parses an optional port. Blank input yields 0.
func ParsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}

	return port, nil
}
