package geoip

import (
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// maxCached bounds the per-address cache; it is reset when full.
const maxCached = 4096

// Provider resolves server addresses to ISO country codes.
// Servers are queried repeatedly, so answers are cached per address.
type Provider struct {
	db    *geoip2.Reader
	cache map[string]string
	mu    sync.Mutex
}

// Open loads the MMDB file at path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	meta := db.Metadata()
	log.Debug().
		Str("path", path).
		Str("type", meta.DatabaseType).
		Uint("build_epoch", meta.BuildEpoch).
		Msg("GeoIP database opened")

	return &Provider{db: db, cache: make(map[string]string)}, nil
}

// Close releases the database.
func (p *Provider) Close() error {
	return p.db.Close()
}

// GetCountryCode returns the ISO country code ("US", "DE") of a server address.
// Addresses that cannot be located yield an empty string.
func (p *Provider) GetCountryCode(ipStr string) string {
	ip := routableIP(ipStr)
	if ip == nil {
		return ""
	}

	key := ip.String()

	p.mu.Lock()
	code, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return code
	}

	record, err := p.db.Country(ip)
	if err != nil {
		log.Debug().Err(err).Str("ip", key).Msg("GeoIP lookup failed")
		return ""
	}
	code = record.Country.IsoCode

	p.mu.Lock()
	if len(p.cache) >= maxCached {
		clear(p.cache)
	}
	p.cache[key] = code
	p.mu.Unlock()

	return code
}

// routableIP parses s and drops loopback, private, link-local and unspecified
// addresses, which no GeoIP database can place.
func routableIP(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil ||
		ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() {
		return nil
	}
	return ip
}
