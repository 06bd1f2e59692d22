// Package geo resolves client addresses to ISO country codes using a
// MaxMind or DB-IP mmdb file.
package geo

import (
	"fmt"
	"log"
	"net/netip"

	"github.com/oschwald/geoip2-golang/v2"
)

// Lookup wraps a country database. A nil *Lookup is valid and resolves
// nothing, so callers need not check whether GeoIP is configured.
type Lookup struct {
	reader *geoip2.Reader
}

// Open loads the mmdb file at path.
func Open(path string) (*Lookup, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Lookup{reader: reader}, nil
}

// OpenOptional returns nil when path is empty or the file cannot be opened.
// Failures are logged and country lookup stays disabled.
func OpenOptional(path string) *Lookup {
	if path == "" {
		return nil
	}
	l, err := Open(path)
	if err != nil {
		log.Printf("geo: %v (country lookup disabled)", err)
		return nil
	}
	log.Printf("geo: loaded %s", path)
	return l
}

// Country returns the ISO code for ip, or "" when unknown.
func (l *Lookup) Country(ip string) string {
	if l == nil || l.reader == nil {
		return ""
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	record, err := l.reader.Country(addr.Unmap())
	if err != nil {
		return ""
	}
	return record.Country.ISOCode
}

// Close releases the database.
func (l *Lookup) Close() error {
	if l == nil || l.reader == nil {
		return nil
	}
	return l.reader.Close()
}
