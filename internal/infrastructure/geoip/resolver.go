// Package geoip resolves client IP addresses to ISO country codes.
package geoip

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Resolver maps an IP address to an ISO 3166-1 alpha-2 country code.
type Resolver interface {
	Country(ip string) (string, error)
	Close() error
}

type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
	Close() error
}

// MaxMindResolver reads a GeoLite2/GeoIP2 Country or City database.
type MaxMindResolver struct {
	reader countryReader
}

// Open returns a MaxMind resolver for path, or a NopResolver when path is empty.
func Open(path string) (Resolver, error) {
	if path == "" {
		return NopResolver{}, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	return &MaxMindResolver{reader: reader}, nil
}

func (r *MaxMindResolver) Country(ip string) (string, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("invalid ip address %q", ip)
	}
	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip lookup %s: %w", ip, err)
	}
	return record.Country.IsoCode, nil
}

func (r *MaxMindResolver) Close() error {
	return r.reader.Close()
}

// NopResolver resolves nothing.
type NopResolver struct{}

func (NopResolver) Country(string) (string, error) { return "", nil }
func (NopResolver) Close() error                   { return nil }
