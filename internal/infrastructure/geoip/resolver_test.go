package geoip

import (
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	countries map[string]string
	err       error
	closed    bool
}

func (f *fakeReader) Country(ip net.IP) (*geoip2.Country, error) {
	if f.err != nil {
		return nil, f.err
	}
	record := &geoip2.Country{}
	record.Country.IsoCode = f.countries[ip.String()]
	return record, nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestMaxMindResolver_Country(t *testing.T) {
	reader := &fakeReader{countries: map[string]string{"81.2.69.142": "GB"}}
	r := &MaxMindResolver{reader: reader}

	tests := []struct {
		name    string
		ip      string
		want    string
		wantErr bool
	}{
		{"known address", "81.2.69.142", "GB", false},
		{"surrounding whitespace", " 81.2.69.142 ", "GB", false},
		{"unknown address", "10.0.0.1", "", false},
		{"not an ip", "example.com", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Country(tt.ip)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	require.NoError(t, r.Close())
	assert.True(t, reader.closed)
}

func TestMaxMindResolver_LookupError(t *testing.T) {
	r := &MaxMindResolver{reader: &fakeReader{err: errors.New("corrupt")}}
	_, err := r.Country("81.2.69.142")
	assert.ErrorContains(t, err, "corrupt")
}

func TestOpen(t *testing.T) {
	r, err := Open("")
	require.NoError(t, err)
	assert.IsType(t, NopResolver{}, r)

	country, err := r.Country("81.2.69.142")
	require.NoError(t, err)
	assert.Empty(t, country)

	_, err = Open("/nonexistent/GeoLite2-Country.mmdb")
	assert.Error(t, err)
}
