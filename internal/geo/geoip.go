package geo

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

// GeoIPLocator resolves locations from a MaxMind GeoLite2/GeoIP2 City database.
type GeoIPLocator struct {
	reader *geoip2.Reader
}

// OpenGeoIP opens the City database at path. Caller must Close it.
func OpenGeoIP(path string) (*GeoIPLocator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoIPLocator{reader: reader}, nil
}

// Lookup returns the ISO country code and English city name for ip.
func (l *GeoIPLocator) Lookup(ip net.IP) (Location, error) {
	rec, err := l.reader.City(ip)
	if err != nil {
		return Location{}, err
	}
	return Location{
		Country: rec.Country.IsoCode,
		City:    rec.City.Names["en"],
	}, nil
}

func (l *GeoIPLocator) Close() error {
	return l.reader.Close()
}
