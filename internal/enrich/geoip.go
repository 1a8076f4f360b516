package enrich

import (
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

type Geo struct {
	Country string
	Region  string
	City    string
}

// GeoIP resolves submitter IPs to a coarse location for the dashboard. A nil
// receiver is valid and reports no match, so callers never have to branch on
// whether a database was configured.
type GeoIP struct {
	city *geoip2.Reader
}

func NewGeoIP(cityPath string) (*GeoIP, error) {
	cityPath = strings.TrimSpace(cityPath)
	if cityPath == "" {
		return nil, nil
	}
	city, err := geoip2.Open(cityPath)
	if err != nil {
		return nil, err
	}
	return &GeoIP{city: city}, nil
}

func (g *GeoIP) Close() error {
	if g == nil || g.city == nil {
		return nil
	}
	return g.city.Close()
}

func (g *GeoIP) Lookup(ipStr string) (Geo, bool) {
	if g == nil || g.city == nil {
		return Geo{}, false
	}
	ip := net.ParseIP(strings.TrimSpace(ipStr))
	if ip == nil {
		return Geo{}, false
	}

	rec, err := g.city.City(ip)
	if err != nil {
		return Geo{}, false
	}

	out := Geo{}
	ok := false
	if rec.Country.IsoCode != "" {
		out.Country = rec.Country.IsoCode
		ok = true
	}
	if len(rec.Subdivisions) > 0 && rec.Subdivisions[0].IsoCode != "" {
		out.Region = rec.Subdivisions[0].IsoCode
		ok = true
	}
	if rec.City.Names != nil {
		if name := rec.City.Names["en"]; strings.TrimSpace(name) != "" {
			out.City = name
			ok = true
		}
	}
	return out, ok
}
