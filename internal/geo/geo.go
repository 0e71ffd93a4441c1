package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/oschwald/geoip2-golang"

	"github.com/mathi4s/gatehouse/internal/logger"
)

// Location is the coarse geography attached to an analytics event.
type Location struct {
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Resolver maps an IP to a Location. Implementations must treat lookup
// failures as "unknown", never as errors worth failing a request over.
type Resolver interface {
	Resolve(ctx context.Context, ip string) Location
}

// Noop resolves everything to an empty location.
type Noop struct{}

func (Noop) Resolve(context.Context, string) Location { return Location{} }

// MMDBResolver reads a local GeoLite2 City database.
type MMDBResolver struct {
	reader *geoip2.Reader
}

// OpenMMDB opens the database at path. The caller owns Close.
func OpenMMDB(path string) (*MMDBResolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MMDBResolver{reader: reader}, nil
}

// Resolve implements Resolver.
func (r *MMDBResolver) Resolve(_ context.Context, ip string) Location {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}
	}
	record, err := r.reader.City(parsed)
	if err != nil {
		logger.Log().WithError(err).Debug("geoip lookup failed")
		return Location{}
	}
	loc := Location{Country: record.Country.Names["en"]}
	if name, ok := record.City.Names["en"]; ok {
		loc.City = name
	}
	return loc
}

// Close releases the underlying database.
func (r *MMDBResolver) Close() error { return r.reader.Close() }

// HTTPResolver queries an ip-api-style JSON endpoint:
// GET {base}/{ip} returning {"city": ..., "country": ...}.
// Used when no local database is available.
type HTTPResolver struct {
	baseURL string
	http    *http.Client
}

// NewHTTPResolver builds an HTTPResolver with a short per-lookup timeout.
func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 3 * time.Second},
	}
}

type lookupResponse struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// Resolve implements Resolver.
func (r *HTTPResolver) Resolve(ctx context.Context, ip string) Location {
	endpoint := fmt.Sprintf("%s/%s", r.baseURL, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Location{}
	}

	resp, err := r.http.Do(req)
	if err != nil {
		logger.Log().WithError(err).Debug("geo lookup failed")
		return Location{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}
	}
	return Location{City: body.City, Country: body.Country}
}
