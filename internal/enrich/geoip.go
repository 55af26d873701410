package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLookupFailed signals that the geolocation service had no answer for
// the IP. Callers tolerate it by leaving geographic fields null.
var ErrLookupFailed = errors.New("geo lookup failed")

const (
	defaultGeoEndpoint = "http://ip-api.com"
	defaultGeoTimeout  = 3 * time.Second
	defaultGeoCacheTTL = time.Hour

	geoCacheKeyPrefix = "geo:"
)

// Location is the already-resolved geographic metadata for an IP. Empty
// fields mean the service did not know.
type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Region  string `json:"region"`
}

// GeoResolverConfig tunes the resolver. Zero values fall back to the
// defaults above.
type GeoResolverConfig struct {
	Endpoint string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// GeoResolver resolves an IP address to country/city/region via the
// ip-api.com JSON endpoint, caching answers per IP in Redis so bursts of
// scans from one network cost a single upstream call.
type GeoResolver struct {
	logger   *zap.Logger
	client   *http.Client
	cache    *redis.Client
	endpoint string
	cacheTTL time.Duration
}

// NewGeoResolver builds a resolver. cache may be nil, which disables
// caching but not lookups.
func NewGeoResolver(logger *zap.Logger, cache *redis.Client, cfg GeoResolverConfig) *GeoResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultGeoEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGeoTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultGeoCacheTTL
	}
	return &GeoResolver{
		logger:   logger,
		client:   &http.Client{Timeout: cfg.Timeout},
		cache:    cache,
		endpoint: cfg.Endpoint,
		cacheTTL: cfg.CacheTTL,
	}
}

// Lookup resolves ip. Private and loopback addresses short-circuit to a
// synthetic "Local" location without an upstream call.
func (r *GeoResolver) Lookup(ctx context.Context, ip string) (Location, error) {
	if isLocalIP(ip) {
		return Location{Country: "Local", City: "Localhost", Region: "Local Network"}, nil
	}

	if loc, ok := r.fromCache(ctx, ip); ok {
		return loc, nil
	}

	loc, err := r.query(ctx, ip)
	if err != nil {
		return Location{}, err
	}

	r.toCache(ctx, ip, loc)
	return loc, nil
}

func (r *GeoResolver) query(ctx context.Context, ip string) (Location, error) {
	url := fmt.Sprintf("%s/json/%s", r.endpoint, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, fmt.Errorf("geo: build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var payload struct {
		Status     string `json:"status"`
		Country    string `json:"country"`
		City       string `json:"city"`
		RegionName string `json:"regionName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Location{}, fmt.Errorf("%w: decode: %v", ErrLookupFailed, err)
	}
	if payload.Status != "success" {
		return Location{}, fmt.Errorf("%w: status %q", ErrLookupFailed, payload.Status)
	}

	return Location{
		Country: payload.Country,
		City:    payload.City,
		Region:  payload.RegionName,
	}, nil
}

func (r *GeoResolver) fromCache(ctx context.Context, ip string) (Location, bool) {
	if r.cache == nil {
		return Location{}, false
	}
	data, err := r.cache.Get(ctx, geoCacheKeyPrefix+ip).Bytes()
	if err != nil {
		return Location{}, false
	}
	var loc Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return Location{}, false
	}
	return loc, true
}

func (r *GeoResolver) toCache(ctx context.Context, ip string, loc Location) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, geoCacheKeyPrefix+ip, data, r.cacheTTL).Err(); err != nil {
		r.logger.Debug("geo cache write failed", zap.String("ip", ip), zap.Error(err))
	}
}

func isLocalIP(ip string) bool {
	if ip == "" {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast()
}
