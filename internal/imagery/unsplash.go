package imagery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maypok86/otter"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"promptcanvas/internal/logging"
	"promptcanvas/internal/telemetry"
)

// DefaultUnsplashURL is the public Unsplash API root.
const DefaultUnsplashURL = "https://api.unsplash.com"

var errNoResults = errors.New("search returned no results")

// UnsplashConfig configures an UnsplashResolver.
type UnsplashConfig struct {
	BaseURL   string
	AccessKey string
	Timeout   time.Duration // per search, default 5s

	// Successful lookups are cached for CacheTTL. CacheSize 0 disables it.
	CacheTTL  time.Duration
	CacheSize int

	HTTPClient *http.Client
	Metrics    *telemetry.Metrics
	Logger     *zap.Logger
}

// UnsplashResolver resolves queries with the Unsplash photo search API.
// Identical concurrent queries share one upstream request.
type UnsplashResolver struct {
	baseURL   string
	accessKey string
	timeout   time.Duration
	client    *http.Client
	metrics   *telemetry.Metrics
	logger    *zap.Logger

	group singleflight.Group
	cache *otter.Cache[string, string]
}

// NewUnsplashResolver creates a resolver from cfg.
func NewUnsplashResolver(cfg UnsplashConfig) (*UnsplashResolver, error) {
	r := &UnsplashResolver{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		accessKey: cfg.AccessKey,
		timeout:   cfg.Timeout,
		client:    cfg.HTTPClient,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	if r.baseURL == "" {
		r.baseURL = DefaultUnsplashURL
	}
	if r.timeout <= 0 {
		r.timeout = 5 * time.Second
	}
	if r.client == nil {
		r.client = &http.Client{}
	}
	if r.logger == nil {
		r.logger = logging.Get(logging.CategoryImagery).Zap()
	}

	if cfg.CacheSize > 0 {
		ttl := cfg.CacheTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		cache, err := otter.MustBuilder[string, string](cfg.CacheSize).
			WithTTL(ttl).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build resolver cache: %w", err)
		}
		r.cache = &cache
	}

	return r, nil
}

// Resolve returns the first landscape result for query. Failures of any
// kind (network, status, decoding, empty results) report false.
func (r *UnsplashResolver) Resolve(ctx context.Context, query string) (string, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false
	}
	key := strings.ToLower(query)

	if r.cache != nil {
		if u, ok := r.cache.Get(key); ok {
			r.metrics.IncrementImageLookup(telemetry.StageResolve, telemetry.ResultHit)
			return u, true
		}
	}

	v, err, shared := r.group.Do(key, func() (any, error) {
		u, err := r.search(ctx, query)
		if err != nil {
			return "", err
		}
		if r.cache != nil {
			r.cache.Set(key, u)
		}
		return u, nil
	})
	if err != nil {
		r.metrics.IncrementImageLookup(telemetry.StageResolve, telemetry.ResultFail)
		r.logger.Warn("image search failed", zap.String("query", query), zap.Error(err))
		return "", false
	}

	r.metrics.IncrementImageLookup(telemetry.StageResolve, telemetry.ResultOK)
	u := v.(string)
	r.logger.Debug("image search resolved", zap.String("query", query), zap.String("url", u), zap.Bool("shared", shared))
	return u, true
}

type searchResponse struct {
	Results []struct {
		URLs struct {
			Regular string `json:"regular"`
		} `json:"urls"`
	} `json:"results"`
}

func (r *UnsplashResolver) search(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("query", query)
	params.Set("client_id", r.accessKey)
	params.Set("per_page", "1")
	params.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Version", "v1")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode search response: %w", err)
	}
	if len(body.Results) == 0 || body.Results[0].URLs.Regular == "" {
		return "", errNoResults
	}
	return body.Results[0].URLs.Regular, nil
}

// Close releases the cache.
func (r *UnsplashResolver) Close() {
	if r.cache != nil {
		r.cache.Close()
	}
}
