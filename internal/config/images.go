package config

import "time"

// ImagesConfig configures image search and validation.
type ImagesConfig struct {
	Unsplash UnsplashConfig `yaml:"unsplash"`

	SearchTimeout   string `yaml:"search_timeout"`
	ValidateTimeout string `yaml:"validate_timeout"`

	// Successful searches are cached by query.
	CacheTTL  string `yaml:"cache_ttl"`
	CacheSize int    `yaml:"cache_size"` // 0 disables the cache
}

// UnsplashConfig configures the Unsplash search API.
type UnsplashConfig struct {
	BaseURL   string `yaml:"base_url"`
	AccessKey string `yaml:"access_key"`
}

// GetSearchTimeout returns the image search timeout as a duration.
func (c *Config) GetSearchTimeout() time.Duration {
	return parseDuration(c.Images.SearchTimeout, 5*time.Second)
}

// GetValidateTimeout returns the image HEAD check timeout as a duration.
func (c *Config) GetValidateTimeout() time.Duration {
	return parseDuration(c.Images.ValidateTimeout, 2*time.Second)
}

// GetImageCacheTTL returns the resolver cache TTL as a duration.
func (c *Config) GetImageCacheTTL() time.Duration {
	return parseDuration(c.Images.CacheTTL, 10*time.Minute)
}
