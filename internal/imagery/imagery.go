// Package imagery resolves free-text image descriptions to URLs and checks
// that a URL actually serves an image.
//
// Both capabilities swallow their failures: a resolver either returns a URL
// or reports not-found, and a validator answers a plain yes or no. Callers
// map a negative answer to IMAGE_NOT_FOUND.
package imagery

import "context"

// Resolver turns a search query into an image URL.
type Resolver interface {
	Resolve(ctx context.Context, query string) (string, bool)
}

// Validator reports whether url serves an image.
type Validator interface {
	Validate(ctx context.Context, url string) bool
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, query string) (string, bool)

func (f ResolverFunc) Resolve(ctx context.Context, query string) (string, bool) {
	return f(ctx, query)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, url string) bool

func (f ValidatorFunc) Validate(ctx context.Context, url string) bool {
	return f(ctx, url)
}

// Static is a fixed Resolver and Validator for offline runs and tests.
// Queries resolve through Results; URLs validate when listed in Valid, or
// when AllowAll is set.
type Static struct {
	Results  map[string]string
	Valid    map[string]bool
	AllowAll bool
}

func (s Static) Resolve(_ context.Context, query string) (string, bool) {
	u, ok := s.Results[query]
	return u, ok && u != ""
}

func (s Static) Validate(_ context.Context, url string) bool {
	return s.AllowAll || s.Valid[url]
}

// Disabled resolves nothing and validates nothing.
var Disabled = Static{}
