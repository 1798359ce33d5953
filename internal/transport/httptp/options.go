package httptp

import (
	"net/http"
	"time"
)

// Options configures a Transport. See New.
type Options struct {
	Client              *http.Client
	MaxConnsPerHost     int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	RequestTimeout      time.Duration
}

// Option configures a Transport at construction time.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		MaxConnsPerHost:     16,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		RequestTimeout:      10 * time.Second,
	}
}

// WithClient overrides the *http.Client used for every origin, bypassing the
// transport's own per-origin pool construction entirely.
func WithClient(c *http.Client) Option { return func(o *Options) { o.Client = c } }

// WithMaxConnsPerHost bounds concurrent connections the transport keeps open
// to any one subgraph origin.
func WithMaxConnsPerHost(n int) Option {
	return func(o *Options) { o.MaxConnsPerHost, o.MaxIdleConnsPerHost = n, n }
}

// WithRequestTimeout sets the default deadline applied to a subgraph call
// when its context carries none. A deadline already on ctx, such as the
// server's per-request timeout, takes precedence; there is no per-subgraph
// timeout setting.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Options) { o.RequestTimeout = d }
}
