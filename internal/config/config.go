// Package config parses cmd/gateway's process configuration the way
// cmd/protograph's "serve" subcommand does: one flag.FlagSet, repeatable
// flags via a flag.Value, plain defaults. Composing the supergraph SDL and
// wiring hooks from this Config happens in cmd/gateway/main.go, not here.
package config

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"time"
)

const usage = `gateway FLAGS:
  -schema <file>                 Path to the composed supergraph SDL (required)
  -server.addr <addr>            HTTP listen address (default: :8080)
  -server.pretty                 Pretty-print JSON responses
  -server.timeout <duration>     Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body-bytes <n>     Reject request bodies larger than n bytes (default: unlimited)
  -server.cors-origin <origin>   Allowed CORS origin, "*" for any. Repeatable
  -server.graphiql <bool>        Serve the GraphiQL IDE on a bare GET (default: true)
  -otel.endpoint <addr>          OTLP collector endpoint
  -otel.service <name>           OpenTelemetry service name (default: gateway)
  -cache.bucket-url <url>        gocloud.dev/blob bucket URL for the entity cache, e.g. mem://
  -auth.sidecar-addr <addr>      gRPC address of the authorize_query/authorize_response sidecar
`

// Config is the gateway process's full set of flag-derived settings.
type Config struct {
	SchemaPath string

	Addr         string
	Pretty       bool
	Timeout      time.Duration
	MaxBodyBytes int64
	CORSOrigins  []string
	GraphiQL     bool

	OTelEndpoint string
	OTelService  string

	CacheBucketURL string

	AuthSidecarAddr string
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// Parse parses args (typically os.Args[1:]) into a Config, printing usage to
// stderr and returning an error on a bad or missing flag.
func Parse(args []string) (*Config, error) {
	cfg := &Config{
		Addr:        ":8080",
		Timeout:     10 * time.Second,
		GraphiQL:    true,
		OTelService: "gateway",
	}
	var origins stringListFlag

	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer)) // silence automatic output; we print usage ourselves
	fs.StringVar(&cfg.SchemaPath, "schema", "", "Path to the composed supergraph SDL")
	fs.StringVar(&cfg.Addr, "server.addr", cfg.Addr, "HTTP listen address")
	fs.BoolVar(&cfg.Pretty, "server.pretty", cfg.Pretty, "Pretty-print JSON responses")
	fs.DurationVar(&cfg.Timeout, "server.timeout", cfg.Timeout, "Per-request timeout")
	fs.Int64Var(&cfg.MaxBodyBytes, "server.max-body-bytes", cfg.MaxBodyBytes, "Max request body size in bytes")
	fs.Var(&origins, "server.cors-origin", "Allowed CORS origin. Repeatable")
	fs.BoolVar(&cfg.GraphiQL, "server.graphiql", cfg.GraphiQL, "Serve the GraphiQL IDE on a bare GET")
	fs.StringVar(&cfg.OTelEndpoint, "otel.endpoint", cfg.OTelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&cfg.OTelService, "otel.service", cfg.OTelService, "OpenTelemetry service name")
	fs.StringVar(&cfg.CacheBucketURL, "cache.bucket-url", cfg.CacheBucketURL, "gocloud.dev/blob bucket URL for the entity cache")
	fs.StringVar(&cfg.AuthSidecarAddr, "auth.sidecar-addr", cfg.AuthSidecarAddr, "gRPC address of the authorization sidecar")

	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, usage)
		return nil, err
	}
	if cfg.SchemaPath == "" {
		fmt.Fprint(os.Stderr, usage)
		return nil, fmt.Errorf("-schema is required")
	}
	cfg.CORSOrigins = origins
	return cfg, nil
}

// Usage returns the flag help text, for a "help" subcommand or -h output.
func Usage() string { return usage }
