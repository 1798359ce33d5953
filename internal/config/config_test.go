package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"-schema", "supergraph.graphql"})
	require.NoError(t, err)
	require.Equal(t, "supergraph.graphql", cfg.SchemaPath)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 10*time.Second, cfg.Timeout)
	require.True(t, cfg.GraphiQL)
	require.Empty(t, cfg.CORSOrigins)
}

func TestParseMissingSchemaFails(t *testing.T) {
	_, err := Parse([]string{"-server.addr", ":9090"})
	require.Error(t, err)
}

func TestParseRepeatableCORSOrigins(t *testing.T) {
	cfg, err := Parse([]string{
		"-schema", "supergraph.graphql",
		"-server.cors-origin", "https://a.example",
		"-server.cors-origin", "https://b.example",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]string{
		"-schema", "supergraph.graphql",
		"-server.pretty",
		"-server.timeout", "2s",
		"-server.max-body-bytes", "1024",
		"-auth.sidecar-addr", "localhost:7000",
		"-cache.bucket-url", "mem://",
	})
	require.NoError(t, err)
	require.True(t, cfg.Pretty)
	require.Equal(t, 2*time.Second, cfg.Timeout)
	require.Equal(t, int64(1024), cfg.MaxBodyBytes)
	require.Equal(t, "localhost:7000", cfg.AuthSidecarAddr)
	require.Equal(t, "mem://", cfg.CacheBucketURL)
}
