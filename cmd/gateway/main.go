// Command gateway runs the federated GraphQL gateway's HTTP surface: a
// POST/GET JSON endpoint plus SSE/multipart/graphql-transport-ws
// subscriptions, all routed through one composed supergraph SDL file.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	config "github.com/fedgraph/gateway/internal/config"
	eventbus "github.com/fedgraph/gateway/internal/eventbus"
	executor "github.com/fedgraph/gateway/internal/executor"
	cachehook "github.com/fedgraph/gateway/internal/hooks/cachehook"
	grpchook "github.com/fedgraph/gateway/internal/hooks/grpchook"
	otelwire "github.com/fedgraph/gateway/internal/otel"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
	server "github.com/fedgraph/gateway/internal/server"
	httptp "github.com/fedgraph/gateway/internal/transport/httptp"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	cfg, err := config.Parse(args)
	if err != nil {
		return err
	}

	sdl, err := os.ReadFile(cfg.SchemaPath)
	if err != nil {
		return fmt.Errorf("read supergraph SDL: %w", err)
	}
	idx, err := schemaindex.BuildFromSDL(cfg.SchemaPath, string(sdl))
	if err != nil {
		return fmt.Errorf("build schema index: %w", err)
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otelwire.Setup(cfg.OTelEndpoint, cfg.OTelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	exec := &executor.Executor{Transport: httptp.New()}

	if cfg.CacheBucketURL != "" {
		bucket, err := blob.OpenBucket(context.Background(), cfg.CacheBucketURL)
		if err != nil {
			return fmt.Errorf("open entity cache bucket: %w", err)
		}
		defer bucket.Close()
		exec.EntityCache = cachehook.New(bucket)
	}

	var sopts []server.Option
	if cfg.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if cfg.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxBodyBytes > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(cfg.MaxBodyBytes))
	}
	if len(cfg.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.CORSOrigins...))
	}
	sopts = append(sopts, server.WithGraphiQL(cfg.GraphiQL))

	if cfg.AuthSidecarAddr != "" {
		conn, err := grpc.NewClient(cfg.AuthSidecarAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("dial authorization sidecar: %w", err)
		}
		defer conn.Close()
		authz := grpchook.New(conn)
		sopts = append(sopts, server.WithQueryAuthorizer(authz), server.WithResponseAuthorizer(authz))
	}

	h := server.New(idx, exec, sopts...)

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)

	log.Printf("gateway listening on %s (schema: %s)", cfg.Addr, cfg.SchemaPath)
	return http.ListenAndServe(cfg.Addr, mux)
}
