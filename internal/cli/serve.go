package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlayout/internal/server"
	"github.com/matzehuels/flowlayout/pkg/cache"
	"github.com/matzehuels/flowlayout/pkg/pipeline"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr        string
		noCache     bool
		keyPrefix   string
		timeout     time.Duration
		allowOrigin string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP layout API",
		Long: `Run the HTTP layout API.

Endpoints: POST /v1/layout, POST /v1/validate, GET /healthz.

Results are cached in Redis when ` + envRedisURL + ` is set (for example
redis://localhost:6379/0), otherwise in the local file cache. Keys are
prefixed with --key-prefix so several deployments can share one Redis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := c.serverRunner(ctx, noCache, keyPrefix)
			if err != nil {
				return err
			}
			defer runner.Close()

			srv := server.New(runner, c.Logger)
			srv.RequestTimeout = timeout
			srv.AllowedOrigin = allowOrigin
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&keyPrefix, "key-prefix", appName+":", "prefix for Redis cache keys")
	cmd.Flags().DurationVar(&timeout, "timeout", server.DefaultRequestTimeout, "per-request layout timeout")
	cmd.Flags().StringVar(&allowOrigin, "allow-origin", "*", "Access-Control-Allow-Origin value")

	return cmd
}

// serverRunner picks the cache backend for serve.
func (c *CLI) serverRunner(ctx context.Context, noCache bool, keyPrefix string) (*pipeline.Runner, error) {
	if noCache {
		return pipeline.NewRunner(cache.NewNullCache(), nil, c.Logger), nil
	}
	if url := os.Getenv(envRedisURL); url != "" {
		rc, err := cache.NewRedisCache(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		c.Logger.Info("using redis cache", "prefix", keyPrefix)
		return pipeline.NewRunner(rc, cache.NewScopedKeyer(cache.NewDefaultKeyer(), keyPrefix), c.Logger), nil
	}
	return c.newRunner(false)
}
