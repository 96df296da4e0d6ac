/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/shardlog/pkg/api"
	"github.com/ssargent/shardlog/pkg/catalog"
	"github.com/ssargent/shardlog/pkg/config"
	"github.com/ssargent/shardlog/pkg/di"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the shard inspection HTTP API",
	Long: `Start an HTTP server exposing the shards of the data directory:

  GET /api/v1/health
  GET /api/v1/shards
  GET /api/v1/shards/count
  GET /api/v1/shards/{name}/records?limit=N
  GET /metrics

Set SHARDLOG_API_KEY (or --api-key) to require an X-API-Key header.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v.IsSet("server.port") {
			appConfig.Server.Port = v.GetInt("server.port")
		}
		if v.IsSet("server.bind") {
			appConfig.Server.Bind = v.GetString("server.bind")
		}

		server, cat, err := newServer(getContainer(), appConfig, v.GetString("api_key"))
		if err != nil {
			return err
		}
		if cat != nil {
			defer cat.Close()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind to")
	serveCmd.Flags().String("api-key", "", "Require this X-API-Key on /api/v1 requests")

	_ = v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = v.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	_ = v.BindPFlag("api_key", serveCmd.Flags().Lookup("api-key"))
}

// newServer builds the API server for cfg, opening the catalog when it is
// enabled. The caller closes the returned catalog.
func newServer(c *di.Container, cfg *config.Config, apiKey string) (*api.Server, *catalog.Catalog, error) {
	rc, err := cfg.ReaderConfig()
	if err != nil {
		return nil, nil, err
	}
	rc.Logger = c.Logger()
	rc.Metrics = c.Metrics()

	var cat *catalog.Catalog
	if cfg.Catalog.Enabled {
		if cat, err = c.OpenCatalog(cfg.CatalogDir()); err != nil {
			return nil, nil, err
		}
	}

	server := api.NewServer(api.ServerConfig{
		Port:     cfg.Server.Port,
		Bind:     cfg.Server.Bind,
		APIKey:   apiKey,
		DataDir:  cfg.DataDir,
		Prefix:   cfg.Prefix,
		Reader:   rc,
		Gatherer: c.Registry(),
		Logger:   c.Logger(),
	}, cat, c.APIMetrics())
	return server, cat, nil
}
