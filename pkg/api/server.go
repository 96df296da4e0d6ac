// Package api serves a read-only HTTP view of a shard directory: listings,
// record counts and the leading records of a shard.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statsInterval is how often the background updater refreshes shard gauges
const statsInterval = 30 * time.Second

// Router returns the HTTP handler with all routes configured
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	if s.config.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(apiKeyMiddleware(s.config.APIKey))
		}

		r.Get("/health", s.instrument("GET", "/api/v1/health", s.handleHealth))
		r.Get("/shards", s.instrument("GET", "/api/v1/shards", s.handleListShards))
		r.Get("/shards/count", s.instrument("GET", "/api/v1/shards/count", s.handleCount))
		r.Get("/shards/{name}/records", s.instrument("GET", "/api/v1/shards/{name}/records", s.handleRecords))
	})

	return r
}

func (s *Server) instrument(method, endpoint string, h http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return h
	}
	return s.metrics.InstrumentHandler(method, endpoint, h)
}

// Serve listens on the configured address until ctx is cancelled, then shuts
// down gracefully
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Bind, fmt.Sprintf("%d", s.config.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.startStatsUpdater(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("serving %s on http://%s (metrics at /metrics)", s.config.DataDir, addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Infof("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

// startStatsUpdater periodically refreshes the shard gauges
func (s *Server) startStatsUpdater(ctx context.Context) {
	if s.metrics == nil {
		return
	}

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		s.updateStats()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) updateStats() {
	paths, err := s.shardPaths()
	if err != nil {
		s.logger.Warnf("stats update failed: %v", err)
		return
	}

	var total int64
	for _, p := range paths {
		if size, err := fileSize(p); err == nil {
			total += size
		}
	}
	s.metrics.UpdateShardStats(len(paths), total)
}
