// Package di provides the dependency injection container for the CLI
package di

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ssargent/shardlog/pkg/api"
	"github.com/ssargent/shardlog/pkg/catalog"
	"github.com/ssargent/shardlog/pkg/logging"
	"github.com/ssargent/shardlog/pkg/metrics"
)

// CatalogOpener opens the shard statistics cache in a directory
type CatalogOpener func(dir string, logger logging.Logger) (*catalog.Catalog, error)

// Container holds all the dependencies for the application
type Container struct {
	logger      *logging.KlogLogger
	registry    *prometheus.Registry
	openCatalog CatalogOpener

	once       sync.Once
	metrics    *metrics.Metrics
	apiMetrics *api.Metrics
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Container{
		logger:      logging.NewKlog(logging.LevelInfo),
		registry:    registry,
		openCatalog: catalog.Open,
	}
}

// Logger returns the shared klog-backed logger
func (c *Container) Logger() *logging.KlogLogger {
	return c.logger
}

// Registry returns the Prometheus registry served on /metrics
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Container) initMetrics() {
	c.once.Do(func() {
		c.metrics = metrics.New(c.registry)
		c.apiMetrics = api.NewMetrics(c.registry)
	})
}

// Metrics returns the engine metrics, registering them on first use
func (c *Container) Metrics() *metrics.Metrics {
	c.initMetrics()
	return c.metrics
}

// APIMetrics returns the HTTP metrics, registering them on first use
func (c *Container) APIMetrics() *api.Metrics {
	c.initMetrics()
	return c.apiMetrics
}

// OpenCatalog opens the catalog in dir
func (c *Container) OpenCatalog(dir string) (*catalog.Catalog, error) {
	return c.openCatalog(dir, c.logger)
}

// SetCatalogOpener allows overriding how catalogs are opened (for testing)
func (c *Container) SetCatalogOpener(opener CatalogOpener) {
	c.openCatalog = opener
}
