package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/annosearch/internal/config"
	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/db/memory"
	dbRedis "github.com/kailas-cloud/annosearch/internal/db/redis"
	"github.com/kailas-cloud/annosearch/internal/metrics"
	datasetrepo "github.com/kailas-cloud/annosearch/internal/repository/dataset"
	indexrepo "github.com/kailas-cloud/annosearch/internal/repository/index"
	recordrepo "github.com/kailas-cloud/annosearch/internal/repository/record"
	searchrepo "github.com/kailas-cloud/annosearch/internal/repository/search"
	chiTransport "github.com/kailas-cloud/annosearch/internal/transport/chi"
	datasetuc "github.com/kailas-cloud/annosearch/internal/usecase/dataset"
	healthuc "github.com/kailas-cloud/annosearch/internal/usecase/health"
	recorduc "github.com/kailas-cloud/annosearch/internal/usecase/record"
	searchuc "github.com/kailas-cloud/annosearch/internal/usecase/search"
)

// newStore opens the backend named by cfg.Driver.
func newStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		return dbRedis.NewStore(dbRedis.Config{
			Addrs:       cfg.Addrs,
			Username:    cfg.Username,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: cfg.DialTimeout(),
		})
	case config.DriverMemory:
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// newRouter wires repositories, services and middleware over store.
func newRouter(cfg config.Config, store db.Store, logger *zap.Logger) http.Handler {
	metrics.RegisterSearchMetrics()
	metrics.RegisterIndexMetrics()

	prefix := cfg.Storage.KeyPrefix
	datasets := datasetrepo.New(store, prefix)
	records := recordrepo.New(store, prefix)
	indexes := indexrepo.New(store, prefix).WithHNSW(indexrepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	searches := searchuc.NewInstrumentedRepository(searchrepo.New(store, prefix), logger)

	server := chiTransport.NewServer(
		datasetuc.New(datasets, indexes, records),
		recorduc.New(records, datasets).WithMaxBulk(cfg.Records.MaxBulk),
		searchuc.New(searches, datasets, records).
			WithConcurrency(cfg.Search.Concurrency).
			WithTimeout(cfg.Search.Timeout()),
		healthuc.New(store, store),
		logger,
	)

	r := chi.NewRouter()
	r.Use(
		recoverJSON(logger),
		chiMiddleware.RequestID,
		requestLog(logger),
		chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys),
		metrics.Middleware(),
	)
	r.Handle("/metrics", promhttp.Handler())
	server.Register(r)
	return r
}
