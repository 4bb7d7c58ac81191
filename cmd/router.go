package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angeloszaimis/upstream-selector/internal/handler"
	"github.com/angeloszaimis/upstream-selector/internal/metrics"
)

func setupRouter(apiHandler *handler.Handler, collector *metrics.Collector) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/server", apiHandler.BestServer)
	r.Get("/health", apiHandler.Overview)
	r.Get("/servers/{name}/health", apiHandler.UpstreamHealth)
	r.Get("/stats", collector.Handler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.NotFound(apiHandler.NotFound)

	return r
}
