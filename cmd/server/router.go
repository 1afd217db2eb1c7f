package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ipLimiter throttles connection attempts per client address.
type ipLimiter interface {
	LimitByIP(next http.Handler) http.Handler
}

type onlineCounter interface {
	Count() int
}

type healthResponse struct {
	Status string `json:"status"`
	Online int    `json:"online"`
}

// newRouter mounts the websocket endpoint, the health probe and the
// Prometheus scrape endpoint.
func newRouter(ws http.Handler, limiter ipLimiter, online onlineCounter) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Online: online.Count()})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.With(limiter.LimitByIP).Handle("/ws", ws)

	return r
}
