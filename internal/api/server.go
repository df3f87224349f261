package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shehryarbajwa/cukebrowser/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(rateLimiter *ratelimit.Limiter, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()

	// API v1 routes
	api := r.PathPrefix("/v1").Subrouter()
	if rateLimiter != nil {
		api.Use(RateLimitMiddleware(rateLimiter))
	}
	api.HandleFunc("/summary", h.GetSummary).Methods("GET", "OPTIONS")
	api.HandleFunc("/features", h.ListFeatures).Methods("GET", "OPTIONS")
	api.HandleFunc("/features/{id}", h.GetFeature).Methods("GET", "OPTIONS")
	api.HandleFunc("/run", h.GetRun).Methods("GET", "OPTIONS")

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	// Generated reports, screenshots and raw results
	r.PathPrefix("/reports/").Handler(
		http.StripPrefix("/reports/", http.FileServer(http.Dir(h.reportsDir))),
	).Methods("GET")
	r.Handle("/", http.RedirectHandler("/reports/cucumber-report.html", http.StatusFound)).Methods("GET")

	// CORS middleware
	r.Use(corsMiddleware)

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
