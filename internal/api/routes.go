package api

import (
	"time"

	"github.com/gorilla/mux"
)

func (s *Server) registerRoutes(r *mux.Router) {
	r.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")
	r.HandleFunc("/status", s.handleStatus).Methods("GET", "OPTIONS")
	r.HandleFunc("/ws", s.handleWebSocket).Methods("GET", "OPTIONS")

	// Scheduler entry points; protected when job auth is configured.
	r.Handle("/jobs/hourly", s.auth.wrap(s.handleHourlyJob)).Methods("POST", "OPTIONS")
	r.Handle("/jobs/daily", s.auth.wrap(s.handleDailyJob)).Methods("POST", "OPTIONS")
	r.Handle("/jobs/refresh-metadata", s.auth.wrap(s.handleRefreshMetadata)).Methods("POST", "OPTIONS")

	// Read API for the widget.
	r.HandleFunc("/events", s.cache.wrap(time.Minute, s.handleListEvents)).Methods("GET", "OPTIONS")
	r.HandleFunc("/events/{id}", s.cache.wrap(time.Minute, s.handleGetEvent)).Methods("GET", "OPTIONS")
	r.HandleFunc("/events/{id}/prices/hourly", s.cache.wrap(5*time.Minute, s.handleHourlyPrices)).Methods("GET", "OPTIONS")
	r.HandleFunc("/events/{id}/prices/daily", s.cache.wrap(15*time.Minute, s.handleDailyPrices)).Methods("GET", "OPTIONS")
	r.HandleFunc("/events/{id}/prices/current", s.cache.wrap(time.Minute, s.handleCurrentPrice)).Methods("GET", "OPTIONS")
	r.HandleFunc("/events/{id}/prices/change-24h", s.cache.wrap(5*time.Minute, s.handle24hChange)).Methods("GET", "OPTIONS")

	// Run audit.
	r.HandleFunc("/runs", s.handleListRuns).Methods("GET", "OPTIONS")
	r.HandleFunc("/runs/{bucket}", s.handleGetRun).Methods("GET", "OPTIONS")
}
