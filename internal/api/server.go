package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"olt-pricewatch/internal/eventbus"
	"olt-pricewatch/internal/poller"
	"olt-pricewatch/internal/refresher"
	"olt-pricewatch/internal/repository"
)

// Server exposes the scheduler entry points (hourly, daily, metadata
// refresh), the read API the widget consumes, and the websocket feed.
type Server struct {
	repo      *repository.Repository
	jobs      *poller.Service
	refresher *refresher.Refresher
	bus       *eventbus.Bus
	cache     *responseCache
	auth      *jobAuth
	hub       *Hub

	httpServer *http.Server
}

type Options struct {
	Port          int
	JobAuthSecret string
	JobAPIKey     string
	RedisURL      string
}

func NewServer(repo *repository.Repository, jobs *poller.Service, ref *refresher.Refresher, bus *eventbus.Bus, opts Options) *Server {
	s := &Server{
		repo:      repo,
		jobs:      jobs,
		refresher: ref,
		bus:       bus,
		cache:     newResponseCache(opts.RedisURL),
		auth:      newJobAuth(opts.JobAuthSecret, opts.JobAPIKey),
		hub:       newHub(),
	}

	r := mux.NewRouter()
	s.registerRoutes(r)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      corsMiddleware(rateLimitMiddleware(r)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	return s
}

// Start runs the websocket hub, bridges the event bus into it, and serves
// HTTP until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.run()
	go s.relayPriceUpdates(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[API] listening on %s", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
