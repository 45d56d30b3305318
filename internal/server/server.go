package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arwahdevops/kvprobe/internal/config"
	"github.com/arwahdevops/kvprobe/internal/db"
	"github.com/arwahdevops/kvprobe/internal/metrics"
)

// Server owns both HTTP surfaces: the API listener with the connection
// probe endpoint, and the operational listener with metrics, health checks
// and optional pprof. The configuration store and the DB connector are
// passed in explicitly; nothing here reads global state.
type Server struct {
	cfg     *config.Config
	store   *config.Store
	conn    *db.Connector
	metrics *metrics.Store
	log     *zap.Logger
}

func New(cfg *config.Config, store *config.Store, conn *db.Connector, metricsStore *metrics.Store, logger *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		conn:    conn,
		metrics: metricsStore,
		log:     logger.Named("http-server"),
	}
}

// APIHandler returns the public API mux.
func (s *Server) APIHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/User", s.handleUser)
	return mux
}

// OpsHandler returns the operational mux (metrics, health, pprof).
func (s *Server) OpsHandler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if s.conn == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "Not Ready: database connection not established")
			return
		}
		if err := s.conn.Ping(pingCtx); err != nil {
			s.log.Warn("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "Not Ready: db_status=Error (%v)\n", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "Ready")
	})

	if s.cfg.EnablePprof {
		s.log.Info("Enabling pprof endpoints on /debug/pprof/")
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		s.log.Info("Pprof endpoints are disabled.")
	}

	return mux
}

// Run starts both listeners and blocks until ctx is cancelled, then shuts
// them down gracefully.
func (s *Server) Run(ctx context.Context) {
	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.ListenPort),
		Handler:      s.APIHandler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	opsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.MetricsPort),
		Handler:      s.OpsHandler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	for _, srv := range []*http.Server{apiServer, opsServer} {
		srv := srv
		go func() {
			s.log.Info("Starting HTTP listener", zap.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Error("HTTP server ListenAndServe error", zap.String("address", srv.Addr), zap.Error(err))
			}
			s.log.Info("HTTP listener stopped", zap.String("address", srv.Addr))
		}()
	}

	<-ctx.Done()
	s.log.Info("Shutting down HTTP servers due to context cancellation...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, srv := range []*http.Server{apiServer, opsServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP server graceful shutdown failed", zap.String("address", srv.Addr), zap.Error(err))
		}
	}
	s.log.Info("HTTP servers stopped")
}
