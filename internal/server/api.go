package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// probeResult is the response body of GET /api/User.
type probeResult struct {
	ConnectionString string `json:"connectionString"`
	Result           string `json:"result"`
}

var (
	// password=..., pwd=... in key/value style connection strings,
	// terminated by ';', '&' or whitespace.
	rePasswordPair = regexp.MustCompile(`(?i)(password|pwd)(\s*=\s*)[^;&\s]+`)
	// user:password@ in URL/DSN style connection strings.
	reUserInfo = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+.-]*://)?([^:@/\s]+):([^@\s]+)@`)
)

// redactConnectionString masks the password component of a connection
// string while leaving the rest readable.
func redactConnectionString(cs string) string {
	out := rePasswordPair.ReplaceAllString(cs, `${1}${2}***REDACTED***`)
	out = reUserInfo.ReplaceAllString(out, `${1}${2}:***REDACTED***@`)
	return out
}

// handleUser serves the connection probe: read the connection string from
// the merged store, ask the database who it thinks we are, echo both back.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	log := s.log.With(zap.String("remote_addr", r.RemoteAddr))

	cs, err := s.store.Get(s.cfg.ConnectionStringKey)
	if err != nil {
		s.metrics.ProbeRequestsTotal.WithLabelValues("config_error").Inc()
		log.Error("Connection string missing from configuration store",
			zap.String("key", s.cfg.ConnectionStringKey),
			zap.Error(err))
		http.Error(w, "connection string not configured", http.StatusInternalServerError)
		return
	}

	user, err := s.conn.CurrentUser(r.Context())
	if err != nil {
		s.metrics.ProbeRequestsTotal.WithLabelValues("db_error").Inc()
		log.Error("Identity query failed", zap.Error(err))
		http.Error(w, "database query failed", http.StatusInternalServerError)
		return
	}

	if s.cfg.ProbeRedactSecrets {
		cs = redactConnectionString(cs)
	}

	s.metrics.ProbeRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(probeResult{ConnectionString: cs, Result: user}); err != nil {
		log.Warn("Failed to write probe response", zap.Error(err))
	}
}
