package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	incidentservice "reefwatch/contexts/incident-tracking/incident-service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	_ "reefwatch/internal/platform/httpserver/docs"
)

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	incidents incidentservice.Module
	auth      *Authenticator
}

func New(
	incidents incidentservice.Module,
	auth *Authenticator,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		incidents: incidents,
		auth:      auth,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /v1/incidents", s.withRole(RoleIncidentRead, s.handleListIncidents))
	s.mux.HandleFunc("POST /v1/incidents", s.withRole(RoleIncidentWrite, s.handleCreateIncident))
	s.mux.HandleFunc("GET /v1/incidents/{incident_id}", s.withRole(RoleIncidentRead, s.handleGetIncident))
	s.mux.HandleFunc("PUT /v1/incidents/{incident_id}", s.withRole(RoleIncidentWrite, s.handleUpdateIncident))
	s.mux.HandleFunc("DELETE /v1/incidents", s.withRole(RoleIncidentWrite, s.handleDeleteIncidents))
	s.mux.HandleFunc("POST /v1/incidents/import", s.withRole(RoleIncidentWrite, s.handleImportIncidents))
	s.mux.HandleFunc("GET /v1/dead-letters", s.withRole(RoleIncidentRead, s.handleListDeadLetters))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
