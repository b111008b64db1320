package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
	router  *mux.Router
}

// NewServer creates a new REST API server
func NewServer(port string, deps Dependencies) *Server {
	handler := NewHandler(deps)

	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET", "OPTIONS")

	// Legacy preview route
	router.HandleFunc("/matches", handler.GetMatches).Methods("GET", "OPTIONS")

	api := router.PathPrefix("/api").Subrouter()

	// Discovery
	api.HandleFunc("/teams", handler.GetTeams).Methods("GET", "OPTIONS")
	api.HandleFunc("/matches", handler.GetMatches).Methods("GET", "OPTIONS")
	api.HandleFunc("/aliases", handler.GetAliases).Methods("GET", "OPTIONS")

	// Team queries
	api.HandleFunc("/teamvteam", handler.GetTeamVsTeam).Methods("GET", "OPTIONS")
	api.HandleFunc("/team-record", handler.GetTeamRecord).Methods("GET", "OPTIONS")
	api.HandleFunc("/batting-record", handler.GetBattingRecord).Methods("GET", "OPTIONS")
	api.HandleFunc("/bowling-record", handler.GetBowlingRecord).Methods("GET", "OPTIONS")

	return &Server{
		port:    port,
		handler: handler,
		router:  router,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
