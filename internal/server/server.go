package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/workoutlog/internal/models"
	"github.com/claude/workoutlog/internal/session"
	"github.com/claude/workoutlog/internal/surface"
	"github.com/go-chi/chi/v5"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	session *session.Controller
	outbox  *surface.Outbox
	center  models.Coords
	log     *slog.Logger
	apiKey  string
	router  chi.Router
}

// New creates a new Server with all routes configured. center is used when a
// client signals map readiness without its own position.
func New(ctrl *session.Controller, outbox *surface.Outbox, center models.Coords, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		session: ctrl,
		outbox:  outbox,
		center:  center,
		log:     log,
		apiKey:  apiKey,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestID)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Surface events
	s.router.Get("/api/v1/session", s.handleSession)
	s.router.Get("/api/v1/commands", s.handleCommands)
	s.router.Post("/api/v1/map/ready", s.handleMapReady)
	s.router.Post("/api/v1/map/click", s.handleMapClick)
	s.router.Post("/api/v1/form/cancel", s.handleCancel)
	s.router.Post("/api/v1/form/toggle", s.handleToggle)

	// Workouts
	s.router.Get("/api/v1/workouts", s.handleListWorkouts)
	s.router.Post("/api/v1/workouts", s.handleSubmitWorkout)
	s.router.Get("/api/v1/workouts/export", s.handleExport)
	s.router.Get("/api/v1/workouts/{id}", s.handleGetWorkout)
	s.router.Post("/api/v1/workouts/{id}/select", s.handleSelectWorkout)

	// Maintenance (API key required)
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/api/v1/workouts/import", s.handleImport)
		r.Delete("/api/v1/workouts", s.handleReset)
	})
}

// SetMCP mounts an MCP transport handler at /mcp behind the API key.
func (s *Server) SetMCP(h http.Handler) {
	s.router.With(APIKeyAuth(s.apiKey)).Handle("/mcp", h)
}
