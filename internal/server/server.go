package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/repcoach/internal/cache"
	"github.com/claude/repcoach/internal/live"
	"github.com/claude/repcoach/internal/storage"
	"github.com/claude/repcoach/internal/ws"
	"github.com/go-chi/chi/v5"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db      *storage.DB
	manager *live.Manager
	hub     *ws.Hub
	cache   *cache.ProgramCache
	log     *slog.Logger
	apiKey  string
	userID  int
	router  chi.Router
}

// New creates a new Server with all routes configured. userID identifies the
// default (single-tenant) user all requests act as.
func New(db *storage.DB, manager *live.Manager, hub *ws.Hub, programCache *cache.ProgramCache, apiKey string, userID int, log *slog.Logger) *Server {
	s := &Server{
		db:      db,
		manager: manager,
		hub:     hub,
		cache:   programCache,
		log:     log,
		apiKey:  apiKey,
		userID:  userID,
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
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Catalog reads are open; mutations need the API key.
		r.Get("/catalog/workouts", s.handleListCatalogWorkouts)
		r.Get("/catalog/activities", s.handleListCatalogActivities)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/catalog/workouts", s.handleUpsertCatalogWorkout)
			r.Post("/catalog/activities", s.handleUpsertCatalogActivity)
		})

		r.Get("/programs", s.handleListPrograms)
		r.Post("/programs", s.handleCreateProgram)
		r.Get("/programs/{id}", s.handleGetProgram)
		r.Put("/programs/{id}", s.handleUpdateProgram)
		r.Delete("/programs/{id}", s.handleDeleteProgram)
		r.Get("/programs/{id}/progress", s.handleProgramProgress)

		r.Get("/program-sessions", s.handleQuerySessions)
		r.Post("/program-sessions", s.handleCreateSession)
		r.Get("/program-sessions/{id}", s.handleGetSession)

		r.Get("/stats", s.handleTrainingStats)

		// Live guided sessions
		r.Post("/live", s.handleStartLive)
		r.Get("/live/{id}", s.handleLiveSnapshot)
		r.Post("/live/{id}/command", s.handleLiveCommand)
		r.Delete("/live/{id}", s.handleStopLive)
		r.Get("/live/{id}/ws", s.handleLiveWS)
	})
}
