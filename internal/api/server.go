// Package api exposes the sync engine and agenda over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tazhate/agendasync/config"
	"github.com/tazhate/agendasync/internal/domain"
	"github.com/tazhate/agendasync/internal/service"
)

// APIResponse is the envelope of every JSON reply
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type Server struct {
	cfg    *config.Config
	sync   *service.SyncService
	agenda *service.AgendaService
	router chi.Router
	server *http.Server
}

func New(cfg *config.Config, syncSvc *service.SyncService, agendaSvc *service.AgendaService) *Server {
	s := &Server{
		cfg:    cfg,
		sync:   syncSvc,
		agenda: agendaSvc,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if !s.cfg.APIEnabled() {
		log.Println("API disabled: API_USERNAME/API_PASSWORD not set")
		s.router = r
		return
	}

	r.Route("/api/users/{userID}", func(r chi.Router) {
		r.Use(s.basicAuth)

		r.Post("/sync", s.handleSyncUser)
		r.Post("/sources", s.handleAddSource)
		r.Delete("/sources/{sourceID}", s.handleDeleteSource)
		r.Post("/sources/{sourceID}/sync", s.handleSyncSource)
		r.Get("/agenda", s.handleMyAgenda)
		r.Get("/friends/{friendID}/agenda", s.handleFriendAgenda)
	})

	s.router = r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              ":" + s.cfg.ServerPort,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Starting HTTP server on :%s", s.cfg.ServerPort)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.APIUsername)) != 1 ||
			subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.APIPassword)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="agendasync API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

// statusFor maps service and domain errors to HTTP status codes
func statusFor(err error) int {
	var (
		fetchErr *domain.FetchError
		parseErr *domain.ParseError
		authErr  *domain.AuthorizationError
	)
	switch {
	case errors.Is(err, service.ErrSourceNotFound), errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidFeedURL):
		return http.StatusBadRequest
	case errors.As(err, &authErr):
		return http.StatusForbidden
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("API error: %v", err)
		msg = "internal error"
	}
	jsonError(w, msg, status)
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
