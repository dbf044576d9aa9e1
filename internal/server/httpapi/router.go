package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DidNoDB/didnodb/internal/server/models"
	"github.com/DidNoDB/didnodb/internal/server/service"
)

type Router struct {
	services        *service.Services
	logger          *slog.Logger
	maxRequestBytes int64
}

func NewRouter(services *service.Services, logger *slog.Logger, maxRequestBytes int64) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rt := &Router{services: services, logger: logger, maxRequestBytes: maxRequestBytes}
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(rt.logRequests)
	mux.Use(middleware.Recoverer)

	mux.Get("/", rt.handleIndex)
	mux.Post("/register", rt.handleRegister)
	mux.Post("/login", rt.handleLogin)
	mux.Post("/logout", rt.handleLogout)

	mux.Group(func(pr chi.Router) {
		pr.Use(rt.authMiddleware)
		pr.Post("/data", rt.handleSaveDocument)
		pr.Get("/data", rt.handleListDocuments)
		pr.Get("/data/{id}", rt.handleGetDocument)
		pr.Delete("/data/{id}", rt.handleDeleteDocument)

		pr.Group(func(ar chi.Router) {
			ar.Use(rt.requireRole(models.RoleAdmin))
			ar.Get("/admin/users", rt.handleListUsers)
			ar.Get("/metrics", rt.handleMetrics)
		})
	})

	return mux
}

func (rt *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, req)
		rt.logger.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(req.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrAlreadyExists):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": models.ErrAlreadyExists.Error()})
	case errors.Is(err, models.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": models.ErrInvalidCredentials.Error()})
	case errors.Is(err, models.ErrTokenExpired):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": models.ErrTokenExpired.Error()})
	case errors.Is(err, models.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": models.ErrInvalidToken.Error()})
	case errors.Is(err, models.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": models.ErrForbidden.Error()})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": models.ErrNotFound.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
