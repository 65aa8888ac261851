package classroom

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quipper/poc/classroom/be/internal/config"
	"github.com/quipper/poc/classroom/be/pkg/common/jwkscache"
	"github.com/quipper/poc/classroom/be/pkg/common/keys"
	"github.com/quipper/poc/classroom/be/pkg/common/logger"
	"github.com/quipper/poc/classroom/be/pkg/reconcile"
	notificationsRepo "github.com/quipper/poc/classroom/be/pkg/repositories/notifications"
	rosterRepo "github.com/quipper/poc/classroom/be/pkg/repositories/roster"
	studentsRepo "github.com/quipper/poc/classroom/be/pkg/repositories/students"
)

const (
	scopeWrite = "classes"
	scopeRead  = "classes.readonly"
)

type Handler struct {
	roster        rosterRepo.Repository
	students      studentsRepo.Repository
	notifications notificationsRepo.Repository
	reconciler    *reconcile.Reconciler
	auth          config.AuthConfig
	jwksCache     jwkscache.Cache
}

// NewHandler wires the repositories into a Handler. jwksCache may be nil when
// auth.JWKSURL is empty; tokens are then verified against the platform key.
func NewHandler(
	roster rosterRepo.Repository,
	students studentsRepo.Repository,
	notifications notificationsRepo.Repository,
	auth config.AuthConfig,
	jwksCache jwkscache.Cache,
) *Handler {
	return &Handler{
		roster:        roster,
		students:      students,
		notifications: notifications,
		reconciler:    reconcile.NewReconciler(students, roster),
		auth:          auth,
		jwksCache:     jwksCache,
	}
}

// Router returns a chi-based router for the /api endpoints.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/health", h.health)

	// Public key set for teacher access tokens
	r.Get("/.well-known/jwks.json", h.jwks)
	r.Get("/api/.well-known/jwks.json", h.jwks)

	read := h.requireScopes(scopeRead, scopeWrite)
	write := h.requireScopes(scopeWrite)

	r.With(read).Get("/api/me", h.me)

	r.Route("/api/classes", func(r chi.Router) {
		r.With(read).Get("/", h.listClasses)
		r.With(write).Post("/", h.createClass)
		r.Route("/{classId}", func(r chi.Router) {
			r.With(read).Get("/", h.getClass)
			r.With(write).Put("/", h.updateClass)
			r.With(write).Delete("/", h.deleteClass)
			r.With(write).Post("/students/remove", h.removeStudents)
			r.With(write).Patch("/roster", h.patchRoster)
			r.With(read).Get("/members", h.listMembers)
			r.With(read).Get("/notifications", h.listNotifications)
		})
	})

	r.With(read).Get("/api/students", h.listStudents)
	r.With(write).Post("/api/students", h.upsertStudent)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h.roster.Health(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "unhealthy", "error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// jwks serves the platform JWKS so other services can verify teacher tokens.
func (h *Handler) jwks(w http.ResponseWriter, r *http.Request) {
	data, err := keys.JWKSJSON()
	if err != nil {
		logger.Error("jwks: %v", err)
		http.Error(w, "failed to get JWKS", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TeacherFromContext(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Debug("decodeJSON: %s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, "invalidJson", http.StatusBadRequest)
		return false
	}
	return true
}
