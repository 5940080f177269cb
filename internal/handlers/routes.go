package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gdg-garage/shuttle-planner/internal/auth"
)

type Handlers struct {
	Shuttles  *ShuttleHandler
	Sessions  *SessionHandler
	Songs     *SongHandler
	AdminAuth *auth.AdminAuth
}

func RegisterRoutes(r *chi.Mux, h Handlers, enableCORS bool) {
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if enableCORS {
		r.Use(cors)
	}

	// Initialize Huma API
	config := huma.DefaultConfig("Shuttle Planner API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	api := humachi.New(r, config)

	// Public routes
	r.Get("/health", health)

	huma.Get(api, "/shuttles", h.Shuttles.HandleList)

	huma.Post(api, "/sessions", h.Sessions.HandleCreate)
	huma.Get(api, "/sessions/{id}", h.Sessions.HandleGet)
	huma.Post(api, "/sessions/{id}/select", h.Sessions.HandleSelect)
	huma.Post(api, "/sessions/{id}/submit", h.Sessions.HandleSubmit)
	huma.Post(api, "/sessions/{id}/cancel", h.Sessions.HandleCancel)
	huma.Post(api, "/sessions/{id}/edit", h.Sessions.HandleOpenEdit)
	huma.Post(api, "/sessions/{id}/edit/save", h.Sessions.HandleSaveEdit)
	huma.Post(api, "/sessions/{id}/delete", h.Sessions.HandleOpenDelete)
	huma.Post(api, "/sessions/{id}/delete/confirm", h.Sessions.HandleConfirmDelete)

	huma.Get(api, "/songs", h.Songs.HandleList)
	huma.Post(api, "/songs", h.Songs.HandleSubmit)

	// Protected routes get their own API on the group so the chi middleware
	// runs in front of them. Docs are served by the public API only.
	r.Group(func(r chi.Router) {
		r.Use(h.AdminAuth.Middleware)
		adminConfig := huma.DefaultConfig("Shuttle Planner Admin API", "1.0.0")
		adminConfig.OpenAPIPath = ""
		adminConfig.DocsPath = ""
		adminConfig.SchemasPath = ""
		adminAPI := humachi.New(r, adminConfig)
		huma.Get(adminAPI, "/admin/registrations", h.Shuttles.HandleAdminList, func(o *huma.Operation) {
			o.Security = []map[string][]string{{"bearerAuth": {}}}
		})
	})
}

func health(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Warn("failed to write health response", "error", err)
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
