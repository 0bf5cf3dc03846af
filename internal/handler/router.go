package handler

import (
	"log/slog"
	"net/http"

	"github.com/Shivanand-hulikatti/eventhub/internal/blob"
	"github.com/Shivanand-hulikatti/eventhub/internal/notify"
	"github.com/Shivanand-hulikatti/eventhub/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Deps are the services the router exposes.
type Deps struct {
	Events *service.EventService
	Auth   *service.AuthService
	Hub    *notify.Hub
	// Blobs is optional; without it /api/upload is not mounted.
	Blobs blob.Store
	// UploadDir is served under /uploads when set.
	UploadDir string
	// Origin is the allowed CORS and WebSocket origin. Empty allows any.
	Origin string
	Logger *slog.Logger
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	events := NewEventHandler(d.Events, d.Logger)
	auth := NewAuthHandler(d.Auth, d.Logger)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(d.Logger))        // structured access log
	r.Use(CORS(d.Origin))

	// Health
	r.Get("/health", HealthCheck(d.Hub))

	// Push channel
	var origins []string
	if d.Origin != "" {
		origins = append(origins, d.Origin)
	}
	r.Get("/ws", notify.ServeWS(d.Hub, d.Auth, d.Logger, origins...))

	if d.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.UploadDir))))
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(d.Auth))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", auth.Register)
			r.Post("/login", auth.Login)
			r.Post("/guest-login", auth.GuestLogin)
			r.With(RequireAuth).Get("/me", auth.Me)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", events.ListEvents)
			r.Get("/{id}", events.GetEvent)

			r.Group(func(r chi.Router) {
				r.Use(RequireAuth)
				r.Post("/", events.CreateEvent)
				r.Put("/{id}", events.UpdateEvent)
				r.Delete("/{id}", events.DeleteEvent)
				r.Post("/{id}/register", events.Register)
				r.Post("/{id}/unregister", events.Unregister)
				r.Post("/{id}/approve", events.Approve)
				r.Post("/{id}/toggle-status", events.ToggleStatus)
				r.Get("/{id}/attendees.csv", events.ExportAttendees)
			})
		})

		if d.Blobs != nil {
			upload := NewUploadHandler(d.Blobs, d.Logger)
			r.With(RequireAuth).Post("/upload", upload.Upload)
		}
	})

	return r
}
