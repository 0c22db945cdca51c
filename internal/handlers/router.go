package handlers

import (
	"context"
	"net/http"
	"slices"
	"time"

	"picshare-backend/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// RouterConfig collects everything the HTTP surface is built from
type RouterConfig struct {
	Responder      *Responder
	Verifier       middleware.TokenVerifier
	Auth           *AuthHandler
	Users          *UserHandler
	Images         *ImageHandler
	WebSocket      *WebSocketHandler
	AllowedOrigins []string
	// Health reports whether the metadata store is reachable. Optional.
	Health func(ctx context.Context) error
	// RequestLogging logs every request. Query strings are never logged.
	RequestLogging bool
}

// NewRouter wires the API routes
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if cfg.RequestLogging {
		r.Use(requestLogger())
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	r.NotFound(cfg.Responder.NotFound)
	r.MethodNotAllowed(cfg.Responder.MethodNotAllowed)

	authenticate := middleware.Authenticate(cfg.Verifier)
	validID := middleware.ValidateID("id")

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", cfg.Auth.Register)
			r.Post("/login", cfg.Auth.Login)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(authenticate).Get("/all", cfg.Users.ListUsers)
			r.With(authenticate).Post("/profile", cfg.Users.UploadProfilePhoto)
			r.With(authenticate).Put("/push-token", cfg.Users.UpdatePushToken)

			r.Route("/profile/{id}", func(r chi.Router) {
				r.Use(validID)
				r.Get("/", cfg.Users.GetProfile)
				r.With(authenticate).Put("/", cfg.Users.UpdateProfile)
				r.With(authenticate).Delete("/", cfg.Users.DeleteProfile)
			})
		})

		r.Route("/images", func(r chi.Router) {
			r.Get("/", cfg.Images.ListImages)
			r.With(authenticate).Post("/", cfg.Images.CreateImage)
			r.Get("/count", cfg.Images.CountImages)

			r.With(validID, authenticate).Put("/update/{id}", cfg.Images.ReplaceImage)
			r.With(validID, authenticate).Put("/likes/{id}", cfg.Images.ToggleLike)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(validID)
				r.Get("/", cfg.Images.GetImage)
				r.With(authenticate).Put("/", cfg.Images.UpdateImageInfo)
				r.With(authenticate).Delete("/", cfg.Images.DeleteImage)
			})
		})
	})

	// WebSocket route
	if cfg.WebSocket != nil {
		r.Get("/ws", cfg.WebSocket.HandleWebSocket)
	}

	r.Get("/health", healthHandler(cfg.Health))

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				log.Error().Err(err).Msg("Health check failed")
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") || origin == "" {
		return true
	}
	return slices.Contains(allowed, origin)
}

// corsMiddleware handles CORS
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case len(allowed) == 0 || slices.Contains(allowed, "*"):
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && slices.Contains(allowed, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
