package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"securechat/internal/config"
	"securechat/internal/feed"
	"securechat/internal/security"
	"securechat/internal/service"
	"securechat/internal/store"
	"securechat/internal/ws"

	_ "securechat/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(
	cfg *config.Config,
	logger zerolog.Logger,
	repos *store.Repositories,
	hub *ws.Hub,
	broker feed.Broker,
	tokenSvc *security.TokenService,
	passwordHasher *security.PasswordHasher,
	addrHasher *security.AddressHasher,
	encryptor *security.Encryptor,
) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(Metrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Services
	authSvc := service.NewAuthService(repos.Users, tokenSvc, passwordHasher, addrHasher)
	userSvc := service.NewUserService(repos.Users)
	contactSvc := service.NewContactService(repos.Users, repos.Contacts)
	msgSvc := service.NewMessageService(repos.Users, repos.Messages, encryptor, broker)
	groupSvc := service.NewGroupService(repos.Users, repos.Groups, repos.GroupMessages, encryptor, broker)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": cfg.AppName,
			"version": "1.0.0",
			"docs":    "/docs",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := repos.DB.PingContext(ctx); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check: database unreachable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Handle("/metrics", promhttp.Handler())

	// Swagger documentation
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"), //The url pointing to API definition
	))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Auth routes (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(authSvc))
			r.Post("/login", handleLogin(authSvc))
		})
		r.Get("/users/exists", handleUserExists(authSvc))

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc, repos.Users))

			r.Get("/auth/me", handleMe())

			r.Get("/users/{userID}", handleGetUser(userSvc, hub))

			r.Route("/contacts", func(r chi.Router) {
				r.Get("/", handleListContacts(contactSvc))
				r.Post("/", handleAddContact(contactSvc))
				r.Delete("/{userID}", handleRemoveContact(contactSvc))
			})

			r.Route("/messages", func(r chi.Router) {
				r.Get("/{userID}", handleHistory(msgSvc))
				r.Post("/{userID}", handleSendMessage(msgSvc))
			})

			r.Route("/groups", func(r chi.Router) {
				r.Get("/", handleListGroups(groupSvc))
				r.Post("/", handleCreateGroup(groupSvc))
				r.Get("/{groupID}/members", handleListMembers(groupSvc))
				r.Post("/{groupID}/members", handleAddMembers(groupSvc))
				r.Get("/{groupID}/messages", handleGroupHistory(groupSvc))
				r.Post("/{groupID}/messages", handleSendGroupMessage(groupSvc))
			})
		})
	})

	// WebSocket endpoint; kept outside the request timeout.
	r.Get("/ws", ws.MakeHandler(hub, tokenSvc, repos.Users, groupSvc, broker, cfg.CORSOrigins))

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body", Code: "invalid_input"})
		return false
	}
	return true
}
