/*
Package handler provides the HTTP handlers and routing setup for the Cloak server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to the WebSocket endpoint and the
admin API.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"cloak/internal/pkg/auth/jwt"
	"cloak/internal/pkg/limiter"
	"cloak/internal/pkg/logx"
	"cloak/internal/pkg/resp"
)

const (
	CreateRate  = 0.5
	CreateBurst = 10
	JoinRate    = 1
	JoinBurst   = 10
	TokenRate   = 0.05
	TokenBurst  = 3
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, whose cleanup goroutines stop when ctx is cancelled,
// configures CORS, and applies global and per-route middleware.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	createLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(CreateRate), CreateBurst)
	joinLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(JoinRate), JoinBurst)
	tokenLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(TokenRate), TokenBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "Cloak Server",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, joinLimiter, deps))

	r.Route("/api", func(api chi.Router) {
		api.With(tokenLimiter.Middleware).Post("/auth/token", HandleIssueToken(deps))

		api.Group(func(admin chi.Router) {
			admin.Use(jwt.RequireAdmin(deps.Config.JWTSecret))

			admin.Route("/rooms", func(rooms chi.Router) {
				rooms.Get("/", HandleListRooms(deps))
				rooms.With(createLimiter.Middleware).Post("/", HandleCreateRoom(deps))
				rooms.Get("/{id}", HandleGetRoom(deps))
				rooms.Delete("/{id}", HandleDeleteRoom(deps))
				rooms.Post("/{id}/message", HandleMessageRoom(deps))
			})

			admin.Route("/users", func(users chi.Router) {
				users.Get("/", HandleListUsers(deps))
				users.Get("/{id}", HandleGetUser(deps))
				users.Delete("/{id}", HandleDeleteUser(deps))
				users.Post("/{id}/message", HandleMessageUser(deps))
			})

			admin.Post("/broadcast", HandleBroadcast(deps))
			admin.Get("/stats", HandleStats(deps))
		})
	})

	return r
}
