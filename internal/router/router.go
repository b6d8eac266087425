package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/config"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/handler"
	mw "github.com/Santosh-Nagh/Kunafakingdom-POS/internal/middleware"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/obs"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/ws"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the wired components the router mounts.
type Deps struct {
	Store   Pinger
	Users   handler.AuthStore
	Catalog handler.CatalogServicer
	Orders  handler.OrderServicer
	Hub     *ws.Hub
	Logger  zerolog.Logger
	// Metrics and Gatherer are optional; without them /metrics serves the
	// default registry and HTTP metrics are not recorded.
	Metrics  *obs.HTTPMetrics
	Gatherer prometheus.Gatherer
}

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, d Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(obs.HTTPObs{Metrics: d.Metrics}.Middleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", health(d.Store))
	r.Method(http.MethodGet, "/metrics", obs.Handler(d.Gatherer))

	// Signed-in staff skip the login screen.
	r.With(mw.RedirectAuthenticated(cfg.JWTSecret)).Get("/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
	})

	// WebSocket route (handles auth internally via cookie or query param)
	r.Get("/ws/branches/{bid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWTSecret, w, r)
	})

	r.Route("/api", func(r chi.Router) {
		authHandler := handler.NewAuthHandler(d.Users, cfg.JWTSecret, cfg.SessionTTL, cfg.CookieSecure, d.Logger)
		authHandler.RegisterRoutes(r)

		// Protected routes (require a session)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))

			r.Get("/auth/session", authHandler.Session)

			catalogHandler := handler.NewCatalogHandler(d.Catalog, d.Logger)
			catalogHandler.RegisterRoutes(r)

			orderHandler := handler.NewOrderHandler(d.Orders, d.Logger)
			r.Route("/orders", orderHandler.RegisterRoutes)
		})
	})

	d.Logger.Debug().Msg("router initialized")
	return r
}

func health(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
