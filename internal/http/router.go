package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/wjlander/dash-free-display/internal/api"
	"github.com/wjlander/dash-free-display/internal/auth"
	"github.com/wjlander/dash-free-display/internal/config"
	"github.com/wjlander/dash-free-display/internal/http/csrf"
	"github.com/wjlander/dash-free-display/internal/http/ratelimit"
	"github.com/wjlander/dash-free-display/internal/metrics"
	"github.com/wjlander/dash-free-display/internal/store"
)

// NewRouter wires all HTTP routes: dashboard API, login flow, kiosk display
// endpoints, public screen sharing, and health probes.
func NewRouter(cfg *config.Config, st *store.Store, authService *auth.Service, h *api.Handler) http.Handler {
	r := chi.NewRouter()

	// Auth endpoints: 5 requests per second, burst of 10
	authRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(5), 10, 5*time.Minute, cfg.TrustedProxies)
	// Public screen and kiosk endpoints: 20 requests per second, burst of 50
	// (displays poll continuously)
	displayRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(authRateLimiter.Middleware())
		r.Get("/login", authService.BeginLogin)
		r.Get("/callback", authService.HandleCallback)
	})
	r.With(authService.RequireSession, csrf.Middleware(cfg)).Post("/auth/logout", authService.Logout)

	r.Route("/api", func(r chi.Router) {
		r.Use(authService.RequireSession)
		r.Use(csrf.Middleware(cfg))

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)

		r.Route("/screens", func(r chi.Router) {
			r.Get("/", h.ListScreens)
			r.Post("/", h.CreateScreen)
			r.Get("/{screenID}", h.GetScreen)
			r.Put("/{screenID}", h.UpdateScreen)
			r.Delete("/{screenID}", h.DeleteScreen)
			r.Put("/{screenID}/layout", h.SaveScreenLayout)
			r.Post("/{screenID}/activate", h.ActivateScreen)
			r.Post("/{screenID}/toggle-public", h.ToggleScreenPublic)
		})

		r.Route("/location", func(r chi.Router) {
			r.Post("/", h.SaveLocation)
			r.Get("/latest", h.LatestLocation)
		})

		r.Route("/integrations/google", func(r chi.Router) {
			r.Get("/status", h.GoogleStatus)
			r.Get("/connect", h.GoogleConnect)
			// Browser redirect target of the consent flow. GET, so the CSRF
			// check does not apply.
			r.Get("/callback", h.GoogleCallback)
			r.Delete("/", h.GoogleDisconnect)
			r.Get("/calendars", h.ListCalendars)
			r.Get("/events", h.ListEvents)
		})

		r.Route("/integrations/homeassistant", func(r chi.Router) {
			r.Get("/status", h.HAStatus)
			r.Put("/", h.SaveHAConfig)
			r.Delete("/", h.DisconnectHA)
			r.Get("/entities", h.ListEntities)
			r.Get("/entities/{entityID}", h.GetEntity)
			r.Post("/services", h.CallService)
			r.Get("/widgets", h.ListHAWidgets)
			r.Post("/widgets", h.UpsertHAWidget)
			r.Delete("/widgets/{widgetID}", h.DeleteHAWidget)
		})

		r.Route("/display-tokens", func(r chi.Router) {
			r.Get("/", h.ListDisplayTokens)
			r.Post("/", h.CreateDisplayToken)
			r.Delete("/{tokenID}", h.RevokeDisplayToken)
		})
	})

	// Kiosk endpoints authenticate with a display token, not a session.
	r.Route("/api/display", func(r chi.Router) {
		r.Use(displayRateLimiter.Middleware())
		r.Use(authService.RequireDisplayToken)
		r.Get("/screen", h.DisplayActiveScreen)
	})

	// Anonymous read access to shared screens.
	r.With(displayRateLimiter.Middleware()).Get("/api/public/screens/{token}", h.GetPublicScreen)

	return r
}
