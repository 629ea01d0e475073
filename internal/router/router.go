package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"leakdesk/internal/cache"
	"leakdesk/internal/config"
	"leakdesk/internal/handlers"
	"leakdesk/internal/indicator"
	"leakdesk/internal/lifecycle"
	"leakdesk/internal/middleware"
	"leakdesk/internal/models"
	"leakdesk/internal/poller"
	"leakdesk/internal/repository"
	"leakdesk/internal/service"
)

// App is everything the HTTP surface reads from or writes through.
type App struct {
	Cache   *cache.Cache
	Machine *lifecycle.Machine
	Poller  *poller.Poller
	Journal repository.JournalRepository
	Catalog *indicator.Catalog
	Auth    *service.AuthService
}

func New(log zerolog.Logger, cfg config.Config, app App) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Origin},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Total-Count"},
		AllowCredentials: true,
	}))
	r.Use(httprate.LimitByIP(200, time.Minute))
	r.Use(middleware.WithAuth(log, cfg.SessionSecret))

	r.Get("/healthz", handlers.Health(app.Cache))
	r.Handle("/metrics", promhttp.Handler())

	ah := handlers.NewAuthHTTP(app.Auth, cfg.Env != "dev")
	r.Route("/api/auth", func(r chi.Router) {
		r.With(httprate.LimitByIP(20, time.Minute)).Post("/login", ah.Login())
		r.Post("/logout", ah.Logout())
		r.With(middleware.RequireAuth).Get("/me", ah.Me())
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		acc := handlers.NewAccountHTTP(app.Cache)
		r.With(middleware.RequireSelfOrRoles(models.RoleAdmin)).Get("/api/accounts/{id}", acc.Get())

		r.Get("/api/indicators", handlers.Indicators(app.Catalog))

		th := handlers.NewTicketHTTP(app.Cache, app.Machine, app.Auth)
		r.Route("/api/tickets", func(r chi.Router) {
			r.Get("/", th.List())
			r.With(middleware.RequireRoles(models.RoleStore)).Post("/", th.Create())
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", th.Get())
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRoles(models.RoleAdmin))
					r.Patch("/", th.Update())
					r.Post("/schedule", th.Schedule())
					r.Post("/reschedule", th.Reschedule())
					r.Post("/finish", th.Finish())
				})
			})
		})

		rh := handlers.NewReportsHTTP(app.Cache, app.Auth)
		r.Get("/api/reports/summary", rh.Summary())

		sh := handlers.NewSyncHTTP(app.Poller, app.Journal)
		r.Route("/api/sync", func(r chi.Router) {
			r.Get("/status", sh.Status())
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(models.RoleAdmin))
				r.Post("/refresh", sh.Refresh())
				r.Get("/failures", sh.Failures())
			})
		})
	})

	return r
}
