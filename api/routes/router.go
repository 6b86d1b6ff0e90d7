package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/fulfillment-backend/api/controllers"
	batchcontrollers "github.com/angelmondragon/fulfillment-backend/api/controllers/batch"
	picklistcontrollers "github.com/angelmondragon/fulfillment-backend/api/controllers/picklists"
	"github.com/angelmondragon/fulfillment-backend/api/middleware"
	"github.com/angelmondragon/fulfillment-backend/internal/notifications"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

// Params carries everything the router wires into handlers.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	Readiness     []controllers.Dependency
	Idempotency   redis.IdempotencyStore
	Gatherer      prometheus.Gatherer
	Batch         batchcontrollers.Service
	PickLists     picklistcontrollers.Service
	Notifications notifications.Service
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	roles := cfg.Fulfillment

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness...))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.Idempotency, logg))

		r.Route("/batch", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, roles.AdminRole, roles.SupervisorRole))
			r.Post("/process", batchcontrollers.Process(p.Batch, logg))
			r.Get("/{batchId}/errors", batchcontrollers.Errors(p.Batch, logg))
		})

		r.Route("/picklists", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, roles.PickerRole, roles.SupervisorRole, roles.AdminRole))
			r.Get("/", picklistcontrollers.List(p.PickLists, logg))
			r.Get("/{id}", picklistcontrollers.Detail(p.PickLists, logg))
			r.Get("/{id}/logs", picklistcontrollers.Logs(p.PickLists, logg))
			r.Patch("/{id}", picklistcontrollers.Patch(p.PickLists, logg))
			r.With(middleware.RequireRole(logg, roles.SupervisorRole, roles.AdminRole)).
				Delete("/{id}", picklistcontrollers.Delete(p.PickLists, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
		})
	})

	return r
}
