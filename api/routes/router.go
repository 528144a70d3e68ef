package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tablewire/pos-engine/api/controllers"
	"github.com/tablewire/pos-engine/api/middleware"
	"github.com/tablewire/pos-engine/internal/checks"
	"github.com/tablewire/pos-engine/internal/courses"
	"github.com/tablewire/pos-engine/internal/orders"
	"github.com/tablewire/pos-engine/internal/splits"
	"github.com/tablewire/pos-engine/internal/tables"
	"github.com/tablewire/pos-engine/internal/tabs"
	"github.com/tablewire/pos-engine/pkg/config"
	"github.com/tablewire/pos-engine/pkg/db"
	"github.com/tablewire/pos-engine/pkg/logger"
	"github.com/tablewire/pos-engine/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	store *orders.Store,
	checksSvc *checks.Service,
	splitsSvc *splits.Service,
	tabsSvc *tabs.Service,
	coursesSvc *courses.Service,
	tablesSvc *tables.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.TerminalContext(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(store, logg))
			r.Get("/{orderId}", controllers.GetOrder(store, logg))
			r.Post("/{orderId}/checks", controllers.AppendCheck(store, logg))
			r.Post("/{orderId}/close", controllers.CloseOrder(store, logg))
			r.Post("/{orderId}/courses/{courseIndex}/fire", controllers.FireCourse(coursesSvc, logg))
			r.Post("/{orderId}/courses/{courseIndex}/serve", controllers.ServeCourse(coursesSvc, logg))
		})

		r.Route("/checks/{checkId}", func(r chi.Router) {
			r.Post("/selections", controllers.AddSelection(checksSvc, logg))
			r.Post("/selections/{selectionId}/void", controllers.VoidSelection(checksSvc, logg))
			r.Post("/selections/{selectionId}/comp", controllers.CompSelection(checksSvc, cfg.Policy, logg))
			r.Post("/selections/{selectionId}/assign", controllers.AssignSelection(coursesSvc, logg))
			r.Post("/discount", controllers.ApplyDiscount(checksSvc, logg))
			r.Post("/settle", controllers.SettleCheck(checksSvc, logg))
			r.Post("/split/equal", controllers.SplitEqual(splitsSvc, logg))
			r.Post("/split/seats", controllers.SplitBySeat(splitsSvc, logg))
			r.Post("/split/items", controllers.SplitByItem(splitsSvc, logg))
			r.Post("/transfer", controllers.TransferCheck(splitsSvc, logg))
			r.Post("/tab", controllers.OpenTab(tabsSvc, logg))
			r.Post("/tab/close", controllers.CloseTab(tabsSvc, logg))
			r.Post("/tab/capture-fallback", controllers.CaptureOrFallback(tabsSvc, logg))
		})

		r.Route("/tables", func(r chi.Router) {
			r.Get("/", controllers.ListTables(tablesSvc, logg))
			r.Get("/{tableId}", controllers.GetTable(tablesSvc, logg))
			r.Put("/{tableId}/status", controllers.SetTableStatus(tablesSvc, logg))
			r.Get("/{tableId}/orders", controllers.ListTableOrders(store, logg))
		})
	})

	return r
}
