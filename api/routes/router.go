package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/ordersync-backend/api/controllers"
	"github.com/angelmondragon/ordersync-backend/api/middleware"
	internalorders "github.com/angelmondragon/ordersync-backend/internal/orders"
	internalpayments "github.com/angelmondragon/ordersync-backend/internal/payments"
	"github.com/angelmondragon/ordersync-backend/pkg/config"
	"github.com/angelmondragon/ordersync-backend/pkg/db"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
)

// NewOrdersRouter mounts the orders-service HTTP surface.
func NewOrdersRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	ordersSvc internalorders.Service,
) http.Handler {
	r := baseRouter(cfg, logg, dbP)

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", controllers.CreateOrder(ordersSvc, logg))
		r.Get("/", controllers.ListOrders(ordersSvc, logg))
		r.Get("/user/{userId}", controllers.ListUserOrders(ordersSvc, logg))
		r.Get("/{id}", controllers.GetOrder(ordersSvc, logg))
		r.Get("/{id}/status", controllers.GetOrderStatus(ordersSvc, logg))
	})

	return r
}

// NewPaymentsRouter mounts the payments-service HTTP surface.
func NewPaymentsRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	paymentsSvc internalpayments.Service,
) http.Handler {
	r := baseRouter(cfg, logg, dbP)

	r.Route("/api/accounts", func(r chi.Router) {
		r.Post("/create/{userId}", controllers.CreateAccount(paymentsSvc, logg))
		r.Post("/top-up/{userId}/{amount}", controllers.TopUpAccount(paymentsSvc, logg))
		r.Get("/{userId}", controllers.GetAccount(paymentsSvc, logg))
	})

	return r
}

func baseRouter(cfg *config.Config, logg *logger.Logger, dbP db.Pinger) chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	r.Get("/healthz", controllers.Healthz(cfg, logg, dbP))
	return r
}
