package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avolkov/storefront-backend/api/controllers"
	"github.com/avolkov/storefront-backend/api/middleware"
	cartsvc "github.com/avolkov/storefront-backend/internal/cart"
	ordersvc "github.com/avolkov/storefront-backend/internal/orders"
	paymentsvc "github.com/avolkov/storefront-backend/internal/payment"
	"github.com/avolkov/storefront-backend/pkg/config"
	"github.com/avolkov/storefront-backend/pkg/db"
	"github.com/avolkov/storefront-backend/pkg/logger"
	redisclient "github.com/avolkov/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redisclient.Client,
	cartService cartsvc.Service,
	ordersService ordersvc.Service,
	paymentService paymentsvc.Service,
	promRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(logg, dbClient, redisClient))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	signInPath := cfg.Session.SignInPath

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Session(cfg.Session, redisClient, logg))

		r.Route("/basket", func(r chi.Router) {
			r.Get("/", controllers.BasketGet(cartService, logg))
			r.Post("/", controllers.BasketAdd(cartService, logg))
			r.Delete("/", controllers.BasketReduce(cartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrdersCreate(ordersService, signInPath, logg))
			r.Get("/", controllers.OrdersList(ordersService, logg))
			r.Get("/active", controllers.OrdersActive(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderGet(ordersService, logg))
			r.Post("/{orderId}", controllers.OrderConfirm(ordersService, signInPath, logg))
		})

		r.Post("/payment", controllers.PaymentPay(paymentService, signInPath, logg))

		if !cfg.App.IsProd() {
			r.Post("/session/bind", controllers.SessionBind(cfg.Session, redisClient, logg))
		}
	})

	return r
}
