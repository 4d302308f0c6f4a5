package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/farmlink-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/farmlink-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/farmlink-backend/api/controllers/webhooks"
	"github.com/angelmondragon/farmlink-backend/api/middleware"
	"github.com/angelmondragon/farmlink-backend/internal/auth"
	"github.com/angelmondragon/farmlink-backend/internal/catalog"
	"github.com/angelmondragon/farmlink-backend/internal/orders"
	"github.com/angelmondragon/farmlink-backend/internal/payments"
	"github.com/angelmondragon/farmlink-backend/pkg/auth/session"
	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Params carries everything the router hands to controllers and middleware.
type Params struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.Pinger
	Redis controllers.Pinger

	RateLimits  middleware.RateLimitStore
	Idempotency middleware.IdempotencyStore
	Sessions    sessionManager
	Gatherer    prometheus.Gatherer

	AuthService     auth.Service
	RegisterService auth.RegisterService
	CatalogService  catalog.Service
	OrderService    orders.Service
	PaymentService  payments.Service
	PayHereWebhook  webhookcontrollers.PayHereCallbackService
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	limits := cfg.AuthRateLimit
	loginPolicy := middleware.RateLimitPolicy{
		Surface:      "login",
		Window:       limits.LoginWindow,
		IPLimit:      limits.LoginIPLimit,
		ContactLimit: limits.LoginContactLimit,
	}
	registerPolicy := middleware.RateLimitPolicy{
		Surface:      "register",
		Window:       limits.RegisterWindow,
		IPLimit:      limits.RegisterIPLimit,
		ContactLimit: limits.RegisterContactLimit,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": p.Redis,
		}, logg))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(loginPolicy, p.RateLimits, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
			r.With(
				middleware.RateLimit(registerPolicy, p.RateLimits, logg),
				middleware.Idempotency(p.Idempotency, logg),
			).Post("/register", controllers.AuthRegister(p.RegisterService, logg))
			r.Post("/logout", controllers.AuthLogout(p.Sessions, cfg.JWT, logg))
			r.Post("/refresh", controllers.AuthRefresh(p.Sessions, cfg.JWT, logg))
		})

		// PayHere authenticates with the md5sig field, not a bearer token.
		r.Post("/payments/webhook", webhookcontrollers.PayHereWebhook(p.PayHereWebhook, logg))

		r.Get("/products", controllers.ListProducts(p.CatalogService, logg))
		r.Get("/products/{productId}", controllers.GetProduct(p.CatalogService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
			r.Use(middleware.Idempotency(p.Idempotency, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleFarmer))
				r.Post("/products", controllers.CreateProduct(p.CatalogService, logg))
				r.Patch("/products/{productId}", controllers.UpdateProduct(p.CatalogService, logg))
				r.Delete("/products/{productId}", controllers.DeleteProduct(p.CatalogService, logg))
				r.Get("/farmer/orders", ordercontrollers.ListFarmer(p.OrderService, logg))
			})

			r.With(middleware.RequireRole(logg, enums.UserRoleCustomer)).
				Post("/orders", ordercontrollers.Place(p.OrderService, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleCustomer)).
				Get("/customer/orders", ordercontrollers.ListCustomer(p.OrderService, logg))

			// Order routes stay flat so the idempotency rules see the full route pattern.
			r.Get("/orders/{orderId}", ordercontrollers.Detail(p.OrderService, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleFarmer, enums.UserRoleAdmin)).
				Patch("/orders/{orderId}/status", ordercontrollers.UpdateStatus(p.OrderService, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleCustomer, enums.UserRoleAdmin)).
				Post("/orders/{orderId}/payment/initiate", ordercontrollers.InitiatePayment(p.PaymentService, logg))
		})
	})

	return r
}
