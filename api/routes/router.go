package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/craftmart/craftmart-backend/api/controllers"
	webhookcontrollers "github.com/craftmart/craftmart-backend/api/controllers/webhooks"
	"github.com/craftmart/craftmart-backend/api/middleware"
	"github.com/craftmart/craftmart-backend/internal/cart"
	"github.com/craftmart/craftmart-backend/internal/catalog"
	"github.com/craftmart/craftmart-backend/internal/checkout"
	"github.com/craftmart/craftmart-backend/internal/orders"
	"github.com/craftmart/craftmart-backend/pkg/config"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	"github.com/craftmart/craftmart-backend/pkg/logger"
	pkgredis "github.com/craftmart/craftmart-backend/pkg/redis"
	"github.com/craftmart/craftmart-backend/pkg/sessionid"
)

// redisStore is the slice of the Redis client the HTTP layer needs.
type redisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Deps lists everything the router wires into handlers. Redis, Metrics and
// Webhook may be nil; the dependent middleware and routes degrade accordingly.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         pkgredis.Pinger
	Redis      redisStore
	Metrics    http.Handler
	SessionIDs sessionid.Generator
	Catalog    catalog.Service
	Cart       cart.Service
	Checkout   checkout.Service
	Orders     orders.Service
	Webhook    webhookcontrollers.LemonSqueezyWebhookService
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var (
		idem   pkgredis.IdempotencyStore
		redisP pkgredis.Pinger
		limit  interface {
			IncrWithTTL(context.Context, string, time.Duration) (int64, error)
		}
	)
	if deps.Redis != nil {
		idem, redisP, limit = deps.Redis, deps.Redis, deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Storefront.AllowedOrigins),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.Checkout.RateLimitWindow,
		cfg.Checkout.RateLimitPerIP,
		cfg.Checkout.RateLimitPerIP,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisP))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Signed server-to-server traffic; no cart session.
		r.Post("/webhooks/lemonsqueezy", webhookcontrollers.LemonSqueezyWebhook(deps.Webhook, cfg.LemonSqueezy.WebhookSecret, logg))

		r.Get("/categories", controllers.CatalogCategories(deps.Catalog, logg))
		r.Get("/categories/{slug}/products", controllers.CatalogCategoryProducts(deps.Catalog, logg))
		r.Get("/products/{slug}", controllers.CatalogProduct(deps.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.CartSession(deps.SessionIDs, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(deps.Cart, logg))
				r.Delete("/", controllers.CartClear(deps.Cart, logg))
				r.With(middleware.Idempotency(idem, logg)).Post("/items", controllers.CartAddItem(deps.Cart, logg))
				r.Patch("/items/{productId}", controllers.CartUpdateItem(deps.Cart, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(deps.Cart, logg))
			})

			r.With(
				middleware.RateLimit(checkoutPolicy, limit, logg),
				middleware.Idempotency(idem, logg),
			).Post("/checkout", controllers.CheckoutCreate(deps.Checkout, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.RoleAdmin)).Get("/", controllers.AdminListOrders(deps.Orders, logg))
			r.With(middleware.RequireRole(logg, enums.RoleAdmin)).Get("/{orderId}", controllers.AdminGetOrder(deps.Orders, logg))
			r.With(
				middleware.RequireRole(logg, enums.RoleAdmin, enums.RoleFulfillment),
				middleware.Idempotency(idem, logg),
			).Patch("/{orderId}/delivery", controllers.AdminUpdateOrderDelivery(deps.Orders, logg))
		})
	})

	return r
}
