package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/marketplace-backend/api/controllers"
	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/internal/auth"
	"github.com/angelmondragon/marketplace-backend/internal/basket"
	"github.com/angelmondragon/marketplace-backend/internal/catalog"
	"github.com/angelmondragon/marketplace-backend/internal/contacts"
	"github.com/angelmondragon/marketplace-backend/internal/notifications"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/internal/partner"
	"github.com/angelmondragon/marketplace-backend/internal/users"
	"github.com/angelmondragon/marketplace-backend/pkg/auth/session"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// Dependencies carries everything the HTTP surface needs. Nil stores disable
// the middleware that uses them.
type Dependencies struct {
	Sessions    session.Verifier
	Idempotency middleware.IdempotencyStore
	RateLimiter middleware.RateLimiterStore
	Readiness   map[string]controllers.Pinger
	Metrics     http.Handler
	HTTPMetrics middleware.RequestObserver

	Auth          auth.Service
	Register      auth.RegisterService
	Users         users.Service
	Contacts      contacts.Service
	Catalog       catalog.Service
	Partner       partner.Service
	Basket        basket.Service
	Orders        orders.Service
	Notifications notifications.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	loginPolicy := middleware.NewRateLimitPolicy("login", cfg.AuthRateLimit.LoginWindow,
		middleware.ByClientIP(cfg.AuthRateLimit.LoginIPLimit),
		middleware.ByBodyEmail(cfg.AuthRateLimit.LoginEmailLimit),
	)
	registerPolicy := middleware.NewRateLimitPolicy("register", cfg.AuthRateLimit.RegisterWindow,
		middleware.ByClientIP(cfg.AuthRateLimit.RegisterIPLimit),
		middleware.ByBodyEmail(cfg.AuthRateLimit.RegisterEmailLimit),
	)
	importPolicy := middleware.NewRateLimitPolicy("partner_import", cfg.AuthRateLimit.PartnerImportWindow,
		middleware.ByUser(cfg.AuthRateLimit.PartnerImportLimit),
	)

	idempotent := middleware.Idempotent(deps.Idempotency, middleware.DefaultIdempotencyTTL, logg)
	// placing an order or moving its status must never run twice
	critical := middleware.Idempotent(deps.Idempotency, middleware.CriticalIdempotencyTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Readiness, logg))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(registerPolicy, deps.RateLimiter, logg), idempotent).Post("/user/register", controllers.AuthRegister(deps.Register, logg))
		r.Post("/user/register/confirm", controllers.AuthConfirm(deps.Register, logg))
		r.With(middleware.RateLimit(loginPolicy, deps.RateLimiter, logg)).Post("/user/login", controllers.AuthLogin(deps.Auth, logg))

		r.Get("/categories", controllers.ListCategories(deps.Catalog, logg))
		r.Get("/shops", controllers.ListShops(deps.Catalog, logg))
		r.Get("/products", controllers.ListProducts(deps.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))

			r.Post("/user/logout", controllers.AuthLogout(deps.Auth, logg))
			r.Get("/user/details", controllers.UserDetails(deps.Users, logg))
			r.Post("/user/details", controllers.UserUpdateDetails(deps.Users, logg))

			r.Get("/user/contact", controllers.ListContacts(deps.Contacts, logg))
			r.With(idempotent).Post("/user/contact", controllers.CreateContact(deps.Contacts, logg))
			r.Put("/user/contact", controllers.UpdateContact(deps.Contacts, logg))
			r.Delete("/user/contact", controllers.DeleteContacts(deps.Contacts, logg))

			r.Route("/basket", func(r chi.Router) {
				r.Get("/", controllers.GetBasket(deps.Basket, logg))
				r.With(idempotent).Post("/", controllers.AddBasketItems(deps.Basket, logg))
				r.Put("/", controllers.UpdateBasketItems(deps.Basket, logg))
				r.Delete("/", controllers.RemoveBasketItems(deps.Basket, logg))
			})

			r.Route("/order", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(deps.Orders, logg))
				r.With(critical).Post("/", controllers.PlaceOrder(deps.Orders, logg))
				r.Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
				r.Get("/unread-count", controllers.UnreadNotificationCount(deps.Notifications, logg))
			})

			r.Route("/partner", func(r chi.Router) {
				r.Use(middleware.RequireUserType(logg, enums.UserTypeShop))
				r.With(middleware.RateLimit(importPolicy, deps.RateLimiter, logg), idempotent).Post("/update", controllers.PartnerImport(deps.Partner, logg))
				r.Get("/state", controllers.PartnerState(deps.Catalog, logg))
				r.Post("/state", controllers.PartnerSetState(deps.Catalog, logg))
				r.Get("/orders", controllers.PartnerOrders(deps.Orders, logg))
				r.With(critical).Post("/orders/{orderId}/status", controllers.PartnerOrderStatus(deps.Orders, logg))
			})
		})
	})

	return r
}
