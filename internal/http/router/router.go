package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/straye-as/purchasing-api/internal/auth"
	"github.com/straye-as/purchasing-api/internal/config"
	"github.com/straye-as/purchasing-api/internal/database"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/http/handler"
	"github.com/straye-as/purchasing-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/straye-as/purchasing-api/docs" // Import generated swagger docs
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	PurchaseRequest *handler.PurchaseRequestHandler
	Shipment        *handler.ShipmentHandler
	Supplier        *handler.SupplierHandler
	Order           *handler.OrderHandler
	Invoice         *handler.InvoiceHandler
	Auth            *handler.AuthHandler
}

type Router struct {
	cfg            *config.Config
	logger         *zap.Logger
	db             *gorm.DB
	redis          *redis.Client
	authMiddleware *auth.Middleware
	rateLimiter    *middleware.RateLimiter
	handlers       Handlers
}

// NewRouter wires the HTTP surface. redisClient may be nil when no lock
// backend is configured.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		redis:          redisClient,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
		handlers:       handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Liveness
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/health/db", rt.databaseHealth)
	r.Get("/health/ready", rt.readiness)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	h := rt.handlers
	capability := rt.authMiddleware.RequireCapability

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Locale)
		if timeout := rt.cfg.Server.RequestTimeoutDuration(); timeout > 0 {
			r.Use(chimw.Timeout(timeout))
		}

		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(rt.rateLimiter.Limit)

			r.Get("/auth/me", h.Auth.Me)

			r.Route("/purchase-requests", func(r chi.Router) {
				r.Use(capability(domain.CapabilityReadRequests))
				r.Get("/", h.PurchaseRequest.List)
				r.Post("/", h.PurchaseRequest.Create)
				r.Get("/statuses", h.PurchaseRequest.StatusLabels)
				r.Get("/{id}", h.PurchaseRequest.GetByID)
				r.Get("/{id}/history", h.PurchaseRequest.History)
				r.Get("/{id}/shipments", h.PurchaseRequest.Shipments)
				r.Get("/{id}/invoice-batches", h.Invoice.Batches)
				r.Get("/{id}/transitions", h.PurchaseRequest.AllowedTransitions)
				r.Post("/{id}/transitions/{transition}", h.PurchaseRequest.Transition)
				r.Post("/{id}/reconcile", h.PurchaseRequest.Reconcile)
			})

			r.Route("/line-items/{id}/shipments", func(r chi.Router) {
				r.With(capability(domain.CapabilityReadRequests)).Get("/", h.Shipment.List)
				r.With(capability(domain.CapabilityRecordShipment)).Post("/", h.Shipment.Record)
			})

			r.Route("/suppliers", func(r chi.Router) {
				r.Get("/", h.Supplier.List)
				r.Get("/{id}", h.Supplier.GetByID)
				r.With(capability(domain.CapabilityManageSuppliers)).Post("/", h.Supplier.Create)
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(capability(domain.CapabilityManageOrders)).Post("/", h.Order.Create)
				r.Get("/{id}", h.Order.GetByID)
				r.Get("/{id}/invoice-summary", h.Order.InvoiceSummary)
				r.With(capability(domain.CapabilityConfirmDelivery)).Post("/{id}/confirm-delivery", h.Order.ConfirmDelivery)
			})

			r.Route("/invoices", func(r chi.Router) {
				r.Use(capability(domain.CapabilityManageInvoices))
				r.Post("/", h.Invoice.Create)
				r.Get("/{id}", h.Invoice.GetByID)
				r.Post("/{id}/photos", h.Invoice.UploadPhoto)
			})

			r.Route("/invoice-groups", func(r chi.Router) {
				r.Use(capability(domain.CapabilityManageInvoices))
				r.Post("/", h.Invoice.CreateGroup)
				r.Get("/{id}", h.Invoice.GetGroup)
			})

			r.Post("/totals/preview", h.Invoice.TotalsPreview)
		})
	})

	return r
}

func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := database.HealthCheckWithStats(r.Context(), rt.db)
	if err != nil {
		rt.logger.Error("database health check failed", zap.Error(err))
		writeHealth(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}

	writeHealth(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats":   stats,
	})
}

// readiness checks the database and, when configured, the redis lock backend.
func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]interface{})
	allHealthy := true

	check := func(name string, err error) {
		if err != nil {
			rt.logger.Error("readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
			return
		}
		checks[name] = map[string]interface{}{"status": "healthy"}
	}

	check("database", database.HealthCheck(r.Context(), rt.db))
	if rt.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		check("redis", rt.redis.Ping(ctx).Err())
		cancel()
	}

	status, label := http.StatusOK, "healthy"
	if !allHealthy {
		status, label = http.StatusServiceUnavailable, "unhealthy"
	}
	writeHealth(w, status, map[string]interface{}{"status": label, "checks": checks})
}

func writeHealth(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
