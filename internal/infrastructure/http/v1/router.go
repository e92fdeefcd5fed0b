// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	appctx "columbarium/internal/core/context"
	"columbarium/internal/domain/auth"
	"columbarium/internal/domain/beneficiary"
	"columbarium/internal/domain/customer"
	"columbarium/internal/domain/niche"
	"columbarium/internal/domain/payment"
	"columbarium/internal/domain/sale"
	"columbarium/internal/domain/succession"
	"columbarium/internal/infrastructure/http/v1/handlers"
	"columbarium/internal/infrastructure/http/v1/middleware"
	"columbarium/pkg/logger"
)

// Services groups the domain services exposed over HTTP.
type Services struct {
	Auth          *auth.Service
	Niches        *niche.Service
	Customers     *customer.Service
	Beneficiaries *beneficiary.Service
	Sales         *sale.Service
	Payments      *sale.PaymentService
	Maintenance   *payment.MaintenanceService
	Successions   *succession.Service
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Health reports database readiness
	Health handlers.Pinger

	// Idempotency stores first responses of keyed POST requests; nil disables it
	Idempotency middleware.IdempotencyStore

	// Version reported by the liveness check
	Version string

	Services Services
}

var (
	readers = []string{appctx.RoleAdmin, appctx.RoleSeller, appctx.RoleViewer}
	writers = []string{appctx.RoleAdmin, appctx.RoleSeller}
	admins  = []string{appctx.RoleAdmin}
)

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.Origin())
	router.Use(middleware.ErrorHandler())

	api := router.Group("/api/v1")

	if cfg.Health != nil {
		healthHandler := handlers.NewHealthHandler(cfg.Health, cfg.Version)
		api.GET("/health", healthHandler.Live)
		api.GET("/ready", healthHandler.Ready)
	}

	base := handlers.NewBaseHandler()
	authHandler := handlers.NewAuthHandler(base, cfg.Services.Auth)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		protected.Use(middleware.Idempotency(cfg.Idempotency))
	}

	read := protected.Group("", middleware.RequireRole(readers...))
	write := protected.Group("", middleware.RequireRole(writers...))
	admin := protected.Group("", middleware.RequireRole(admins...))

	read.GET("/auth/me", authHandler.Me)
	admin.POST("/auth/users", authHandler.CreateUser)

	registerNicheRoutes(read, write, admin, base, cfg.Services)
	registerCustomerRoutes(read, write, base, cfg.Services)
	registerSaleRoutes(read, write, base, cfg.Services)
	registerSuccessionRoutes(write, admin, base, cfg.Services)

	return router
}

func registerNicheRoutes(read, write, admin *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	h := handlers.NewNicheHandler(base, svc.Niches, svc.Maintenance)
	b := handlers.NewBeneficiaryHandler(base, svc.Beneficiaries)
	s := handlers.NewSuccessionHandler(base, svc.Successions)

	read.GET("/niches", h.List)
	read.GET("/niches/stats", h.Stats)
	read.GET("/niches/code/:code", h.GetByCode)
	read.GET("/niches/:id", h.Get)
	read.GET("/niches/:id/history", h.History)
	read.GET("/niches/:id/occupants", h.Occupants)
	read.GET("/niches/:id/maintenance", h.ListMaintenance)
	read.GET("/niches/:id/beneficiaries", b.ListByNiche)
	read.GET("/niches/:id/beneficiaries/next", b.Next)
	read.GET("/niches/:id/successions", s.History)

	write.POST("/niches/:id/maintenance", h.RegisterMaintenance)
	write.PUT("/niches/:id/beneficiaries", b.Replace)

	admin.POST("/niches", h.Create)
	admin.POST("/niches/:id/disable", h.Disable)
	admin.POST("/niches/:id/enable", h.Enable)
	admin.PATCH("/niches/:id/price", h.UpdatePrice)
	admin.PATCH("/niches/:id/material", h.UpdateMaterial)
	admin.POST("/niches/bulk-material", h.BulkMaterial)
}

func registerCustomerRoutes(read, write *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	h := handlers.NewCustomerHandler(base, svc.Customers)
	b := handlers.NewBeneficiaryHandler(base, svc.Beneficiaries)

	read.GET("/customers", h.List)
	read.GET("/customers/:id", h.Get)
	read.GET("/customers/:id/beneficiaries", b.ListByCustomer)

	write.POST("/customers", h.Create)
	write.PUT("/customers/:id", h.Update)
	write.POST("/customers/:id/deactivate", h.Deactivate)
	write.PATCH("/customers/:id/activate", h.Activate)
	write.POST("/beneficiaries/:id/deceased", b.MarkDeceased)
}

func registerSaleRoutes(read, write *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	h := handlers.NewSaleHandler(base, svc.Sales, svc.Payments)

	read.GET("/sales", h.List)
	read.GET("/sales/:id", h.Get)
	read.GET("/sales/:id/payments", h.Payments)
	read.GET("/sales/:id/refunds", h.Refunds)

	write.POST("/sales", h.Create)
	write.POST("/sales/bulk", h.CreateBulk)
	write.POST("/sales/:id/payment", h.RegisterPayment)
	write.POST("/sales/:id/cancel", h.Cancel)
}

func registerSuccessionRoutes(write, admin *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	h := handlers.NewSuccessionHandler(base, svc.Successions)

	write.POST("/succession/register", h.Register)
	admin.POST("/succession/transfer", h.Transfer)
}
