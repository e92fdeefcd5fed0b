// Package main is the entry point for the columbarium API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"columbarium/internal/core/rules"
	"columbarium/internal/domain/auth"
	"columbarium/internal/domain/beneficiary"
	"columbarium/internal/domain/customer"
	"columbarium/internal/domain/niche"
	"columbarium/internal/domain/payment"
	"columbarium/internal/domain/sale"
	"columbarium/internal/domain/succession"
	v1 "columbarium/internal/infrastructure/http/v1"
	"columbarium/internal/infrastructure/numerator"
	"columbarium/internal/infrastructure/storage/postgres"
	"columbarium/internal/infrastructure/storage/postgres/auth_repo"
	"columbarium/internal/infrastructure/storage/postgres/ledger_repo"
	"columbarium/internal/infrastructure/storage/postgres/registry_repo"
	"columbarium/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg := loadConfig()

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Infow("starting columbarium server", "version", version)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	poolCfg.MinConns = int32(cfg.DBMinConns)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool,
		postgres.WithStatementTimeout(cfg.DBStmtTimeout),
		postgres.WithRetries(cfg.DBTxAttempts, 25*time.Millisecond))

	auditSink, err := postgres.NewAuditSink(txManager)
	if err != nil {
		log.Fatalw("failed to create audit sink", "error", err)
	}

	policy, err := rules.NewSalePolicy(cfg.SalePolicy)
	if err != nil {
		log.Fatalw("invalid SALE_POLICY", "error", err)
	}

	// --- Repositories ---
	niches := registry_repo.NewNicheRepo(txManager)
	customers := registry_repo.NewCustomerRepo(txManager)
	beneficiaries := registry_repo.NewBeneficiaryRepo(txManager)
	sales := ledger_repo.NewSaleRepo(txManager)
	payments := ledger_repo.NewPaymentRepo(txManager)
	successions := ledger_repo.NewSuccessionRepo(txManager)
	users := auth_repo.NewUserRepo(txManager)

	numbers := numerator.NewFromTxManager(txManager)

	// --- Services ---
	jwtConfig := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtConfig.AccessTokenTTL = cfg.JWTAccessTTL
	jwtService := auth.NewJWTService(jwtConfig)
	authService := auth.NewService(users, txManager, jwtService, auth.DefaultServiceConfig())

	nicheService := niche.NewService(niches, txManager, auditSink)
	customerService := customer.NewService(customers, txManager, auditSink)
	beneficiaryService := beneficiary.NewService(beneficiaries, niches, customers, txManager, auditSink)

	saleCfg := sale.Config{
		Sales:         sales,
		Niches:        niches,
		Customers:     customers,
		Payments:      payments,
		Beneficiaries: beneficiaryService,
		Numerator:     numbers,
		TxManager:     txManager,
		Audit:         auditSink,
		Policy:        policy,
		Months:        cfg.SaleMonths,
	}

	services := v1.Services{
		Auth:          authService,
		Niches:        nicheService,
		Customers:     customerService,
		Beneficiaries: beneficiaryService,
		Sales:         sale.NewService(saleCfg),
		Payments:      sale.NewPaymentService(saleCfg),
		Maintenance:   payment.NewMaintenanceService(payments, niches, numbers, txManager, auditSink),
		Successions: succession.NewService(succession.Config{
			Successions:   successions,
			Niches:        niches,
			Customers:     customers,
			Sales:         sales,
			Beneficiaries: beneficiaryService,
			TxManager:     txManager,
			Audit:         auditSink,
		}),
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Health:       pool,
		Idempotency:  postgres.NewIdempotencyStore(txManager, cfg.IdempotencyTTL),
		Version:      version,
		Services:     services,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTPAddr, "months", cfg.SaleMonths)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
