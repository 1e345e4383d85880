// Package routes wires the pipeline together: repositories, adapters,
// services, background workers, and the HTTP routing table.
package routes

import (
	"context"
	"log"
	"time"

	"giveflow/internal/config"
	"giveflow/internal/handlers"
	"giveflow/internal/middleware"
	"giveflow/internal/models"
	"giveflow/internal/providers"
	"giveflow/internal/repositories"
	"giveflow/internal/services/audit"
	"giveflow/internal/services/disbursement"
	"giveflow/internal/services/ledger"
	"giveflow/internal/services/notification"
	"giveflow/internal/services/payment"
	"giveflow/internal/services/recurring"
	"giveflow/internal/services/webhook"
	"giveflow/internal/workers"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Runtime holds the background components main starts after the routes are
// registered.
type Runtime struct {
	Pool       *workers.Pool
	Dispatcher *workers.RetryDispatcher
	Recurring  *recurring.Service
	Verifier   *payment.Verifier
}

// SetupRoutes builds the dependency graph and registers all HTTP routes.
func SetupRoutes(app *fiber.App, db *gorm.DB) *Runtime {
	// Repositories
	txRepo := repositories.NewTransactionRepository(db)
	disbRepo := repositories.NewDisbursementRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	planRepo := repositories.NewRecurringPlanRepository(db)

	// Background execution
	clock := workers.SystemClock{}
	pool := workers.NewPool(
		config.GetIntEnv("WORKER_POOL_SIZE", 8),
		config.GetIntEnv("WORKER_QUEUE_DEPTH", 256),
	)
	bus := workers.NewEventBus(pool)

	// Ledger
	var ledgerCache ledger.Cache
	if repositories.CacheService != nil {
		ledgerCache = repositories.CacheService
	}
	ledgerSvc := ledger.NewService(txRepo, ledgerCache, bus)

	// Provider gateway adapters
	disbCfg := config.LoadDisbursementConfig()
	registry := providers.NewRegistry(
		providers.NewMobileMoneyAdapter(disbCfg.Providers[models.ProviderMobileMoney]),
		providers.NewCardAdapter(
			disbCfg.Providers[models.ProviderCard],
			config.GetEnv("CHECKOUT_SUCCESS_URL", "https://giveflow.app/donate/success"),
			config.GetEnv("CHECKOUT_CANCEL_URL", "https://giveflow.app/donate/cancel"),
		),
		providers.NewBankAdapter(disbCfg.Providers[models.ProviderBankTransfer]),
	)

	// Engine, sinks and ingestion
	notifier := notification.NewService()
	disbSvc := disbursement.NewService(disbRepo, orgRepo, registry, ledgerSvc, notifier, clock, disbCfg)
	auditRec := audit.NewRecorder(db)
	webhookSvc := webhook.NewService(registry, ledgerSvc, disbSvc, auditRec)
	paymentSvc := payment.NewService(ledgerSvc, registry)
	verifier := payment.NewVerifier(ledgerSvc, registry, txRepo, clock,
		time.Duration(config.GetIntEnv("VERIFY_WINDOW_MINUTES", 30))*time.Minute,
		config.GetIntEnv("VERIFY_BATCH_SIZE", 50))
	recurringSvc := recurring.NewService(planRepo, paymentSvc, clock)

	// Domain event consumers
	bus.Subscribe(ledger.EventTransactionCompleted, func(ctx context.Context, tx models.Transaction) {
		if err := disbSvc.Schedule(ctx, tx); err != nil {
			log.Printf("routes: schedule disbursement for %s: %v", tx.Reference, err)
		}
	})
	bus.Subscribe(ledger.EventTransactionCompleted, notifier.TransactionCompleted)
	bus.Subscribe(ledger.EventTransactionFailed, notifier.TransactionFailed)

	// Handlers
	paymentHandler := handlers.NewPaymentHandler(paymentSvc, ledgerSvc, disbSvc)
	webhookHandler := handlers.NewWebhookHandler(webhookSvc)
	adminHandler := handlers.NewAdminHandler(disbSvc, ledgerSvc)
	recurringHandler := handlers.NewRecurringHandler(recurringSvc)

	app.Get("/health", handlers.HealthCheck)

	// Provider callbacks are authenticated by signature, not bearer token.
	hooks := app.Group("/webhooks")
	hooks.Post("/:provider", webhookHandler.PaymentCallback)
	hooks.Post("/:provider/transfers", webhookHandler.TransferCallback)

	api := app.Group("/api")
	protected := api.Use(middleware.Auth)

	payments := protected.Group("/payments")
	payments.Post("/initiate",
		middleware.RequireCapability(models.CapabilityPaymentInitiate),
		paymentHandler.InitiatePayment)
	payments.Get("/:reference",
		middleware.RequireCapability(models.CapabilityPaymentRead),
		paymentHandler.GetPaymentStatus)
	payments.Post("/:reference/cancel",
		middleware.RequireCapability(models.CapabilityPaymentInitiate),
		paymentHandler.CancelPayment)

	protected.Post("/plans",
		middleware.RequireCapability(models.CapabilityPaymentInitiate),
		recurringHandler.CreatePlan)

	admin := protected.Group("/admin")
	admin.Post("/disbursements/:id/requeue",
		middleware.RequireCapability(models.CapabilityDisbursementRequeue),
		adminHandler.RequeueDisbursement)
	admin.Post("/transactions/:reference/refund",
		middleware.RequireCapability(models.CapabilityPaymentRefund),
		adminHandler.RefundTransaction)

	dispatcher := workers.NewRetryDispatcher(
		disbSvc, pool, clock,
		time.Duration(config.GetIntEnv("RETRY_SCAN_SECONDS", 60))*time.Second,
		config.GetIntEnv("RETRY_BATCH_SIZE", 100),
	)

	return &Runtime{Pool: pool, Dispatcher: dispatcher, Recurring: recurringSvc, Verifier: verifier}
}
