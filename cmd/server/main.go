package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"packhouse-backend/internal/admin"
	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/audit"
	"packhouse-backend/internal/auth"
	"packhouse-backend/internal/config"
	"packhouse-backend/internal/database"
	"packhouse-backend/internal/lifecycle"
	"packhouse-backend/internal/models"
	"packhouse-backend/internal/palletizing"
	"packhouse-backend/internal/production"
	"packhouse-backend/internal/reconciliation"
	"packhouse-backend/internal/store/gormstore"

	"github.com/bsm/redislock"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)
	cfg.Check(logger)

	db := database.Init(cfg, logger)
	st := gormstore.New(db)

	var locker reconciliation.Locker = reconciliation.NewLocalLocker()
	if rdb := database.NewRedis(cfg, logger); rdb != nil {
		defer rdb.Close()
		locker = reconciliation.NewRedisLocker(redislock.New(rdb), reconciliation.RunLockTTL)
	}

	settings, err := reconciliation.SettingsFrom(cfg)
	if err != nil {
		logger.WithError(err).Fatal("invalid reconciliation settings")
	}

	productionSvc := production.NewService(st, logger)
	palletSvc := palletizing.NewService(st, logger)
	engine := reconciliation.NewEngine(st, locker, settings, logger)

	app := fiber.New(fiber.Config{ErrorHandler: apperr.Render})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-enterprise", auth.RegisterEnterpriseHandler(st))
	api.Post("/auth/login", auth.LoginHandler(st, cfg.JWTSecret))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))

	protected.Get("/auth/me", auth.MeHandler(st))

	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	adminRoutes.Post("/users", auth.CreateUserHandler(st))
	adminRoutes.Post("/box-sizes", admin.CreateBoxSizeHandler(st))
	adminRoutes.Post("/bin-types", admin.CreateBinTypeHandler(st))
	adminRoutes.Post("/pallet-types", admin.CreatePalletTypeHandler(st))

	// Reference data
	protected.Get("/box-sizes", admin.ListBoxSizesHandler(st))
	protected.Get("/bin-types", admin.ListBinTypesHandler(st))
	protected.Get("/pallet-types", admin.ListPalletTypesHandler(st))

	// Batches and lots
	protected.Post("/batches", production.CreateBatchHandler(productionSvc))
	protected.Get("/batches/:batchId", production.GetBatchHandler(productionSvc))
	protected.Put("/batches/:batchId/waste", production.SetWasteHandler(productionSvc))
	for _, ev := range []lifecycle.Event{
		lifecycle.EventStartGrading,
		lifecycle.EventStartPacking,
		lifecycle.EventClose,
		lifecycle.EventFinalize,
		lifecycle.EventReject,
	} {
		protected.Post("/batches/:batchId/"+string(ev), production.TransitionHandler(productionSvc, ev))
	}
	adminRoutes.Post("/batches/:batchId/reopen", production.TransitionHandler(productionSvc, lifecycle.EventReopen))
	protected.Post("/lots/from-batch/:batchId", production.CreateLotsHandler(productionSvc))
	protected.Patch("/lots/:lotId", production.UpdateLotHandler(productionSvc))

	// Pallets
	protected.Get("/pallets/capacity", palletizing.CapacityHandler(palletSvc))
	protected.Post("/pallets/from-lots", palletizing.CreateFromLotsHandler(palletSvc))
	protected.Get("/pallets/:palletId", palletizing.GetHandler(palletSvc))
	protected.Post("/pallets/:palletId/allocate", palletizing.AllocateHandler(palletSvc))
	protected.Post("/pallets/:palletId/seal", palletizing.SealHandler(palletSvc))
	protected.Post("/pallets/:palletId/cold-store", palletizing.ColdStoreHandler(palletSvc))

	// Reconciliation
	protected.Get("/reconciliation/dashboard", reconciliation.DashboardHandler(engine))
	protected.Post("/reconciliation/run", reconciliation.RunHandler(engine))
	protected.Get("/reconciliation/alerts/export", reconciliation.ExportAlertsHandler(engine))
	protected.Patch("/reconciliation/alerts/:alertId", reconciliation.UpdateAlertHandler(engine))

	// Audit logs
	protected.Get("/audit-logs", audit.ListAuditLogsHandler(st))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var schedulerDone <-chan struct{}
	if cfg.ReconInterval > 0 {
		schedulerDone = reconciliation.NewScheduler(engine, cfg.ReconInterval).Start(ctx)
		logger.WithField("interval", cfg.ReconInterval.String()).Info("reconciliation scheduler started")
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.WithError(err).Error("server shutdown")
		}
	}()

	logger.WithField("port", cfg.HTTPPort).Info("server listening")
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
	if schedulerDone != nil {
		<-schedulerDone
	}
}
