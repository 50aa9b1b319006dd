package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-finance-api/api/swagger"
	"github.com/noah-isme/sma-finance-api/internal/handler"
	"github.com/noah-isme/sma-finance-api/internal/middleware"
	"github.com/noah-isme/sma-finance-api/internal/models"
	"github.com/noah-isme/sma-finance-api/internal/repository"
	"github.com/noah-isme/sma-finance-api/internal/service"
	"github.com/noah-isme/sma-finance-api/pkg/cache"
	"github.com/noah-isme/sma-finance-api/pkg/config"
	"github.com/noah-isme/sma-finance-api/pkg/database"
	"github.com/noah-isme/sma-finance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-finance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-finance-api/pkg/middleware/requestid"
)

// @title SMA Finance API
// @version 1.0.0
// @description School back-office financial reconciliation and clearance API
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, summaries are reconciled on every read", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	students := repository.NewStudentRepository(db)
	billings := repository.NewBillingRepository(db)
	payments := repository.NewPaymentRepository(db)
	bursaries := repository.NewBursaryRepository(db)
	fees := repository.NewFeeRepository(db)
	users := repository.NewUserRepository(db)

	var summaryCache *repository.SummaryCacheRepository
	if redisClient != nil {
		summaryCache = repository.NewSummaryCacheRepository(redisClient, cfg.Finance.SummaryCacheTTL)
	}

	authService := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	var ledgerService *service.LedgerService
	if summaryCache != nil {
		ledgerService = service.NewLedgerService(students, billings, payments, bursaries, summaryCache, metrics, logr)
	} else {
		ledgerService = service.NewLedgerService(students, billings, payments, bursaries, nil, metrics, logr)
	}

	statusService := service.NewStatusService(students, payments, fees, ledgerService, service.StatusThresholds{
		ClearancePct: cfg.Finance.ClearancePct,
		ProbationPct: cfg.Finance.ProbationPct,
	}, validate, metrics, logr)

	issuer := service.NewFeeBillingIssuer(fees, billings, logr)
	promotionService := service.NewPromotionService(students, billings, ledgerService, issuer, cfg.Finance.PromotionLadder, validate, metrics, logr)
	matrixService := service.NewMatrixService(students, billings, payments, cfg.Finance.MatrixColumns, logr)

	var statementService *service.StatementService
	if cfg.Statements.Enabled {
		statementService = service.NewStatementService(students, billings, payments, ledgerService, logr)
	}

	jobCtx, stopJobs := context.WithCancel(context.Background())
	statusService.StartJobs(jobCtx)
	defer func() {
		stopJobs()
		statusService.StopJobs()
	}()

	authHandler := handler.NewAuthHandler(authService)
	studentHandler := handler.NewStudentHandler(students)
	financeHandler := handler.NewFinanceHandler(ledgerService, statusService, matrixService, statementService)
	statusHandler := handler.NewStatusHandler(statusService)
	promotionHandler := handler.NewPromotionHandler(promotionService)
	billingHandler := handler.NewBillingHandler(billings, payments, ledgerService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	authed.GET("/auth/me", authHandler.Me)

	readRoles := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleBursar, models.RoleRegistrar, models.RoleAuditor)
	writeRoles := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleBursar)
	promoteRoles := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleRegistrar)

	authed.GET("/students", readRoles, studentHandler.List)
	authed.GET("/students/:id", readRoles, studentHandler.Get)
	authed.GET("/students/:id/summary", readRoles, financeHandler.Summary)
	authed.GET("/students/:id/status", readRoles, financeHandler.Status)
	authed.GET("/students/:id/matrix", readRoles, financeHandler.Matrix)
	authed.GET("/students/:id/statement", readRoles, financeHandler.Statement)

	authed.GET("/students/:id/billings", readRoles, billingHandler.ListBillings)
	authed.POST("/students/:id/billings", writeRoles,
		middleware.Audit(users, models.AuditActionBillingCreate, "billing"), billingHandler.CreateBilling)
	authed.POST("/students/:id/billings/:billingId/void", writeRoles,
		middleware.Audit(users, models.AuditActionBillingVoid, "billing"), billingHandler.VoidBilling)
	authed.GET("/students/:id/payments", readRoles, billingHandler.ListPayments)
	authed.POST("/students/:id/payments", writeRoles, billingHandler.CreatePayment)

	authed.POST("/students/:id/status/override", writeRoles,
		middleware.Audit(users, models.AuditActionStatusOverride, "status"), statusHandler.Override)
	authed.DELETE("/students/:id/status/override", writeRoles,
		middleware.Audit(users, models.AuditActionStatusClear, "status"), statusHandler.ClearOverride)
	authed.PUT("/students/:id/requirements", writeRoles,
		middleware.Audit(users, models.AuditActionRequirementSet, "status"), statusHandler.RecordRequirement)
	authed.POST("/students/recategorize", writeRoles,
		middleware.Audit(users, models.AuditActionRecategorize, "status"), statusHandler.Recategorize)

	authed.POST("/students/:id/promote", promoteRoles,
		middleware.Audit(users, models.AuditActionPromote, "promotion"), promotionHandler.Promote)
	authed.POST("/students/:id/promote/reverse", promoteRoles,
		middleware.Audit(users, models.AuditActionPromotionReverse, "promotion"), promotionHandler.Reverse)
	authed.POST("/students/:id/graduate", promoteRoles,
		middleware.Audit(users, models.AuditActionPromote, "promotion"), promotionHandler.Graduate)
	authed.POST("/promotions/reverse", promoteRoles,
		middleware.Audit(users, models.AuditActionPromotionReverse, "promotion"), promotionHandler.BulkReverse)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
