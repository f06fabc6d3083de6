package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/handlers"
	"github.com/flowstock/flowstock_backend/middlewares"
	"github.com/flowstock/flowstock_backend/models"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/flowstock/flowstock_backend/workflow"
)

const defaultPort = "8080"

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getRedisClient(redisAddress string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func registerRoutes(r *gin.Engine) {
	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/login", handlers.LoginHandler())
	auth.POST("/refresh", handlers.RefreshHandler())
	auth.POST("/logout", handlers.LogoutHandler())
	auth.POST("/password-reset/request", handlers.PasswordResetRequestHandler())
	auth.POST("/password-reset/confirm", handlers.PasswordResetConfirmHandler())

	authed := api.Group("", middlewares.RequireAuth())
	authed.GET("/auth/me", handlers.MeHandler())
	authed.POST("/auth/mfa/setup", handlers.MfaSetupHandler())
	authed.POST("/auth/mfa/enable", handlers.MfaEnableHandler())
	authed.POST("/auth/mfa/disable", handlers.MfaDisableHandler())
	authed.GET("/auth/sessions", handlers.ListSessionsHandler())
	authed.DELETE("/auth/sessions/:sessionId", handlers.RevokeSessionHandler())

	authed.GET("/products", handlers.ListProductsHandler())
	authed.GET("/products/low-stock", handlers.LowStockHandler())
	authed.GET("/products/sku-suggestion", handlers.SkuSuggestionHandler())
	authed.GET("/products/:id", handlers.GetProductHandler())
	authed.GET("/products/:id/suppliers", handlers.ListContractsHandler())
	authed.GET("/categories", handlers.ListCategoriesHandler())
	authed.GET("/suppliers", handlers.ListSuppliersHandler())
	authed.GET("/suppliers/:id", handlers.GetSupplierHandler())
	authed.GET("/orders", handlers.ListSalesOrdersHandler())
	authed.GET("/orders/:id", handlers.GetSalesOrderHandler())
	authed.GET("/purchase-orders", handlers.ListPurchaseOrdersHandler())
	authed.GET("/purchase-orders/suggestions", handlers.ReplenishmentSuggestionsHandler())
	authed.GET("/purchase-orders/:id", handlers.GetPurchaseOrderHandler())
	authed.GET("/audit-logs", handlers.ListAuditLogsHandler())
	authed.GET("/audit-logs/export", handlers.ExportAuditLogsHandler())
	authed.GET("/reports/sales", handlers.SalesReportHandler())
	authed.GET("/reports/sales/export", handlers.SalesReportExportHandler())

	mutate := api.Group("", middlewares.RequireAuth(), middlewares.RequireMutatorRole(),
		middlewares.IdempotencyMiddleware())
	mutate.POST("/products", handlers.CreateProductHandler())
	mutate.PUT("/products/:id", handlers.UpdateProductHandler())
	mutate.POST("/products/import", handlers.ImportProductsHandler())
	mutate.POST("/products/:id/adjust-stock", handlers.AdjustStockHandler())
	mutate.PUT("/products/:id/suppliers", handlers.UpsertContractHandler())
	mutate.DELETE("/products/:id/suppliers/:supplierId", handlers.RemoveContractHandler())
	mutate.POST("/categories", handlers.CreateCategoryHandler())
	mutate.PUT("/categories/:id/sku-rule", handlers.UpdateCategorySkuRuleHandler())
	mutate.POST("/suppliers", handlers.CreateSupplierHandler())
	mutate.PUT("/suppliers/:id", handlers.UpdateSupplierHandler())
	mutate.POST("/orders", handlers.CreateSalesOrderHandler())
	mutate.POST("/orders/:id/confirm", handlers.ConfirmSalesOrderHandler())
	mutate.POST("/orders/:id/cancel", handlers.CancelSalesOrderHandler())
	mutate.POST("/purchase-orders", handlers.CreatePurchaseOrderHandler())
	mutate.POST("/purchase-orders/:id/receive", handlers.ReceivePurchaseOrderHandler())
	mutate.POST("/purchase-orders/:id/cancel", handlers.CancelPurchaseOrderHandler())

	admin := api.Group("", middlewares.RequireAuth(), middlewares.RequireAdminRole())
	admin.POST("/users", handlers.CreateUserHandler())
	admin.POST("/audit-logs/cleanup", handlers.CleanupAuditLogsHandler())
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination: handle SIGTERM for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the instance
	// healthy. Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		ctx = utils.SetClientIpInContext(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Header("x-correlation-id", cid)
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate app endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "Idempotency-Key")
	corsConfig.AddExposeHeaders("Content-Length", "Idempotency-Replayed")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())
	registerRoutes(r)
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately; dependencies connect behind the gate.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	models.StartAuditRecorder()

	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	go workflow.RunMaintenanceJobs(jobsCtx, logger)

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while
	// we're draining.
	cancelJobs()

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Flush queued audit entries before exit.
	models.StopAuditRecorder()

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that accumulated errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
