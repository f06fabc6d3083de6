package workflow

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/models"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/sirupsen/logrus"
)

type maintenanceJob struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

func intervalFromEnv(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

// RunMaintenanceJobs starts the recurring housekeeping loops and blocks
// until ctx is cancelled. Each job runs on its own ticker so a slow one
// cannot starve the others.
func RunMaintenanceJobs(ctx context.Context, logger *logrus.Logger) {
	jobs := []maintenanceJob{
		{
			Name:     "auditRetention",
			Interval: intervalFromEnv("AUDIT_CLEANUP_INTERVAL_SECONDS", 24*time.Hour),
			Run: func(ctx context.Context) error {
				deleted, err := models.CleanupAuditLogs(ctx, config.AuditRetentionDays())
				if err != nil {
					return err
				}
				if deleted > 0 {
					logger.WithFields(logrus.Fields{
						"job":     "auditRetention",
						"deleted": deleted,
					}).Info("audit log retention applied")
				}
				return nil
			},
		},
		{
			Name:     "refreshTokenPurge",
			Interval: intervalFromEnv("SESSION_PURGE_INTERVAL_SECONDS", time.Hour),
			Run: func(ctx context.Context) error {
				deleted, err := models.CleanupRefreshTokens(ctx)
				if err != nil {
					return err
				}
				if deleted > 0 {
					logger.WithFields(logrus.Fields{
						"job":     "refreshTokenPurge",
						"deleted": deleted,
					}).Info("stale sessions purged")
				}
				return nil
			},
		},
		{
			Name:     "passwordResetPurge",
			Interval: intervalFromEnv("SESSION_PURGE_INTERVAL_SECONDS", time.Hour),
			Run: func(ctx context.Context) error {
				_, err := models.CleanupPasswordResetTokens(ctx)
				return err
			},
		},
		{
			Name:     "idempotencyPurge",
			Interval: intervalFromEnv("IDEMPOTENCY_PURGE_INTERVAL_SECONDS", time.Hour),
			Run: func(ctx context.Context) error {
				deleted, err := models.CleanupIdempotencyKeys(ctx)
				if err != nil {
					return err
				}
				if deleted > 0 {
					logger.WithFields(logrus.Fields{
						"job":     "idempotencyPurge",
						"deleted": deleted,
					}).Info("expired idempotency keys purged")
				}
				return nil
			},
		},
		{
			Name:     "lowStockReport",
			Interval: intervalFromEnv("LOW_STOCK_REPORT_INTERVAL_SECONDS", 6*time.Hour),
			Run:      reportLowStock,
		},
	}

	for _, job := range jobs {
		go runJobLoop(ctx, logger, job)
	}
	<-ctx.Done()
}

func runJobLoop(ctx context.Context, logger *logrus.Logger, job maintenanceJob) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Serialize across instances: only one replica runs a given
			// sweep per tick.
			err := utils.WithKeyedLock(ctx, "MaintenanceJob", job.Name, "maintenanceJobs", job.Name, func() error {
				return job.Run(ctx)
			})
			if err != nil {
				config.LogError(logger, "maintenanceJobs", job.Name, "job run failed", nil, err)
			}
		}
	}
}

// reportLowStock logs products at or below their reorder point and drops
// a single audit entry summarizing the sweep.
func reportLowStock(ctx context.Context) error {
	products, err := models.ListLowStockProducts(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return nil
	}

	logger := config.GetLogger()
	for _, p := range products {
		logger.WithFields(logrus.Fields{
			"job":           "lowStockReport",
			"sku":           p.Sku,
			"available":     p.AvailableQty,
			"reorder_point": p.ReorderPoint,
		}).Warn("product at or below reorder point")
	}

	models.RecordAudit(ctx, models.AuditActionLowStockReport, "Product", 0,
		fmt.Sprintf("%d products at or below reorder point", len(products)))
	return nil
}
