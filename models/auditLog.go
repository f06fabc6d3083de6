package models

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/flowstock/flowstock_backend/config"
)

// AuditLog is append-only; rows are never updated and only deleted by the
// retention cleanup.
type AuditLog struct {
	ID            int         `gorm:"primary_key" json:"id"`
	Actor         string      `gorm:"size:100;index;not null" json:"actor"`
	Action        AuditAction `gorm:"size:50;index;not null" json:"action"`
	TargetType    string      `gorm:"size:100" json:"target_type"`
	TargetId      int         `gorm:"index" json:"target_id"`
	Detail        string      `gorm:"type:text" json:"detail"`
	CorrelationId string      `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
}

func (a AuditLog) GetCursor() string {
	return a.CreatedAt.Format(time.RFC3339Nano)
}

func (a AuditLog) GetId() int {
	return a.ID
}

const auditQueueSize = 1024

var (
	auditQueue     chan AuditLog
	auditQueueOnce sync.Once
	auditWg        sync.WaitGroup

	// persistAuditEntry is swappable so unit tests can capture entries
	// without a database.
	persistAuditEntry = func(entry *AuditLog) error {
		db := config.GetDB()
		return db.Create(entry).Error
	}
)

// StartAuditRecorder launches the writer goroutine draining the audit
// queue. Persist failures are logged, never propagated; the business
// operation that enqueued the entry has already committed.
func StartAuditRecorder() {
	auditQueueOnce.Do(func() {
		auditQueue = make(chan AuditLog, auditQueueSize)
		auditWg.Add(1)
		go func() {
			defer auditWg.Done()
			logger := config.GetLogger()
			for entry := range auditQueue {
				e := entry
				if err := persistAuditEntry(&e); err != nil {
					config.LogError(logger, "auditLog", "StartAuditRecorder",
						"failed to persist audit entry", e, err)
				}
			}
		}()
	})
}

// StopAuditRecorder closes the queue and waits for the writer to drain it.
// Only for shutdown paths.
func StopAuditRecorder() {
	if auditQueue != nil {
		close(auditQueue)
		auditWg.Wait()
	}
}

// RecordAudit enqueues an audit entry. Fire-and-forget: if the recorder is
// not running or the queue is full the entry is logged and dropped rather
// than blocking the caller.
func RecordAudit(ctx context.Context, action AuditAction, targetType string, targetId int, detail string) {
	entry := AuditLog{
		Actor:         actorFromContext(ctx),
		Action:        action,
		TargetType:    targetType,
		TargetId:      targetId,
		Detail:        detail,
		CorrelationId: correlationIdFromContextOrNew(ctx),
		CreatedAt:     time.Now().UTC(),
	}

	if auditQueue == nil {
		config.LogError(config.GetLogger(), "auditLog", "RecordAudit",
			"audit recorder not started; entry dropped", entry, fmt.Errorf("recorder not running"))
		return
	}

	select {
	case auditQueue <- entry:
	default:
		config.LogError(config.GetLogger(), "auditLog", "RecordAudit",
			"audit queue full; entry dropped", entry, fmt.Errorf("queue full"))
	}
}

type AuditLogFilter struct {
	Action *AuditAction
	Actor  *string
	From   *time.Time
	To     *time.Time
}

func PaginateAuditLogs(ctx context.Context, limit *int, after *string,
	filter AuditLogFilter) ([]Edge[AuditLog], *PageInfo, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&AuditLog{})

	if filter.Action != nil && *filter.Action != "" {
		dbCtx = dbCtx.Where("action = ?", *filter.Action)
	}
	if filter.Actor != nil && *filter.Actor != "" {
		dbCtx = dbCtx.Where("actor = ?", *filter.Actor)
	}
	if filter.From != nil {
		dbCtx = dbCtx.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		dbCtx = dbCtx.Where("created_at <= ?", *filter.To)
	}

	pageLimit := config.SearchLimit
	if limit != nil && *limit > 0 {
		pageLimit = *limit
	}

	return FetchPageCompositeCursor[AuditLog](dbCtx, pageLimit, after, "created_at", "<")
}

// ExportAuditLogsCSV streams matching entries, newest first.
func ExportAuditLogsCSV(ctx context.Context, w io.Writer, filter AuditLogFilter) error {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&AuditLog{})

	if filter.Action != nil && *filter.Action != "" {
		dbCtx = dbCtx.Where("action = ?", *filter.Action)
	}
	if filter.Actor != nil && *filter.Actor != "" {
		dbCtx = dbCtx.Where("actor = ?", *filter.Actor)
	}
	if filter.From != nil {
		dbCtx = dbCtx.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		dbCtx = dbCtx.Where("created_at <= ?", *filter.To)
	}

	var entries []AuditLog
	if err := dbCtx.Order("created_at DESC, id DESC").Find(&entries).Error; err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "created_at", "actor", "action", "target_type", "target_id", "detail", "correlation_id"}); err != nil {
		return err
	}
	for _, e := range entries {
		record := []string{
			fmt.Sprint(e.ID),
			e.CreatedAt.Format(time.RFC3339),
			e.Actor,
			string(e.Action),
			e.TargetType,
			fmt.Sprint(e.TargetId),
			e.Detail,
			e.CorrelationId,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// CleanupAuditLogs deletes entries older than retentionDays (clamped to at
// least 1 day) and returns the deleted count. The cleanup itself is audited.
func CleanupAuditLogs(ctx context.Context, retentionDays int) (int64, error) {
	db := config.GetDB()

	if retentionDays < 1 {
		retentionDays = 1
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	result := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&AuditLog{})
	if result.Error != nil {
		return 0, result.Error
	}

	RecordAudit(ctx, AuditActionAuditCleanup, "AuditLog", 0,
		fmt.Sprintf("deleted %d audit entries older than %s", result.RowsAffected, cutoff.Format(time.RFC3339)))

	return result.RowsAffected, nil
}
