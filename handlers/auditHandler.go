package handlers

import (
	"net/http"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/models"
	"github.com/gin-gonic/gin"
)

func auditFilterFromQuery(c *gin.Context) (models.AuditLogFilter, bool) {
	var filter models.AuditLogFilter

	if v := c.Query("action"); v != "" {
		action := models.AuditAction(v)
		filter.Action = &action
	}
	filter.Actor = optionalQueryString(c, "actor")

	for _, q := range []struct {
		name string
		dest **time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		if v := c.Query(q.name); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": q.name + " must be YYYY-MM-DD"})
				return filter, false
			}
			if q.name == "to" {
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			*q.dest = &t
		}
	}
	return filter, true
}

func ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, ok := auditFilterFromQuery(c)
		if !ok {
			return
		}
		limit, after := paginationArgs(c)

		edges, pageInfo, err := models.PaginateAuditLogs(c.Request.Context(), limit, after, filter)
		if err != nil {
			respondError(c, "auditHandler", "ListAuditLogsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"edges": edges, "page_info": pageInfo})
	}
}

func ExportAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, ok := auditFilterFromQuery(c)
		if !ok {
			return
		}

		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", "attachment; filename=audit-logs.csv")
		if err := models.ExportAuditLogsCSV(c.Request.Context(), c.Writer, filter); err != nil {
			config.LogError(config.GetLogger(), "auditHandler", "ExportAuditLogsHandler", "export failed", nil, err)
		}
	}
}

type cleanupRequest struct {
	RetentionDays *int `json:"retention_days"`
}

func CleanupAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cleanupRequest
		// body is optional; default retention comes from config
		_ = c.ShouldBindJSON(&req)

		retentionDays := config.AuditRetentionDays()
		if req.RetentionDays != nil {
			retentionDays = *req.RetentionDays
		}

		deleted, err := models.CleanupAuditLogs(c.Request.Context(), retentionDays)
		if err != nil {
			respondError(c, "auditHandler", "CleanupAuditLogsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted, "retention_days": retentionDays})
	}
}
