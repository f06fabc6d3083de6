package handlers

import (
	"net/http"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/models/reports"
	"github.com/gin-gonic/gin"
)

func reportDateRange(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now()
	from := now.AddDate(0, -1, 0)
	to := now

	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return from, to, false
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return from, to, false
		}
		to = t.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, true
}

// SalesReportHandler serves the summary view by default; ?view=trend adds
// interval buckets and ?view=by-product the per-product breakdown.
func SalesReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, ok := reportDateRange(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		switch c.DefaultQuery("view", "summary") {
		case "summary":
			summary, err := reports.GetSalesSummaryReport(ctx, from, to)
			if err != nil {
				respondError(c, "reportHandler", "SalesReportHandler", err)
				return
			}
			c.JSON(http.StatusOK, summary)
		case "trend":
			buckets, err := reports.GetSalesTrendReport(ctx, from, to, c.DefaultQuery("interval", "day"))
			if err != nil {
				respondError(c, "reportHandler", "SalesReportHandler", err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"buckets": buckets})
		case "by-product":
			records, err := reports.GetSalesByProductReport(ctx, from, to)
			if err != nil {
				respondError(c, "reportHandler", "SalesReportHandler", err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"products": records})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "view must be summary, trend or by-product"})
		}
	}
}

func SalesReportExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, ok := reportDateRange(c)
		if !ok {
			return
		}

		records, err := reports.GetSalesByProductReport(c.Request.Context(), from, to)
		if err != nil {
			respondError(c, "reportHandler", "SalesReportExportHandler", err)
			return
		}

		rows := make([]reports.ExcelExporter, 0, len(records))
		for _, r := range records {
			rows = append(rows, r)
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=sales-report.xlsx")
		err = reports.WriteExcel(c.Writer, rows,
			"SKU", "Product Name", "Order Count", "Units Sold", "Revenue")
		if err != nil {
			config.LogError(config.GetLogger(), "reportHandler", "SalesReportExportHandler", "export failed", nil, err)
		}
	}
}
