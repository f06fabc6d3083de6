package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/shopspring/decimal"
)

type SalesSummaryResponse struct {
	OrderCount     int             `json:"order_count"`
	TotalUnits     int             `json:"total_units"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	AvgOrderValue  decimal.Decimal `json:"avg_order_value"`
	CancelledCount int             `json:"cancelled_count"`
	ReservedCount  int             `json:"reserved_count"`
}

// GetSalesSummaryReport aggregates confirmed sales over [fromDate, toDate]
// keyed on the order's last status change. Reserved and cancelled counts
// are reported alongside for context.
func GetSalesSummaryReport(ctx context.Context, fromDate time.Time, toDate time.Time) (*SalesSummaryResponse, error) {
	started := time.Now()
	defer logSlowReport(ctx, "salesSummary", started, nil)

	if toDate.Before(fromDate) {
		return nil, utils.NewValidationError("to_date", "must not precede from_date")
	}

	cacheKey := fmt.Sprintf("Report:SalesSummary:%s:%s",
		fromDate.Format("2006-01-02"), toDate.Format("2006-01-02"))
	if reportCacheEnabled() {
		var cached SalesSummaryResponse
		if ok, _ := cacheGet(cacheKey, &cached); ok {
			return &cached, nil
		}
	}

	sql := `
SELECT
    COALESCE(SUM(CASE WHEN so.current_status = 'CONFIRMED' THEN 1 ELSE 0 END), 0) AS order_count,
    COALESCE(SUM(CASE WHEN so.current_status = 'CONFIRMED' THEN d.units ELSE 0 END), 0) AS total_units,
    COALESCE(SUM(CASE WHEN so.current_status = 'CONFIRMED' THEN so.total_amount ELSE 0 END), 0) AS total_revenue,
    COALESCE(SUM(CASE WHEN so.current_status = 'CANCELLED' THEN 1 ELSE 0 END), 0) AS cancelled_count,
    COALESCE(SUM(CASE WHEN so.current_status = 'RESERVED' THEN 1 ELSE 0 END), 0) AS reserved_count
FROM
    sales_orders so
        LEFT JOIN
    (SELECT
        sales_order_id, SUM(detail_qty) AS units
    FROM
        sales_order_details
    GROUP BY sales_order_id) AS d ON d.sales_order_id = so.id
WHERE
    so.updated_at BETWEEN @fromDate AND @toDate
`

	var summary SalesSummaryResponse
	db := config.GetDB()
	err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"fromDate": fromDate,
		"toDate":   toDate,
	}).Scan(&summary).Error
	if err != nil {
		return nil, err
	}
	if summary.OrderCount > 0 {
		summary.AvgOrderValue = summary.TotalRevenue.
			Div(decimal.NewFromInt(int64(summary.OrderCount))).Round(4)
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, summary, reportCacheTTL())
	}
	return &summary, nil
}

type SalesTrendBucket struct {
	Bucket       string          `json:"bucket"`
	OrderCount   int             `json:"order_count"`
	TotalUnits   int             `json:"total_units"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// GetSalesTrendReport buckets confirmed sales by day, week or month.
// Weeks follow MySQL YEARWEEK mode 3 (ISO weeks starting Monday).
func GetSalesTrendReport(ctx context.Context, fromDate time.Time, toDate time.Time, interval string) ([]*SalesTrendBucket, error) {
	started := time.Now()
	defer logSlowReport(ctx, "salesTrend", started, map[string]any{"interval": interval})

	if toDate.Before(fromDate) {
		return nil, utils.NewValidationError("to_date", "must not precede from_date")
	}

	var bucketExpr string
	switch interval {
	case "day", "":
		bucketExpr = "DATE_FORMAT(so.updated_at, '%Y-%m-%d')"
	case "week":
		bucketExpr = "YEARWEEK(so.updated_at, 3)"
	case "month":
		bucketExpr = "DATE_FORMAT(so.updated_at, '%Y-%m')"
	default:
		return nil, utils.NewValidationError("interval", "must be day, week or month")
	}

	sql := fmt.Sprintf(`
SELECT
    %s AS bucket,
    COUNT(DISTINCT so.id) AS order_count,
    COALESCE(SUM(d.detail_qty), 0) AS total_units,
    COALESCE(SUM(d.detail_qty * d.detail_unit_rate), 0) AS total_revenue
FROM
    sales_orders so
        JOIN
    sales_order_details d ON d.sales_order_id = so.id
WHERE
    so.current_status = 'CONFIRMED'
        AND so.updated_at BETWEEN @fromDate AND @toDate
GROUP BY bucket
ORDER BY bucket
`, bucketExpr)

	var buckets []*SalesTrendBucket
	db := config.GetDB()
	err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"fromDate": fromDate,
		"toDate":   toDate,
	}).Scan(&buckets).Error
	if err != nil {
		return nil, err
	}
	return buckets, nil
}
