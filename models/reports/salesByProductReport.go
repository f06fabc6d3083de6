package reports

import (
	"context"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/shopspring/decimal"
)

type SalesByProductResponse struct {
	ProductId    int             `json:"product_id"`
	Sku          string          `json:"sku"`
	ProductName  *string         `json:"product_name,omitempty"`
	OrderCount   int             `json:"order_count"`
	TotalUnits   int             `json:"total_units"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// GetSalesByProductReport breaks confirmed sales down per product,
// biggest sellers first. The sku on the order line is authoritative even
// if the product row was renamed since.
func GetSalesByProductReport(ctx context.Context, fromDate time.Time, toDate time.Time) ([]*SalesByProductResponse, error) {
	started := time.Now()
	defer logSlowReport(ctx, "salesByProduct", started, nil)

	if toDate.Before(fromDate) {
		return nil, utils.NewValidationError("to_date", "must not precede from_date")
	}

	sql := `
SELECT
    d.product_id,
    d.sku,
    products.name AS product_name,
    COUNT(DISTINCT so.id) AS order_count,
    SUM(d.detail_qty) AS total_units,
    SUM(d.detail_qty * d.detail_unit_rate) AS total_revenue
FROM
    sales_order_details d
        JOIN
    sales_orders so ON so.id = d.sales_order_id
        LEFT JOIN
    products ON products.id = d.product_id
WHERE
    so.current_status = 'CONFIRMED'
        AND so.updated_at BETWEEN @fromDate AND @toDate
GROUP BY d.product_id, d.sku, products.name
ORDER BY total_units DESC, d.sku
`

	var records []*SalesByProductResponse
	db := config.GetDB()
	err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"fromDate": fromDate,
		"toDate":   toDate,
	}).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r SalesByProductResponse) GetCellValues() []interface{} {
	return []interface{}{
		r.Sku,
		utils.DereferencePtr(r.ProductName, ""),
		r.OrderCount,
		r.TotalUnits,
		r.TotalRevenue,
	}
}
