// inventory-verify cross-checks the stock ledger against order state:
// reserved_qty must equal the sum of RESERVED order lines per product, and
// no quantity may be negative. Exits non-zero when discrepancies exist.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/inventory-verify [-product-id N]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/flowstock/flowstock_backend/config"
)

type reservationMismatch struct {
	ProductId   int
	ReservedQty int
	OrderedQty  int
}

type negativeQuantity struct {
	ProductId    int
	AvailableQty int
	ReservedQty  int
}

func main() {
	productID := flag.Int("product-id", 0, "Optional: restrict the check to one product")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	scope := ""
	args := []interface{}{}
	if *productID > 0 {
		scope = " AND ss.product_id = ?"
		args = append(args, *productID)
	}

	var mismatches []reservationMismatch
	err := db.Raw(`
SELECT
    ss.product_id,
    ss.reserved_qty,
    COALESCE(r.ordered_qty, 0) AS ordered_qty
FROM
    stock_summaries ss
        LEFT JOIN
    (SELECT
        d.product_id, SUM(d.detail_qty) AS ordered_qty
    FROM
        sales_order_details d
    JOIN sales_orders so ON so.id = d.sales_order_id
    WHERE
        so.current_status = 'RESERVED'
    GROUP BY d.product_id) AS r ON r.product_id = ss.product_id
WHERE
    ss.reserved_qty <> COALESCE(r.ordered_qty, 0)`+scope, args...).
		Scan(&mismatches).Error
	if err != nil {
		fmt.Fprintf(os.Stderr, "reservation check failed: %v\n", err)
		os.Exit(1)
	}

	var negatives []negativeQuantity
	err = db.Raw(`
SELECT
    ss.product_id, ss.available_qty, ss.reserved_qty
FROM
    stock_summaries ss
WHERE
    (ss.available_qty < 0 OR ss.reserved_qty < 0)`+scope, args...).
		Scan(&negatives).Error
	if err != nil {
		fmt.Fprintf(os.Stderr, "negative quantity check failed: %v\n", err)
		os.Exit(1)
	}

	for _, m := range mismatches {
		fmt.Printf("MISMATCH product=%d reserved=%d reserved_order_lines=%d\n",
			m.ProductId, m.ReservedQty, m.OrderedQty)
	}
	for _, n := range negatives {
		fmt.Printf("NEGATIVE product=%d available=%d reserved=%d\n",
			n.ProductId, n.AvailableQty, n.ReservedQty)
	}

	if len(mismatches) > 0 || len(negatives) > 0 {
		fmt.Printf("inventory verify FAILED: %d reservation mismatches, %d negative rows\n",
			len(mismatches), len(negatives))
		os.Exit(2)
	}
	fmt.Println("inventory verify OK")
}
