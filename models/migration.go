package models

import (
	"log"

	"github.com/flowstock/flowstock_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Product{}, &ProductCategory{},
		&StockSummary{},
		&Supplier{}, &ProductSupplierContract{},
		&SalesOrder{}, &SalesOrderDetail{},
		&PurchaseOrder{}, &PurchaseOrderDetail{}, &PurchaseOrderReceipt{}, &PurchaseOrderReceiptItem{},
		&AuditLog{},
		&User{}, &RefreshToken{}, &PasswordResetToken{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
