package models

import (
	"context"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockSummary is the per-product ledger row. AvailableQty is sellable,
// unreserved stock; ReservedQty is committed to RESERVED sales orders.
// Both stay >= 0 at all times; every mutation goes through the functions
// below under a SELECT ... FOR UPDATE row lock.
type StockSummary struct {
	ID           int       `gorm:"primary_key" json:"id"`
	ProductId    int       `gorm:"uniqueIndex;not null" json:"product_id"`
	AvailableQty int       `gorm:"not null;default:0" json:"available_qty"`
	ReservedQty  int       `gorm:"not null;default:0" json:"reserved_qty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func FirstOrCreateStockSummary(tx *gorm.DB, productId int) (*StockSummary, error) {
	stockSummary := StockSummary{
		ProductId: productId,
	}
	// FirstOrCreate locks the row if it exists; a freshly created row is
	// owned by this transaction until commit.
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productId).
		FirstOrCreate(&stockSummary)
	if result.Error != nil {
		return nil, result.Error
	}

	return &stockSummary, nil
}

// BulkLockStockSummaries locks the ledger rows for the given products in
// ascending product id order. Callers touching multiple products must lock
// through here first so concurrent orders cannot deadlock.
func BulkLockStockSummaries(tx *gorm.DB, productIds []int) error {
	var summaries []StockSummary
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id IN (?)", productIds).
		Order("product_id").
		Find(&summaries).Error; err != nil {
		return err
	}
	return nil
}

// ReserveStock moves qty from available to reserved for the product.
// Returns InsufficientStockError when available < qty.
func ReserveStock(tx *gorm.DB, productId int, sku string, qty int) error {
	stockSummary, err := FirstOrCreateStockSummary(tx, productId)
	if err != nil {
		return err
	}

	if stockSummary.AvailableQty < qty {
		return &utils.InsufficientStockError{
			Sku:       sku,
			Requested: qty,
			Available: stockSummary.AvailableQty,
		}
	}

	if err := tx.Exec("UPDATE stock_summaries SET available_qty = available_qty - ?, reserved_qty = reserved_qty + ? WHERE id = ?",
		qty, qty, stockSummary.ID).Error; err != nil {
		return err
	}

	return nil
}

// ReleaseStock reverses a reservation on order cancel: available += qty,
// reserved -= qty.
func ReleaseStock(tx *gorm.DB, productId int, sku string, qty int) error {
	stockSummary, err := FirstOrCreateStockSummary(tx, productId)
	if err != nil {
		return err
	}

	if stockSummary.ReservedQty < qty {
		return utils.NewInvariantViolationError(
			"release of %d for %s would drive reserved negative (reserved=%d)",
			qty, sku, stockSummary.ReservedQty)
	}

	if err := tx.Exec("UPDATE stock_summaries SET available_qty = available_qty + ?, reserved_qty = reserved_qty - ? WHERE id = ?",
		qty, qty, stockSummary.ID).Error; err != nil {
		return err
	}

	return nil
}

// ConsumeReservation realizes a sale on order confirm: reserved -= qty.
// Available was already decremented at reserve time.
func ConsumeReservation(tx *gorm.DB, productId int, sku string, qty int) error {
	stockSummary, err := FirstOrCreateStockSummary(tx, productId)
	if err != nil {
		return err
	}

	if stockSummary.ReservedQty < qty {
		return utils.NewInvariantViolationError(
			"consume of %d for %s would drive reserved negative (reserved=%d)",
			qty, sku, stockSummary.ReservedQty)
	}

	if err := tx.Exec("UPDATE stock_summaries SET reserved_qty = reserved_qty - ? WHERE id = ?",
		qty, stockSummary.ID).Error; err != nil {
		return err
	}

	return nil
}

// ReceiveStock credits a purchase receipt: available += qty.
func ReceiveStock(tx *gorm.DB, productId int, qty int) error {
	stockSummary, err := FirstOrCreateStockSummary(tx, productId)
	if err != nil {
		return err
	}

	if err := tx.Exec("UPDATE stock_summaries SET available_qty = available_qty + ? WHERE id = ?",
		qty, stockSummary.ID).Error; err != nil {
		return err
	}

	return nil
}

// AdjustStock applies a manual correction to available stock. delta may be
// negative but the result must stay >= 0.
func AdjustStock(tx *gorm.DB, productId int, sku string, delta int) (int, error) {
	stockSummary, err := FirstOrCreateStockSummary(tx, productId)
	if err != nil {
		return 0, err
	}

	newQty := stockSummary.AvailableQty + delta
	if newQty < 0 {
		return 0, utils.NewValidationError("delta",
			"adjustment would drive available stock negative for "+sku)
	}

	if err := tx.Exec("UPDATE stock_summaries SET available_qty = ? WHERE id = ?",
		newQty, stockSummary.ID).Error; err != nil {
		return 0, err
	}

	return newQty, nil
}

// GetStockSummary reads the ledger row for a product without locking.
// Missing rows read as zero stock.
func GetStockSummary(ctx context.Context, productId int) (*StockSummary, error) {
	db := config.GetDB()
	var stockSummary StockSummary
	err := db.WithContext(ctx).Where("product_id = ?", productId).First(&stockSummary).Error
	if err == gorm.ErrRecordNotFound {
		return &StockSummary{ProductId: productId}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stockSummary, nil
}
