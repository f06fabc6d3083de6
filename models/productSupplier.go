package models

import (
	"context"
	"fmt"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductSupplierContract is one supplier's terms for one product. At most
// one contract per product carries IsPrimary; setting a new primary clears
// the old one in the same transaction.
type ProductSupplierContract struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ProductId    int             `gorm:"uniqueIndex:idx_product_supplier;not null" json:"product_id"`
	SupplierId   int             `gorm:"uniqueIndex:idx_product_supplier;not null" json:"supplier_id"`
	Supplier     *Supplier       `gorm:"foreignKey:SupplierId" json:"supplier,omitempty"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_cost"`
	LeadTimeDays int             `gorm:"not null;default:0" json:"lead_time_days"`
	Moq          int             `gorm:"not null;default:1" json:"moq"`
	LotSize      int             `gorm:"not null;default:1" json:"lot_size"`
	IsPrimary    *bool           `gorm:"not null;default:false" json:"is_primary"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductSupplierContract struct {
	SupplierId   int             `json:"supplier_id" binding:"required"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	LeadTimeDays int             `json:"lead_time_days" binding:"gte=0"`
	Moq          int             `json:"moq" binding:"gte=1"`
	LotSize      int             `json:"lot_size" binding:"gte=1"`
	IsPrimary    bool            `json:"is_primary"`
}

func (input NewProductSupplierContract) validate() error {
	if input.UnitCost.IsNegative() {
		return utils.NewValidationError("unit_cost", "must not be negative")
	}
	if input.Moq < 1 {
		return utils.NewValidationError("moq", "must be at least 1")
	}
	if input.LotSize < 1 {
		return utils.NewValidationError("lot_size", "must be at least 1")
	}
	return nil
}

// UpsertProductSupplierContract creates or overwrites the contract for
// (product, supplier). A primary flag demotes any other primary contract for
// the product so exactly one primary remains.
func UpsertProductSupplierContract(ctx context.Context, productId int, input *NewProductSupplierContract) (*ProductSupplierContract, error) {
	db := config.GetDB()

	if err := input.validate(); err != nil {
		return nil, err
	}
	product, err := utils.FetchModel[Product](ctx, productId)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Supplier](ctx, input.SupplierId); err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	var contract ProductSupplierContract
	tx := db.Begin()

	err = tx.WithContext(ctx).
		Where("product_id = ? AND supplier_id = ?", productId, input.SupplierId).
		First(&contract).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		tx.Rollback()
		return nil, err
	}

	contract.ProductId = productId
	contract.SupplierId = input.SupplierId
	contract.UnitCost = input.UnitCost
	contract.LeadTimeDays = input.LeadTimeDays
	contract.Moq = input.Moq
	contract.LotSize = input.LotSize
	contract.IsPrimary = &input.IsPrimary

	if input.IsPrimary {
		if err := tx.WithContext(ctx).Model(&ProductSupplierContract{}).
			Where("product_id = ? AND supplier_id <> ?", productId, input.SupplierId).
			Update("is_primary", false).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.WithContext(ctx).Save(&contract).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	RecordAudit(ctx, AuditActionContractUpserted, "ProductSupplierContract", contract.ID,
		fmt.Sprintf("supplier contract for %s (supplier %d) upserted", product.Sku, input.SupplierId))

	return &contract, nil
}

func ListProductSupplierContracts(ctx context.Context, productId int) ([]*ProductSupplierContract, error) {
	db := config.GetDB()

	if err := utils.ValidateResourceId[Product](ctx, productId); err != nil {
		return nil, err
	}

	var contracts []*ProductSupplierContract
	err := db.WithContext(ctx).Preload("Supplier").
		Where("product_id = ?", productId).
		Order("is_primary DESC, supplier_id").
		Find(&contracts).Error
	if err != nil {
		return nil, err
	}
	return contracts, nil
}

func RemoveProductSupplierContract(ctx context.Context, productId int, supplierId int) error {
	db := config.GetDB()

	result := db.WithContext(ctx).
		Where("product_id = ? AND supplier_id = ?", productId, supplierId).
		Delete(&ProductSupplierContract{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}

	RecordAudit(ctx, AuditActionContractRemoved, "ProductSupplierContract", productId,
		fmt.Sprintf("supplier contract (product %d, supplier %d) removed", productId, supplierId))

	return nil
}

// PrimaryContractsByProduct maps product id to its primary supplier
// contract (with supplier preloaded) for every product that has one.
func PrimaryContractsByProduct(ctx context.Context) (map[int]*ProductSupplierContract, error) {
	db := config.GetDB()

	var contracts []*ProductSupplierContract
	err := db.WithContext(ctx).Preload("Supplier").
		Where("is_primary = ?", true).
		Find(&contracts).Error
	if err != nil {
		return nil, err
	}

	byProduct := make(map[int]*ProductSupplierContract, len(contracts))
	for _, c := range contracts {
		byProduct[c.ProductId] = c
	}
	return byProduct, nil
}
