package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

type PurchaseOrder struct {
	ID            int                   `gorm:"primary_key" json:"id"`
	OrderNumber   string                `gorm:"size:50;uniqueIndex;not null" json:"order_number"`
	SequenceNo    int64                 `gorm:"not null" json:"sequence_no"`
	SupplierId    *int                  `gorm:"index" json:"supplier_id"`
	Supplier      *Supplier             `gorm:"foreignKey:SupplierId" json:"supplier,omitempty"`
	SupplierName  string                `gorm:"size:255;not null" json:"supplier_name"`
	CurrentStatus PurchaseOrderStatus   `gorm:"type:enum('ORDERED','PARTIALLY_RECEIVED','RECEIVED','CANCELLED');not null" json:"current_status"`
	TotalAmount   decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CreatedAt     time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
	Details       []PurchaseOrderDetail `gorm:"foreignKey:PurchaseOrderId" json:"details"`
	Receipts      []PurchaseOrderReceipt `gorm:"foreignKey:PurchaseOrderId" json:"receipts"`
}

type PurchaseOrderDetail struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId int             `gorm:"index;not null" json:"purchase_order_id"`
	ProductId       int             `gorm:"index;not null" json:"product_id"`
	Sku             string          `gorm:"size:100;not null" json:"sku"`
	OrderedQty      int             `gorm:"not null" json:"ordered_qty"`
	ReceivedQty     int             `gorm:"not null;default:0" json:"received_qty"`
	DetailUnitCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_cost"`
}

// PurchaseOrderReceipt captures one discrete arrival event. Rows are
// immutable once written.
type PurchaseOrderReceipt struct {
	ID              int                        `gorm:"primary_key" json:"id"`
	PurchaseOrderId int                        `gorm:"index;not null" json:"purchase_order_id"`
	ReceivedBy      string                     `gorm:"size:100;not null" json:"received_by"`
	CreatedAt       time.Time                  `gorm:"autoCreateTime" json:"created_at"`
	Items           []PurchaseOrderReceiptItem `gorm:"foreignKey:ReceiptId" json:"items"`
}

type PurchaseOrderReceiptItem struct {
	ID        int    `gorm:"primary_key" json:"id"`
	ReceiptId int    `gorm:"index;not null" json:"receipt_id"`
	ProductId int    `gorm:"index;not null" json:"product_id"`
	Sku       string `gorm:"size:100;not null" json:"sku"`
	Quantity  int    `gorm:"not null" json:"quantity"`
}

type NewPurchaseOrder struct {
	SupplierId   *int                     `json:"supplier_id"`
	SupplierName string                   `json:"supplier_name"`
	Details      []NewPurchaseOrderDetail `json:"items" binding:"required,min=1,dive"`
}

type NewPurchaseOrderDetail struct {
	ProductId int             `json:"product_id" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type ReceiveItemsInput struct {
	Details []ReceiveItemInput `json:"items" binding:"required,min=1,dive"`
}

type ReceiveItemInput struct {
	ProductId int `json:"product_id" binding:"required"`
	Quantity  int `json:"quantity" binding:"required,gt=0"`
}

func (po PurchaseOrder) GetCursor() string {
	return po.CreatedAt.Format(time.RFC3339Nano)
}

func (po PurchaseOrder) GetId() int {
	return po.ID
}

// recomputeStatus derives the header status from line remainders: RECEIVED
// when nothing remains, PARTIALLY_RECEIVED when anything has arrived, else
// ORDERED.
func (po *PurchaseOrder) recomputeStatus() PurchaseOrderStatus {
	allReceived := true
	anyReceived := false
	for _, d := range po.Details {
		if d.ReceivedQty > 0 {
			anyReceived = true
		}
		if d.ReceivedQty < d.OrderedQty {
			allReceived = false
		}
	}
	switch {
	case allReceived:
		return PurchaseOrderStatusReceived
	case anyReceived:
		return PurchaseOrderStatusPartiallyReceived
	default:
		return PurchaseOrderStatusOrdered
	}
}

func (input NewPurchaseOrder) validate(ctx context.Context) (map[int]*Product, error) {
	if input.SupplierId == nil && strings.TrimSpace(input.SupplierName) == "" {
		return nil, utils.NewValidationError("supplier", "supplier_id or supplier_name is required")
	}
	if input.SupplierId != nil {
		if err := utils.ValidateResourceId[Supplier](ctx, *input.SupplierId); err != nil {
			return nil, utils.ErrorRecordNotFound
		}
	}
	if len(input.Details) == 0 {
		return nil, utils.NewValidationError("items", "must not be empty")
	}

	seen := make(map[int]bool, len(input.Details))
	productIds := make([]int, 0, len(input.Details))
	for _, item := range input.Details {
		if item.Quantity <= 0 {
			return nil, utils.NewValidationError("quantity", "must be greater than zero")
		}
		if item.UnitCost.IsNegative() {
			return nil, utils.NewValidationError("unit_cost", "must not be negative")
		}
		if seen[item.ProductId] {
			return nil, utils.NewValidationError("product_id",
				fmt.Sprintf("product %d appears more than once", item.ProductId))
		}
		seen[item.ProductId] = true
		productIds = append(productIds, item.ProductId)
	}

	db := config.GetDB()
	var products []*Product
	if err := db.WithContext(ctx).Where("id IN (?)", productIds).Find(&products).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]*Product, len(products))
	for _, p := range products {
		byId[p.ID] = p
	}
	for _, id := range productIds {
		if byId[id] == nil {
			return nil, utils.ErrorRecordNotFound
		}
	}
	return byId, nil
}

// CreatePurchaseOrder persists the order in ORDERED with zero received on
// every line. No stock moves until receipt.
func CreatePurchaseOrder(ctx context.Context, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	db := config.GetDB()

	products, err := input.validate(ctx)
	if err != nil {
		return nil, err
	}

	supplierName := strings.TrimSpace(input.SupplierName)
	if input.SupplierId != nil {
		supplier, err := utils.FetchModel[Supplier](ctx, *input.SupplierId)
		if err != nil {
			return nil, err
		}
		supplierName = supplier.Name
	}

	var details []PurchaseOrderDetail
	total := decimal.Zero
	for _, item := range input.Details {
		product := products[item.ProductId]
		details = append(details, PurchaseOrderDetail{
			ProductId:      product.ID,
			Sku:            product.Sku,
			OrderedQty:     item.Quantity,
			DetailUnitCost: item.UnitCost,
		})
		total = total.Add(item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	tx := db.Begin()
	seqNo, err := utils.GetSequence[PurchaseOrder](ctx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	order := PurchaseOrder{
		OrderNumber:   fmt.Sprintf("PO-%d", seqNo),
		SequenceNo:    seqNo,
		SupplierId:    input.SupplierId,
		SupplierName:  supplierName,
		CurrentStatus: PurchaseOrderStatusOrdered,
		TotalAmount:   total,
		Details:       details,
	}
	if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	RecordAudit(ctx, AuditActionPurchaseOrderCreated, "PurchaseOrder", order.ID,
		fmt.Sprintf("purchase order %s created for %s (%d lines)", order.OrderNumber, supplierName, len(details)))

	return &order, nil
}

// ReceivePurchaseOrder applies one receipt event: every submitted line must
// fit within its remaining quantity or the whole receipt is rejected with
// OverReceipt and nothing changes. On success the receipt row, the line
// increments and the stock credits commit together, then the header status
// is recomputed.
func ReceivePurchaseOrder(ctx context.Context, id int, input *ReceiveItemsInput) (*PurchaseOrder, error) {
	db := config.GetDB()

	order, err := utils.FetchModel[PurchaseOrder](ctx, id, "Details")
	if err != nil {
		return nil, err
	}

	if order.CurrentStatus == PurchaseOrderStatusReceived || order.CurrentStatus == PurchaseOrderStatusCancelled {
		return nil, &utils.InvalidTransitionError{
			Entity: "purchase order",
			From:   string(order.CurrentStatus),
			To:     "receipt",
		}
	}
	if len(input.Details) == 0 {
		return nil, utils.NewValidationError("items", "must not be empty")
	}

	seen := make(map[int]bool, len(input.Details))
	productIds := make([]int, 0, len(input.Details))
	for _, item := range input.Details {
		if item.Quantity <= 0 {
			return nil, utils.NewValidationError("quantity", "must be greater than zero")
		}
		if seen[item.ProductId] {
			return nil, utils.NewValidationError("product_id",
				fmt.Sprintf("product %d appears more than once", item.ProductId))
		}
		seen[item.ProductId] = true
		productIds = append(productIds, item.ProductId)
	}
	sort.Ints(productIds)

	tx := db.Begin()

	// Re-check the status on the locked header: a cancel that committed
	// after the pre-fetch must not be overwritten by this receipt.
	var lockedOrder PurchaseOrder
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&lockedOrder, order.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if lockedOrder.CurrentStatus == PurchaseOrderStatusReceived || lockedOrder.CurrentStatus == PurchaseOrderStatusCancelled {
		tx.Rollback()
		return nil, &utils.InvalidTransitionError{
			Entity: "purchase order",
			From:   string(lockedOrder.CurrentStatus),
			To:     "receipt",
		}
	}

	// Lock the detail rows so a concurrent receipt on the same order
	// cannot slip past the remaining-quantity check.
	var lockedDetails []PurchaseOrderDetail
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("purchase_order_id = ?", order.ID).
		Order("id").
		Find(&lockedDetails).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	detailByProduct := make(map[int]*PurchaseOrderDetail, len(lockedDetails))
	for i := range lockedDetails {
		detailByProduct[lockedDetails[i].ProductId] = &lockedDetails[i]
	}

	// Validate the whole receipt before touching anything: a single
	// over-receipt line leaves every line's received quantity unchanged.
	for _, item := range input.Details {
		detail := detailByProduct[item.ProductId]
		if detail == nil {
			tx.Rollback()
			return nil, utils.NewValidationError("product_id",
				fmt.Sprintf("product %d is not on this purchase order", item.ProductId))
		}
		remaining := detail.OrderedQty - detail.ReceivedQty
		if item.Quantity > remaining {
			tx.Rollback()
			return nil, &utils.OverReceiptError{
				Sku:       detail.Sku,
				Received:  item.Quantity,
				Remaining: remaining,
			}
		}
	}

	if err := BulkLockStockSummaries(tx.WithContext(ctx), productIds); err != nil {
		tx.Rollback()
		return nil, err
	}

	receipt := PurchaseOrderReceipt{
		PurchaseOrderId: order.ID,
		ReceivedBy:      actorFromContext(ctx),
	}
	for _, item := range input.Details {
		detail := detailByProduct[item.ProductId]

		if err := tx.WithContext(ctx).Model(&PurchaseOrderDetail{}).
			Where("id = ?", detail.ID).
			Update("received_qty", detail.ReceivedQty+item.Quantity).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		detail.ReceivedQty += item.Quantity

		if err := ReceiveStock(tx.WithContext(ctx), item.ProductId, item.Quantity); err != nil {
			tx.Rollback()
			return nil, err
		}

		receipt.Items = append(receipt.Items, PurchaseOrderReceiptItem{
			ProductId: item.ProductId,
			Sku:       detail.Sku,
			Quantity:  item.Quantity,
		})
	}

	if err := tx.WithContext(ctx).Create(&receipt).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	order.Details = lockedDetails
	newStatus := order.recomputeStatus()
	if err := tx.WithContext(ctx).Model(order).Update("current_status", newStatus).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	order.CurrentStatus = newStatus

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	RecordAudit(ctx, AuditActionPurchaseOrderReceived, "PurchaseOrder", order.ID,
		fmt.Sprintf("purchase order %s received %d lines, now %s", order.OrderNumber, len(receipt.Items), newStatus))

	return GetPurchaseOrder(ctx, order.ID)
}

// CancelPurchaseOrder is valid only while the order is not fully received.
// Already-received stock stays on the ledger.
func CancelPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	db := config.GetDB()

	order, err := utils.FetchModel[PurchaseOrder](ctx, id, "Details")
	if err != nil {
		return nil, err
	}

	tx := db.Begin()

	// Decide against the locked header, not the pre-fetch: a receipt that
	// committed in between may have moved the order to RECEIVED.
	var locked PurchaseOrder
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&locked, order.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if !locked.CurrentStatus.CanTransitionTo(PurchaseOrderStatusCancelled) {
		tx.Rollback()
		return nil, &utils.InvalidTransitionError{
			Entity: "purchase order",
			From:   string(locked.CurrentStatus),
			To:     string(PurchaseOrderStatusCancelled),
		}
	}

	if err := tx.WithContext(ctx).Model(&locked).
		Update("current_status", PurchaseOrderStatusCancelled).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	order.CurrentStatus = PurchaseOrderStatusCancelled

	RecordAudit(ctx, AuditActionPurchaseOrderCancel, "PurchaseOrder", order.ID,
		fmt.Sprintf("purchase order %s cancelled", order.OrderNumber))

	return order, nil
}

func GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	return utils.FetchModel[PurchaseOrder](ctx, id, "Details", "Receipts", "Receipts.Items", "Supplier")
}

func PaginatePurchaseOrders(ctx context.Context, limit *int, after *string,
	status *PurchaseOrderStatus, supplierId *int) ([]Edge[PurchaseOrder], *PageInfo, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&PurchaseOrder{}).Preload("Details").Preload("Supplier")

	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}
	if supplierId != nil && *supplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", *supplierId)
	}

	pageLimit := config.SearchLimit
	if limit != nil && *limit > 0 {
		pageLimit = *limit
	}

	return FetchPageCompositeCursor[PurchaseOrder](dbCtx, pageLimit, after, "created_at", "<")
}
