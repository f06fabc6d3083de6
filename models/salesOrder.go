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

type SalesOrder struct {
	ID            int               `gorm:"primary_key" json:"id"`
	OrderNumber   string            `gorm:"size:50;uniqueIndex;not null" json:"order_number"`
	SequenceNo    int64             `gorm:"not null" json:"sequence_no"`
	CustomerName  string            `gorm:"size:255;not null" json:"customer_name" binding:"required"`
	CurrentStatus SalesOrderStatus  `gorm:"type:enum('RESERVED','CONFIRMED','CANCELLED');not null" json:"current_status"`
	TotalAmount   decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	Details       []SalesOrderDetail `gorm:"foreignKey:SalesOrderId" json:"details"`
}

type SalesOrderDetail struct {
	ID             int             `gorm:"primary_key" json:"id"`
	SalesOrderId   int             `gorm:"index;not null" json:"sales_order_id"`
	ProductId      int             `gorm:"index;not null" json:"product_id"`
	Sku            string          `gorm:"size:100;not null" json:"sku"`
	DetailQty      int             `gorm:"not null" json:"detail_qty"`
	DetailUnitRate decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_rate"`
}

type NewSalesOrder struct {
	CustomerName string                `json:"customer_name" binding:"required"`
	Details      []NewSalesOrderDetail `json:"items" binding:"required,min=1,dive"`
}

type NewSalesOrderDetail struct {
	ProductId int `json:"product_id" binding:"required"`
	DetailQty int `json:"quantity" binding:"required,gt=0"`
}

func (so SalesOrder) GetCursor() string {
	return so.CreatedAt.Format(time.RFC3339Nano)
}

func (so SalesOrder) GetId() int {
	return so.ID
}

func (input NewSalesOrder) validate(ctx context.Context) (map[int]*Product, error) {
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, utils.NewValidationError("customer_name", "must not be blank")
	}
	if len(input.Details) == 0 {
		return nil, utils.NewValidationError("items", "must not be empty")
	}

	seen := make(map[int]bool, len(input.Details))
	productIds := make([]int, 0, len(input.Details))
	for _, item := range input.Details {
		if item.DetailQty <= 0 {
			return nil, utils.NewValidationError("quantity", "must be greater than zero")
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

// CreateSalesOrder reserves stock for every line all-or-nothing and persists
// the order in RESERVED. The first insufficient line aborts the whole
// transaction, leaving the ledger untouched.
func CreateSalesOrder(ctx context.Context, input *NewSalesOrder) (*SalesOrder, error) {
	db := config.GetDB()

	products, err := input.validate(ctx)
	if err != nil {
		return nil, err
	}

	// Lock ledger rows in ascending product id so two concurrent orders
	// with overlapping lines cannot deadlock.
	productIds := make([]int, 0, len(products))
	for id := range products {
		productIds = append(productIds, id)
	}
	sort.Ints(productIds)

	tx := db.Begin()
	if err := BulkLockStockSummaries(tx.WithContext(ctx), productIds); err != nil {
		tx.Rollback()
		return nil, err
	}

	var details []SalesOrderDetail
	total := decimal.Zero
	for _, id := range productIds {
		product := products[id]
		var qty int
		for _, item := range input.Details {
			if item.ProductId == id {
				qty = item.DetailQty
			}
		}

		if err := ReserveStock(tx.WithContext(ctx), product.ID, product.Sku, qty); err != nil {
			tx.Rollback()
			return nil, err
		}

		details = append(details, SalesOrderDetail{
			ProductId:      product.ID,
			Sku:            product.Sku,
			DetailQty:      qty,
			DetailUnitRate: product.UnitPrice,
		})
		total = total.Add(product.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
	}

	seqNo, err := utils.GetSequence[SalesOrder](ctx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	order := SalesOrder{
		OrderNumber:   fmt.Sprintf("SO-%d", seqNo),
		SequenceNo:    seqNo,
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CurrentStatus: SalesOrderStatusReserved,
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

	RecordAudit(ctx, AuditActionOrderCreated, "SalesOrder", order.ID,
		fmt.Sprintf("order %s created for %s (%d lines)", order.OrderNumber, order.CustomerName, len(details)))

	return &order, nil
}

// ConfirmSalesOrder realizes the sale: RESERVED -> CONFIRMED, consuming the
// reservation on every line. Reserved drops; available is untouched.
func ConfirmSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	return transitionSalesOrder(ctx, id, SalesOrderStatusConfirmed)
}

// CancelSalesOrder releases the reservation back to available:
// RESERVED -> CANCELLED.
func CancelSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	return transitionSalesOrder(ctx, id, SalesOrderStatusCancelled)
}

func transitionSalesOrder(ctx context.Context, id int, target SalesOrderStatus) (*SalesOrder, error) {
	db := config.GetDB()

	order, err := utils.FetchModel[SalesOrder](ctx, id, "Details")
	if err != nil {
		return nil, err
	}

	productIds := make([]int, 0, len(order.Details))
	for _, d := range order.Details {
		productIds = append(productIds, d.ProductId)
	}
	sort.Ints(productIds)

	tx := db.Begin()

	// The pre-fetch status can be stale by the time the locks are ours: a
	// concurrent confirm/cancel of the same order may have already landed.
	// Re-check on the locked header row, held until commit.
	var locked SalesOrder
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&locked, order.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if !locked.CurrentStatus.CanTransitionTo(target) {
		tx.Rollback()
		return nil, &utils.InvalidTransitionError{
			Entity: "sales order",
			From:   string(locked.CurrentStatus),
			To:     string(target),
		}
	}

	if err := BulkLockStockSummaries(tx.WithContext(ctx), productIds); err != nil {
		tx.Rollback()
		return nil, err
	}

	for _, detail := range order.Details {
		if target == SalesOrderStatusConfirmed {
			err = ConsumeReservation(tx.WithContext(ctx), detail.ProductId, detail.Sku, detail.DetailQty)
		} else {
			err = ReleaseStock(tx.WithContext(ctx), detail.ProductId, detail.Sku, detail.DetailQty)
		}
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.WithContext(ctx).Model(order).Update("current_status", target).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	order.CurrentStatus = target

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	action := AuditActionOrderConfirmed
	if target == SalesOrderStatusCancelled {
		action = AuditActionOrderCancelled
	}
	RecordAudit(ctx, action, "SalesOrder", order.ID,
		fmt.Sprintf("order %s %s", order.OrderNumber, strings.ToLower(string(target))))

	return order, nil
}

func GetSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	return utils.FetchModel[SalesOrder](ctx, id, "Details")
}

func PaginateSalesOrders(ctx context.Context, limit *int, after *string,
	status *SalesOrderStatus, customerSearch *string) ([]Edge[SalesOrder], *PageInfo, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&SalesOrder{}).Preload("Details")

	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}
	if customerSearch != nil && *customerSearch != "" {
		dbCtx = dbCtx.Where("customer_name LIKE ?", "%"+*customerSearch+"%")
	}

	pageLimit := config.SearchLimit
	if limit != nil && *limit > 0 {
		pageLimit = *limit
	}

	return FetchPageCompositeCursor[SalesOrder](dbCtx, pageLimit, after, "created_at", "<")
}
