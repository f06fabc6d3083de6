package models

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID              int              `gorm:"primary_key" json:"id"`
	Sku             string           `gorm:"size:100;uniqueIndex;not null" json:"sku" binding:"required"`
	Name            string           `gorm:"size:255;not null" json:"name" binding:"required"`
	UnitPrice       decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	ReorderPoint    int              `gorm:"not null;default:0" json:"reorder_point"`
	ReorderQuantity int              `gorm:"not null;default:0" json:"reorder_quantity"`
	CategoryId      *int             `gorm:"index" json:"category_id"`
	Category        *ProductCategory `gorm:"foreignKey:CategoryId" json:"category,omitempty"`
	IsActive        *bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Sku             string          `json:"sku" binding:"required"`
	Name            string          `json:"name" binding:"required"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	ReorderPoint    int             `json:"reorder_point" binding:"gte=0"`
	ReorderQuantity int             `json:"reorder_quantity" binding:"gte=0"`
	CategoryId      *int            `json:"category_id"`
	InitialStock    int             `json:"initial_stock" binding:"gte=0"`
}

// ProductWithStock joins the master row with its ledger quantities for
// list/detail responses.
type ProductWithStock struct {
	Product
	AvailableQty int `json:"available_qty"`
	ReservedQty  int `json:"reserved_qty"`
}

func (p Product) GetCursor() string {
	return p.CreatedAt.Format(time.RFC3339Nano)
}

func (p Product) GetId() int {
	return p.ID
}

func (input NewProduct) validate(ctx context.Context, exceptId int) error {
	if strings.TrimSpace(input.Sku) == "" {
		return utils.NewValidationError("sku", "must not be blank")
	}
	if input.UnitPrice.IsNegative() {
		return utils.NewValidationError("unit_price", "must not be negative")
	}
	if err := utils.ValidateUnique[Product](ctx, "sku", input.Sku, exceptId); err != nil {
		return utils.NewValidationError("sku", "already exists")
	}
	if input.CategoryId != nil {
		if err := utils.ValidateResourceId[ProductCategory](ctx, *input.CategoryId); err != nil {
			return utils.NewValidationError("category_id", "category not found")
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	db := config.GetDB()

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	product := Product{
		Sku:             strings.TrimSpace(input.Sku),
		Name:            input.Name,
		UnitPrice:       input.UnitPrice,
		ReorderPoint:    input.ReorderPoint,
		ReorderQuantity: input.ReorderQuantity,
		CategoryId:      input.CategoryId,
		IsActive:        utils.NewTrue(),
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if input.InitialStock > 0 {
		if err := ReceiveStock(tx.WithContext(ctx), product.ID, input.InitialStock); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	RecordAudit(ctx, AuditActionProductCreated, "Product", product.ID,
		fmt.Sprintf("product %s (%s) created", product.Sku, product.Name))

	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	db := config.GetDB()

	existing, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	existing.Sku = strings.TrimSpace(input.Sku)
	existing.Name = input.Name
	existing.UnitPrice = input.UnitPrice
	existing.ReorderPoint = input.ReorderPoint
	existing.ReorderQuantity = input.ReorderQuantity
	existing.CategoryId = input.CategoryId

	if err := db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, err
	}

	RecordAudit(ctx, AuditActionProductUpdated, "Product", existing.ID,
		fmt.Sprintf("product %s updated", existing.Sku))

	return existing, nil
}

func GetProduct(ctx context.Context, id int) (*ProductWithStock, error) {
	product, err := utils.FetchModel[Product](ctx, id, "Category")
	if err != nil {
		return nil, err
	}
	stock, err := GetStockSummary(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	return &ProductWithStock{
		Product:      *product,
		AvailableQty: stock.AvailableQty,
		ReservedQty:  stock.ReservedQty,
	}, nil
}

func GetProductBySku(ctx context.Context, sku string) (*Product, error) {
	db := config.GetDB()
	var product Product
	err := db.WithContext(ctx).Where("sku = ?", sku).First(&product).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &product, nil
}

func PaginateProducts(ctx context.Context, limit *int, after *string,
	search *string, categoryId *int) ([]Edge[Product], *PageInfo, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Product{}).Preload("Category")

	if search != nil && *search != "" {
		term := "%" + *search + "%"
		dbCtx = dbCtx.Where("sku LIKE ? OR name LIKE ?", term, term)
	}
	if categoryId != nil && *categoryId > 0 {
		dbCtx = dbCtx.Where("category_id = ?", *categoryId)
	}

	pageLimit := config.SearchLimit
	if limit != nil && *limit > 0 {
		pageLimit = *limit
	}

	return FetchPageCompositeCursor[Product](dbCtx, pageLimit, after, "created_at", "<")
}

// AttachStock decorates product rows with their ledger quantities in one
// query instead of N.
func AttachStock(ctx context.Context, products []*Product) ([]*ProductWithStock, error) {
	db := config.GetDB()

	ids := make([]int, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}

	var summaries []StockSummary
	if len(ids) > 0 {
		if err := db.WithContext(ctx).Where("product_id IN (?)", ids).Find(&summaries).Error; err != nil {
			return nil, err
		}
	}
	byProduct := make(map[int]StockSummary, len(summaries))
	for _, s := range summaries {
		byProduct[s.ProductId] = s
	}

	results := make([]*ProductWithStock, 0, len(products))
	for _, p := range products {
		s := byProduct[p.ID]
		results = append(results, &ProductWithStock{
			Product:      *p,
			AvailableQty: s.AvailableQty,
			ReservedQty:  s.ReservedQty,
		})
	}
	return results, nil
}

// AdjustProductStock applies a manual available-quantity correction and
// audits the before/after values.
func AdjustProductStock(ctx context.Context, id int, delta int, reason string) (*ProductWithStock, error) {
	db := config.GetDB()

	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, utils.NewValidationError("delta", "must not be zero")
	}

	tx := db.Begin()
	newQty, err := AdjustStock(tx.WithContext(ctx), product.ID, product.Sku, delta)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	RecordAudit(ctx, AuditActionStockAdjusted, "Product", product.ID,
		fmt.Sprintf("stock of %s adjusted by %+d to %d (%s)", product.Sku, delta, newQty, reason))

	return GetProduct(ctx, id)
}

// ListLowStockProducts returns active products whose available stock is at
// or below their reorder point.
func ListLowStockProducts(ctx context.Context) ([]*ProductWithStock, error) {
	db := config.GetDB()

	var products []*Product
	err := db.WithContext(ctx).Model(&Product{}).
		Joins("LEFT JOIN stock_summaries ON stock_summaries.product_id = products.id").
		Where("products.is_active = ?", true).
		Where("COALESCE(stock_summaries.available_qty, 0) <= products.reorder_point").
		Order("products.sku").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return AttachStock(ctx, products)
}

// SuggestSku proposes the next SKU for a category: the category prefix plus
// a zero-padded counter one past the highest existing suffix.
func SuggestSku(ctx context.Context, categoryId int) (string, error) {
	db := config.GetDB()

	category, err := utils.FetchModel[ProductCategory](ctx, categoryId)
	if err != nil {
		return "", err
	}
	prefix := strings.TrimSpace(category.SkuPrefix)
	if prefix == "" {
		return "", utils.NewValidationError("category_id", "category has no SKU prefix")
	}

	var skus []string
	if err := db.WithContext(ctx).Model(&Product{}).
		Where("sku LIKE ?", prefix+"%").
		Pluck("sku", &skus).Error; err != nil {
		return "", err
	}

	highest := 0
	for _, sku := range skus {
		suffix := strings.TrimPrefix(sku, prefix)
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}

	return fmt.Sprintf("%s%04d", prefix, highest+1), nil
}

type ProductImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ProductImportResult struct {
	Imported int                     `json:"imported"`
	Errors   []ProductImportRowError `json:"errors"`
}

// ImportProductsCSV ingests rows of
// sku,name,unit_price,reorder_point,reorder_quantity[,category_id[,initial_stock]].
// Each row commits independently; failures are reported per row.
func ImportProductsCSV(ctx context.Context, r io.Reader) (*ProductImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	result := &ProductImportResult{Errors: []ProductImportRowError{}}
	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, utils.NewValidationError("file", "malformed CSV: "+err.Error())
		}
		rowNum++
		// optional header
		if rowNum == 1 && len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "sku") {
			continue
		}

		input, err := parseProductImportRow(record)
		if err != nil {
			result.Errors = append(result.Errors, ProductImportRowError{Row: rowNum, Message: err.Error()})
			continue
		}
		if _, err := CreateProduct(ctx, input); err != nil {
			result.Errors = append(result.Errors, ProductImportRowError{Row: rowNum, Message: err.Error()})
			continue
		}
		result.Imported++
	}

	RecordAudit(ctx, AuditActionProductImported, "Product", 0,
		fmt.Sprintf("imported %d products (%d rows failed)", result.Imported, len(result.Errors)))

	return result, nil
}

func parseProductImportRow(record []string) (*NewProduct, error) {
	if len(record) < 5 {
		return nil, errors.New("expected at least 5 columns")
	}

	unitPrice, err := utils.ParseDecimal(record[2])
	if err != nil {
		return nil, errors.New("invalid unit_price")
	}
	reorderPoint, err := strconv.Atoi(strings.TrimSpace(record[3]))
	if err != nil || reorderPoint < 0 {
		return nil, errors.New("invalid reorder_point")
	}
	reorderQty, err := strconv.Atoi(strings.TrimSpace(record[4]))
	if err != nil || reorderQty < 0 {
		return nil, errors.New("invalid reorder_quantity")
	}

	input := &NewProduct{
		Sku:             strings.TrimSpace(record[0]),
		Name:            strings.TrimSpace(record[1]),
		UnitPrice:       unitPrice,
		ReorderPoint:    reorderPoint,
		ReorderQuantity: reorderQty,
	}

	if len(record) > 5 && strings.TrimSpace(record[5]) != "" {
		categoryId, err := strconv.Atoi(strings.TrimSpace(record[5]))
		if err != nil {
			return nil, errors.New("invalid category_id")
		}
		input.CategoryId = &categoryId
	}
	if len(record) > 6 && strings.TrimSpace(record[6]) != "" {
		initialStock, err := strconv.Atoi(strings.TrimSpace(record[6]))
		if err != nil || initialStock < 0 {
			return nil, errors.New("invalid initial_stock")
		}
		input.InitialStock = initialStock
	}

	return input, nil
}
