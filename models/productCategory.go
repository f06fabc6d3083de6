package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/utils"
)

type ProductCategory struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name" binding:"required"`
	SkuPrefix string    `gorm:"size:20" json:"sku_prefix"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductCategory struct {
	Name      string `json:"name" binding:"required"`
	SkuPrefix string `json:"sku_prefix"`
}

func (c ProductCategory) GetId() int {
	return c.ID
}

func CreateProductCategory(ctx context.Context, input *NewProductCategory) (*ProductCategory, error) {
	db := config.GetDB()

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, utils.NewValidationError("name", "must not be blank")
	}
	if err := utils.ValidateUnique[ProductCategory](ctx, "name", name, 0); err != nil {
		return nil, utils.NewValidationError("name", "already exists")
	}

	category := ProductCategory{
		Name:      name,
		SkuPrefix: strings.TrimSpace(input.SkuPrefix),
	}
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[ProductCategory](); err != nil {
		return nil, err
	}

	RecordAudit(ctx, AuditActionCategoryCreated, "ProductCategory", category.ID,
		fmt.Sprintf("category %s created", category.Name))

	return &category, nil
}

// ListProductCategories serves from the redis list cache when warm; every
// category mutation drops the cached list.
func ListProductCategories(ctx context.Context) ([]*ProductCategory, error) {
	cached, err := utils.RetrieveRedisList[ProductCategory]()
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var categories []*ProductCategory
	if err := db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, err
	}
	if err := utils.StoreRedisList[ProductCategory](categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// UpdateCategorySkuRule sets the prefix used by SKU suggestion for products
// in this category.
func UpdateCategorySkuRule(ctx context.Context, id int, skuPrefix string) (*ProductCategory, error) {
	db := config.GetDB()

	category, err := utils.FetchModel[ProductCategory](ctx, id)
	if err != nil {
		return nil, err
	}

	category.SkuPrefix = strings.TrimSpace(skuPrefix)
	if err := db.WithContext(ctx).Save(category).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[ProductCategory](); err != nil {
		return nil, err
	}

	RecordAudit(ctx, AuditActionCategoryUpdated, "ProductCategory", category.ID,
		fmt.Sprintf("category %s SKU prefix set to %q", category.Name, category.SkuPrefix))

	return category, nil
}
