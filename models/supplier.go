package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/utils"
)

type Supplier struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:50;uniqueIndex;not null" json:"code" binding:"required"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:255" json:"email"`
	Phone     string    `gorm:"size:50" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	IsActive *bool  `json:"is_active"`
}

func (s Supplier) GetId() int {
	return s.ID
}

func (input NewSupplier) validate(ctx context.Context, exceptId int) error {
	if strings.TrimSpace(input.Code) == "" {
		return utils.NewValidationError("code", "must not be blank")
	}
	if err := utils.ValidateUnique[Supplier](ctx, "code", input.Code, exceptId); err != nil {
		return utils.NewValidationError("code", "already exists")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return utils.NewValidationError("email", "invalid email")
	}
	return nil
}

// normalizedPhone returns the E.164 form of the input phone, or an error on
// numbers libphonenumber rejects.
func normalizedPhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", nil
	}
	formatted, err := utils.FormatPhoneNumber(phone, utils.CountryCode)
	if err != nil {
		return "", utils.NewValidationError("phone", "invalid phone number")
	}
	return formatted, nil
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	db := config.GetDB()

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	phone, err := normalizedPhone(input.Phone)
	if err != nil {
		return nil, err
	}

	active := utils.NewTrue()
	if input.IsActive != nil {
		active = input.IsActive
	}

	supplier := Supplier{
		Code:     strings.TrimSpace(input.Code),
		Name:     input.Name,
		Email:    input.Email,
		Phone:    phone,
		Address:  input.Address,
		IsActive: active,
	}
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}

	RecordAudit(ctx, AuditActionSupplierCreated, "Supplier", supplier.ID,
		fmt.Sprintf("supplier %s (%s) created", supplier.Code, supplier.Name))

	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {
	db := config.GetDB()

	supplier, err := utils.FetchModel[Supplier](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	phone, err := normalizedPhone(input.Phone)
	if err != nil {
		return nil, err
	}

	supplier.Code = strings.TrimSpace(input.Code)
	supplier.Name = input.Name
	supplier.Email = input.Email
	supplier.Phone = phone
	supplier.Address = input.Address
	if input.IsActive != nil {
		supplier.IsActive = input.IsActive
	}

	if err := db.WithContext(ctx).Save(supplier).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Supplier](supplier.ID); err != nil {
		return nil, err
	}

	RecordAudit(ctx, AuditActionSupplierUpdated, "Supplier", supplier.ID,
		fmt.Sprintf("supplier %s updated", supplier.Code))

	return supplier, nil
}

// GetSupplier reads through the redis item cache; UpdateSupplier drops the
// cached entry.
func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	cached, err := utils.RetrieveRedis[Supplier](id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	supplier, err := utils.FetchModel[Supplier](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[Supplier](supplier, id); err != nil {
		return nil, err
	}
	return supplier, nil
}

func ListSuppliers(ctx context.Context, activeOnly bool, search *string) ([]*Supplier, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Supplier{})
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	if search != nil && *search != "" {
		term := "%" + *search + "%"
		dbCtx = dbCtx.Where("code LIKE ? OR name LIKE ?", term, term)
	}
	var suppliers []*Supplier
	if err := dbCtx.Order("code").Find(&suppliers).Error; err != nil {
		return nil, err
	}
	return suppliers, nil
}
