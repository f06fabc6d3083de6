package models

import (
	"context"
	"sort"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/shopspring/decimal"
)

// ReplenishmentSuggestion is one row of the purchase-order suggestion list.
// SupplierId/SupplierName/UnitCost come from the primary supplier contract
// when one exists.
type ReplenishmentSuggestion struct {
	ProductId         int             `json:"product_id"`
	Sku               string          `json:"sku"`
	ProductName       string          `json:"product_name"`
	AvailableQty      int             `json:"available_qty"`
	ReorderPoint      int             `json:"reorder_point"`
	Shortage          int             `json:"shortage"`
	SuggestedQuantity int             `json:"suggested_quantity"`
	SupplierId        *int            `json:"supplier_id,omitempty"`
	SupplierName      string          `json:"supplier_name,omitempty"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	LeadTimeDays      int             `json:"lead_time_days"`
}

// suggestedQuantityFor computes the order quantity for a shortage. With a
// contract it is the smallest lot-size multiple covering
// max(shortage, MOQ); without one it falls back flat to the product's
// reorder quantity, no rounding.
func suggestedQuantityFor(shortage int, reorderQuantity int, contract *ProductSupplierContract) int {
	if contract == nil {
		return reorderQuantity
	}

	need := shortage
	if contract.Moq > need {
		need = contract.Moq
	}
	lotSize := contract.LotSize
	if lotSize < 1 {
		lotSize = 1
	}
	lots := (need + lotSize - 1) / lotSize
	return lots * lotSize
}

// SuggestReplenishment computes purchase suggestions for every active
// product whose available stock has fallen below its reorder point. Pure:
// never mutates state, so two consecutive calls without ledger changes are
// identical.
func SuggestReplenishment(ctx context.Context) ([]*ReplenishmentSuggestion, error) {
	db := config.GetDB()

	var products []*Product
	if err := db.WithContext(ctx).Where("is_active = ?", true).Find(&products).Error; err != nil {
		return nil, err
	}
	withStock, err := AttachStock(ctx, products)
	if err != nil {
		return nil, err
	}
	contracts, err := PrimaryContractsByProduct(ctx)
	if err != nil {
		return nil, err
	}

	suggestions := make([]*ReplenishmentSuggestion, 0)
	for _, p := range withStock {
		shortage := p.ReorderPoint - p.AvailableQty
		if shortage <= 0 {
			continue
		}

		contract := contracts[p.ID]
		suggestion := &ReplenishmentSuggestion{
			ProductId:         p.ID,
			Sku:               p.Sku,
			ProductName:       p.Name,
			AvailableQty:      p.AvailableQty,
			ReorderPoint:      p.ReorderPoint,
			Shortage:          shortage,
			SuggestedQuantity: suggestedQuantityFor(shortage, p.ReorderQuantity, contract),
		}
		if contract != nil {
			supplierId := contract.SupplierId
			suggestion.SupplierId = &supplierId
			if contract.Supplier != nil {
				suggestion.SupplierName = contract.Supplier.Name
			}
			suggestion.UnitCost = contract.UnitCost
			suggestion.LeadTimeDays = contract.LeadTimeDays
		}
		suggestions = append(suggestions, suggestion)
	}

	// Most urgent first: biggest shortage, then least stock on hand.
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Shortage != suggestions[j].Shortage {
			return suggestions[i].Shortage > suggestions[j].Shortage
		}
		return suggestions[i].AvailableQty < suggestions[j].AvailableQty
	})

	return suggestions, nil
}
