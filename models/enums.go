package models

import (
	"errors"
)

type SalesOrderStatus string

const (
	SalesOrderStatusReserved  SalesOrderStatus = "RESERVED"
	SalesOrderStatusConfirmed SalesOrderStatus = "CONFIRMED"
	SalesOrderStatusCancelled SalesOrderStatus = "CANCELLED"
)

// salesOrderTransitions is the full lifecycle: RESERVED is the only
// non-terminal state.
var salesOrderTransitions = map[SalesOrderStatus][]SalesOrderStatus{
	SalesOrderStatusReserved:  {SalesOrderStatusConfirmed, SalesOrderStatusCancelled},
	SalesOrderStatusConfirmed: {},
	SalesOrderStatusCancelled: {},
}

func (s SalesOrderStatus) CanTransitionTo(target SalesOrderStatus) bool {
	for _, allowed := range salesOrderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s SalesOrderStatus) IsTerminal() bool {
	return len(salesOrderTransitions[s]) == 0
}

func ParseSalesOrderStatus(str string) (SalesOrderStatus, error) {
	switch str {
	case "RESERVED":
		return SalesOrderStatusReserved, nil
	case "CONFIRMED":
		return SalesOrderStatusConfirmed, nil
	case "CANCELLED":
		return SalesOrderStatusCancelled, nil
	default:
		return "", errors.New("invalid sales order status")
	}
}

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusOrdered           PurchaseOrderStatus = "ORDERED"
	PurchaseOrderStatusPartiallyReceived PurchaseOrderStatus = "PARTIALLY_RECEIVED"
	PurchaseOrderStatusReceived          PurchaseOrderStatus = "RECEIVED"
	PurchaseOrderStatusCancelled         PurchaseOrderStatus = "CANCELLED"
)

// PARTIALLY_RECEIVED self-loops: further partial receipts keep the order
// in the same state until every line is fully received.
var purchaseOrderTransitions = map[PurchaseOrderStatus][]PurchaseOrderStatus{
	PurchaseOrderStatusOrdered: {
		PurchaseOrderStatusPartiallyReceived,
		PurchaseOrderStatusReceived,
		PurchaseOrderStatusCancelled,
	},
	PurchaseOrderStatusPartiallyReceived: {
		PurchaseOrderStatusPartiallyReceived,
		PurchaseOrderStatusReceived,
		PurchaseOrderStatusCancelled,
	},
	PurchaseOrderStatusReceived:  {},
	PurchaseOrderStatusCancelled: {},
}

func (s PurchaseOrderStatus) CanTransitionTo(target PurchaseOrderStatus) bool {
	for _, allowed := range purchaseOrderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s PurchaseOrderStatus) IsTerminal() bool {
	return len(purchaseOrderTransitions[s]) == 0
}

func ParsePurchaseOrderStatus(str string) (PurchaseOrderStatus, error) {
	switch str {
	case "ORDERED":
		return PurchaseOrderStatusOrdered, nil
	case "PARTIALLY_RECEIVED":
		return PurchaseOrderStatusPartiallyReceived, nil
	case "RECEIVED":
		return PurchaseOrderStatusReceived, nil
	case "CANCELLED":
		return PurchaseOrderStatusCancelled, nil
	default:
		return "", errors.New("invalid purchase order status")
	}
}

type UserRole string

const (
	UserRoleAdmin    UserRole = "ADMIN"
	UserRoleOperator UserRole = "OPERATOR"
	UserRoleViewer   UserRole = "VIEWER"
)

func ParseUserRole(str string) (UserRole, error) {
	switch str {
	case "ADMIN":
		return UserRoleAdmin, nil
	case "OPERATOR":
		return UserRoleOperator, nil
	case "VIEWER":
		return UserRoleViewer, nil
	default:
		return "", errors.New("invalid user role")
	}
}

// CanMutate reports whether the role may hit state-changing inventory and
// order endpoints.
func (r UserRole) CanMutate() bool {
	return r == UserRoleAdmin || r == UserRoleOperator
}

type AuditAction string

const (
	AuditActionProductCreated        AuditAction = "PRODUCT_CREATED"
	AuditActionProductUpdated        AuditAction = "PRODUCT_UPDATED"
	AuditActionProductImported       AuditAction = "PRODUCT_IMPORTED"
	AuditActionStockAdjusted         AuditAction = "STOCK_ADJUSTED"
	AuditActionCategoryCreated       AuditAction = "CATEGORY_CREATED"
	AuditActionCategoryUpdated       AuditAction = "CATEGORY_UPDATED"
	AuditActionSupplierCreated       AuditAction = "SUPPLIER_CREATED"
	AuditActionSupplierUpdated       AuditAction = "SUPPLIER_UPDATED"
	AuditActionContractUpserted      AuditAction = "SUPPLIER_CONTRACT_UPSERTED"
	AuditActionContractRemoved       AuditAction = "SUPPLIER_CONTRACT_REMOVED"
	AuditActionOrderCreated          AuditAction = "ORDER_CREATED"
	AuditActionOrderConfirmed        AuditAction = "ORDER_CONFIRMED"
	AuditActionOrderCancelled        AuditAction = "ORDER_CANCELLED"
	AuditActionPurchaseOrderCreated  AuditAction = "PURCHASE_ORDER_CREATED"
	AuditActionPurchaseOrderReceived AuditAction = "PURCHASE_ORDER_RECEIVED"
	AuditActionPurchaseOrderCancel   AuditAction = "PURCHASE_ORDER_CANCELLED"
	AuditActionUserLogin             AuditAction = "USER_LOGIN"
	AuditActionUserLogout            AuditAction = "USER_LOGOUT"
	AuditActionMfaEnabled            AuditAction = "MFA_ENABLED"
	AuditActionMfaDisabled           AuditAction = "MFA_DISABLED"
	AuditActionPasswordReset         AuditAction = "PASSWORD_RESET"
	AuditActionSessionRevoked        AuditAction = "SESSION_REVOKED"
	AuditActionAuditCleanup          AuditAction = "AUDIT_CLEANUP"
	AuditActionLowStockReport        AuditAction = "LOW_STOCK_REPORT"
)
