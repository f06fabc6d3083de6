package models_test

import (
	"testing"

	"github.com/flowstock/flowstock_backend/models"
)

func TestSalesOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    models.SalesOrderStatus
		to      models.SalesOrderStatus
		allowed bool
	}{
		{models.SalesOrderStatusReserved, models.SalesOrderStatusConfirmed, true},
		{models.SalesOrderStatusReserved, models.SalesOrderStatusCancelled, true},
		{models.SalesOrderStatusReserved, models.SalesOrderStatusReserved, false},
		{models.SalesOrderStatusConfirmed, models.SalesOrderStatusCancelled, false},
		{models.SalesOrderStatusConfirmed, models.SalesOrderStatusReserved, false},
		{models.SalesOrderStatusCancelled, models.SalesOrderStatusConfirmed, false},
		{models.SalesOrderStatusCancelled, models.SalesOrderStatusReserved, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.allowed {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.allowed)
		}
	}

	if models.SalesOrderStatusReserved.IsTerminal() {
		t.Error("RESERVED must not be terminal")
	}
	if !models.SalesOrderStatusConfirmed.IsTerminal() || !models.SalesOrderStatusCancelled.IsTerminal() {
		t.Error("CONFIRMED and CANCELLED must be terminal")
	}
}

func TestPurchaseOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    models.PurchaseOrderStatus
		to      models.PurchaseOrderStatus
		allowed bool
	}{
		{models.PurchaseOrderStatusOrdered, models.PurchaseOrderStatusPartiallyReceived, true},
		{models.PurchaseOrderStatusOrdered, models.PurchaseOrderStatusReceived, true},
		{models.PurchaseOrderStatusOrdered, models.PurchaseOrderStatusCancelled, true},
		// further partial receipts keep the order PARTIALLY_RECEIVED
		{models.PurchaseOrderStatusPartiallyReceived, models.PurchaseOrderStatusPartiallyReceived, true},
		{models.PurchaseOrderStatusPartiallyReceived, models.PurchaseOrderStatusReceived, true},
		{models.PurchaseOrderStatusPartiallyReceived, models.PurchaseOrderStatusCancelled, true},
		{models.PurchaseOrderStatusPartiallyReceived, models.PurchaseOrderStatusOrdered, false},
		{models.PurchaseOrderStatusReceived, models.PurchaseOrderStatusCancelled, false},
		{models.PurchaseOrderStatusReceived, models.PurchaseOrderStatusPartiallyReceived, false},
		{models.PurchaseOrderStatusCancelled, models.PurchaseOrderStatusOrdered, false},
		{models.PurchaseOrderStatusCancelled, models.PurchaseOrderStatusReceived, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.allowed {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestParseStatusRejectsUnknown(t *testing.T) {
	if _, err := models.ParseSalesOrderStatus("SHIPPED"); err == nil {
		t.Error("expected error for unknown sales order status")
	}
	if _, err := models.ParsePurchaseOrderStatus("DRAFT"); err == nil {
		t.Error("expected error for unknown purchase order status")
	}
	if _, err := models.ParseUserRole("SUPERUSER"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestUserRoleCanMutate(t *testing.T) {
	if !models.UserRoleAdmin.CanMutate() || !models.UserRoleOperator.CanMutate() {
		t.Error("ADMIN and OPERATOR must be allowed to mutate")
	}
	if models.UserRoleViewer.CanMutate() {
		t.Error("VIEWER must not be allowed to mutate")
	}
}
