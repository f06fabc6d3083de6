package models

import "testing"

func TestSuggestedQuantityWithoutContract(t *testing.T) {
	// available=5, reorderPoint=10 gives shortage=5; without a contract
	// the flat reorder quantity wins.
	if got := suggestedQuantityFor(5, 20, nil); got != 20 {
		t.Fatalf("expected flat reorder quantity 20, got %d", got)
	}
	if got := suggestedQuantityFor(50, 20, nil); got != 20 {
		t.Fatalf("flat fallback must ignore shortage; got %d", got)
	}
}

func TestSuggestedQuantityMoqFloor(t *testing.T) {
	contract := &ProductSupplierContract{Moq: 25, LotSize: 1}
	if got := suggestedQuantityFor(5, 0, contract); got != 25 {
		t.Fatalf("MOQ must floor the order quantity: want 25, got %d", got)
	}
	if got := suggestedQuantityFor(40, 0, contract); got != 40 {
		t.Fatalf("shortage above MOQ orders the shortage: want 40, got %d", got)
	}
}

func TestSuggestedQuantityLotRounding(t *testing.T) {
	contract := &ProductSupplierContract{Moq: 1, LotSize: 12}
	cases := []struct {
		shortage int
		want     int
	}{
		{1, 12},
		{12, 12},
		{13, 24},
		{25, 36},
	}
	for _, c := range cases {
		if got := suggestedQuantityFor(c.shortage, 0, contract); got != c.want {
			t.Errorf("shortage %d: want %d, got %d", c.shortage, c.want, got)
		}
	}
}

func TestSuggestedQuantityMoqAndLotCombined(t *testing.T) {
	// need = max(shortage, MOQ) rounded up to a lot multiple
	contract := &ProductSupplierContract{Moq: 30, LotSize: 25}
	if got := suggestedQuantityFor(10, 0, contract); got != 50 {
		t.Fatalf("max(10,30)=30 rounded to lot 25 is 50, got %d", got)
	}
	if got := suggestedQuantityFor(60, 0, contract); got != 75 {
		t.Fatalf("max(60,30)=60 rounded to lot 25 is 75, got %d", got)
	}
}

func TestSuggestedQuantityZeroLotSizeClamped(t *testing.T) {
	contract := &ProductSupplierContract{Moq: 3, LotSize: 0}
	if got := suggestedQuantityFor(7, 0, contract); got != 7 {
		t.Fatalf("lot size below 1 behaves as 1: want 7, got %d", got)
	}
}
