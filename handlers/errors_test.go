package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowstock/flowstock_backend/models"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func callRespondError(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, "test", "callRespondError", err)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return w, body
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", utils.NewValidationError("qty", "must be positive"), http.StatusBadRequest},
		{"insufficient stock", &utils.InsufficientStockError{Sku: "SKU-1", Requested: 5, Available: 2}, http.StatusConflict},
		{"over receipt", &utils.OverReceiptError{Sku: "SKU-1", Received: 9, Remaining: 4}, http.StatusUnprocessableEntity},
		{"invalid transition", &utils.InvalidTransitionError{Entity: "sales order", From: "CONFIRMED", To: "RESERVED"}, http.StatusConflict},
		{"record not found", utils.ErrorRecordNotFound, http.StatusNotFound},
		{"gorm record not found", gorm.ErrRecordNotFound, http.StatusNotFound},
		{"invalid credentials", models.ErrInvalidCredentials, http.StatusUnauthorized},
		{"mfa required", models.ErrMfaRequired, http.StatusUnauthorized},
		{"session expired", models.ErrSessionExpired, http.StatusUnauthorized},
		{"reset token invalid", models.ErrResetTokenInvalid, http.StatusUnauthorized},
		{"account locked", models.ErrAccountLocked, http.StatusLocked},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := callRespondError(t, tc.err)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if body["error"] == "" {
				t.Fatal("missing error message")
			}
		})
	}
}

func TestRespondErrorInsufficientStockDetail(t *testing.T) {
	_, body := callRespondError(t, &utils.InsufficientStockError{Sku: "SKU-7", Requested: 10, Available: 3})
	if body["sku"] != "SKU-7" {
		t.Errorf("sku = %v", body["sku"])
	}
	if body["requested"] != float64(10) || body["available"] != float64(3) {
		t.Errorf("quantities = %v / %v", body["requested"], body["available"])
	}
}

func TestRespondErrorHidesInvariantDetail(t *testing.T) {
	w, body := callRespondError(t, utils.NewInvariantViolationError("reserved_qty drifted for product %d", 42))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	// the drift detail belongs in the log, not the response
	if body["error"] != "internal error" {
		t.Fatalf("error = %v", body["error"])
	}
}
