package utils

import (
	"errors"
	"testing"
)

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken(48)
	if err != nil {
		t.Fatalf("GenerateOpaqueToken: %v", err)
	}
	b, err := GenerateOpaqueToken(48)
	if err != nil {
		t.Fatalf("GenerateOpaqueToken: %v", err)
	}
	if a == b {
		t.Fatal("two tokens must not collide")
	}
	// 48 bytes base64url without padding is 64 characters
	if len(a) != 64 {
		t.Fatalf("unexpected token length %d", len(a))
	}
}

func TestIsValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "first.last+tag@example.org"}
	invalid := []string{"", "no-at-sign", "a@b", "@example.com", "a @b.co"}
	for _, e := range valid {
		if !IsValidEmail(e) {
			t.Errorf("%q should be valid", e)
		}
	}
	for _, e := range invalid {
		if IsValidEmail(e) {
			t.Errorf("%q should be invalid", e)
		}
	}
}

func TestProcessValidationErrorsToleratesNonValidatorErrors(t *testing.T) {
	out := ProcessValidationErrors(errors.New("unexpected EOF"))
	if out["body"] == "" {
		t.Fatal("non-validator errors must map to a generic body message")
	}
}
