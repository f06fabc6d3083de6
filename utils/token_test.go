package utils

import (
	"testing"
)

func TestJwtRoundTrip(t *testing.T) {
	token, err := JwtGenerate(7, "operator1", "OPERATOR")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	parsed, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("JwtValidate: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("token must validate")
	}

	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok {
		t.Fatal("claims have wrong type")
	}
	if claims.ID != 7 || claims.Username != "operator1" || claims.Role != "OPERATOR" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt <= claims.IssuedAt {
		t.Error("token must expire after issuance")
	}
}

func TestJwtValidateRejectsGarbage(t *testing.T) {
	if _, err := JwtValidate("not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestJwtValidateRejectsTampering(t *testing.T) {
	token, err := JwtGenerate(1, "admin", "ADMIN")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	parsed, err := JwtValidate(tampered)
	if err == nil && parsed.Valid {
		t.Error("tampered token must not validate")
	}
}
