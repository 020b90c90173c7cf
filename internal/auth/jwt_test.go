package auth

import (
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewJWTManager("test-secret-key", time.Hour)

	token, err := manager.GenerateToken("cli")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "cli" {
		t.Errorf("expected subject cli, got %q", claims.Subject)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	manager := NewJWTManager("secret-one", time.Hour)
	other := NewJWTManager("secret-two", time.Hour)

	token, err := manager.GenerateToken("cli")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("expected validation to fail with a different secret")
	}
}

func TestValidateExpiredToken(t *testing.T) {
	manager := NewJWTManager("test-secret-key", -time.Minute)

	token, err := manager.GenerateToken("cli")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := manager.ValidateToken(token); err == nil {
		t.Fatal("expected validation to fail for an expired token")
	}
}

func TestValidateGarbageToken(t *testing.T) {
	manager := NewJWTManager("test-secret-key", time.Hour)
	if _, err := manager.ValidateToken("not.a.token"); err == nil {
		t.Fatal("expected validation to fail for garbage input")
	}
}
