package auth

import (
	"testing"
	"time"
)

const testSecret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("42", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != "42" {
		t.Errorf("UserID = %q, want 42", claims.UserID)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("42", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(token, "other-secret"); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken("42", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(token, testSecret); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestParseTokenGarbage(t *testing.T) {
	if _, err := ParseToken("not-a-token", testSecret); err == nil {
		t.Error("expected error for garbage token")
	}
}

func TestVerifier(t *testing.T) {
	v := NewVerifier(testSecret)

	token, err := GenerateToken("7", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	userID, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "7" {
		t.Errorf("Verify = %q, want 7", userID)
	}

	if _, err := v.Verify("bogus"); err == nil {
		t.Error("expected error for invalid token")
	}
}
