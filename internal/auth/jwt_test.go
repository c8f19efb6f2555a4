package auth

import (
	"testing"

	"github.com/google/uuid"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	userID := uuid.New()

	token, err := svc.Generate(userID, "maker@example.com", "Maker")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("user id: want=%s got=%s", userID, claims.UserID)
	}
	if claims.DisplayName != "Maker" {
		t.Fatalf("display name: want=%q got=%q", "Maker", claims.DisplayName)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", 1).Generate(uuid.New(), "a@example.com", "A")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewJWTService("secret-b", 1).Validate(token); err == nil {
		t.Fatal("want validation failure for wrong secret")
	}
}

func TestJWTRejectsGarbage(t *testing.T) {
	if _, err := NewJWTService("secret", 1).Validate("not-a-token"); err == nil {
		t.Fatal("want validation failure for malformed token")
	}
}
