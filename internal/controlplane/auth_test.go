package controlplane

import (
	"errors"
	"testing"
	"time"

	"github.com/MultiDragon/libpuns/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "0123456789abcdef0123456789abcdef", TTL: time.Hour}
}

func TestNewJWTServiceRejectsShortSecret(t *testing.T) {
	_, err := NewJWTService(config.JWTConfig{Secret: "too-short", TTL: time.Hour})
	if !errors.Is(err, ErrInvalidSecretLength) {
		t.Fatalf("err = %v, want ErrInvalidSecretLength", err)
	}
}

func TestJWTServiceIssueAndValidateRoundTrip(t *testing.T) {
	svc, err := NewJWTService(testJWTConfig())
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}

	token, expiresAt, err := svc.Issue("admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("Issue returned empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiresAt = %v, want in the future", expiresAt)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Username != "admin" {
		t.Errorf("Username = %q, want %q", claims.Username, "admin")
	}
	if claims.ID == "" {
		t.Error("claims.ID (jti) is empty, want a generated uuid")
	}
	if claims.Issuer != "libpuns" {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, "libpuns")
	}
}

func TestJWTServiceIssueGeneratesDistinctJTIPerToken(t *testing.T) {
	svc, err := NewJWTService(testJWTConfig())
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}

	tokenA, _, err := svc.Issue("admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	tokenB, _, err := svc.Issue("admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claimsA, err := svc.Validate(tokenA)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	claimsB, err := svc.Validate(tokenB)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claimsA.ID == claimsB.ID {
		t.Fatal("two tokens issued for the same user got the same jti")
	}
}

func TestJWTServiceValidateRejectsGarbage(t *testing.T) {
	svc, err := NewJWTService(testJWTConfig())
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}
	if _, err := svc.Validate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestJWTServiceValidateRejectsWrongSecret(t *testing.T) {
	svcA, err := NewJWTService(testJWTConfig())
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}
	svcB, err := NewJWTService(config.JWTConfig{Secret: "fedcba9876543210fedcba9876543210", TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}

	token, _, err := svcA.Issue("admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svcB.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestJWTServiceValidateRejectsExpiredToken(t *testing.T) {
	svc, err := NewJWTService(config.JWTConfig{Secret: testJWTConfig().Secret, TTL: -time.Hour})
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}

	token, _, err := svc.Issue("admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("err = %v, want ErrExpiredToken", err)
	}
}
