package auth

import (
	"context"
	"testing"
	"time"
)

func TestIssueAndValidateRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	manager := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "scripta-auth",
		Audience:      "scripta-api",
		SessionTTL:    30 * time.Minute,
		Clock:         func() time.Time { return now },
	})

	token, expiresIn, err := manager.Issue(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if expiresIn != int64((30 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiry seconds: %d", expiresIn)
	}

	subject, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if subject != "user-123" {
		t.Fatalf("unexpected subject %q", subject)
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	manager := NewTokenManager(TokenManagerConfig{SigningSecret: []byte("test-secret")})
	if _, _, err := manager.Issue(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Unix(1700000000, 0).UTC()
	clockNow := issuedAt
	manager := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "scripta-auth",
		Audience:      "scripta-api",
		SessionTTL:    time.Minute,
		Clock:         func() time.Time { return clockNow },
	})

	token, _, err := manager.Issue(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	clockNow = issuedAt.Add(2 * time.Minute)
	if _, err := manager.Validate(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	issuing := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("secret-one"),
		Issuer:        "scripta-auth",
		Audience:      "scripta-api",
	})
	validating := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("secret-two"),
		Issuer:        "scripta-auth",
		Audience:      "scripta-api",
	})

	token, _, err := issuing.Issue(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := validating.Validate(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}
