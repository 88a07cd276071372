package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
)

func testConfig(t *testing.T, now time.Time) Config {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return Config{
		Issuer:     "studycommons",
		Audience:   "studycommons-api",
		PrivateKey: priv,
		PublicKey:  priv.Public().(ed25519.PublicKey),
		TTL:        15 * time.Minute,
		Now:        func() time.Time { return now },
	}
}

func TestMintAndVerify(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cfg := testConfig(t, now)

	signed, expiresAt, err := cfg.Mint("user-1", "member")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got, want := expiresAt, now.Add(15*time.Minute); !got.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", got, want)
	}

	claims, err := cfg.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("UserID = %q, want %q", claims.UserID, "user-1")
	}
	if claims.Role != "member" {
		t.Fatalf("Role = %q, want %q", claims.Role, "member")
	}
	if claims.JWTID == "" {
		t.Fatal("expected non-empty jti")
	}
	if !claims.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("ExpiresAt = %v, want %v", claims.ExpiresAt, expiresAt)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cfg := testConfig(t, now)

	signed, _, err := cfg.Mint("user-1", "member")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	cfg.Now = func() time.Time { return now.Add(16 * time.Minute) }
	_, err = cfg.Verify(signed)
	if err == nil {
		t.Fatal("expected error for expired token")
	}
	if apperrors.CodeOf(err) != apperrors.CodeSessionExpired {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeSessionExpired)
	}
}

func TestVerifyWrongKey(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cfg := testConfig(t, now)

	signed, _, err := cfg.Mint("user-1", "member")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := testConfig(t, now)
	_, err = other.Verify(signed)
	if err == nil {
		t.Fatal("expected error for signature from another key")
	}
	if apperrors.CodeOf(err) != apperrors.CodeTokenInvalid {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeTokenInvalid)
	}
}

func TestVerifyAudienceMismatch(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cfg := testConfig(t, now)

	signed, _, err := cfg.Mint("user-1", "member")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	cfg.Audience = "other-audience"
	_, err = cfg.Verify(signed)
	if err == nil {
		t.Fatal("expected error for audience mismatch")
	}
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) || domainErr.Code != apperrors.CodeTokenInvalid {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyEmptyToken(t *testing.T) {
	cfg := testConfig(t, time.Now())
	if _, err := cfg.Verify("  "); err == nil {
		t.Fatal("expected error for empty token")
	}
}
