// Package token mints and verifies short-lived access tokens for API calls.
package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/id"
)

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	Issuer     string        `env:"STUDY_COMMONS_TOKEN_ISSUER"      envDefault:"studycommons"`
	Audience   string        `env:"STUDY_COMMONS_TOKEN_AUDIENCE"    envDefault:"studycommons-api"`
	PrivateKey string        `env:"STUDY_COMMONS_TOKEN_PRIVATE_KEY"`
	TTL        time.Duration `env:"STUDY_COMMONS_TOKEN_TTL"         envDefault:"15m"`
}

// Config defines how access tokens are minted and verified.
type Config struct {
	Issuer     string
	Audience   string
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	TTL        time.Duration
	Now        func() time.Time
}

// Claims captures validated access token claims.
type Claims struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
	IssuedAt  time.Time
	JWTID     string
}

// accessClaims is the internal claims type used for JWT signing and parsing.
type accessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// LoadConfigFromEnv reads access token configuration. The private key is an
// ed25519 seed or full private key, base64-encoded.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse token env: %w", err)
	}
	privateKey := strings.TrimSpace(raw.PrivateKey)
	if privateKey == "" {
		return Config{}, fmt.Errorf("STUDY_COMMONS_TOKEN_PRIVATE_KEY is required")
	}
	keyBytes, err := decodeBase64(privateKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode token private key: %w", err)
	}
	var priv ed25519.PrivateKey
	switch len(keyBytes) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(keyBytes)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(keyBytes)
	default:
		return Config{}, fmt.Errorf("token private key must be %d or %d bytes", ed25519.SeedSize, ed25519.PrivateKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Issuer:     strings.TrimSpace(raw.Issuer),
		Audience:   strings.TrimSpace(raw.Audience),
		PrivateKey: priv,
		PublicKey:  priv.Public().(ed25519.PublicKey),
		TTL:        raw.TTL,
		Now:        now,
	}, nil
}

// Mint signs a new access token for the given user.
func (cfg Config) Mint(userID, role string) (string, time.Time, error) {
	if len(cfg.PrivateKey) != ed25519.PrivateKeySize {
		return "", time.Time{}, errors.New("token signer is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, errors.New("user id is required")
	}
	now := cfg.now().UTC()
	jti, err := id.NewID()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token id: %w", err)
	}
	expiresAt := now.Add(cfg.ttl())
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(cfg.PrivateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates an access token.
func (cfg Config) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "access token is required")
	}
	if len(cfg.PublicKey) != ed25519.PublicKeySize {
		return Claims{}, errors.New("token verifier is not configured")
	}

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return cfg.PublicKey, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "access token issuer mismatch")
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "access token audience mismatch")
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "access token subject is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "access token exp is required")
	}

	now := cfg.now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeSessionExpired, "access token is expired")
	}

	claims := Claims{
		UserID:    parsed.Subject,
		Role:      parsed.Role,
		ExpiresAt: exp,
		JWTID:     parsed.ID,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

func (cfg Config) now() time.Time {
	if cfg.Now != nil {
		return cfg.Now()
	}
	return time.Now()
}

func (cfg Config) ttl() time.Duration {
	if cfg.TTL > 0 {
		return cfg.TTL
	}
	return 15 * time.Minute
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeTokenInvalid, "access token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeTokenInvalid, "access token alg is invalid")
	}
	return apperrors.New(apperrors.CodeTokenInvalid, "access token is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
