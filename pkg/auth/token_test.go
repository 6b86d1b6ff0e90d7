package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testJWTConfig(minutes int) config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "fulfillment",
		ExpirationMinutes: minutes,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig(30)
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID: userID,
		Name:   " Ana Pop ",
		Role:   "picker",
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != "picker" {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Actor() != "Ana Pop" {
		t.Fatalf("unexpected actor %q", claims.Actor())
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected generated jti")
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v", exp.UTC(), claims.ExpiresAt.UTC())
	}
}

func TestActorFallsBackToUserID(t *testing.T) {
	id := uuid.New()
	claims := &AccessTokenClaims{UserID: id}
	if claims.Actor() != id.String() {
		t.Fatalf("unexpected actor %q", claims.Actor())
	}
	var nilClaims *AccessTokenClaims
	if nilClaims.Actor() != "" {
		t.Fatal("expected empty actor for nil claims")
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig(10)
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "admin"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig(15)
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: "picker"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = ParseAccessToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMintAccessTokenRequiresRoleAndUser(t *testing.T) {
	cfg := testJWTConfig(5)
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "  "}); err == nil {
		t.Fatal("expected missing role error")
	}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: "admin"}); err == nil {
		t.Fatal("expected missing user error")
	}
}

func TestParseAccessTokenTolerancesAndRequirements(t *testing.T) {
	cfg := testJWTConfig(10)
	key := []byte(cfg.Secret)
	sign := func(claims AccessTokenClaims) string {
		t.Helper()
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return raw
	}
	now := time.Now()
	registered := func(exp time.Time) jwt.RegisteredClaims {
		return jwt.RegisteredClaims{Issuer: cfg.Issuer, ExpiresAt: jwt.NewNumericDate(exp)}
	}

	// a few seconds past exp is still inside the skew window
	if _, err := ParseAccessToken(cfg, sign(AccessTokenClaims{UserID: uuid.New(), Role: "picker", RegisteredClaims: registered(now.Add(-5 * time.Second))})); err != nil {
		t.Fatalf("expected skew tolerance, got %v", err)
	}

	noExp := sign(AccessTokenClaims{UserID: uuid.New(), Role: "picker", RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer}})
	if _, err := ParseAccessToken(cfg, noExp); !errors.Is(err, jwt.ErrTokenRequiredClaimMissing) {
		t.Fatalf("expected missing exp to fail, got %v", err)
	}

	noRole := sign(AccessTokenClaims{UserID: uuid.New(), Role: " ", RegisteredClaims: registered(now.Add(time.Minute))})
	if _, err := ParseAccessToken(cfg, noRole); !errors.Is(err, ErrMissingRole) {
		t.Fatalf("expected ErrMissingRole, got %v", err)
	}

	otherIssuer := registered(now.Add(time.Minute))
	otherIssuer.Issuer = "someone-else"
	if _, err := ParseAccessToken(cfg, sign(AccessTokenClaims{UserID: uuid.New(), Role: "admin", RegisteredClaims: otherIssuer})); err == nil {
		t.Fatal("expected issuer mismatch")
	}
}

func TestParseAccessTokenRejectsNoneAlgorithm(t *testing.T) {
	cfg := testJWTConfig(10)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessTokenClaims{
		UserID:           uuid.New(),
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, raw); err == nil {
		t.Fatal("unsigned token must be rejected")
	}
}
