package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lotusbook/payments-backend/pkg/config"
	"github.com/lotusbook/payments-backend/pkg/enums"
)

func testConfig(minutes int) config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "lotus", ExpirationMinutes: minutes}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testConfig(30)
	now := time.Now().UTC()
	userID := uuid.New()
	businessID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID:     userID,
		BusinessID: &businessID,
		Role:       enums.MemberRoleOwner,
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
	if claims.BusinessID == nil || *claims.BusinessID != businessID {
		t.Fatalf("business id not preserved")
	}
	if claims.Role != enums.MemberRoleOwner {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected a jti")
	}

	exp := now.Add(30 * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v", exp, claims.ExpiresAt.UTC())
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testConfig(10)
	businessID := uuid.New()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), BusinessID: &businessID, Role: enums.MemberRoleStaff})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
	other := cfg
	other.Secret = "rotated"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected error with a different secret")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testConfig(15)
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.MemberRoleOperator})
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

func TestMintAccessTokenRejectsBadPayloads(t *testing.T) {
	cfg := testConfig(5)
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New()}); err == nil {
		t.Fatal("expected invalid role error")
	}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.MemberRoleOwner}); err == nil {
		t.Fatal("expected owner without business to be rejected")
	}
}

func TestClaimsPermissions(t *testing.T) {
	mine := uuid.New()
	theirs := uuid.New()

	owner := AccessTokenClaims{BusinessID: &mine, Role: enums.MemberRoleOwner}
	staff := AccessTokenClaims{BusinessID: &mine, Role: enums.MemberRoleStaff}
	operator := AccessTokenClaims{Role: enums.MemberRoleOperator}

	if !owner.CanActFor(mine) || owner.CanActFor(theirs) {
		t.Fatal("owner should only read its own business")
	}
	if !owner.CanMoveMoneyFor(mine) || owner.CanMoveMoneyFor(theirs) {
		t.Fatal("owner should only pay out from its own business")
	}
	if !staff.CanActFor(mine) || staff.CanMoveMoneyFor(mine) {
		t.Fatal("staff reads but never pays out")
	}
	if !operator.CanActFor(theirs) || operator.CanMoveMoneyFor(theirs) {
		t.Fatal("operator reads any business but never pays out")
	}
}
