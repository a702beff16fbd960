package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lotusbook/payments-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID     uuid.UUID
	BusinessID *uuid.UUID
	Role       enums.MemberRole
	JTI        string
}

// AccessTokenClaims represents the typed JWT presented by callers.
type AccessTokenClaims struct {
	UserID     uuid.UUID        `json:"user_id"`
	BusinessID *uuid.UUID       `json:"business_id,omitempty"`
	Role       enums.MemberRole `json:"role"`
	jwt.RegisteredClaims
}

// CanActFor reports whether the claims may read businessID's wallet.
func (c AccessTokenClaims) CanActFor(businessID uuid.UUID) bool {
	if c.Role == enums.MemberRoleOperator {
		return true
	}
	return c.BusinessID != nil && *c.BusinessID == businessID
}

// CanMoveMoneyFor reports whether the claims may initiate payouts for businessID.
func (c AccessTokenClaims) CanMoveMoneyFor(businessID uuid.UUID) bool {
	return c.Role == enums.MemberRoleOwner && c.BusinessID != nil && *c.BusinessID == businessID
}
