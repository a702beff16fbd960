package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgAuth "github.com/lotusbook/payments-backend/pkg/auth"
)

type contextKey string

const ctxClaims contextKey = "access_claims"

// WithClaims stores verified token claims on the context.
func WithClaims(ctx context.Context, claims *pkgAuth.AccessTokenClaims) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxClaims, claims)
}

// ClaimsFromContext returns the caller's claims, or nil on unauthenticated routes.
func ClaimsFromContext(ctx context.Context) *pkgAuth.AccessTokenClaims {
	if ctx == nil {
		return nil
	}
	claims, _ := ctx.Value(ctxClaims).(*pkgAuth.AccessTokenClaims)
	return claims
}

func UserIDFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.UserID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return string(claims.Role)
	}
	return ""
}

// BusinessIDFromContext returns the business bound to the token, if any.
func BusinessIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims := ClaimsFromContext(ctx)
	if claims == nil || claims.BusinessID == nil {
		return uuid.Nil, false
	}
	return *claims.BusinessID, true
}
