package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lotusbook/payments-backend/api/middleware"
	"github.com/lotusbook/payments-backend/pkg/auth"
	"github.com/lotusbook/payments-backend/pkg/enums"
)

func claimsFor(role enums.MemberRole, businessID *uuid.UUID) *auth.AccessTokenClaims {
	return &auth.AccessTokenClaims{UserID: uuid.New(), BusinessID: businessID, Role: role}
}

func newRequest(method, target, body string, claims *auth.AccessTokenClaims, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := req.Context()
	if claims != nil {
		ctx = middleware.WithClaims(ctx, claims)
	}
	if len(params) > 0 {
		routeCtx := chi.NewRouteContext()
		for k, v := range params {
			routeCtx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	}
	return req.WithContext(ctx)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeEnvelope(t, rec)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %s", rec.Body.String())
	code, _ := errBody["code"].(string)
	return code
}
