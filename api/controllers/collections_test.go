package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotusbook/payments-backend/internal/collections"
	"github.com/lotusbook/payments-backend/pkg/enums"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
)

type stubCollections struct {
	last collections.Request
	err  error
}

func (s *stubCollections) Initiate(ctx context.Context, req collections.Request) (*collections.Result, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &collections.Result{AttemptID: uuid.New(), InvoiceID: "INV-9", State: "PENDING", Reference: req.Reference, Phone: "254712345678"}, nil
}

func TestInitiateCollection(t *testing.T) {
	businessID := uuid.New()
	svc := &stubCollections{}
	body := `{"amount":1000,"phone_number":"0712345678","reference":"  BK-1 ","first_name":"Jane"}`

	rec := httptest.NewRecorder()
	InitiateCollection(svc, nil)(rec, newRequest(http.MethodPost, "/api/v1/collections", body, claimsFor(enums.MemberRoleStaff, &businessID), nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "BK-1", svc.last.Reference)
	assert.Equal(t, int64(1000), svc.last.Amount.IntPart())
	data, ok := decodeEnvelope(t, rec)["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "INV-9", data["invoice_id"])
}

func TestInitiateCollectionRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"missing phone": `{"amount":1000,"reference":"BK-1"}`,
		"zero amount":   `{"amount":0,"phone_number":"0712345678","reference":"BK-1"}`,
		"unknown field": `{"amount":10,"phone_number":"0712345678","reference":"BK-1","tip":5}`,
		"not json":      `amount=10`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			InitiateCollection(&stubCollections{}, nil)(rec, newRequest(http.MethodPost, "/api/v1/collections", body, nil, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
		})
	}
}

func TestInitiateCollectionGatewayErrorHidesDetail(t *testing.T) {
	svc := &stubCollections{err: pkgerrors.New(pkgerrors.CodeGateway, "stk push rejected: bad key")}
	body := `{"amount":1000,"phone_number":"0712345678","reference":"BK-1"}`

	rec := httptest.NewRecorder()
	InitiateCollection(svc, nil)(rec, newRequest(http.MethodPost, "/api/v1/collections", body, nil, nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "bad key")
}
