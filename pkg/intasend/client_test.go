package intasend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lotusbook/payments-backend/pkg/config"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(
		config.IntaSendConfig{PublicKey: "pk_test", SecretKey: "sk_test", TestMode: true},
		WithBaseURL("http://gateway.test"),
		WithHTTPClient(&http.Client{Transport: rt}),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientSelectsEnvironment(t *testing.T) {
	if _, err := NewClient(config.IntaSendConfig{}); err == nil {
		t.Fatal("expected missing secret key to fail")
	}

	sandbox, err := NewClient(config.IntaSendConfig{SecretKey: "sk", TestMode: true})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if sandbox.baseURL != sandboxBaseURL {
		t.Fatalf("expected sandbox base url, got %q", sandbox.baseURL)
	}

	live, err := NewClient(config.IntaSendConfig{SecretKey: "sk"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if live.baseURL != liveBaseURL {
		t.Fatalf("expected live base url, got %q", live.baseURL)
	}
	if live.Timeout() != defaultTimeout {
		t.Fatalf("expected default timeout, got %v", live.Timeout())
	}

	override, err := NewClient(config.IntaSendConfig{SecretKey: "sk", BaseURL: "http://override.test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if override.baseURL != "http://override.test" {
		t.Fatalf("expected override base url, got %q", override.baseURL)
	}
}

func TestClientSTKPush(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.String() != "http://gateway.test/api/v1/payment/mpesa-stk-push/" {
			t.Fatalf("unexpected URL %q", req.URL.String())
		}
		if got := req.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		body, _ := io.ReadAll(req.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("unmarshal request: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"invoice":{"invoice_id":"INV1","state":"PENDING"}}`), nil
	})

	resp, err := client.STKPush(context.Background(), STKPushRequest{
		APIRef:      "BOOK123",
		Method:      MethodMPesa,
		Currency:    "KES",
		Amount:      decimal.RequireFromString("1000"),
		PhoneNumber: "254712345678",
	})
	if err != nil {
		t.Fatalf("stk push: %v", err)
	}
	if !resp.Accepted() {
		t.Fatalf("expected accepted response, got %+v", resp)
	}
	if captured["public_key"] != "pk_test" {
		t.Fatalf("expected public key to be filled, got %v", captured["public_key"])
	}
	if captured["api_ref"] != "BOOK123" {
		t.Fatalf("unexpected api_ref %v", captured["api_ref"])
	}
}

func TestSTKPushResponseAccepted(t *testing.T) {
	cases := []struct {
		name string
		resp *STKPushResponse
		want bool
	}{
		{name: "nil", resp: nil, want: false},
		{name: "missing invoice", resp: &STKPushResponse{Invoice: Invoice{State: StatePending}}, want: false},
		{name: "processing", resp: &STKPushResponse{Invoice: Invoice{InvoiceID: "I", State: "processing"}}, want: true},
		{name: "failed", resp: &STKPushResponse{Invoice: Invoice{InvoiceID: "I", State: StateFailed}}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.resp.Accepted(); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestClientPayoutInitiateAndApproveEchoesBody(t *testing.T) {
	initBody := `{"tracking_id":"T1","status":"Preview and approve","nonce":"n-1","transactions":[{"account":"254712345678","amount":"500"}]}`
	var approveBody string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		switch req.URL.Path {
		case "/api/v1/send-money/initiate/":
			body, _ := io.ReadAll(req.Body)
			var payload PayoutRequest
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Fatalf("unmarshal initiate: %v", err)
			}
			if payload.RequiresApproval != "NO" || payload.Provider != ProviderMPesaB2C {
				t.Fatalf("unexpected initiate payload %+v", payload)
			}
			return jsonResponse(http.StatusOK, initBody), nil
		case "/api/v1/send-money/approve/":
			body, _ := io.ReadAll(req.Body)
			approveBody = string(body)
			return jsonResponse(http.StatusOK, `{"tracking_id":"T1","status":"Queued"}`), nil
		default:
			t.Fatalf("unexpected path %q", req.URL.Path)
			return nil, nil
		}
	})

	initiated, err := client.InitiatePayout(context.Background(), PayoutRequest{
		Provider:         ProviderMPesaB2C,
		Currency:         "KES",
		RequiresApproval: "NO",
		Transactions: []PayoutTransaction{{
			Account: "254712345678",
			Amount:  decimal.NewFromInt(500),
		}},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if initiated.Status != StatusPreviewAndApprove || initiated.TrackingID != "T1" {
		t.Fatalf("unexpected initiate response %+v", initiated)
	}

	approved, err := client.ApprovePayout(context.Background(), initiated)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approveBody != initBody {
		t.Fatalf("expected approve to echo initiate body, got %s", approveBody)
	}
	if approved.Status != StatusQueued {
		t.Fatalf("unexpected approve status %q", approved.Status)
	}
}

func TestClientIntraTransfer(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/wallets/PLATFORM/intra_transfer/" {
			t.Fatalf("unexpected path %q", req.URL.Path)
		}
		body, _ := io.ReadAll(req.Body)
		if strings.Contains(string(body), "PLATFORM") {
			t.Fatalf("source wallet must not be sent in body: %s", body)
		}
		return jsonResponse(http.StatusOK, `{"tracking_id":"TR-9"}`), nil
	})

	resp, err := client.IntraTransfer(context.Background(), IntraTransferRequest{
		SourceWalletID: "PLATFORM",
		WalletID:       "BIZ-W",
		Amount:         decimal.RequireFromString("920"),
		Narrative:      "Disbursement for booking Ref: BOOK123",
	})
	if err != nil {
		t.Fatalf("intra transfer: %v", err)
	}
	if resp.TrackingID != "TR-9" {
		t.Fatalf("unexpected tracking id %q", resp.TrackingID)
	}

	if _, err := client.IntraTransfer(context.Background(), IntraTransferRequest{WalletID: "BIZ-W"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing source, got %v", err)
	}
}

func TestClientWalletCalls(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		switch {
		case req.Method == http.MethodPost && req.URL.Path == "/api/v1/wallets/":
			return jsonResponse(http.StatusOK, `{"wallet_id":"W-NEW","currency":"KES","can_disburse":true}`), nil
		case req.Method == http.MethodGet && req.URL.Path == "/api/v1/wallets/W-NEW/":
			return jsonResponse(http.StatusOK, `{"wallet_id":"W-NEW","currency":"KES","available_balance":"120.50","current_balance":130}`), nil
		default:
			t.Fatalf("unexpected request %s %s", req.Method, req.URL.Path)
			return nil, nil
		}
	})

	created, err := client.CreateWallet(context.Background(), CreateWalletRequest{
		Currency:    "KES",
		Label:       "biz-1",
		WalletType:  WalletTypeWorking,
		CanDisburse: true,
	})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if created.WalletID != "W-NEW" {
		t.Fatalf("unexpected wallet id %q", created.WalletID)
	}

	details, err := client.WalletDetails(context.Background(), "W-NEW")
	if err != nil {
		t.Fatalf("wallet details: %v", err)
	}
	if !details.AvailableBalance.Equal(decimal.RequireFromString("120.50")) {
		t.Fatalf("unexpected available balance %s", details.AvailableBalance)
	}
	if !details.CurrentBalance.Equal(decimal.NewFromInt(130)) {
		t.Fatalf("unexpected current balance %s", details.CurrentBalance)
	}
}

func TestClientNon2xxReturnsGatewayError(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"errors":[{"code":"invalid","detail":"insufficient float"}]}`), nil
	})

	_, err := client.InitiatePayout(context.Background(), PayoutRequest{Provider: ProviderMPesaB2C})
	if !pkgerrors.IsCode(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected wrapped APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Detail != "insufficient float" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestPayoutStatusHelpers(t *testing.T) {
	for _, status := range []string{StatusSuccess, StatusQueued, StatusProcessing} {
		if !IsPayoutAccepted(status) || !IsApprovalAccepted(status) {
			t.Fatalf("expected %q accepted", status)
		}
	}
	if IsPayoutAccepted(StatusConfirmingBalance) {
		t.Fatal("confirming balance is only accepted after approval")
	}
	if !IsApprovalAccepted(StatusConfirmingBalance) {
		t.Fatal("expected confirming balance accepted on approval")
	}
	if IsPayoutAccepted(StatusPreviewAndApprove) || IsApprovalAccepted(StatusFailed) {
		t.Fatal("unexpected acceptance")
	}
}
