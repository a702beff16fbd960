package intasend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lotusbook/payments-backend/pkg/config"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
	"github.com/lotusbook/payments-backend/pkg/metrics"
)

const (
	sandboxBaseURL = "https://sandbox.intasend.com"
	liveBaseURL    = "https://payment.intasend.com"

	responseBodyReadLimit int64 = 4096
	defaultTimeout              = 20 * time.Second
)

var errSecretKeyRequired = errors.New("intasend secret key is required")

// Client talks to the IntaSend REST API with the account secret key.
type Client struct {
	httpClient *http.Client
	baseURL    string
	publicKey  string
	secretKey  string
	timeout    time.Duration
	metrics    *metrics.ReconciliationMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the environment base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithMetrics records call latency per operation.
func WithMetrics(m *metrics.ReconciliationMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a client for the sandbox or live environment selected by cfg.TestMode.
func NewClient(cfg config.IntaSendConfig, opts ...Option) (*Client, error) {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errSecretKeyRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := liveBaseURL
	if cfg.TestMode {
		base = sandboxBaseURL
	}
	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		publicKey:  strings.TrimSpace(cfg.PublicKey),
		secretKey:  secret,
		timeout:    timeout,
	}
	WithBaseURL(cfg.BaseURL)(client)
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Timeout is the per-call deadline callers should apply around gateway requests.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// STKPush asks the customer's handset to authorize an M-Pesa charge.
func (c *Client) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	if req.PublicKey == "" {
		req.PublicKey = c.publicKey
	}
	var resp STKPushResponse
	if err := c.do(ctx, "stk_push", http.MethodPost, "/api/v1/payment/mpesa-stk-push/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InitiatePayout submits a send-money batch. The returned status may require ApprovePayout.
func (c *Client) InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutResponse, error) {
	var resp PayoutResponse
	raw, err := c.doRaw(ctx, "payout_initiate", http.MethodPost, "/api/v1/send-money/initiate/", req)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode payout initiate response")
	}
	resp.Raw = raw
	return &resp, nil
}

// ApprovePayout confirms a batch previously returned with StatusPreviewAndApprove.
// The gateway expects the initiate response echoed back unchanged.
func (c *Client) ApprovePayout(ctx context.Context, initiated *PayoutResponse) (*PayoutResponse, error) {
	if initiated == nil || initiated.TrackingID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking id is required for approval")
	}
	var body any = initiated
	if len(initiated.Raw) > 0 {
		body = initiated.Raw
	}
	raw, err := c.doRaw(ctx, "payout_approve", http.MethodPost, "/api/v1/send-money/approve/", body)
	if err != nil {
		return nil, err
	}
	var resp PayoutResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode payout approve response")
	}
	resp.Raw = raw
	return &resp, nil
}

// IntraTransfer moves funds between two wallets held under the same account.
func (c *Client) IntraTransfer(ctx context.Context, req IntraTransferRequest) (*IntraTransferResponse, error) {
	source := strings.TrimSpace(req.SourceWalletID)
	if source == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source wallet id is required")
	}
	path := fmt.Sprintf("/api/v1/wallets/%s/intra_transfer/", url.PathEscape(source))
	var resp IntraTransferResponse
	if err := c.do(ctx, "intra_transfer", http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateWallet provisions a new sub-wallet.
func (c *Client) CreateWallet(ctx context.Context, req CreateWalletRequest) (*Wallet, error) {
	var resp Wallet
	if err := c.do(ctx, "wallet_create", http.MethodPost, "/api/v1/wallets/", req, &resp); err != nil {
		return nil, err
	}
	if resp.WalletID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "wallet create returned no wallet id")
	}
	return &resp, nil
}

// WalletDetails fetches the gateway-side balances of a wallet.
func (c *Client) WalletDetails(ctx context.Context, walletID string) (*Wallet, error) {
	trimmed := strings.TrimSpace(walletID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	var resp Wallet
	path := fmt.Sprintf("/api/v1/wallets/%s/", url.PathEscape(trimmed))
	if err := c.do(ctx, "wallet_details", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	raw, err := c.doRaw(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("decode %s response", op))
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, op, method, path string, body any) (raw []byte, err error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "intasend client not configured")
	}
	start := time.Now()
	defer func() {
		c.metrics.ObserveGateway(op, time.Since(start).Seconds(), err)
	}()

	var reader io.Reader
	if body != nil {
		var payload []byte
		if rawBody, ok := body.(json.RawMessage); ok {
			payload = rawBody
		} else {
			payload, err = json.Marshal(body)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("marshal %s request", op))
			}
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("build %s request", op))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("execute %s request", op))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: extractDetail(msg)}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, apiErr, fmt.Sprintf("%s request failed", op))
	}

	raw, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("read %s response", op))
	}
	return raw, nil
}

func (c *Client) buildURL(path string) string {
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("intasend status %d", e.StatusCode)
	}
	return fmt.Sprintf("intasend status %d: %s", e.StatusCode, e.Detail)
}

// UpstreamStatus exposes the gateway HTTP status to error dumps.
func (e *APIError) UpstreamStatus() int {
	return e.StatusCode
}

func extractDetail(body []byte) string {
	var parsed struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Errors  []struct {
			Detail string `json:"detail"`
		} `json:"errors"`
		Invoice struct {
			FailedReason string `json:"failed_reason"`
		} `json:"invoice"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Detail != "":
			return parsed.Detail
		case len(parsed.Errors) > 0 && parsed.Errors[0].Detail != "":
			return parsed.Errors[0].Detail
		case parsed.Invoice.FailedReason != "":
			return parsed.Invoice.FailedReason
		case parsed.Message != "":
			return parsed.Message
		}
	}
	return strings.TrimSpace(string(body))
}
