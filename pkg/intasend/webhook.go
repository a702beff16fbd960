package intasend

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-IntaSend-Signature"

// WebhookEvent is a collection status callback.
type WebhookEvent struct {
	InvoiceID      string     `json:"invoice_id"`
	State          string     `json:"state"`
	Provider       string     `json:"provider"`
	Value          FlexAmount `json:"value"`
	NetAmount      FlexAmount `json:"net_amount"`
	Currency       string     `json:"currency"`
	Account        string     `json:"account"`
	APIRef         string     `json:"api_ref"`
	MpesaReference string     `json:"mpesa_reference"`
	FailedReason   string     `json:"failed_reason"`
	FailedCode     string     `json:"failed_code"`
	Method         string     `json:"method"`
	Challenge      string     `json:"challenge"`
	CreatedAt      string     `json:"created_at"`
	UpdatedAt      string     `json:"updated_at"`
}

// NormalizedState upper-cases and trims the reported state.
func (e WebhookEvent) NormalizedState() string {
	return strings.ToUpper(strings.TrimSpace(e.State))
}

// HasRequiredFields reports whether state, api_ref and invoice_id are present.
func (e WebhookEvent) HasRequiredFields() bool {
	return strings.TrimSpace(e.State) != "" &&
		strings.TrimSpace(e.APIRef) != "" &&
		strings.TrimSpace(e.InvoiceID) != ""
}

// DeliveryKey identifies a (invoice, state) delivery for dedupe.
func (e WebhookEvent) DeliveryKey() string {
	return strings.TrimSpace(e.InvoiceID) + ":" + e.NormalizedState()
}

// ParseWebhook decodes a callback body.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var event WebhookEvent
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&event); err != nil {
		return WebhookEvent{}, err
	}
	return event, nil
}

// VerifySignature checks the hex HMAC-SHA256 of body against signature.
func VerifySignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// FlexAmount decodes amounts sent either as JSON numbers or numeric strings.
// Empty strings and null leave it unset.
type FlexAmount struct {
	Value decimal.Decimal
	Valid bool
}

func (a *FlexAmount) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` || trimmed == "" {
		*a = FlexAmount{}
		return nil
	}
	trimmed = strings.Trim(trimmed, `"`)
	value, err := decimal.NewFromString(strings.TrimSpace(trimmed))
	if err != nil {
		*a = FlexAmount{}
		return nil
	}
	*a = FlexAmount{Value: value, Valid: true}
	return nil
}

func (a FlexAmount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(`"` + a.Value.StringFixed(2) + `"`), nil
}
