package intasend

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseWebhook(t *testing.T) {
	body := []byte(`{"invoice_id":"INV1","state":"complete","value":"1000.00","currency":"KES","api_ref":"BOOK123","challenge":"c-1"}`)
	event, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !event.HasRequiredFields() {
		t.Fatal("expected required fields present")
	}
	if event.NormalizedState() != StateComplete {
		t.Fatalf("unexpected state %q", event.NormalizedState())
	}
	if !event.Value.Valid || !event.Value.Value.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected value %+v", event.Value)
	}
	if event.DeliveryKey() != "INV1:COMPLETE" {
		t.Fatalf("unexpected delivery key %q", event.DeliveryKey())
	}
}

func TestParseWebhookAmountShapes(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		valid bool
		want  string
	}{
		{name: "number", body: `{"value":250.5}`, valid: true, want: "250.5"},
		{name: "string", body: `{"value":"99"}`, valid: true, want: "99"},
		{name: "empty string", body: `{"value":""}`},
		{name: "null", body: `{"value":null}`},
		{name: "garbage", body: `{"value":"abc"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseWebhook([]byte(tc.body))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if event.Value.Valid != tc.valid {
				t.Fatalf("expected valid=%v, got %+v", tc.valid, event.Value)
			}
			if tc.valid && !event.Value.Value.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, event.Value.Value)
			}
		})
	}
}

func TestParseWebhookMalformed(t *testing.T) {
	if _, err := ParseWebhook([]byte(`{"state":`)); err == nil {
		t.Fatal("expected malformed body to fail")
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"invoice_id":"INV1"}`)
	sig := Sign("whsec", body)

	if !VerifySignature("whsec", body, sig) {
		t.Fatal("expected signature to verify")
	}
	if VerifySignature("other", body, sig) {
		t.Fatal("expected wrong secret to fail")
	}
	if VerifySignature("whsec", []byte(`{"invoice_id":"INV2"}`), sig) {
		t.Fatal("expected tampered body to fail")
	}
	if VerifySignature("whsec", body, "not-hex") {
		t.Fatal("expected non-hex signature to fail")
	}
	if VerifySignature("", body, sig) {
		t.Fatal("expected empty secret to fail")
	}
}
