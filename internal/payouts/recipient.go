package payouts

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lotusbook/payments-backend/pkg/enums"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
	"github.com/lotusbook/payments-backend/pkg/intasend"
)

// Recipient is a validated payout destination mapped onto a gateway provider.
type Recipient struct {
	Type             enums.RecipientType
	Account          string
	AccountType      string
	AccountReference string
	Provider         string
}

// Label is the human-readable rail recorded on the log entry.
func (r Recipient) Label() string {
	switch r.Type {
	case enums.RecipientTill:
		return "M-Pesa Till"
	case enums.RecipientPaybill:
		return "M-Pesa Paybill"
	default:
		return "M-Pesa Phone"
	}
}

// Transaction builds the gateway transaction line for this recipient.
func (r Recipient) Transaction(name, narrative string, amount decimal.Decimal) intasend.PayoutTransaction {
	return intasend.PayoutTransaction{
		Name:             name,
		Account:          r.Account,
		Amount:           amount,
		Narrative:        narrative,
		AccountType:      r.AccountType,
		AccountReference: r.AccountReference,
	}
}

// ResolveRecipient validates the destination for recipientType.
// Phones are normalized to 254 form; till and paybill numbers must be digits.
// accountNumber is required for paybill and rejected for every other type.
func ResolveRecipient(recipientType, recipient, accountNumber string) (Recipient, error) {
	kind, err := enums.ParseRecipientType(recipientType)
	if err != nil {
		return Recipient{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "recipient type must be phone, till or paybill")
	}
	recipient = strings.TrimSpace(recipient)
	accountNumber = strings.TrimSpace(accountNumber)

	if kind != enums.RecipientPaybill && accountNumber != "" {
		return Recipient{}, pkgerrors.New(pkgerrors.CodeValidation, "account number is only accepted for paybill recipients")
	}

	switch kind {
	case enums.RecipientPhone:
		phone, err := intasend.NormalizePhone(recipient)
		if err != nil {
			return Recipient{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recipient phone number")
		}
		return Recipient{Type: kind, Account: phone, Provider: intasend.ProviderMPesaB2C}, nil
	case enums.RecipientTill:
		if !isDigits(recipient) {
			return Recipient{}, pkgerrors.New(pkgerrors.CodeValidation, "till number must contain digits only")
		}
		return Recipient{
			Type:        kind,
			Account:     recipient,
			AccountType: intasend.AccountTypeTillNumber,
			Provider:    intasend.ProviderMPesaB2B,
		}, nil
	default:
		if !isDigits(recipient) {
			return Recipient{}, pkgerrors.New(pkgerrors.CodeValidation, "paybill number must contain digits only")
		}
		if accountNumber == "" {
			return Recipient{}, pkgerrors.New(pkgerrors.CodeValidation, "account number is required for paybill recipients")
		}
		return Recipient{
			Type:             kind,
			Account:          recipient,
			AccountType:      intasend.AccountTypePayBill,
			AccountReference: accountNumber,
			Provider:         intasend.ProviderMPesaB2B,
		}, nil
	}
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
