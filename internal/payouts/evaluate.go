package payouts

import (
	"github.com/lotusbook/payments-backend/pkg/enums"
	"github.com/lotusbook/payments-backend/pkg/intasend"
)

// Decision is the next step after a gateway payout response.
type Decision string

const (
	DecisionDebit   Decision = "debit"
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// EvaluateInitial classifies the status returned by payout initiation.
func EvaluateInitial(status string) Decision {
	switch {
	case intasend.IsPayoutAccepted(status):
		return DecisionDebit
	case status == intasend.StatusPreviewAndApprove:
		return DecisionApprove
	default:
		return DecisionReject
	}
}

// EvaluateApproval classifies the status returned by the approval call.
// Approval is never retried, so there is no approve decision here.
func EvaluateApproval(status string) Decision {
	if intasend.IsApprovalAccepted(status) {
		return DecisionDebit
	}
	return DecisionReject
}

// SettledStatus is the payout status of a debited payout: completed only when the
// gateway already reports Success.
func SettledStatus(gatewayStatus string) enums.PayoutStatus {
	if gatewayStatus == intasend.StatusSuccess {
		return enums.PayoutStatusCompleted
	}
	return enums.PayoutStatusPendingConfirmation
}
