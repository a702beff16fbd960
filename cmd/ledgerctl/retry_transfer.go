package main

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/lotusbook/payments-backend/internal/bookings"
	"github.com/lotusbook/payments-backend/internal/disbursement"
	"github.com/lotusbook/payments-backend/internal/ledger"
	"github.com/lotusbook/payments-backend/pkg/enums"
	"github.com/lotusbook/payments-backend/pkg/outbox"
)

type retryView struct {
	Reference  string               `json:"reference" yaml:"reference"`
	Status     enums.TransferStatus `json:"status" yaml:"status"`
	Reason     string               `json:"reason,omitempty" yaml:"reason,omitempty"`
	NetAmount  decimal.Decimal      `json:"net_amount" yaml:"net_amount"`
	Balance    decimal.Decimal      `json:"balance" yaml:"balance"`
	TrackingID string               `json:"tracking_id,omitempty" yaml:"tracking_id,omitempty"`
}

func retryTransferCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-transfer [reference]",
		Short: "Re-issue the internal transfer for a paid booking, crediting the ledger only if it never was",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.disbursementService()
			if err != nil {
				return err
			}
			outcome, err := svc.RetryTransfer(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			view := retryView{
				Reference:  args[0],
				Status:     outcome.Status,
				Reason:     outcome.Reason,
				NetAmount:  outcome.NetAmount,
				Balance:    outcome.Balance,
				TrackingID: outcome.TrackingID,
			}
			tbl := table{header: []string{"REFERENCE", "STATUS", "NET", "TRACKING", "REASON"}}
			reason := view.Reason
			if reason == "" {
				reason = "-"
			}
			tracking := view.TrackingID
			if tracking == "" {
				tracking = "-"
			}
			tbl.add(view.Reference, string(view.Status), view.NetAmount.StringFixed(2), tracking, reason)
			return render(a.out, a.format, view, tbl)
		},
	}
}

func (a *app) disbursementService() (*disbursement.Service, error) {
	gateway, err := a.gatewayClient()
	if err != nil {
		return nil, err
	}
	walletRepo := ledger.NewRepository(a.db.DB())
	guard, err := ledger.NewGuard(ledger.GuardParams{DB: a.db, Repository: walletRepo, Logger: a.logg})
	if err != nil {
		return nil, err
	}
	return disbursement.NewService(disbursement.ServiceParams{
		Wallets:  walletRepo,
		Bookings: bookings.NewRepository(a.db.DB()),
		Guard:    guard,
		Gateway:  gateway,
		DB:       a.db,
		Outbox:   outbox.NewService(outbox.NewRepository(a.db.DB()), a.logg),
		Logger:   a.logg,
		Payout:   a.cfg.Payout,
		IntaSend: a.cfg.IntaSend,
	})
}
