package main

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/lotusbook/payments-backend/internal/ledger"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
)

type balanceView struct {
	BusinessID       uuid.UUID       `json:"business_id" yaml:"business_id"`
	Balance          decimal.Decimal `json:"balance" yaml:"balance"`
	Currency         string          `json:"currency" yaml:"currency"`
	ExternalWalletID *string         `json:"external_wallet_id,omitempty" yaml:"external_wallet_id,omitempty"`
	CanDisburse      bool            `json:"can_disburse" yaml:"can_disburse"`
}

func balanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [businessId]",
		Short: "Show the ledger balance of a business wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			businessID, err := uuid.Parse(args[0])
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid business id")
			}
			wallet, err := ledger.NewRepository(a.db.DB()).FindWallet(cmd.Context(), businessID)
			if err != nil {
				return err
			}

			view := balanceView{
				BusinessID:       wallet.BusinessID,
				Balance:          wallet.Balance,
				Currency:         wallet.Currency,
				ExternalWalletID: wallet.ExternalWalletID,
				CanDisburse:      wallet.CanDisburse,
			}
			tbl := table{header: []string{"BUSINESS", "BALANCE", "CURRENCY", "EXTERNAL WALLET"}}
			tbl.add(view.BusinessID.String(), view.Balance.StringFixed(2), view.Currency, optional(view.ExternalWalletID))
			return render(a.out, a.format, view, tbl)
		},
	}
}
