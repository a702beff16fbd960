package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/lotusbook/payments-backend/internal/bookings"
)

func gapsCmd(a *app) *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "gaps",
		Short: "List paid bookings whose transfer to the business wallet never completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				olderThan = a.gapThreshold()
			}
			repo := bookings.NewRepository(a.db.DB())
			gaps, err := repo.ListTransferGaps(cmd.Context(), time.Now().Add(-olderThan), limit)
			if err != nil {
				return err
			}

			tbl := table{header: []string{"KIND", "REFERENCE", "BUSINESS", "STATUS", "AMOUNT DUE", "UPDATED", "REASON"}}
			for _, gap := range gaps {
				tbl.add(
					string(gap.Kind),
					gap.ExternalReference,
					gap.BusinessID.String(),
					string(gap.TransferStatus),
					gap.AmountDue.StringFixed(2),
					gap.UpdatedAt.UTC().Format(time.RFC3339),
					optional(gap.TransferReason),
				)
			}
			return render(a.out, a.format, gaps, tbl)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Minimum age of pending transfers (defaults to the configured gap threshold)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum rows")

	return cmd
}
