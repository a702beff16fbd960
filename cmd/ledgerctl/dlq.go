package main

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lotusbook/payments-backend/pkg/enums"
	"github.com/lotusbook/payments-backend/pkg/outbox"
)

type dlqView struct {
	ID            uuid.UUID                  `json:"id" yaml:"id"`
	EventID       uuid.UUID                  `json:"event_id" yaml:"event_id"`
	EventType     enums.OutboxEventType      `json:"event_type" yaml:"event_type"`
	AggregateType enums.OutboxAggregateType  `json:"aggregate_type" yaml:"aggregate_type"`
	AggregateID   uuid.UUID                  `json:"aggregate_id" yaml:"aggregate_id"`
	ErrorReason   enums.OutboxDLQErrorReason `json:"error_reason" yaml:"error_reason"`
	ErrorMessage  *string                    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	AttemptCount  int                        `json:"attempt_count" yaml:"attempt_count"`
	FailedAt      time.Time                  `json:"failed_at" yaml:"failed_at"`
}

func dlqCmd(a *app) *cobra.Command {
	var (
		limit     int
		reason    string
		eventType string
		since     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "List dead-lettered outbox events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := outbox.DLQFilter{
				Reason:    enums.OutboxDLQErrorReason(reason),
				EventType: enums.OutboxEventType(eventType),
				Limit:     limit,
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			rows, err := outbox.NewDLQRepository(a.db.DB()).List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			views := make([]dlqView, 0, len(rows))
			tbl := table{header: []string{"EVENT", "TYPE", "AGGREGATE", "REASON", "ATTEMPTS", "FAILED", "MESSAGE"}}
			for _, row := range rows {
				view := dlqView{
					ID:            row.ID,
					EventID:       row.EventID,
					EventType:     row.EventType,
					AggregateType: row.AggregateType,
					AggregateID:   row.AggregateID,
					ErrorReason:   row.ErrorReason,
					ErrorMessage:  row.ErrorMessage,
					AttemptCount:  row.AttemptCount,
					FailedAt:      row.FailedAt,
				}
				views = append(views, view)
				tbl.add(
					view.EventID.String(),
					string(view.EventType),
					string(view.AggregateType)+"/"+view.AggregateID.String(),
					string(view.ErrorReason),
					strconv.Itoa(view.AttemptCount),
					view.FailedAt.UTC().Format(time.RFC3339),
					optional(view.ErrorMessage),
				)
			}
			return render(a.out, a.format, views, tbl)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum rows")
	cmd.Flags().StringVar(&reason, "reason", "", "Only show one reason (max_attempts, non_retryable, unroutable)")
	cmd.Flags().StringVar(&eventType, "event-type", "", "Only show one event type")
	cmd.Flags().DurationVar(&since, "since", 0, "Only show entries dead-lettered within this window")

	return cmd
}
