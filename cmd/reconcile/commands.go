package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ieltsprediction/payment-server/internal/model/dto"
	"github.com/ieltsprediction/payment-server/internal/pkg/cron"
)

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [payload.json]",
		Short: "Run a saved bank webhook payload through the reconciliation engine",
		Long: `Replays a webhook body exactly as the bank would deliver it.
Use "-" to read the payload from stdin. Completed orders are reported as
replayed and left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(args[0])
			if err != nil {
				return err
			}

			d, err := loadDeps()
			if err != nil {
				return err
			}

			ctx := context.Background()
			result, procErr := d.webhooks.Process(ctx, payload)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Outcome:     %s (HTTP %d)\n", result.Outcome, result.HTTPStatus(procErr))
			fmt.Fprintf(out, "Reference:   %s", result.Reference)
			if result.LowConfidence {
				fmt.Fprint(out, " (no prefix match, full memo used)")
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Received:    %d\n", result.Received)
			if result.Order != nil {
				fmt.Fprintf(out, "Order:       %s %s expected=%d status=%s\n",
					result.Order.ID, result.Order.OrderReference, result.Order.Amount, result.Order.Status)
			}
			if result.ExpirationDate != "" {
				fmt.Fprintf(out, "Expiration:  %s (profile updated: %v)\n", result.ExpirationDate, result.ProfileUpdated)
			}
			if result.Commission != nil {
				fmt.Fprintf(out, "Commission:  %d to affiliate %s\n", result.Commission.CommissionAmount, result.Commission.AffiliateID)
			}

			if result.Order != nil {
				effects, err := d.webhooks.Effects(ctx, result.Order.ID)
				if err == nil && len(effects) > 0 {
					fmt.Fprintln(out, "Effects:")
					for _, e := range effects {
						fmt.Fprintf(out, "  %-18s %s %s\n", e.Effect, e.CreatedAt.Format(time.RFC3339), e.Detail)
					}
				}
			}

			return procErr
		},
	}
	return cmd
}

func readPayload(path string) (*dto.BankTransferWebhook, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var payload dto.BankTransferWebhook
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid payload json: %w", err)
	}
	return &payload, nil
}

func pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List orders waiting for a bank transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}

			orders, err := d.orders.ListPending(context.Background())
			if err != nil {
				return err
			}
			if len(orders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending orders")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tREFERENCE\tUSER\tPACKAGE\tAMOUNT\tCREATED\tREFERRER")
			for _, o := range orders {
				pkg := fmt.Sprintf("%s/%dm", o.PackageKind, o.DurationMonths)
				if o.Skill != "" {
					pkg += "/" + o.Skill
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					o.ID, o.OrderReference, o.UserID, pkg, o.Amount,
					o.CreatedAt.In(d.cfg.Subscription.Location()).Format("2006-01-02 15:04"),
					o.ReferrerCode)
			}
			return w.Flush()
		},
	}
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [order-id]",
		Short: "Cancel a pending order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}

			order, err := d.orders.Cancel(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s (%s)\n", order.ID, order.OrderReference)
			return nil
		},
	}
}

func effectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "effects [order-id]",
		Short: "Show side effects already applied for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}

			effects, err := d.webhooks.Effects(context.Background(), args[0])
			if err != nil {
				return err
			}
			if len(effects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No effects recorded")
				return nil
			}
			for _, e := range effects {
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s %s\n", e.Effect, e.CreatedAt.Format(time.RFC3339), e.Detail)
			}
			return nil
		},
	}
}

func deliveriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deliveries",
		Short: "List recent bank webhook deliveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, _ := cmd.Flags().GetString("outcome")
			limit, _ := cmd.Flags().GetInt("limit")

			d, err := loadDeps()
			if err != nil {
				return err
			}

			deliveries, err := d.webhooks.RecentDeliveries(context.Background(), outcome, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tOUTCOME\tHTTP\tAMOUNT\tREFERENCE\tERROR")
			for _, dl := range deliveries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
					dl.CreatedAt.Format(time.RFC3339), dl.Outcome, dl.HTTPStatus, dl.TransferAmount,
					dl.Reference, strings.ReplaceAll(dl.ErrorMessage, "\n", " "))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringP("outcome", "o", "", "Filter by outcome (completed, replayed, rejected, deferred)")
	cmd.Flags().IntP("limit", "n", 50, "Maximum rows")

	return cmd
}

func pruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete webhook deliveries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}

			days, _ := cmd.Flags().GetInt("days")
			if days <= 0 {
				days = d.cfg.Payment.DeliveryRetentionDays
			}
			if days <= 0 {
				return fmt.Errorf("retention days must be positive")
			}

			n, err := cron.NewService(d.logRepo, days, d.cfg.Subscription.Location(), d.log).RunNow(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d deliveries older than %d days\n", n, days)
			return nil
		},
	}

	cmd.Flags().Int("days", 0, "Retention window in days (default from config)")

	return cmd
}
