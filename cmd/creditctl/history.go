package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"convertflow/internal/export"
)

var historyCmd = &cobra.Command{
	Use:   "history <user-id>",
	Short: "List a user's ledger entries, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		limit, _ := cmd.Flags().GetInt("limit")
		asCSV, _ := cmd.Flags().GetBool("csv")

		svc, db, err := creditService()
		if err != nil {
			return err
		}
		defer db.Close()

		txns, err := svc.History(ctx, args[0], limit)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}

		out := cmd.OutOrStdout()
		if asCSV {
			w := export.NewWriter(out)
			if err := w.WriteHeader(); err != nil {
				return err
			}
			if err := w.WriteTransactions(txns); err != nil {
				return err
			}
			w.Flush()
			return w.Error()
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tTYPE\tAMOUNT\tBALANCE\tREASON")
		for i := range txns {
			t := &txns[i]
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%s\n",
				t.CreatedAt.Format("2006-01-02 15:04:05"), t.Type, t.Amount, t.BalanceAfter, t.Reason)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().Int("limit", 50, "max entries (capped at 500)")
	historyCmd.Flags().Bool("csv", false, "write CSV instead of a table")
}
