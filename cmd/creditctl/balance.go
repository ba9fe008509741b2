package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <user-id>",
	Short: "Show a user's credit balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, db, err := creditService()
		if err != nil {
			return err
		}
		defer db.Close()

		bal, err := svc.GetBalance(ctx, args[0])
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "user:         %s\n", bal.UserID)
		fmt.Fprintf(out, "credits:      %.2f\n", bal.Credits)
		fmt.Fprintf(out, "total earned: %.2f\n", bal.TotalEarned)
		fmt.Fprintf(out, "total used:   %.2f\n", bal.TotalUsed)
		return nil
	},
}
