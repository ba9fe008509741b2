package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"convertflow/internal/domain"
)

var grantCmd = &cobra.Command{
	Use:   "grant <user-id> <amount>",
	Short: "Add credits to a user",
	Long:  "Adds credits to a user's balance and records an add entry in the ledger, attributed to --by.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("grant: amount %q is not a number", args[1])
		}
		reason, _ := cmd.Flags().GetString("reason")
		by, _ := cmd.Flags().GetString("by")
		if reason == "" {
			return errors.New("grant: --reason is required")
		}

		svc, db, err := creditService()
		if err != nil {
			return err
		}
		defer db.Close()

		mutation, err := svc.Add(ctx, args[0], amount, reason, domain.TransactionMetadata{GrantedBy: by})
		if err != nil {
			return fmt.Errorf("grant: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "granted %.2f credits to %s, balance now %.2f (%s)\n",
			amount, args[0], mutation.CreditsRemaining, mutation.Transaction.ID)
		return nil
	},
}

func init() {
	grantCmd.Flags().String("reason", "", "ledger reason, e.g. a purchase reference")
	grantCmd.Flags().String("by", "creditctl", "operator recorded as the grantor")
}
