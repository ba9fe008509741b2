package main

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"convertflow/internal/config"
	"convertflow/internal/repository/postgres"
	"convertflow/internal/service"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "creditctl",
	Short: "Inspect and adjust the credit ledger",
	Long:  "Operator tool for reading balances, granting credits and exporting ledger history directly against the database.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		l, err := config.InitLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

// creditService opens the database and returns a ledger service over it.
// The caller closes the returned DB.
func creditService() (service.CreditService, *sqlx.DB, error) {
	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return service.NewCreditService(postgres.NewCreditRepo(db), logger), db, nil
}

func main() {
	rootCmd.AddCommand(balanceCmd, grantCmd, historyCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
