package service

import (
	"context"
	"math"

	"go.uber.org/zap"

	"convertflow/internal/domain"
	"convertflow/internal/port"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// CreditService is the credit ledger contract. Every mutation is a single
// atomic operation in the backing store.
type CreditService interface {
	GetBalance(ctx context.Context, userID string) (*domain.CreditBalance, error)
	Deduct(ctx context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditMutation, error)
	Add(ctx context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditMutation, error)
	History(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error)
}

type creditService struct {
	repo   port.CreditRepository
	logger *zap.Logger
}

// NewCreditService creates a new CreditService implementation.
func NewCreditService(repo port.CreditRepository, logger *zap.Logger) CreditService {
	return &creditService{repo: repo, logger: logger}
}

func (s *creditService) GetBalance(ctx context.Context, userID string) (*domain.CreditBalance, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.repo.GetOrCreate(ctx, userID)
}

func (s *creditService) Deduct(ctx context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditMutation, error) {
	if err := validateMutation(userID, amount); err != nil {
		return nil, err
	}

	txn, err := s.repo.Deduct(ctx, userID, amount, reason, meta)
	if err != nil {
		s.logger.Warn("credit deduction rejected",
			zap.String("user_id", userID),
			zap.Float64("amount", amount),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("credits deducted",
		zap.String("user_id", userID),
		zap.Float64("amount", amount),
		zap.Float64("balance_after", txn.BalanceAfter),
		zap.String("transaction_id", txn.ID),
	)
	return &domain.CreditMutation{Success: true, CreditsRemaining: txn.BalanceAfter, Transaction: txn}, nil
}

func (s *creditService) Add(ctx context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditMutation, error) {
	if err := validateMutation(userID, amount); err != nil {
		return nil, err
	}

	txn, err := s.repo.Add(ctx, userID, amount, reason, meta)
	if err != nil {
		return nil, err
	}

	s.logger.Info("credits added",
		zap.String("user_id", userID),
		zap.Float64("amount", amount),
		zap.Float64("balance_after", txn.BalanceAfter),
		zap.String("granted_by", meta.GrantedBy),
	)
	return &domain.CreditMutation{Success: true, CreditsRemaining: txn.BalanceAfter, Transaction: txn}, nil
}

// History returns the user's ledger newest first. limit is clamped to [1, 500].
func (s *creditService) History(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.ListTransactions(ctx, userID, limit)
}

func validateMutation(userID string, amount float64) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.ErrInvalidAmount
	}
	return nil
}
