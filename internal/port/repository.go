package port

import (
	"context"
	"time"

	"convertflow/internal/domain"
)

// CreditRepository defines the contract for credit balance persistence.
// Add and Deduct must each be a single atomic unit against the store.
type CreditRepository interface {
	GetOrCreate(ctx context.Context, userID string) (*domain.CreditBalance, error)
	Deduct(ctx context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditTransaction, error)
	Add(ctx context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditTransaction, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error)
}

// EngineUsageRepository tracks per-user daily consumption of the expensive engine.
type EngineUsageRepository interface {
	Get(ctx context.Context, userID string, day time.Time) (*domain.DailyUsage, error)
	// Reserve atomically adds one document and pages to the day's counters,
	// returning false without mutation when either cap would be exceeded.
	Reserve(ctx context.Context, userID string, day time.Time, pages, maxDocs, maxPages int) (bool, error)
}

// QAAuditRepository persists QA verdicts for later audit and replay.
type QAAuditRepository interface {
	Create(ctx context.Context, result *domain.QAValidationResult) error
	ListRecent(ctx context.Context, limit int) ([]domain.QAValidationResult, error)
}
