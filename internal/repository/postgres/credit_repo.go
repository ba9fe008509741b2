package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"convertflow/internal/domain"
	"convertflow/internal/port"
)

type creditRepo struct {
	db *sqlx.DB
}

// NewCreditRepo creates a new PostgreSQL-backed CreditRepository.
func NewCreditRepo(db *sqlx.DB) port.CreditRepository {
	return &creditRepo{db: db}
}

// balanceRow keeps credits nullable so a NULL balance is detected, not read as zero.
type balanceRow struct {
	UserID      string          `db:"user_id"`
	Credits     sql.NullFloat64 `db:"credits"`
	TotalEarned float64         `db:"total_earned"`
	TotalUsed   float64         `db:"total_used"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

const ensureBalanceSQL = `INSERT INTO credit_balances (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`

const selectBalanceSQL = `SELECT user_id, credits, total_earned, total_used, created_at, updated_at
	FROM credit_balances WHERE user_id = $1`

func (r *creditRepo) GetOrCreate(ctx context.Context, userID string) (*domain.CreditBalance, error) {
	if _, err := r.db.ExecContext(ctx, ensureBalanceSQL, userID); err != nil {
		return nil, storeErr("creditRepo.GetOrCreate insert", err)
	}

	var row balanceRow
	if err := r.db.GetContext(ctx, &row, selectBalanceSQL, userID); err != nil {
		return nil, storeErr("creditRepo.GetOrCreate", err)
	}
	if !row.Credits.Valid {
		return nil, &domain.InconsistentLedgerError{UserID: userID, Detail: "credits is NULL on an existing balance"}
	}
	return &domain.CreditBalance{
		UserID:      row.UserID,
		Credits:     row.Credits.Float64,
		TotalEarned: row.TotalEarned,
		TotalUsed:   row.TotalUsed,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

// Deduct decrements the balance only if it covers amount. The check and the
// write are one conditional UPDATE, so concurrent deductions serialize on the
// row lock and each re-evaluates the condition against the committed balance.
func (r *creditRepo) Deduct(ctx context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditTransaction, error) {
	return r.mutate(ctx, "creditRepo.Deduct", userID, amount, reason, meta, domain.TransactionDeduct, `
		UPDATE credit_balances
		SET credits = credits - $1,
			total_used = total_used + $1,
			updated_at = NOW()
		WHERE user_id = $2 AND credits >= $1
		RETURNING credits + $1 AS balance_before, credits AS balance_after`)
}

func (r *creditRepo) Add(ctx context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditTransaction, error) {
	return r.mutate(ctx, "creditRepo.Add", userID, amount, reason, meta, domain.TransactionAdd, `
		UPDATE credit_balances
		SET credits = credits + $1,
			total_earned = total_earned + $1,
			updated_at = NOW()
		WHERE user_id = $2 AND credits IS NOT NULL
		RETURNING credits - $1 AS balance_before, credits AS balance_after`)
}

func (r *creditRepo) mutate(ctx context.Context, op, userID string, amount float64, reason string,
	meta domain.TransactionMetadata, typ domain.TransactionType, updateSQL string) (*domain.CreditTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storeErr(op+" begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, ensureBalanceSQL, userID); err != nil {
		return nil, storeErr(op+" ensure", err)
	}

	var bal struct {
		Before float64 `db:"balance_before"`
		After  float64 `db:"balance_after"`
	}
	err = tx.GetContext(ctx, &bal, updateSQL, amount, userID)
	if isNoRows(err) {
		return nil, r.explainNoUpdate(ctx, tx, op, userID, amount)
	}
	if err != nil {
		return nil, storeErr(op, err)
	}

	now := time.Now().UTC()
	txn := &domain.CreditTransaction{
		ID:            domain.NewTransactionID(userID, now),
		UserID:        userID,
		Type:          typ,
		Amount:        amount,
		Reason:        reason,
		BalanceBefore: bal.Before,
		BalanceAfter:  bal.After,
		Metadata:      meta,
		CreatedAt:     now,
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO credit_transactions
			(id, user_id, type, amount, reason, balance_before, balance_after, metadata, created_at)
		VALUES
			(:id, :user_id, :type, :amount, :reason, :balance_before, :balance_after, :metadata, :created_at)`, txn)
	if err != nil {
		return nil, storeErr(op+" ledger insert", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr(op+" commit", err)
	}
	return txn, nil
}

// explainNoUpdate tells an insufficient balance apart from a NULL one.
func (r *creditRepo) explainNoUpdate(ctx context.Context, tx *sqlx.Tx, op, userID string, amount float64) error {
	var credits sql.NullFloat64
	if err := tx.GetContext(ctx, &credits, `SELECT credits FROM credit_balances WHERE user_id = $1`, userID); err != nil {
		return storeErr(op+" recheck", err)
	}
	if !credits.Valid {
		return &domain.InconsistentLedgerError{UserID: userID, Detail: "credits is NULL on an existing balance"}
	}
	return &domain.InsufficientCreditsError{Required: amount, Available: credits.Float64}
}

func (r *creditRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	var txns []domain.CreditTransaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT id, user_id, type, amount, reason, balance_before, balance_after, metadata, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, storeErr("creditRepo.ListTransactions", err)
	}
	if txns == nil {
		txns = []domain.CreditTransaction{}
	}
	return txns, nil
}

