package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convertflow/internal/domain"
	"convertflow/internal/port"
	"convertflow/internal/repository/postgres"
)

var (
	ensureBalanceQuery = regexp.QuoteMeta("INSERT INTO credit_balances (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING")
	selectBalanceQuery = regexp.QuoteMeta("FROM credit_balances WHERE user_id = $1")
	deductQuery        = regexp.QuoteMeta("UPDATE credit_balances") + ".*" + regexp.QuoteMeta("WHERE user_id = $2 AND credits >= $1")
	addQuery           = regexp.QuoteMeta("UPDATE credit_balances") + ".*" + regexp.QuoteMeta("WHERE user_id = $2 AND credits IS NOT NULL")
	recheckQuery       = regexp.QuoteMeta("SELECT credits FROM credit_balances WHERE user_id = $1")
	ledgerInsertQuery  = regexp.QuoteMeta("INSERT INTO credit_transactions")
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "pgx"), mock
}

func newCreditRepo(t *testing.T) (port.CreditRepository, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	return postgres.NewCreditRepo(db), mock
}

func balanceColumns() []string {
	return []string{"user_id", "credits", "total_earned", "total_used", "created_at", "updated_at"}
}

func TestCreditRepo_GetOrCreate(t *testing.T) {
	repo, mock := newCreditRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(ensureBalanceQuery).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(selectBalanceQuery).WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(balanceColumns()).AddRow("user-1", 42.0, 100.0, 58.0, now, now))

	bal, err := repo.GetOrCreate(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, 42.0, bal.Credits)
	assert.Equal(t, 100.0, bal.TotalEarned)
	assert.Equal(t, 58.0, bal.TotalUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRepo_GetOrCreate_NullCredits(t *testing.T) {
	repo, mock := newCreditRepo(t)
	now := time.Now()

	mock.ExpectExec(ensureBalanceQuery).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectBalanceQuery).WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(balanceColumns()).AddRow("user-1", nil, 0.0, 0.0, now, now))

	_, err := repo.GetOrCreate(context.Background(), "user-1")

	var inconsistent *domain.InconsistentLedgerError
	require.True(t, errors.As(err, &inconsistent))
	assert.Equal(t, "user-1", inconsistent.UserID)
	assert.ErrorIs(t, err, domain.ErrInconsistentLedgerRecord)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRepo_GetOrCreate_DriverError(t *testing.T) {
	repo, mock := newCreditRepo(t)
	driverErr := errors.New("connection refused")

	mock.ExpectExec(ensureBalanceQuery).WithArgs("user-1").WillReturnError(driverErr)

	_, err := repo.GetOrCreate(context.Background(), "user-1")

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, driverErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRepo_Deduct_SingleConditionalUpdateInTransaction(t *testing.T) {
	repo, mock := newCreditRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(ensureBalanceQuery).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(deductQuery).WithArgs(10.0, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance_before", "balance_after"}).AddRow(25.0, 15.0))
	mock.ExpectExec(ledgerInsertQuery).
		WithArgs(sqlmock.AnyArg(), "user-1", string(domain.TransactionDeduct), 10.0, "conversion of a.pdf",
			25.0, 15.0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txn, err := repo.Deduct(context.Background(), "user-1", 10, "conversion of a.pdf",
		domain.TransactionMetadata{ConversionID: "conv-1", Engine: domain.EngineDocAI, Pages: 2})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionDeduct, txn.Type)
	assert.Equal(t, 25.0, txn.BalanceBefore)
	assert.Equal(t, 15.0, txn.BalanceAfter)
	assert.NotEmpty(t, txn.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRepo_Deduct_InsufficientCredits(t *testing.T) {
	repo, mock := newCreditRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(ensureBalanceQuery).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(deductQuery).WithArgs(30.0, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance_before", "balance_after"}))
	mock.ExpectQuery(recheckQuery).WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(12.5))
	mock.ExpectRollback()

	_, err := repo.Deduct(context.Background(), "user-1", 30, "conversion", domain.TransactionMetadata{})

	var insufficient *domain.InsufficientCreditsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 30.0, insufficient.Required)
	assert.Equal(t, 12.5, insufficient.Available)
	assert.Equal(t, 17.5, insufficient.Shortfall())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRepo_Deduct_NullBalance(t *testing.T) {
	repo, mock := newCreditRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(ensureBalanceQuery).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(deductQuery).WithArgs(5.0, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance_before", "balance_after"}))
	mock.ExpectQuery(recheckQuery).WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(nil))
	mock.ExpectRollback()

	_, err := repo.Deduct(context.Background(), "user-1", 5, "conversion", domain.TransactionMetadata{})

	assert.ErrorIs(t, err, domain.ErrInconsistentLedgerRecord)
	assert.NotErrorIs(t, err, domain.ErrInsufficientCredits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRepo_Deduct_DriverErrorRollsBack(t *testing.T) {
	repo, mock := newCreditRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(ensureBalanceQuery).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(deductQuery).WithArgs(5.0, "user-1").WillReturnError(errors.New("server closed the connection"))
	mock.ExpectRollback()

	_, err := repo.Deduct(context.Background(), "user-1", 5, "conversion", domain.TransactionMetadata{})

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRepo_Deduct_BeginFails(t *testing.T) {
	repo, mock := newCreditRepo(t)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := repo.Deduct(context.Background(), "user-1", 5, "conversion", domain.TransactionMetadata{})

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRepo_Add_NullBalance(t *testing.T) {
	repo, mock := newCreditRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(ensureBalanceQuery).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(addQuery).WithArgs(50.0, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance_before", "balance_after"}))
	mock.ExpectQuery(recheckQuery).WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(nil))
	mock.ExpectRollback()

	_, err := repo.Add(context.Background(), "user-1", 50, "grant", domain.TransactionMetadata{GrantedBy: "admin-1"})

	assert.ErrorIs(t, err, domain.ErrInconsistentLedgerRecord)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRepo_ListTransactions(t *testing.T) {
	repo, mock := newCreditRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM credit_transactions")).WithArgs("user-1", 20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "type", "amount", "reason", "balance_before", "balance_after", "metadata", "created_at",
		}).AddRow("txn-1", "user-1", "deduct", 15.0, "conversion", 40.0, 25.0, []byte(`{"engine":"docai","pages":3}`), now))

	txns, err := repo.ListTransactions(context.Background(), "user-1", 20)

	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TransactionDeduct, txns[0].Type)
	assert.Equal(t, domain.EngineDocAI, txns[0].Metadata.Engine)
	assert.Equal(t, 3, txns[0].Metadata.Pages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRepo_ListTransactions_EmptyIsNotNil(t *testing.T) {
	repo, mock := newCreditRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM credit_transactions")).WithArgs("user-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	txns, err := repo.ListTransactions(context.Background(), "user-1", 50)

	require.NoError(t, err)
	assert.NotNil(t, txns)
	assert.Empty(t, txns)
}
