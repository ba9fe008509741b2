package service_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"convertflow/internal/domain"
	"convertflow/internal/service"
	"convertflow/mocks"
)

// memCreditRepo is an in-memory CreditRepository whose Add/Deduct are atomic
// under a single lock, the same guarantee the SQL implementation gives.
type memCreditRepo struct {
	mu       sync.Mutex
	balances map[string]*domain.CreditBalance
	txns     []domain.CreditTransaction
}

func newMemCreditRepo() *memCreditRepo {
	return &memCreditRepo{balances: map[string]*domain.CreditBalance{}}
}

func (r *memCreditRepo) ensure(userID string) *domain.CreditBalance {
	b, ok := r.balances[userID]
	if !ok {
		b = &domain.CreditBalance{UserID: userID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		r.balances[userID] = b
	}
	return b
}

func (r *memCreditRepo) GetOrCreate(_ context.Context, userID string) (*domain.CreditBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := *r.ensure(userID)
	return &b, nil
}

func (r *memCreditRepo) Deduct(_ context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.ensure(userID)
	if b.Credits < amount {
		return nil, &domain.InsufficientCreditsError{Required: amount, Available: b.Credits}
	}
	before := b.Credits
	b.Credits -= amount
	b.TotalUsed += amount
	return r.record(userID, domain.TransactionDeduct, amount, reason, before, b.Credits, meta), nil
}

func (r *memCreditRepo) Add(_ context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.ensure(userID)
	before := b.Credits
	b.Credits += amount
	b.TotalEarned += amount
	return r.record(userID, domain.TransactionAdd, amount, reason, before, b.Credits, meta), nil
}

func (r *memCreditRepo) record(userID string, typ domain.TransactionType, amount float64, reason string, before, after float64, meta domain.TransactionMetadata) *domain.CreditTransaction {
	now := time.Now().UTC()
	txn := domain.CreditTransaction{
		ID:            domain.NewTransactionID(userID, now),
		UserID:        userID,
		Type:          typ,
		Amount:        amount,
		Reason:        reason,
		BalanceBefore: before,
		BalanceAfter:  after,
		Metadata:      meta,
		CreatedAt:     now.Add(time.Duration(len(r.txns))),
	}
	r.txns = append(r.txns, txn)
	return &txn
}

func (r *memCreditRepo) ListTransactions(_ context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CreditTransaction
	for _, t := range r.txns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestCreditService_LazyZeroBalance(t *testing.T) {
	svc := service.NewCreditService(newMemCreditRepo(), zap.NewNop())

	bal, err := svc.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, bal.Credits)
	assert.Equal(t, "user-1", bal.UserID)
}

func TestCreditService_AddThenDeduct(t *testing.T) {
	svc := service.NewCreditService(newMemCreditRepo(), zap.NewNop())
	ctx := context.Background()

	added, err := svc.Add(ctx, "user-1", 100, "purchase", domain.TransactionMetadata{GrantedBy: "admin"})
	require.NoError(t, err)
	assert.True(t, added.Success)
	assert.Equal(t, 100.0, added.CreditsRemaining)

	deducted, err := svc.Deduct(ctx, "user-1", 40, "conversion", domain.TransactionMetadata{Engine: domain.EngineDocAI, Pages: 8})
	require.NoError(t, err)
	assert.Equal(t, 60.0, deducted.CreditsRemaining)
	assert.Equal(t, 100.0, deducted.Transaction.BalanceBefore)
	assert.Equal(t, domain.TransactionDeduct, deducted.Transaction.Type)

	bal, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 60.0, bal.Credits)
	assert.Equal(t, 100.0, bal.TotalEarned)
	assert.Equal(t, 40.0, bal.TotalUsed)
}

func TestCreditService_DeductInsufficient(t *testing.T) {
	svc := service.NewCreditService(newMemCreditRepo(), zap.NewNop())
	ctx := context.Background()
	_, err := svc.Add(ctx, "user-1", 10, "purchase", domain.TransactionMetadata{})
	require.NoError(t, err)

	_, err = svc.Deduct(ctx, "user-1", 25, "conversion", domain.TransactionMetadata{})

	var ice *domain.InsufficientCreditsError
	require.True(t, errors.As(err, &ice))
	assert.Equal(t, 15.0, ice.Shortfall())
	assert.True(t, errors.Is(err, domain.ErrInsufficientCredits))
	assert.False(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func TestCreditService_InvalidAmounts(t *testing.T) {
	repo := new(mocks.MockCreditRepo)
	svc := service.NewCreditService(repo, zap.NewNop())
	ctx := context.Background()

	for _, amount := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := svc.Deduct(ctx, "user-1", amount, "x", domain.TransactionMetadata{})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		_, err = svc.Add(ctx, "user-1", amount, "x", domain.TransactionMetadata{})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	}
	_, err := svc.Deduct(ctx, "", 5, "x", domain.TransactionMetadata{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	repo.AssertNotCalled(t, "Deduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreditService_StoreErrorsPropagate(t *testing.T) {
	repo := new(mocks.MockCreditRepo)
	svc := service.NewCreditService(repo, zap.NewNop())
	ctx := context.Background()

	repo.On("Deduct", mock.Anything, "user-1", 5.0, "x", mock.Anything).
		Return(nil, fmt.Errorf("creditRepo.Deduct: %w", domain.ErrStoreUnavailable))
	repo.On("GetOrCreate", mock.Anything, "user-2").
		Return(nil, &domain.InconsistentLedgerError{UserID: "user-2", Detail: "credits is NULL"})

	_, err := svc.Deduct(ctx, "user-1", 5, "x", domain.TransactionMetadata{})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, domain.ErrInsufficientCredits)

	_, err = svc.GetBalance(ctx, "user-2")
	assert.ErrorIs(t, err, domain.ErrInconsistentLedgerRecord)
	repo.AssertExpectations(t)
}

func TestCreditService_HistoryNewestFirstAndClamped(t *testing.T) {
	repo := newMemCreditRepo()
	svc := service.NewCreditService(repo, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-1", 100, "first", domain.TransactionMetadata{})
	require.NoError(t, err)
	_, err = svc.Deduct(ctx, "user-1", 10, "second", domain.TransactionMetadata{})
	require.NoError(t, err)
	_, err = svc.Deduct(ctx, "user-1", 10, "third", domain.TransactionMetadata{})
	require.NoError(t, err)

	hist, err := svc.History(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "third", hist[0].Reason)
	assert.Equal(t, "second", hist[1].Reason)

	mockRepo := new(mocks.MockCreditRepo)
	mockRepo.On("ListTransactions", mock.Anything, "user-1", 500).Return([]domain.CreditTransaction{}, nil)
	_, err = service.NewCreditService(mockRepo, zap.NewNop()).History(ctx, "user-1", 10000)
	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestCreditService_ConcurrentDeductsNeverGoNegative(t *testing.T) {
	repo := newMemCreditRepo()
	svc := service.NewCreditService(repo, zap.NewNop())
	ctx := context.Background()

	const start = 100.0
	_, err := svc.Add(ctx, "user-1", start, "seed", domain.TransactionMetadata{})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded float64
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := float64(5 + i%3*5)
			res, err := svc.Deduct(ctx, "user-1", amount, "race", domain.TransactionMetadata{})
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
				return
			}
			assert.GreaterOrEqual(t, res.CreditsRemaining, 0.0)
			mu.Lock()
			succeeded += amount
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	bal, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, bal.Credits, 0.0)
	assert.LessOrEqual(t, succeeded, start)
	assert.Equal(t, start-succeeded, bal.Credits)
}
