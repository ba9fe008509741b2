package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"convertflow/internal/domain"
)

func sampleTransactions() []domain.CreditTransaction {
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return []domain.CreditTransaction{
		{
			ID:            "txn_2",
			UserID:        "user-1",
			Type:          domain.TransactionDeduct,
			Amount:        40,
			Reason:        "conversion of report.pdf",
			BalanceBefore: 100,
			BalanceAfter:  60,
			Metadata: domain.TransactionMetadata{
				ConversionID: "c-1",
				DocumentName: "report.pdf",
				Engine:       domain.EngineDocAI,
				Pages:        8,
			},
			CreatedAt: at.Add(time.Hour),
		},
		{
			ID:            "txn_1",
			UserID:        "user-1",
			Type:          domain.TransactionAdd,
			Amount:        100,
			Reason:        "purchase",
			BalanceBefore: 0,
			BalanceAfter:  100,
			Metadata:      domain.TransactionMetadata{GrantedBy: "admin-7"},
			CreatedAt:     at,
		},
	}
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader())
	w.Flush()
	require.NoError(t, w.Error())

	row, err := csv.NewReader(&buf).Read()
	require.NoError(t, err)
	assert.Len(t, row, 12)
	assert.Equal(t, "Transaction ID", row[0])
	assert.Equal(t, "Granted By", row[11])
}

func TestWriteTransactions(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteTransactions(sampleTransactions()))
	w.Flush()
	require.NoError(t, w.Error())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	deduct := rows[1]
	assert.Equal(t, "txn_2", deduct[0])
	assert.Equal(t, "2026-03-02T10:30:00Z", deduct[1])
	assert.Equal(t, "deduct", deduct[2])
	assert.Equal(t, "40.00", deduct[3])
	assert.Equal(t, "100.00", deduct[5])
	assert.Equal(t, "60.00", deduct[6])
	assert.Equal(t, "docai", deduct[9])
	assert.Equal(t, "8", deduct[10])
	assert.Empty(t, deduct[11])

	grant := rows[2]
	assert.Equal(t, "add", grant[2])
	assert.Empty(t, grant[10])
	assert.Equal(t, "admin-7", grant[11])
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	balance := &domain.CreditBalance{UserID: "user-1", Credits: 60, TotalEarned: 100, TotalUsed: 40}
	require.NoError(t, WriteWorkbook(&buf, balance, sampleTransactions()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Statement", "Transactions"}, f.GetSheetList())

	credits, err := f.GetCellValue("Statement", "B2")
	require.NoError(t, err)
	assert.Equal(t, "60", credits)

	rows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Transaction ID", rows[0][0])
	assert.Equal(t, "txn_2", rows[1][0])
	assert.Equal(t, "40", rows[1][3])
	assert.Equal(t, "report.pdf", rows[1][8])
}

func TestWriteWorkbook_EmptyLedger(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, &domain.CreditBalance{UserID: "user-2"}, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "user-1", "user-1"},
		{"special chars", "auth0|abc/def", "auth0_abc_def"},
		{"collapse underscores", "a!!!b", "a_b"},
		{"empty", "", "statement"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.input))
		})
	}
}

func TestBuildFilename(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "credits_user-1_2026-03-02.xlsx", BuildFilename("user-1", "xlsx", now))
}
