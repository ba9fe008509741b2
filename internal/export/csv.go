// Package export writes a user's credit ledger as a downloadable statement.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"convertflow/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the statement header row.
var columns = []string{
	"Transaction ID",
	"Timestamp",
	"Type",
	"Amount",
	"Reason",
	"Balance Before",
	"Balance After",
	"Conversion ID",
	"Document Name",
	"Engine",
	"Pages",
	"Granted By",
}

// Writer wraps csv.Writer for exporting ledger entries as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteTransactions converts a batch of ledger entries to CSV rows and writes them.
func (w *Writer) WriteTransactions(txns []domain.CreditTransaction) error {
	for i := range txns {
		if err := w.csv.Write(transactionToRow(&txns[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// transactionToRow flattens one ledger entry. Metadata columns are left
// empty when the entry carries no metadata.
func transactionToRow(t *domain.CreditTransaction) []string {
	row := make([]string, len(columns))
	row[0] = t.ID
	row[1] = t.CreatedAt.UTC().Format(time.RFC3339)
	row[2] = string(t.Type)
	row[3] = formatCredits(t.Amount)
	row[4] = t.Reason
	row[5] = formatCredits(t.BalanceBefore)
	row[6] = formatCredits(t.BalanceAfter)
	row[7] = t.Metadata.ConversionID
	row[8] = t.Metadata.DocumentName
	row[9] = string(t.Metadata.Engine)
	if t.Metadata.Pages > 0 {
		row[10] = strconv.Itoa(t.Metadata.Pages)
	}
	row[11] = t.Metadata.GrantedBy
	return row
}

func formatCredits(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a user ID for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "statement"
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: credits_{sanitized_user}_{YYYY-MM-DD}.{ext}
func BuildFilename(userID, ext string, now time.Time) string {
	return fmt.Sprintf("credits_%s_%s.%s", SanitizeFilename(userID), now.Format("2006-01-02"), ext)
}
