package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentAnalysis is the immutable classification of one uploaded document.
type DocumentAnalysis struct {
	PageCount            int          `json:"page_count"`
	FileSizeBytes        int64        `json:"file_size_bytes"`
	HasText              bool         `json:"has_text"`
	IsScanned            bool         `json:"is_scanned"`
	HasTables            bool         `json:"has_tables"`
	IsStructuredFormLike bool         `json:"is_structured_form_like"`
	TableCount           int          `json:"table_count"`
	SuggestedEngine      OutputFormat `json:"suggested_engine"`
	RequiresPremium      bool         `json:"requires_premium"`
	RoutingReason        string       `json:"routing_reason"`
	Engine               Engine       `json:"engine"`
	CreditCostPerPage    float64      `json:"credit_cost_per_page"`
	Confidence           *float64     `json:"confidence,omitempty"`
	Degraded             bool         `json:"degraded"`
}

// RoutingConfidence returns the probe confidence, or 0 when the probe gave none.
func (a *DocumentAnalysis) RoutingConfidence() float64 {
	if a.Confidence == nil {
		return 0
	}
	return *a.Confidence
}

// PageBillingInfo is the engine assignment and charge for a single page.
type PageBillingInfo struct {
	PageNumber int    `json:"page_number"`
	Engine     Engine `json:"engine"`
	Slab       Slab   `json:"slab"`
	Credits    int    `json:"credits"`
}

// EngineSummary aggregates billed pages for one engine.
type EngineSummary struct {
	PageCount  int          `json:"page_count"`
	SlabCounts map[Slab]int `json:"slab_counts"`
	Subtotal   int          `json:"subtotal"`
}

// BillingBreakdown is the itemized credit cost of one document.
type BillingBreakdown struct {
	TotalCredits     int                      `json:"total_credits"`
	Pages            []PageBillingInfo        `json:"pages"`
	PerEngineSummary map[Engine]EngineSummary `json:"per_engine_summary"`
}

// CreditBalance is a user's current credit position.
type CreditBalance struct {
	UserID      string    `db:"user_id" json:"user_id"`
	Credits     float64   `db:"credits" json:"credits"`
	TotalEarned float64   `db:"total_earned" json:"total_earned"`
	TotalUsed   float64   `db:"total_used" json:"total_used"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TransactionMetadata is the typed context attached to a ledger entry.
type TransactionMetadata struct {
	ConversionID string `json:"conversion_id,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
	Engine       Engine `json:"engine,omitempty"`
	Pages        int    `json:"pages,omitempty"`
	GrantedBy    string `json:"granted_by,omitempty"`
}

// Value implements driver.Valuer for JSONB storage.
func (m TransactionMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB storage.
func (m *TransactionMetadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = TransactionMetadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("TransactionMetadata.Scan: unsupported type %T", src)
	}
}

// CreditTransaction is an append-only ledger entry.
type CreditTransaction struct {
	ID            string              `db:"id" json:"id"`
	UserID        string              `db:"user_id" json:"user_id"`
	Type          TransactionType     `db:"type" json:"type"`
	Amount        float64             `db:"amount" json:"amount"`
	Reason        string              `db:"reason" json:"reason"`
	BalanceBefore float64             `db:"balance_before" json:"balance_before"`
	BalanceAfter  float64             `db:"balance_after" json:"balance_after"`
	Metadata      TransactionMetadata `db:"metadata" json:"metadata"`
	CreatedAt     time.Time           `db:"created_at" json:"timestamp"`
}

// CreditMutation is the outcome of a successful add or deduct.
type CreditMutation struct {
	Success          bool               `json:"success"`
	CreditsRemaining float64            `json:"credits_remaining"`
	Transaction      *CreditTransaction `json:"transaction,omitempty"`
}

// GuardrailDecision is the per-request verdict on using the expensive engine.
type GuardrailDecision struct {
	Allowed bool          `json:"allowed"`
	Reason  string        `json:"reason"`
	Gate    GuardrailGate `json:"gate"`
}

// DailyUsage counts a user's expensive-engine consumption for one UTC day.
type DailyUsage struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Day       time.Time `db:"day" json:"day"`
	Documents int       `db:"documents" json:"documents"`
	Pages     int       `db:"pages" json:"pages"`
}

// QAValidationResult is the immutable verdict recorded for every conversion.
type QAValidationResult struct {
	ID              uuid.UUID `db:"id" json:"id"`
	DocumentName    string    `db:"document_name" json:"document_name"`
	EngineUsed      Engine    `db:"engine_used" json:"engine_used"`
	Status          QAStatus  `db:"status" json:"status"`
	EngineChain     []string  `db:"-" json:"engine_chain"`
	ConfidenceScore float64   `db:"confidence_score" json:"confidence_score"`
	BilledPages     int       `db:"billed_pages" json:"billed_pages"`
	Warnings        []string  `db:"-" json:"warnings"`
	Errors          []string  `db:"-" json:"errors"`
	DeterminismHash string    `db:"determinism_hash" json:"determinism_hash"`
	Timestamp       time.Time `db:"created_at" json:"timestamp"`
}

// ConversionResult is the response of one end-to-end conversion request.
type ConversionResult struct {
	ConversionID     uuid.UUID           `json:"conversion_id"`
	Tier             Tier                `json:"tier"`
	Analysis         *DocumentAnalysis   `json:"analysis"`
	Guardrail        *GuardrailDecision  `json:"guardrail,omitempty"`
	EngineRequested  Engine              `json:"engine_requested"`
	EngineUsed       Engine              `json:"engine_used"`
	EngineChain      []string            `json:"engine_chain"`
	PagesProcessed   int                 `json:"pages_processed"`
	Billing          *BillingBreakdown   `json:"billing,omitempty"`
	CreditsCharged   float64             `json:"credits_charged"`
	CreditsRemaining *float64            `json:"credits_remaining,omitempty"`
	QA               *QAValidationResult `json:"qa"`
	ArtifactKey      string              `json:"artifact_key,omitempty"`
	DownloadURL      string              `json:"download_url,omitempty"`
	Blocked          bool                `json:"blocked"`
	Notes            []string            `json:"notes,omitempty"`
}

// RenderedLayout describes one table-like block an engine produced.
type RenderedLayout struct {
	PageNumber int `json:"page_number"`
	Rows       int `json:"rows"`
	Columns    int `json:"columns"`
}

// NewTransactionID derives a ledger entry ID from the time and the user.
// The random suffix keeps IDs unique for entries created in the same nanosecond.
func NewTransactionID(userID string, at time.Time) string {
	prefix := userID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("txn_%d_%s_%s", at.UnixNano(), prefix, uuid.NewString()[:8])
}
