package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"convertflow/internal/domain"
	"convertflow/internal/port"
)

type qaRecordRepo struct {
	db *sqlx.DB
}

// NewQARecordRepo creates a new PostgreSQL-backed QAAuditRepository.
func NewQARecordRepo(db *sqlx.DB) port.QAAuditRepository {
	return &qaRecordRepo{db: db}
}

type qaRow struct {
	ID              uuid.UUID       `db:"id"`
	DocumentName    string          `db:"document_name"`
	EngineUsed      domain.Engine   `db:"engine_used"`
	Status          domain.QAStatus `db:"status"`
	EngineChain     []byte          `db:"engine_chain"`
	ConfidenceScore float64         `db:"confidence_score"`
	BilledPages     int             `db:"billed_pages"`
	Warnings        []byte          `db:"warnings"`
	Errors          []byte          `db:"errors"`
	DeterminismHash string          `db:"determinism_hash"`
	CreatedAt       time.Time       `db:"created_at"`
}

func (r *qaRecordRepo) Create(ctx context.Context, res *domain.QAValidationResult) error {
	chain, err := json.Marshal(res.EngineChain)
	if err != nil {
		return fmt.Errorf("qaRecordRepo.Create: %w", err)
	}
	warnings, err := json.Marshal(res.Warnings)
	if err != nil {
		return fmt.Errorf("qaRecordRepo.Create: %w", err)
	}
	errs, err := json.Marshal(res.Errors)
	if err != nil {
		return fmt.Errorf("qaRecordRepo.Create: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO qa_validations
			(id, document_name, engine_used, status, engine_chain, confidence_score,
			 billed_pages, warnings, errors, determinism_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		res.ID, res.DocumentName, string(res.EngineUsed), string(res.Status), string(chain),
		res.ConfidenceScore, res.BilledPages, string(warnings), string(errs), res.DeterminismHash, res.Timestamp)
	if err != nil {
		return storeErr("qaRecordRepo.Create", err)
	}
	return nil
}

func (r *qaRecordRepo) ListRecent(ctx context.Context, limit int) ([]domain.QAValidationResult, error) {
	var rows []qaRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, document_name, engine_used, status, engine_chain, confidence_score,
			billed_pages, warnings, errors, determinism_hash, created_at
		FROM qa_validations
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, storeErr("qaRecordRepo.ListRecent", err)
	}

	out := make([]domain.QAValidationResult, 0, len(rows))
	for _, row := range rows {
		res := domain.QAValidationResult{
			ID:              row.ID,
			DocumentName:    row.DocumentName,
			EngineUsed:      row.EngineUsed,
			Status:          row.Status,
			ConfidenceScore: row.ConfidenceScore,
			BilledPages:     row.BilledPages,
			DeterminismHash: row.DeterminismHash,
			Timestamp:       row.CreatedAt,
		}
		for _, f := range []struct {
			raw []byte
			dst *[]string
		}{{row.EngineChain, &res.EngineChain}, {row.Warnings, &res.Warnings}, {row.Errors, &res.Errors}} {
			if len(f.raw) == 0 {
				*f.dst = []string{}
				continue
			}
			if err := json.Unmarshal(f.raw, f.dst); err != nil {
				return nil, fmt.Errorf("qaRecordRepo.ListRecent decode: %w", err)
			}
		}
		out = append(out, res)
	}
	return out, nil
}
