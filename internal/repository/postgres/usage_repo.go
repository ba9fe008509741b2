package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"convertflow/internal/domain"
	"convertflow/internal/port"
)

type usageRepo struct {
	db *sqlx.DB
}

// NewUsageRepo creates a new PostgreSQL-backed EngineUsageRepository.
func NewUsageRepo(db *sqlx.DB) port.EngineUsageRepository {
	return &usageRepo{db: db}
}

func (r *usageRepo) Get(ctx context.Context, userID string, day time.Time) (*domain.DailyUsage, error) {
	usage := domain.DailyUsage{UserID: userID, Day: day}
	err := r.db.GetContext(ctx, &usage,
		`SELECT user_id, day, documents, pages FROM engine_usage_daily WHERE user_id = $1 AND day = $2::date`,
		userID, day)
	if err != nil && !isNoRows(err) {
		return nil, storeErr("usageRepo.Get", err)
	}
	return &usage, nil
}

// Reserve counts one document and pages against the day, in a single
// conditional upsert. Nothing is written when either cap would be exceeded.
func (r *usageRepo) Reserve(ctx context.Context, userID string, day time.Time, pages, maxDocs, maxPages int) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO engine_usage_daily (user_id, day, documents, pages)
		SELECT $1, $2::date, 1, $3::int
		WHERE 1 <= $4::int AND $3::int <= $5::int
		ON CONFLICT (user_id, day) DO UPDATE
		SET documents = engine_usage_daily.documents + 1,
			pages = engine_usage_daily.pages + EXCLUDED.pages,
			updated_at = NOW()
		WHERE engine_usage_daily.documents + 1 <= $4::int
		  AND engine_usage_daily.pages + EXCLUDED.pages <= $5::int`,
		userID, day, pages, maxDocs, maxPages)
	if err != nil {
		return false, storeErr("usageRepo.Reserve", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
