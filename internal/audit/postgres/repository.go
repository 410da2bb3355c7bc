package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brianDahlin/Star-driver/internal/audit"
)

// Repository пишет записи аудита в PostgreSQL.
// Журнал append-only: только INSERT, без чтения и обновления
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый PostgreSQL журнал аудита
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record вставляет запись аудита
func (r *Repository) Record(ctx context.Context, rec audit.Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payment_audit (
			id, provider, transaction_id, order_id, amount, currency,
			status, outcome, external_order_id, error_detail, raw_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '')::jsonb, $12)`,
		rec.ID,
		rec.Provider,
		rec.TransactionID,
		rec.OrderID,
		rec.Amount,
		rec.Currency,
		rec.Status,
		string(rec.Outcome),
		rec.ExternalOrderID,
		rec.ErrorDetail,
		string(rec.RawPayload),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	return nil
}
