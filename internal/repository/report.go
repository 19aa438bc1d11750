package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/LineReport/internal/model"
)

// ReportRepository stores incident reports in Postgres.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository constructs a repository.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Append inserts one report. Every call inserts a new row.
func (r *ReportRepository) Append(ctx context.Context, rep model.Report) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO incident_reports (id, submitted_at, operator, machine, product, order_ref, description, photo_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, uuid.New(), rep.Timestamp, rep.Operator, rep.Machine, rep.Product, rep.Order, rep.Description, rep.PhotoURL)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// List returns reports oldest first; a positive limit keeps the newest rows.
func (r *ReportRepository) List(ctx context.Context, limit int) ([]model.Report, error) {
	query, args := listQuery(limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select reports: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Report, error) {
		var rep model.Report
		err := row.Scan(&rep.Timestamp, &rep.Operator, &rep.Machine, &rep.Product, &rep.Order, &rep.Description, &rep.PhotoURL)
		return rep, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan reports: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}

// listQuery selects newest first so LIMIT keeps the most recent rows; List
// reverses the result.
func listQuery(limit int) (string, []any) {
	const base = `SELECT submitted_at, operator, machine, product, order_ref, description, photo_url
		FROM incident_reports ORDER BY seq DESC`
	if limit > 0 {
		return base + ` LIMIT $1`, []any{limit}
	}
	return base, nil
}
