package jobcosting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldline/fieldline/internal/billing"
	"github.com/fieldline/fieldline/internal/platform/db"
)

// Repository persists job costs.
type Repository interface {
	Create(ctx context.Context, c Cost) error
	Get(ctx context.Context, id uuid.UUID) (Cost, error)
	List(ctx context.Context, req ListCostsRequest) ([]Cost, int, error)
	Update(ctx context.Context, c Cost) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Entries returns the account's costs, optionally limited to one job.
	Entries(ctx context.Context, accountID uuid.UUID, jobID uuid.NullUUID) ([]billing.CostEntry, error)
}

type repository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const costColumns = `id, job_id, account_id, amount, cost_type, description, created_at, updated_at`

func scanCost(row pgx.Row) (Cost, error) {
	var c Cost
	err := row.Scan(&c.ID, &c.JobID, &c.AccountID, &c.Amount, &c.CostType, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) Create(ctx context.Context, c Cost) error {
	_, err := r.db.Exec(ctx, `INSERT INTO job_costs (`+costColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.JobID, c.AccountID, c.Amount, c.CostType, c.Description, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Cost, error) {
	c, err := scanCost(r.db.QueryRow(ctx, `SELECT `+costColumns+` FROM job_costs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Cost{}, ErrCostNotFound
	}
	return c, err
}

func (r *repository) List(ctx context.Context, req ListCostsRequest) ([]Cost, int, error) {
	conditions := []string{"account_id = $1"}
	args := []any{req.AccountID}
	argPos := 2

	if req.JobID.Valid {
		conditions = append(conditions, fmt.Sprintf("job_id = $%d", argPos))
		args = append(args, req.JobID.UUID)
		argPos++
	}
	if req.CostType != "" {
		conditions = append(conditions, fmt.Sprintf("cost_type = $%d", argPos))
		args = append(args, billing.NormalizeCostType(req.CostType))
		argPos++
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM job_costs "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM job_costs %s
ORDER BY created_at DESC, id
LIMIT $%d OFFSET $%d`, costColumns, where, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Cost
	for rows.Next() {
		c, err := scanCost(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Update(ctx context.Context, c Cost) error {
	tag, err := r.db.Exec(ctx, `UPDATE job_costs
SET amount = $2, cost_type = $3, description = $4, updated_at = $5
WHERE id = $1`, c.ID, c.Amount, c.CostType, c.Description, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCostNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM job_costs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCostNotFound
	}
	return nil
}

func (r *repository) Entries(ctx context.Context, accountID uuid.UUID, jobID uuid.NullUUID) ([]billing.CostEntry, error) {
	query := `SELECT job_id, cost_type, amount FROM job_costs WHERE account_id = $1`
	args := []any{accountID}
	if jobID.Valid {
		query += ` AND job_id = $2`
		args = append(args, jobID.UUID)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.CostEntry
	for rows.Next() {
		var (
			job uuid.UUID
			e   billing.CostEntry
		)
		if err := rows.Scan(&job, &e.Type, &e.Amount); err != nil {
			return nil, err
		}
		e.JobID = job.String()
		out = append(out, e)
	}
	return out, rows.Err()
}
