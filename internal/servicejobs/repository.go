package servicejobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldline/fieldline/internal/platform/db"
)

// Repository persists jobs.
type Repository interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, id uuid.UUID) (Job, error)
	List(ctx context.Context, req ListJobsRequest) ([]Job, int, error)
	Update(ctx context.Context, job Job) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const jobColumns = `id, account_id, customer_id, technician_id, title, description, address,
	status, scheduled_at, completed_at, created_at, updated_at`

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.AccountID, &j.CustomerID, &j.TechnicianID, &j.Title, &j.Description, &j.Address,
		&j.Status, &j.ScheduledAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

func (r *repository) Create(ctx context.Context, job Job) error {
	_, err := r.db.Exec(ctx, `INSERT INTO jobs (`+jobColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.AccountID, job.CustomerID, job.TechnicianID, job.Title, job.Description, job.Address,
		job.Status, job.ScheduledAt, job.CompletedAt, job.CreatedAt, job.UpdatedAt)
	return err
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	job, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	return job, err
}

func (r *repository) List(ctx context.Context, req ListJobsRequest) ([]Job, int, error) {
	conditions := []string{"account_id = $1"}
	args := []any{req.AccountID}
	argPos := 2

	if req.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, req.Status)
		argPos++
	}
	if req.CustomerID.Valid {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, req.CustomerID.UUID)
		argPos++
	}
	if req.TechnicianID.Valid {
		conditions = append(conditions, fmt.Sprintf("technician_id = $%d", argPos))
		args = append(args, req.TechnicianID.UUID)
		argPos++
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM jobs "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM jobs %s
ORDER BY COALESCE(scheduled_at, created_at) DESC, id
LIMIT $%d OFFSET $%d`, jobColumns, where, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (r *repository) Update(ctx context.Context, job Job) error {
	tag, err := r.db.Exec(ctx, `UPDATE jobs
SET customer_id = $2, technician_id = $3, title = $4, description = $5, address = $6,
	status = $7, scheduled_at = $8, completed_at = $9, updated_at = $10
WHERE id = $1`,
		job.ID, job.CustomerID, job.TechnicianID, job.Title, job.Description, job.Address,
		job.Status, job.ScheduledAt, job.CompletedAt, job.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrJobInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}
