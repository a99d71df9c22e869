package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fieldline/fieldline/internal/platform/db"
)

// Repository persists invoices and payments.
type Repository interface {
	// WithTx runs fn with a repository bound to a single transaction.
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Create(ctx context.Context, inv Invoice) error
	Get(ctx context.Context, id uuid.UUID) (Invoice, error)
	// GetForUpdate reads the invoice and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (Invoice, error)
	Save(ctx context.Context, inv Invoice) error
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	LatestForJob(ctx context.Context, accountID, jobID uuid.UUID) (Invoice, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountPayments(ctx context.Context, invoiceID uuid.UUID) (int, error)
	CreatePayment(ctx context.Context, p Payment) error
	ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, int, error)
	InvoiceTotals(ctx context.Context, accountID uuid.UUID) (InvoiceTotals, error)
	PaymentTotals(ctx context.Context, accountID uuid.UUID) (PaymentTotals, error)
	// MarkOverdue flips sent, unsettled invoices past their due date to overdue.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
	db   db.DBTX
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool, db: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx})
	})
}

const invoiceColumns = `id, invoice_number, account_id, job_id, customer_id, labor_hours, hourly_rate,
	labor_amount, material_cost, subtotal, tax_rate, tax_amount, total_amount, paid_amount, status,
	invoice_date, due_date, sent_date, payment_date, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.AccountID, &inv.JobID, &inv.CustomerID,
		&inv.LaborHours, &inv.HourlyRate, &inv.LaborAmount, &inv.MaterialCost, &inv.Subtotal,
		&inv.TaxRate, &inv.TaxAmount, &inv.TotalAmount, &inv.PaidAmount, &inv.Status,
		&inv.InvoiceDate, &inv.DueDate, &inv.SentDate, &inv.PaymentDate, &inv.Notes,
		&inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *repository) Create(ctx context.Context, inv Invoice) error {
	_, err := r.db.Exec(ctx, `INSERT INTO invoices (`+invoiceColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		inv.ID, inv.InvoiceNumber, inv.AccountID, inv.JobID, inv.CustomerID, inv.LaborHours, inv.HourlyRate,
		inv.LaborAmount, inv.MaterialCost, inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.TotalAmount,
		inv.PaidAmount, inv.Status, inv.InvoiceDate, inv.DueDate, inv.SentDate, inv.PaymentDate, inv.Notes,
		inv.CreatedAt, inv.UpdatedAt)
	return err
}

func (r *repository) get(ctx context.Context, query string, args ...any) (Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, err
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) LatestForJob(ctx context.Context, accountID, jobID uuid.UUID) (Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE account_id = $1 AND job_id = $2
ORDER BY created_at DESC, id DESC
LIMIT 1`, accountID, jobID)
}

func (r *repository) Save(ctx context.Context, inv Invoice) error {
	tag, err := r.db.Exec(ctx, `UPDATE invoices
SET customer_id = $2, labor_hours = $3, hourly_rate = $4, labor_amount = $5, material_cost = $6,
	subtotal = $7, tax_rate = $8, tax_amount = $9, total_amount = $10, paid_amount = $11, status = $12,
	due_date = $13, sent_date = $14, payment_date = $15, notes = $16, updated_at = $17
WHERE id = $1`,
		inv.ID, inv.CustomerID, inv.LaborHours, inv.HourlyRate, inv.LaborAmount, inv.MaterialCost,
		inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.TotalAmount, inv.PaidAmount, inv.Status,
		inv.DueDate, inv.SentDate, inv.PaymentDate, inv.Notes, inv.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
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
	if req.JobID.Valid {
		conditions = append(conditions, fmt.Sprintf("job_id = $%d", argPos))
		args = append(args, req.JobID.UUID)
		argPos++
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM invoices "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM invoices %s
ORDER BY invoice_date DESC, created_at DESC
LIMIT $%d OFFSET $%d`, invoiceColumns, where, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrInvoiceLocked
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *repository) CountPayments(ctx context.Context, invoiceID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE invoice_id = $1`, invoiceID).Scan(&n)
	return n, err
}

const paymentColumns = `id, invoice_id, account_id, customer_id, amount, payment_method,
	reference_number, payment_date, notes, created_at`

func (r *repository) CreatePayment(ctx context.Context, p Payment) error {
	_, err := r.db.Exec(ctx, `INSERT INTO payments (`+paymentColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.InvoiceID, p.AccountID, p.CustomerID, p.Amount, p.PaymentMethod,
		p.ReferenceNumber, p.PaymentDate, p.Notes, p.CreatedAt)
	return err
}

func (r *repository) ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, int, error) {
	where := "WHERE account_id = $1"
	args := []any{req.AccountID}
	if req.InvoiceID.Valid {
		where += " AND invoice_id = $2"
		args = append(args, req.InvoiceID.UUID)
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM payments "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM payments %s
ORDER BY payment_date DESC, created_at DESC
LIMIT $%d OFFSET $%d`, paymentColumns, where, len(args)+1, len(args)+2)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.AccountID, &p.CustomerID, &p.Amount, &p.PaymentMethod,
			&p.ReferenceNumber, &p.PaymentDate, &p.Notes, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repository) InvoiceTotals(ctx context.Context, accountID uuid.UUID) (InvoiceTotals, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*),
	COALESCE(SUM(total_amount), 0),
	COALESCE(SUM(paid_amount), 0),
	COALESCE(SUM(total_amount - paid_amount), 0)
FROM invoices
WHERE account_id = $1
GROUP BY status`, accountID)
	if err != nil {
		return InvoiceTotals{}, err
	}
	defer rows.Close()

	totals := newInvoiceTotals()
	for rows.Next() {
		var (
			status                Status
			count                 int
			invoiced, paid, owing decimal.Decimal
		)
		if err := rows.Scan(&status, &count, &invoiced, &paid, &owing); err != nil {
			return InvoiceTotals{}, err
		}
		totals.add(status, count, invoiced, paid, owing)
	}
	return totals, rows.Err()
}

func (r *repository) PaymentTotals(ctx context.Context, accountID uuid.UUID) (PaymentTotals, error) {
	var out PaymentTotals
	err := r.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM payments WHERE account_id = $1`,
		accountID).Scan(&out.Count, &out.Received)
	return out, err
}

func (r *repository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE invoices
SET status = 'overdue', updated_at = $1
WHERE status = 'sent' AND due_date < $1 AND paid_amount < total_amount`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func newInvoiceTotals() InvoiceTotals {
	return InvoiceTotals{
		ByStatus:    make(map[Status]int),
		Invoiced:    decimal.Zero,
		Paid:        decimal.Zero,
		Outstanding: decimal.Zero,
		Overdue:     decimal.Zero,
	}
}

// add folds one status group into the totals. Drafts are not yet owed and paid
// invoices are settled, so only sent and overdue balances count as outstanding.
func (t *InvoiceTotals) add(status Status, count int, invoiced, paid, owing decimal.Decimal) {
	t.Count += count
	t.ByStatus[status] += count
	t.Invoiced = t.Invoiced.Add(invoiced)
	t.Paid = t.Paid.Add(paid)
	switch status {
	case StatusSent:
		t.Outstanding = t.Outstanding.Add(owing)
	case StatusOverdue:
		t.Outstanding = t.Outstanding.Add(owing)
		t.Overdue = t.Overdue.Add(owing)
	}
}
