package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceSendEmail delivers a sent invoice to its recipient.
	TaskInvoiceSendEmail = "invoice:send_email"
	// TaskInvoiceOverdueSweep marks unpaid invoices past due as overdue.
	TaskInvoiceOverdueSweep = "invoice:overdue_sweep"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// InvoiceEmailPayload carries what the email needs without a database read.
// Amounts are decimal strings.
type InvoiceEmailPayload struct {
	InvoiceID      uuid.UUID `json:"invoice_id"`
	AccountID      uuid.UUID `json:"account_id"`
	InvoiceNumber  string    `json:"invoice_number"`
	RecipientEmail string    `json:"recipient_email"`
	RecipientName  string    `json:"recipient_name"`
	TotalAmount    string    `json:"total_amount"`
	BalanceDue     string    `json:"balance_due"`
	DueDate        time.Time `json:"due_date"`
}

// OverdueSweepPayload is empty; the sweep always runs against the current time.
type OverdueSweepPayload struct{}

// IdempotencyCleanupPayload configures key retention.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewInvoiceEmailTask constructs an Asynq task.
func NewInvoiceEmailTask(payload InvoiceEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceSendEmail, data, asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}

// NewOverdueSweepTask constructs the daily sweep task.
func NewOverdueSweepTask() (*asynq.Task, error) {
	data, err := json.Marshal(OverdueSweepPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceOverdueSweep, data), nil
}

// NewIdempotencyCleanupTask constructs the key cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
