// Package invoices owns invoice lifecycle, payment application and the
// account level billing summary.
package invoices

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldline/fieldline/internal/billing"
	"github.com/fieldline/fieldline/internal/platform/httpx"
)

// Status enumerates invoice states.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// DefaultPaymentMethod is stored when a payment does not name one.
const DefaultPaymentMethod = "other"

var (
	ErrInvoiceNotFound = httpx.NotFound("invoice not found")
	ErrInvoiceLocked   = httpx.Conflict("only draft invoices without payments can be deleted")
)

// Invoice is the stored billing document for a job.
type Invoice struct {
	ID            uuid.UUID
	InvoiceNumber string
	AccountID     uuid.UUID
	JobID         uuid.UUID
	CustomerID    uuid.UUID
	LaborHours    decimal.NullDecimal
	HourlyRate    decimal.NullDecimal
	LaborAmount   decimal.Decimal
	MaterialCost  decimal.Decimal
	Subtotal      decimal.Decimal
	TaxRate       decimal.Decimal
	TaxAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	PaidAmount    decimal.Decimal
	Status        Status
	InvoiceDate   time.Time
	DueDate       time.Time
	SentDate      *time.Time
	PaymentDate   *time.Time
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Charges returns the calculator inputs stored on the invoice.
func (i Invoice) Charges() billing.Charges {
	return billing.Charges{
		LaborHours:   billing.OrZero(i.LaborHours),
		HourlyRate:   billing.OrZero(i.HourlyRate),
		MaterialCost: i.MaterialCost,
		TaxRate:      i.TaxRate,
	}
}

// Recalculate rederives every amount from the stored charges.
func (i *Invoice) Recalculate() {
	t := i.Charges().Totals()
	i.LaborAmount = t.LaborAmount
	i.Subtotal = t.Subtotal
	i.TaxAmount = t.TaxAmount
	i.TotalAmount = t.TotalAmount
}

// BalanceDue is the unpaid remainder. It is negative for overpaid invoices.
func (i Invoice) BalanceDue() decimal.Decimal {
	return i.TotalAmount.Sub(i.PaidAmount)
}

// Payment records money received against an invoice.
type Payment struct {
	ID              uuid.UUID
	InvoiceID       uuid.UUID
	AccountID       uuid.UUID
	CustomerID      uuid.UUID
	Amount          decimal.Decimal
	PaymentMethod   string
	ReferenceNumber string
	PaymentDate     time.Time
	Notes           string
	CreatedAt       time.Time
}

// ListInvoicesRequest filters invoice listings.
type ListInvoicesRequest struct {
	AccountID  uuid.UUID
	Status     Status
	CustomerID uuid.NullUUID
	JobID      uuid.NullUUID
	Limit      int
	Offset     int
}

// ListPaymentsRequest filters payment listings.
type ListPaymentsRequest struct {
	AccountID uuid.UUID
	InvoiceID uuid.NullUUID
	Limit     int
	Offset    int
}

// InvoiceTotals aggregates an account's invoices.
type InvoiceTotals struct {
	Count       int
	ByStatus    map[Status]int
	Invoiced    decimal.Decimal
	Paid        decimal.Decimal
	Outstanding decimal.Decimal
	Overdue     decimal.Decimal
}

// PaymentTotals aggregates an account's payments.
type PaymentTotals struct {
	Count    int
	Received decimal.Decimal
}
