package invoices

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateInvoiceRequest struct {
	JobID        uuid.UUID        `json:"jobId" validate:"required"`
	CustomerID   *uuid.UUID       `json:"customerId,omitempty"`
	LaborHours   *decimal.Decimal `json:"laborHours,omitempty" validate:"omitempty,gte=0"`
	HourlyRate   *decimal.Decimal `json:"hourlyRate,omitempty" validate:"omitempty,gte=0"`
	MaterialCost *decimal.Decimal `json:"materialCost,omitempty" validate:"omitempty,gte=0"`
	TaxRate      *decimal.Decimal `json:"taxRate,omitempty" validate:"omitempty,gte=0,lte=1"`
	InvoiceDate  *time.Time       `json:"invoiceDate,omitempty"`
	DueDate      *time.Time       `json:"dueDate,omitempty"`
	Notes        string           `json:"notes" validate:"max=2000"`
}

// UpdateInvoiceRequest carries a partial change. Nil fields keep their stored value.
type UpdateInvoiceRequest struct {
	Status       *Status          `json:"status,omitempty" validate:"omitempty,oneof=draft sent paid overdue"`
	LaborHours   *decimal.Decimal `json:"laborHours,omitempty" validate:"omitempty,gte=0"`
	HourlyRate   *decimal.Decimal `json:"hourlyRate,omitempty" validate:"omitempty,gte=0"`
	MaterialCost *decimal.Decimal `json:"materialCost,omitempty" validate:"omitempty,gte=0"`
	TaxRate      *decimal.Decimal `json:"taxRate,omitempty" validate:"omitempty,gte=0,lte=1"`
	DueDate      *time.Time       `json:"dueDate,omitempty"`
	Notes        *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type SendInvoiceRequest struct {
	RecipientEmail string `json:"recipientEmail" validate:"omitempty,email"`
	RecipientName  string `json:"recipientName" validate:"max=200"`
}

type RecordPaymentRequest struct {
	Amount          decimal.Decimal `json:"amount" validate:"required,gt=0"`
	PaymentMethod   string          `json:"paymentMethod" validate:"max=50"`
	ReferenceNumber string          `json:"referenceNumber" validate:"max=100"`
	PaymentDate     *time.Time      `json:"paymentDate,omitempty"`
	Notes           string          `json:"notes" validate:"max=2000"`
}

// CreatePaymentRequest is the invoices-payments variant that names the invoice in the body.
type CreatePaymentRequest struct {
	InvoiceID uuid.UUID `json:"invoiceId" validate:"required"`
	RecordPaymentRequest
}

type InvoiceResponse struct {
	ID            uuid.UUID  `json:"id"`
	InvoiceNumber string     `json:"invoiceNumber"`
	AccountID     uuid.UUID  `json:"accountId"`
	JobID         uuid.UUID  `json:"jobId"`
	CustomerID    uuid.UUID  `json:"customerId"`
	LaborHours    *float64   `json:"laborHours"`
	HourlyRate    *float64   `json:"hourlyRate"`
	LaborAmount   float64    `json:"laborAmount"`
	MaterialCost  float64    `json:"materialCost"`
	Subtotal      float64    `json:"subtotal"`
	TaxRate       float64    `json:"taxRate"`
	TaxAmount     float64    `json:"taxAmount"`
	TotalAmount   float64    `json:"totalAmount"`
	PaidAmount    float64    `json:"paidAmount"`
	BalanceDue    float64    `json:"balanceDue"`
	Status        Status     `json:"status"`
	InvoiceDate   time.Time  `json:"invoiceDate"`
	DueDate       time.Time  `json:"dueDate"`
	SentDate      *time.Time `json:"sentDate"`
	PaymentDate   *time.Time `json:"paymentDate"`
	Notes         string     `json:"notes"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type PaymentResponse struct {
	ID              uuid.UUID `json:"id"`
	InvoiceID       uuid.UUID `json:"invoiceId"`
	AccountID       uuid.UUID `json:"accountId"`
	CustomerID      uuid.UUID `json:"customerId"`
	Amount          float64   `json:"amount"`
	PaymentMethod   string    `json:"paymentMethod"`
	ReferenceNumber string    `json:"referenceNumber"`
	PaymentDate     time.Time `json:"paymentDate"`
	Notes           string    `json:"notes"`
	CreatedAt       time.Time `json:"createdAt"`
}

func nullableFloat(v decimal.NullDecimal) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Decimal.InexactFloat64()
	return &f
}

// ToResponse converts an invoice to its wire form.
func ToResponse(inv Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		AccountID:     inv.AccountID,
		JobID:         inv.JobID,
		CustomerID:    inv.CustomerID,
		LaborHours:    nullableFloat(inv.LaborHours),
		HourlyRate:    nullableFloat(inv.HourlyRate),
		LaborAmount:   inv.LaborAmount.InexactFloat64(),
		MaterialCost:  inv.MaterialCost.InexactFloat64(),
		Subtotal:      inv.Subtotal.InexactFloat64(),
		TaxRate:       inv.TaxRate.InexactFloat64(),
		TaxAmount:     inv.TaxAmount.InexactFloat64(),
		TotalAmount:   inv.TotalAmount.InexactFloat64(),
		PaidAmount:    inv.PaidAmount.InexactFloat64(),
		BalanceDue:    inv.BalanceDue().InexactFloat64(),
		Status:        inv.Status,
		InvoiceDate:   inv.InvoiceDate,
		DueDate:       inv.DueDate,
		SentDate:      inv.SentDate,
		PaymentDate:   inv.PaymentDate,
		Notes:         inv.Notes,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

// ToPaymentResponse converts a payment to its wire form.
func ToPaymentResponse(p Payment) PaymentResponse {
	return PaymentResponse{
		ID:              p.ID,
		InvoiceID:       p.InvoiceID,
		AccountID:       p.AccountID,
		CustomerID:      p.CustomerID,
		Amount:          p.Amount.InexactFloat64(),
		PaymentMethod:   p.PaymentMethod,
		ReferenceNumber: p.ReferenceNumber,
		PaymentDate:     p.PaymentDate,
		Notes:           p.Notes,
		CreatedAt:       p.CreatedAt,
	}
}
