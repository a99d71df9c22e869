// Package billing holds the pure arithmetic behind invoices, payments and job costing.
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPaymentTermsDays is added to the invoice date when no due date is supplied.
const DefaultPaymentTermsDays = 30

var (
	// DefaultTaxRate applies when an invoice is created without a tax rate.
	DefaultTaxRate = decimal.RequireFromString("0.08")

	hundred = decimal.NewFromInt(100)
)

// Charges are the stored inputs an invoice total is derived from. Missing labor
// values are represented as zero.
type Charges struct {
	LaborHours   decimal.Decimal
	HourlyRate   decimal.Decimal
	MaterialCost decimal.Decimal
	TaxRate      decimal.Decimal
}

// Totals are the derived invoice amounts.
type Totals struct {
	LaborAmount decimal.Decimal
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
}

// Totals computes labor, subtotal, tax and total. Inputs are taken as given:
// negative hours or a tax rate outside [0,1] are not rejected here.
func (c Charges) Totals() Totals {
	labor := c.LaborHours.Mul(c.HourlyRate)
	subtotal := labor.Add(c.MaterialCost)
	tax := subtotal.Mul(c.TaxRate)
	return Totals{
		LaborAmount: labor,
		Subtotal:    subtotal,
		TaxAmount:   tax,
		TotalAmount: subtotal.Add(tax),
	}
}

// Consistent reports whether the totals satisfy the invoice invariants for the
// given material cost.
func (t Totals) Consistent(materialCost decimal.Decimal) bool {
	return t.Subtotal.Equal(t.LaborAmount.Add(materialCost)) &&
		t.TotalAmount.Equal(t.Subtotal.Add(t.TaxAmount))
}

// OrZero unwraps a nullable decimal, reading null as zero.
func OrZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

// ApplyPayment increments the paid amount and reports whether the invoice is
// settled. Overpayment is accepted.
func ApplyPayment(paid, total, amount decimal.Decimal) (decimal.Decimal, bool) {
	next := paid.Add(amount)
	return next, next.GreaterThanOrEqual(total)
}

// DueDate returns the due date for an invoice dated at with the given terms.
// Non-positive terms fall back to DefaultPaymentTermsDays.
func DueDate(at time.Time, termsDays int) time.Time {
	if termsDays <= 0 {
		termsDays = DefaultPaymentTermsDays
	}
	return at.AddDate(0, 0, termsDays)
}
