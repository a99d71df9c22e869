package invoices

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fieldline/fieldline/internal/platform/httpx"
	"github.com/fieldline/fieldline/internal/shared"
)

// ErrForeignAccount is returned when a caller asks for another account's summary.
var ErrForeignAccount = httpx.Forbidden("summary is only available for your own account")

// Summary aggregates an account's invoices and payments.
type Summary struct {
	AccountID        uuid.UUID `json:"accountId"`
	InvoiceCount     int       `json:"invoiceCount"`
	DraftCount       int       `json:"draftCount"`
	SentCount        int       `json:"sentCount"`
	PaidCount        int       `json:"paidCount"`
	OverdueCount     int       `json:"overdueCount"`
	TotalInvoiced    float64   `json:"totalInvoiced"`
	TotalPaid        float64   `json:"totalPaid"`
	TotalOutstanding float64   `json:"totalOutstanding"`
	OverdueAmount    float64   `json:"overdueAmount"`
	PaymentCount     int       `json:"paymentCount"`
	PaymentsReceived float64   `json:"paymentsReceived"`
}

// Summary returns the billing summary for accountID, defaulting to the caller's
// account. Results are cached until the next invoice or payment mutation.
func (s *Service) Summary(ctx context.Context, principal shared.Principal, accountID uuid.NullUUID) (Summary, error) {
	target := principal.AccountID
	if accountID.Valid {
		if accountID.UUID != principal.AccountID {
			return Summary{}, ErrForeignAccount
		}
		target = accountID.UUID
	}

	key := target.String()
	// Callers sharing this key wait on one load; it must outlive any single request.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.flight.Do(key, func() (any, error) {
		var out Summary
		err := s.summaries.FetchJSON(loadCtx, &out, func(ctx context.Context) (any, error) {
			return s.buildSummary(ctx, target)
		}, "summary", key)
		return out, err
	})
	if err != nil {
		return Summary{}, fmt.Errorf("invoice summary: %w", err)
	}
	return v.(Summary), nil
}

func (s *Service) buildSummary(ctx context.Context, accountID uuid.UUID) (Summary, error) {
	var (
		invoices InvoiceTotals
		payments PaymentTotals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoices, err = s.repo.InvoiceTotals(gctx, accountID)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.repo.PaymentTotals(gctx, accountID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	return Summary{
		AccountID:        accountID,
		InvoiceCount:     invoices.Count,
		DraftCount:       invoices.ByStatus[StatusDraft],
		SentCount:        invoices.ByStatus[StatusSent],
		PaidCount:        invoices.ByStatus[StatusPaid],
		OverdueCount:     invoices.ByStatus[StatusOverdue],
		TotalInvoiced:    invoices.Invoiced.InexactFloat64(),
		TotalPaid:        invoices.Paid.InexactFloat64(),
		TotalOutstanding: invoices.Outstanding.InexactFloat64(),
		OverdueAmount:    invoices.Overdue.InexactFloat64(),
		PaymentCount:     payments.Count,
		PaymentsReceived: payments.Received.InexactFloat64(),
	}, nil
}
