package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/fieldline/fieldline/internal/billing"
	"github.com/fieldline/fieldline/internal/platform/cache"
	"github.com/fieldline/fieldline/internal/platform/httpx"
	"github.com/fieldline/fieldline/internal/servicejobs"
	"github.com/fieldline/fieldline/internal/shared"
	"github.com/fieldline/fieldline/jobs"
)

const idempotencyModule = "invoices.payment"

// JobLookup resolves the job an invoice bills for.
type JobLookup interface {
	Get(ctx context.Context, accountID, id uuid.UUID) (servicejobs.Job, error)
}

// EmailEnqueuer schedules delivery of a sent invoice.
type EmailEnqueuer interface {
	EnqueueInvoiceEmail(ctx context.Context, payload jobs.InvoiceEmailPayload) error
}

// ServiceConfig groups optional settings and collaborators. An unset
// DefaultTaxRate falls back to billing.DefaultTaxRate; a set zero is kept.
type ServiceConfig struct {
	DefaultTaxRate   decimal.NullDecimal
	PaymentTermsDays int
	Summaries        *cache.Versioned
	Email            EmailEnqueuer
	Logger           *slog.Logger
}

// Service coordinates invoice and payment operations.
type Service struct {
	repo      Repository
	jobs      JobLookup
	audit     shared.AuditRecorder
	idem      shared.IdempotencyGuard
	email     EmailEnqueuer
	summaries *cache.Versioned
	logger    *slog.Logger
	taxRate   decimal.Decimal
	terms     int
	flight    singleflight.Group
	now       func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, lookup JobLookup, audit shared.AuditRecorder, idem shared.IdempotencyGuard, cfg ServiceConfig) *Service {
	taxRate := billing.DefaultTaxRate
	if cfg.DefaultTaxRate.Valid {
		taxRate = cfg.DefaultTaxRate.Decimal
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		jobs:      lookup,
		audit:     audit,
		idem:      idem,
		email:     cfg.Email,
		summaries: cfg.Summaries,
		logger:    logger,
		taxRate:   taxRate,
		terms:     cfg.PaymentTermsDays,
		now:       time.Now,
	}
}

// Create bills a job. Amounts are derived from the supplied charges.
func (s *Service) Create(ctx context.Context, principal shared.Principal, req CreateInvoiceRequest) (Invoice, error) {
	if err := httpx.Validate(req); err != nil {
		return Invoice{}, err
	}
	job, err := s.jobs.Get(ctx, principal.AccountID, req.JobID)
	if err != nil {
		return Invoice{}, err
	}

	now := s.now().UTC()
	inv := Invoice{
		ID:            uuid.New(),
		InvoiceNumber: billing.NewInvoiceNumber(now),
		AccountID:     principal.AccountID,
		JobID:         job.ID,
		CustomerID:    job.CustomerID,
		MaterialCost:  decimal.Zero,
		TaxRate:       s.taxRate,
		PaidAmount:    decimal.Zero,
		Status:        StatusDraft,
		InvoiceDate:   now,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.CustomerID != nil {
		inv.CustomerID = *req.CustomerID
	}
	if req.LaborHours != nil {
		inv.LaborHours = decimal.NewNullDecimal(*req.LaborHours)
	}
	if req.HourlyRate != nil {
		inv.HourlyRate = decimal.NewNullDecimal(*req.HourlyRate)
	}
	if req.MaterialCost != nil {
		inv.MaterialCost = *req.MaterialCost
	}
	if req.TaxRate != nil {
		inv.TaxRate = *req.TaxRate
	}
	if req.InvoiceDate != nil {
		inv.InvoiceDate = req.InvoiceDate.UTC()
	}
	inv.DueDate = billing.DueDate(inv.InvoiceDate, s.terms)
	if req.DueDate != nil {
		inv.DueDate = req.DueDate.UTC()
	}
	inv.Recalculate()

	if err := s.repo.Create(ctx, inv); err != nil {
		return Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	s.invalidate(ctx)
	s.record(ctx, principal, "invoice.created", "invoice", inv.ID, map[string]any{
		"invoice_number": inv.InvoiceNumber,
		"total_amount":   inv.TotalAmount.String(),
	})
	return inv, nil
}

// Get returns an invoice visible to the account.
func (s *Service) Get(ctx context.Context, accountID, id uuid.UUID) (Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.AccountID != accountID {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

// LatestForJob returns the most recently created invoice of a job. ok is false
// when the job has not been invoiced.
func (s *Service) LatestForJob(ctx context.Context, accountID, jobID uuid.UUID) (inv Invoice, ok bool, err error) {
	inv, err = s.repo.LatestForJob(ctx, accountID, jobID)
	if errors.Is(err, ErrInvoiceNotFound) {
		return Invoice{}, false, nil
	}
	if err != nil {
		return Invoice{}, false, err
	}
	return inv, true, nil
}

// List returns a page of the account's invoices.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest, page, perPage int) (shared.Page[InvoiceResponse], error) {
	p := shared.NewPagination(page, perPage, 0)
	req.Limit = p.PerPage
	req.Offset = p.Offset()
	items, total, err := s.repo.List(ctx, req)
	if err != nil {
		return shared.Page[InvoiceResponse]{}, fmt.Errorf("list invoices: %w", err)
	}
	data := make([]InvoiceResponse, 0, len(items))
	for _, inv := range items {
		data = append(data, ToResponse(inv))
	}
	return shared.Page[InvoiceResponse]{Data: data, Pagination: shared.NewPagination(p.Page, p.PerPage, total)}, nil
}

// Update applies a partial change and recomputes every amount from the
// resulting charges.
func (s *Service) Update(ctx context.Context, principal shared.Principal, id uuid.UUID, req UpdateInvoiceRequest) (Invoice, error) {
	if err := httpx.Validate(req); err != nil {
		return Invoice{}, err
	}
	var out Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		inv, err := s.lock(ctx, tx, principal.AccountID, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if req.LaborHours != nil {
			inv.LaborHours = decimal.NewNullDecimal(*req.LaborHours)
		}
		if req.HourlyRate != nil {
			inv.HourlyRate = decimal.NewNullDecimal(*req.HourlyRate)
		}
		if req.MaterialCost != nil {
			inv.MaterialCost = *req.MaterialCost
		}
		if req.TaxRate != nil {
			inv.TaxRate = *req.TaxRate
		}
		if req.DueDate != nil {
			inv.DueDate = req.DueDate.UTC()
		}
		if req.Notes != nil {
			inv.Notes = *req.Notes
		}
		if req.Status != nil {
			inv.setStatus(*req.Status, now)
		}
		inv.Recalculate()
		inv.UpdatedAt = now
		if err := tx.Save(ctx, inv); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		out = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, principal, "invoice.updated", "invoice", out.ID, map[string]any{
		"status":       out.Status,
		"total_amount": out.TotalAmount.String(),
	})
	return out, nil
}

// Send marks the invoice as sent and, when a recipient is given, queues the
// invoice email. Amounts are left untouched and a paid invoice stays paid.
func (s *Service) Send(ctx context.Context, principal shared.Principal, id uuid.UUID, req SendInvoiceRequest) (Invoice, error) {
	if err := httpx.Validate(req); err != nil {
		return Invoice{}, err
	}
	var out Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		inv, err := s.lock(ctx, tx, principal.AccountID, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if inv.Status != StatusPaid {
			inv.Status = StatusSent
		}
		inv.SentDate = &now
		inv.UpdatedAt = now
		if err := tx.Save(ctx, inv); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		out = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, principal, "invoice.sent", "invoice", out.ID, map[string]any{"recipient": req.RecipientEmail})

	if req.RecipientEmail != "" && s.email != nil {
		payload := jobs.InvoiceEmailPayload{
			InvoiceID:      out.ID,
			AccountID:      out.AccountID,
			InvoiceNumber:  out.InvoiceNumber,
			RecipientEmail: req.RecipientEmail,
			RecipientName:  req.RecipientName,
			TotalAmount:    out.TotalAmount.String(),
			BalanceDue:     out.BalanceDue().String(),
			DueDate:        out.DueDate,
		}
		if err := s.email.EnqueueInvoiceEmail(ctx, payload); err != nil {
			s.logger.Warn("enqueue invoice email failed",
				slog.String("invoice_id", out.ID.String()),
				slog.Any("error", err))
		}
	}
	return out, nil
}

// RecordPayment appends a payment and increments the invoice's paid amount
// under a row lock. The invoice becomes paid once the paid amount reaches the
// total. A non-empty idempotency key rejects replays with ErrDuplicateRequest.
func (s *Service) RecordPayment(ctx context.Context, principal shared.Principal, invoiceID uuid.UUID, req RecordPaymentRequest, idempotencyKey string) (Payment, error) {
	if err := httpx.Validate(req); err != nil {
		return Payment{}, err
	}
	if idempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idempotencyKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Payment{}, shared.ErrDuplicateRequest
			}
			return Payment{}, fmt.Errorf("reserve idempotency key: %w", err)
		}
	}

	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		inv, err := s.lock(ctx, tx, principal.AccountID, invoiceID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		payment = Payment{
			ID:              uuid.New(),
			InvoiceID:       inv.ID,
			AccountID:       inv.AccountID,
			CustomerID:      inv.CustomerID,
			Amount:          req.Amount,
			PaymentMethod:   req.PaymentMethod,
			ReferenceNumber: req.ReferenceNumber,
			PaymentDate:     now,
			Notes:           req.Notes,
			CreatedAt:       now,
		}
		if payment.PaymentMethod == "" {
			payment.PaymentMethod = DefaultPaymentMethod
		}
		if payment.ReferenceNumber == "" {
			payment.ReferenceNumber = billing.NewPaymentReference(now)
		}
		if req.PaymentDate != nil {
			payment.PaymentDate = req.PaymentDate.UTC()
		}

		paid, settled := billing.ApplyPayment(inv.PaidAmount, inv.TotalAmount, req.Amount)
		inv.PaidAmount = paid
		if settled && inv.Status != StatusPaid {
			inv.Status = StatusPaid
			inv.PaymentDate = &payment.PaymentDate
		}
		inv.UpdatedAt = now
		if err := tx.Save(ctx, inv); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		if idempotencyKey != "" && s.idem != nil {
			if delErr := s.idem.Delete(ctx, idempotencyKey, idempotencyModule); delErr != nil {
				s.logger.Warn("release idempotency key failed", slog.Any("error", delErr))
			}
		}
		return Payment{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, principal, "payment.recorded", "payment", payment.ID, map[string]any{
		"invoice_id": payment.InvoiceID.String(),
		"amount":     payment.Amount.String(),
	})
	return payment, nil
}

// ListPayments returns a page of the account's payments, newest first.
func (s *Service) ListPayments(ctx context.Context, req ListPaymentsRequest, page, perPage int) (shared.Page[PaymentResponse], error) {
	p := shared.NewPagination(page, perPage, 0)
	req.Limit = p.PerPage
	req.Offset = p.Offset()
	items, total, err := s.repo.ListPayments(ctx, req)
	if err != nil {
		return shared.Page[PaymentResponse]{}, fmt.Errorf("list payments: %w", err)
	}
	data := make([]PaymentResponse, 0, len(items))
	for _, pay := range items {
		data = append(data, ToPaymentResponse(pay))
	}
	return shared.Page[PaymentResponse]{Data: data, Pagination: shared.NewPagination(p.Page, p.PerPage, total)}, nil
}

// Delete removes a draft invoice that has no payments.
func (s *Service) Delete(ctx context.Context, principal shared.Principal, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		inv, err := s.lock(ctx, tx, principal.AccountID, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return ErrInvoiceLocked
		}
		n, err := tx.CountPayments(ctx, inv.ID)
		if err != nil {
			return fmt.Errorf("count payments: %w", err)
		}
		if n > 0 {
			return ErrInvoiceLocked
		}
		return tx.Delete(ctx, inv.ID)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, principal, "invoice.deleted", "invoice", id, nil)
	return nil
}

// SweepOverdue marks sent invoices past due as overdue and returns how many changed.
func (s *Service) SweepOverdue(ctx context.Context) (int64, error) {
	n, err := s.repo.MarkOverdue(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	if n > 0 {
		s.invalidate(ctx)
	}
	return n, nil
}

func (s *Service) lock(ctx context.Context, tx Repository, accountID, id uuid.UUID) (Invoice, error) {
	inv, err := tx.GetForUpdate(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.AccountID != accountID {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (i *Invoice) setStatus(status Status, now time.Time) {
	i.Status = status
	switch status {
	case StatusSent:
		if i.SentDate == nil {
			i.SentDate = &now
		}
	case StatusPaid:
		if i.PaymentDate == nil {
			i.PaymentDate = &now
		}
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.summaries.Bump(ctx); err != nil {
		s.logger.Warn("invalidate invoice summaries failed", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, principal shared.Principal, action, entity string, id uuid.UUID, meta map[string]any) {
	shared.RecordBestEffort(ctx, s.audit, s.logger, shared.AuditLog{
		AccountID: principal.AccountID,
		ActorID:   principal.UserID,
		Action:    action,
		Entity:    entity,
		EntityID:  id.String(),
		Meta:      meta,
	})
}
