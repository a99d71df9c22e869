package invoices

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldline/fieldline/internal/servicejobs"
	"github.com/fieldline/fieldline/internal/shared"
	"github.com/fieldline/fieldline/jobs"
)

// memoryRepo is an in-memory Repository. WithTx serialises callers the way a
// row lock would.
type memoryRepo struct {
	txMu     *sync.Mutex
	mu       *sync.Mutex
	invoices map[uuid.UUID]Invoice
	payments []Payment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		txMu:     &sync.Mutex{},
		mu:       &sync.Mutex{},
		invoices: make(map[uuid.UUID]Invoice),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(ctx, r)
}

func (r *memoryRepo) Create(ctx context.Context, inv Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[inv.ID] = inv
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepo) Save(ctx context.Context, inv Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[inv.ID]; !ok {
		return ErrInvoiceNotFound
	}
	r.invoices[inv.ID] = inv
	return nil
}

func (r *memoryRepo) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.AccountID != req.AccountID {
			continue
		}
		if req.Status != "" && inv.Status != req.Status {
			continue
		}
		if req.JobID.Valid && inv.JobID != req.JobID.UUID {
			continue
		}
		if req.CustomerID.Valid && inv.CustomerID != req.CustomerID.UUID {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, req.Offset, req.Limit), len(out), nil
}

func (r *memoryRepo) LatestForJob(ctx context.Context, accountID, jobID uuid.UUID) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		latest Invoice
		found  bool
	)
	for _, inv := range r.invoices {
		if inv.AccountID != accountID || inv.JobID != jobID {
			continue
		}
		if !found || inv.CreatedAt.After(latest.CreatedAt) {
			latest, found = inv, true
		}
	}
	if !found {
		return Invoice{}, ErrInvoiceNotFound
	}
	return latest, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[id]; !ok {
		return ErrInvoiceNotFound
	}
	delete(r.invoices, id)
	return nil
}

func (r *memoryRepo) CountPayments(ctx context.Context, invoiceID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) CreatePayment(ctx context.Context, p Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments = append(r.payments, p)
	return nil
}

func (r *memoryRepo) ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payment
	for _, p := range r.payments {
		if p.AccountID != req.AccountID {
			continue
		}
		if req.InvoiceID.Valid && p.InvoiceID != req.InvoiceID.UUID {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaymentDate.After(out[j].PaymentDate) })
	return page(out, req.Offset, req.Limit), len(out), nil
}

func (r *memoryRepo) InvoiceTotals(ctx context.Context, accountID uuid.UUID) (InvoiceTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := newInvoiceTotals()
	for _, inv := range r.invoices {
		if inv.AccountID != accountID {
			continue
		}
		totals.add(inv.Status, 1, inv.TotalAmount, inv.PaidAmount, inv.BalanceDue())
	}
	return totals, nil
}

func (r *memoryRepo) PaymentTotals(ctx context.Context, accountID uuid.UUID) (PaymentTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := PaymentTotals{Received: decimal.Zero}
	for _, p := range r.payments {
		if p.AccountID != accountID {
			continue
		}
		out.Count++
		out.Received = out.Received.Add(p.Amount)
	}
	return out, nil
}

func (r *memoryRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, inv := range r.invoices {
		if inv.Status == StatusSent && inv.DueDate.Before(now) && inv.PaidAmount.LessThan(inv.TotalAmount) {
			inv.Status = StatusOverdue
			inv.UpdatedAt = now
			r.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type stubJobs struct {
	jobs map[uuid.UUID]servicejobs.Job
}

func (s *stubJobs) Get(ctx context.Context, accountID, id uuid.UUID) (servicejobs.Job, error) {
	job, ok := s.jobs[id]
	if !ok || job.AccountID != accountID {
		return servicejobs.Job{}, servicejobs.ErrJobNotFound
	}
	return job, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	k := module + ":" + key
	if m.keys[k] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[k] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+":"+key)
	return nil
}

type recordingEnqueuer struct {
	mu       sync.Mutex
	payloads []jobs.InvoiceEmailPayload
}

func (e *recordingEnqueuer) EnqueueInvoiceEmail(ctx context.Context, payload jobs.InvoiceEmailPayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.payloads = append(e.payloads, payload)
	return nil
}
