package invoices

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/fieldline/internal/platform/cache"
	"github.com/fieldline/fieldline/internal/platform/httpx"
	"github.com/fieldline/fieldline/internal/servicejobs"
	"github.com/fieldline/fieldline/internal/shared"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

type fixture struct {
	svc       *Service
	repo      *memoryRepo
	idem      *memoryIdempotency
	email     *recordingEnqueuer
	principal shared.Principal
	job       servicejobs.Job
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithCache(t, nil)
}

func newFixtureWithCache(t *testing.T, summaries *cache.Versioned) *fixture {
	t.Helper()
	principal := shared.Principal{AccountID: uuid.New(), UserID: uuid.New()}
	job := servicejobs.Job{ID: uuid.New(), AccountID: principal.AccountID, CustomerID: uuid.New(), Title: "Bathroom retile"}
	f := &fixture{
		repo:      newMemoryRepo(),
		idem:      &memoryIdempotency{},
		email:     &recordingEnqueuer{},
		principal: principal,
		job:       job,
		clock:     time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
	lookup := &stubJobs{jobs: map[uuid.UUID]servicejobs.Job{job.ID: job}}
	f.svc = NewService(f.repo, lookup, nil, f.idem, ServiceConfig{
		PaymentTermsDays: 30,
		Summaries:        summaries,
		Email:            f.email,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	var mu sync.Mutex
	f.svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	return f
}

func (f *fixture) createInvoice(t *testing.T) Invoice {
	t.Helper()
	inv, err := f.svc.Create(context.Background(), f.principal, CreateInvoiceRequest{
		JobID:        f.job.ID,
		LaborHours:   dp("2"),
		HourlyRate:   dp("50"),
		MaterialCost: dp("30"),
	})
	require.NoError(t, err)
	return inv
}

func TestCreateInvoiceComputesTotals(t *testing.T) {
	f := newFixture(t)
	inv := f.createInvoice(t)

	require.True(t, inv.LaborAmount.Equal(d("100")))
	require.True(t, inv.Subtotal.Equal(d("130")))
	require.True(t, inv.TaxRate.Equal(d("0.08")))
	require.True(t, inv.TaxAmount.Equal(d("10.4")))
	require.True(t, inv.TotalAmount.Equal(d("140.4")))
	require.True(t, inv.PaidAmount.IsZero())
	require.Equal(t, StatusDraft, inv.Status)
	require.Equal(t, f.job.CustomerID, inv.CustomerID)
	require.Equal(t, inv.InvoiceDate.AddDate(0, 0, 30), inv.DueDate)
	require.Regexp(t, regexp.MustCompile(`^INV-202610-[0-9A-F]{6}$`), inv.InvoiceNumber)

	stored, err := f.svc.Get(context.Background(), f.principal.AccountID, inv.ID)
	require.NoError(t, err)
	require.True(t, stored.TotalAmount.Equal(d("140.4")))
}

func TestCreateInvoiceKeepsConfiguredZeroTaxRate(t *testing.T) {
	f := newFixture(t)
	lookup := &stubJobs{jobs: map[uuid.UUID]servicejobs.Job{f.job.ID: f.job}}
	svc := NewService(f.repo, lookup, nil, f.idem, ServiceConfig{
		DefaultTaxRate:   decimal.NewNullDecimal(decimal.Zero),
		PaymentTermsDays: 30,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	inv, err := svc.Create(context.Background(), f.principal, CreateInvoiceRequest{
		JobID:        f.job.ID,
		MaterialCost: dp("100"),
	})
	require.NoError(t, err)
	require.True(t, inv.TaxRate.IsZero())
	require.True(t, inv.TaxAmount.IsZero())
	require.True(t, inv.TotalAmount.Equal(inv.Subtotal))
	require.True(t, inv.TotalAmount.Equal(d("100")))
}

func TestCreateInvoiceMissingLabor(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.Create(context.Background(), f.principal, CreateInvoiceRequest{
		JobID:        f.job.ID,
		HourlyRate:   dp("75"),
		MaterialCost: dp("20"),
		TaxRate:      dp("0.1"),
	})
	require.NoError(t, err)
	require.False(t, inv.LaborHours.Valid)
	require.True(t, inv.LaborAmount.IsZero())
	require.True(t, inv.TotalAmount.Equal(d("22")))
}

func TestCreateInvoiceRequiresAccountJob(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.principal, CreateInvoiceRequest{JobID: uuid.New()})
	require.ErrorIs(t, err, httpx.ErrNotFound)

	stranger := shared.Principal{AccountID: uuid.New(), UserID: uuid.New()}
	_, err = f.svc.Create(context.Background(), stranger, CreateInvoiceRequest{JobID: f.job.ID})
	require.ErrorIs(t, err, servicejobs.ErrJobNotFound)
}

func TestCreateInvoiceValidatesCharges(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.principal, CreateInvoiceRequest{JobID: f.job.ID, TaxRate: dp("1.5")})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Contains(t, err.Error(), "taxRate")

	_, err = f.svc.Create(context.Background(), f.principal, CreateInvoiceRequest{JobID: f.job.ID, LaborHours: dp("-1")})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestGetInvoiceHidesOtherAccounts(t *testing.T) {
	f := newFixture(t)
	inv := f.createInvoice(t)

	_, err := f.svc.Get(context.Background(), uuid.New(), inv.ID)
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestUpdateInvoiceRecomputesAmounts(t *testing.T) {
	f := newFixture(t)
	inv := f.createInvoice(t)

	updated, err := f.svc.Update(context.Background(), f.principal, inv.ID, UpdateInvoiceRequest{MaterialCost: dp("50")})
	require.NoError(t, err)
	require.True(t, updated.Subtotal.Equal(d("150")))
	require.True(t, updated.TaxAmount.Equal(d("12")))
	require.True(t, updated.TotalAmount.Equal(d("162")))
	require.True(t, updated.Charges().Totals().Consistent(updated.MaterialCost))

	updated, err = f.svc.Update(context.Background(), f.principal, inv.ID, UpdateInvoiceRequest{LaborHours: dp("3"), TaxRate: dp("0")})
	require.NoError(t, err)
	require.True(t, updated.LaborAmount.Equal(d("150")))
	require.True(t, updated.TotalAmount.Equal(d("200")))
}

func TestUpdateInvoiceEmptyChangeIsStable(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.Create(context.Background(), f.principal, CreateInvoiceRequest{
		JobID:        f.job.ID,
		LaborHours:   dp("3.75"),
		HourlyRate:   dp("62.5"),
		MaterialCost: dp("19.99"),
		TaxRate:      dp("0.0825"),
	})
	require.NoError(t, err)

	again, err := f.svc.Update(context.Background(), f.principal, inv.ID, UpdateInvoiceRequest{})
	require.NoError(t, err)
	require.Equal(t, inv.LaborAmount.String(), again.LaborAmount.String())
	require.Equal(t, inv.Subtotal.String(), again.Subtotal.String())
	require.Equal(t, inv.TaxAmount.String(), again.TaxAmount.String())
	require.Equal(t, inv.TotalAmount.String(), again.TotalAmount.String())
}

func TestUpdateInvoiceStatusStampsDates(t *testing.T) {
	f := newFixture(t)
	inv := f.createInvoice(t)

	sent := StatusSent
	updated, err := f.svc.Update(context.Background(), f.principal, inv.ID, UpdateInvoiceRequest{Status: &sent})
	require.NoError(t, err)
	require.NotNil(t, updated.SentDate)

	bogus := Status("void")
	_, err = f.svc.Update(context.Background(), f.principal, inv.ID, UpdateInvoiceRequest{Status: &bogus})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestRecordPaymentSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t)

	first, err := f.svc.RecordPayment(ctx, f.principal, inv.ID, RecordPaymentRequest{Amount: d("60")}, "")
	require.NoError(t, err)
	require.Equal(t, DefaultPaymentMethod, first.PaymentMethod)
	require.Regexp(t, regexp.MustCompile(`^PAY-\d{8}-\d{6}-[0-9A-F]{6}$`), first.ReferenceNumber)
	require.Equal(t, f.job.CustomerID, first.CustomerID)

	after, err := f.svc.Get(ctx, f.principal.AccountID, inv.ID)
	require.NoError(t, err)
	require.True(t, after.PaidAmount.Equal(d("60")))
	require.Equal(t, StatusDraft, after.Status)
	require.Nil(t, after.PaymentDate)

	_, err = f.svc.RecordPayment(ctx, f.principal, inv.ID, RecordPaymentRequest{Amount: d("80.4"), PaymentMethod: "card"}, "")
	require.NoError(t, err)

	after, err = f.svc.Get(ctx, f.principal.AccountID, inv.ID)
	require.NoError(t, err)
	require.True(t, after.PaidAmount.Equal(d("140.4")))
	require.Equal(t, StatusPaid, after.Status)
	require.NotNil(t, after.PaymentDate)
	require.True(t, after.BalanceDue().IsZero())

	page, err := f.svc.ListPayments(ctx, ListPaymentsRequest{AccountID: f.principal.AccountID, InvoiceID: uuid.NullUUID{UUID: inv.ID, Valid: true}}, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
}

func TestRecordPaymentAcceptsOverpayment(t *testing.T) {
	f := newFixture(t)
	inv := f.createInvoice(t)

	_, err := f.svc.RecordPayment(context.Background(), f.principal, inv.ID, RecordPaymentRequest{Amount: d("200")}, "")
	require.NoError(t, err)

	after, err := f.svc.Get(context.Background(), f.principal.AccountID, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, after.Status)
	require.True(t, after.BalanceDue().Equal(d("-59.6")))
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	inv := f.createInvoice(t)

	_, err := f.svc.RecordPayment(context.Background(), f.principal, inv.ID, RecordPaymentRequest{Amount: d("0")}, "")
	require.ErrorIs(t, err, httpx.ErrValidation)
	_, err = f.svc.RecordPayment(context.Background(), f.principal, inv.ID, RecordPaymentRequest{Amount: d("-5")}, "")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestConcurrentPaymentsDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.Create(context.Background(), f.principal, CreateInvoiceRequest{
		JobID:        f.job.ID,
		MaterialCost: dp("1000"),
		TaxRate:      dp("0"),
	})
	require.NoError(t, err)

	const workers = 40
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordPayment(context.Background(), f.principal, inv.ID, RecordPaymentRequest{Amount: d("2.5")}, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	after, err := f.svc.Get(context.Background(), f.principal.AccountID, inv.ID)
	require.NoError(t, err)
	require.True(t, after.PaidAmount.Equal(d("100")), "paid %s", after.PaidAmount)
	n, err := f.repo.CountPayments(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, workers, n)
}

func TestRecordPaymentIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t)

	_, err := f.svc.RecordPayment(ctx, f.principal, inv.ID, RecordPaymentRequest{Amount: d("10")}, "retry-1")
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, f.principal, inv.ID, RecordPaymentRequest{Amount: d("10")}, "retry-1")
	require.ErrorIs(t, err, shared.ErrDuplicateRequest)
	require.ErrorIs(t, err, httpx.ErrDuplicate)

	after, err := f.svc.Get(ctx, f.principal.AccountID, inv.ID)
	require.NoError(t, err)
	require.True(t, after.PaidAmount.Equal(d("10")))

	_, err = f.svc.RecordPayment(ctx, f.principal, uuid.New(), RecordPaymentRequest{Amount: d("10")}, "retry-2")
	require.ErrorIs(t, err, ErrInvoiceNotFound)
	_, err = f.svc.RecordPayment(ctx, f.principal, inv.ID, RecordPaymentRequest{Amount: d("10")}, "retry-2")
	require.NoError(t, err)
}

func TestSendInvoiceEnqueuesEmail(t *testing.T) {
	f := newFixture(t)
	inv := f.createInvoice(t)

	sent, err := f.svc.Send(context.Background(), f.principal, inv.ID, SendInvoiceRequest{
		RecipientEmail: "owner@example.com",
		RecipientName:  "Sam",
	})
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)
	require.NotNil(t, sent.SentDate)
	require.Equal(t, inv.TotalAmount.String(), sent.TotalAmount.String())

	require.Len(t, f.email.payloads, 1)
	payload := f.email.payloads[0]
	require.Equal(t, "owner@example.com", payload.RecipientEmail)
	require.Equal(t, inv.InvoiceNumber, payload.InvoiceNumber)
	require.Equal(t, "140.4", payload.TotalAmount)

	_, err = f.svc.Send(context.Background(), f.principal, inv.ID, SendInvoiceRequest{})
	require.NoError(t, err)
	require.Len(t, f.email.payloads, 1)

	_, err = f.svc.Send(context.Background(), f.principal, inv.ID, SendInvoiceRequest{RecipientEmail: "not-an-email"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteInvoiceOnlyUnpaidDrafts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := f.createInvoice(t)
	require.NoError(t, f.svc.Delete(ctx, f.principal, draft.ID))
	_, err := f.svc.Get(ctx, f.principal.AccountID, draft.ID)
	require.ErrorIs(t, err, ErrInvoiceNotFound)

	paid := f.createInvoice(t)
	_, err = f.svc.RecordPayment(ctx, f.principal, paid.ID, RecordPaymentRequest{Amount: d("1")}, "")
	require.NoError(t, err)
	require.ErrorIs(t, f.svc.Delete(ctx, f.principal, paid.ID), ErrInvoiceLocked)

	sent := f.createInvoice(t)
	_, err = f.svc.Send(ctx, f.principal, sent.ID, SendInvoiceRequest{})
	require.NoError(t, err)
	require.ErrorIs(t, f.svc.Delete(ctx, f.principal, sent.ID), httpx.ErrConflict)
}

func TestSendKeepsPaidInvoicePaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t)
	_, err := f.svc.RecordPayment(ctx, f.principal, inv.ID, RecordPaymentRequest{Amount: d("140.4")}, "")
	require.NoError(t, err)

	resent, err := f.svc.Send(ctx, f.principal, inv.ID, SendInvoiceRequest{RecipientEmail: "pat@example.com"})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, resent.Status)
	require.NotNil(t, resent.SentDate)
	require.True(t, resent.PaidAmount.Equal(d("140.4")))
	require.Len(t, f.email.payloads, 1)
}

func TestSweepOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	late, err := f.svc.Create(ctx, f.principal, CreateInvoiceRequest{JobID: f.job.ID, MaterialCost: dp("100"), DueDate: &past})
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, f.principal, late.ID, SendInvoiceRequest{})
	require.NoError(t, err)

	settled, err := f.svc.Create(ctx, f.principal, CreateInvoiceRequest{JobID: f.job.ID, MaterialCost: dp("100"), DueDate: &past})
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, f.principal, settled.ID, SendInvoiceRequest{})
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, f.principal, settled.ID, RecordPaymentRequest{Amount: d("108")}, "")
	require.NoError(t, err)

	draft, err := f.svc.Create(ctx, f.principal, CreateInvoiceRequest{JobID: f.job.ID, MaterialCost: dp("100"), DueDate: &past})
	require.NoError(t, err)

	n, err := f.svc.SweepOverdue(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, _ := f.svc.Get(ctx, f.principal.AccountID, late.ID)
	require.Equal(t, StatusOverdue, got.Status)
	got, _ = f.svc.Get(ctx, f.principal.AccountID, settled.ID)
	require.Equal(t, StatusPaid, got.Status)
	got, _ = f.svc.Get(ctx, f.principal.AccountID, draft.ID)
	require.Equal(t, StatusDraft, got.Status)
}

func TestLatestForJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, ok, err := f.svc.LatestForJob(ctx, f.principal.AccountID, f.job.ID)
	require.NoError(t, err)
	require.False(t, ok)

	f.createInvoice(t)
	second := f.createInvoice(t)
	latest, ok, err := f.svc.LatestForJob(ctx, f.principal.AccountID, f.job.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, second.ID, latest.ID)
}

func newSummaryCache(t *testing.T) *cache.Versioned {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewVersioned(client, "invoices", time.Minute)
}

func TestSummaryAggregatesAndInvalidates(t *testing.T) {
	f := newFixtureWithCache(t, newSummaryCache(t))
	ctx := context.Background()

	first := f.createInvoice(t)
	second := f.createInvoice(t)
	_, err := f.svc.Send(ctx, f.principal, second.ID, SendInvoiceRequest{})
	require.NoError(t, err)

	summary, err := f.svc.Summary(ctx, f.principal, uuid.NullUUID{})
	require.NoError(t, err)
	require.Equal(t, f.principal.AccountID, summary.AccountID)
	require.Equal(t, 2, summary.InvoiceCount)
	require.Equal(t, 1, summary.DraftCount)
	require.Equal(t, 1, summary.SentCount)
	require.InDelta(t, 280.8, summary.TotalInvoiced, 1e-9)
	require.InDelta(t, 140.4, summary.TotalOutstanding, 1e-9)
	require.Zero(t, summary.PaymentCount)

	_, err = f.svc.RecordPayment(ctx, f.principal, second.ID, RecordPaymentRequest{Amount: d("40.4")}, "")
	require.NoError(t, err)

	summary, err = f.svc.Summary(ctx, f.principal, uuid.NullUUID{UUID: f.principal.AccountID, Valid: true})
	require.NoError(t, err)
	require.Equal(t, 1, summary.PaymentCount)
	require.InDelta(t, 40.4, summary.PaymentsReceived, 1e-9)
	require.InDelta(t, 40.4, summary.TotalPaid, 1e-9)
	require.InDelta(t, 100, summary.TotalOutstanding, 1e-9)

	require.NoError(t, f.svc.Delete(ctx, f.principal, first.ID))
	summary, err = f.svc.Summary(ctx, f.principal, uuid.NullUUID{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.InvoiceCount)
}

func TestSummaryLoadOutlivesCanceledCaller(t *testing.T) {
	f := newFixtureWithCache(t, newSummaryCache(t))
	f.createInvoice(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := f.svc.Summary(ctx, f.principal, uuid.NullUUID{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.InvoiceCount)

	cached, err := f.svc.Summary(context.Background(), f.principal, uuid.NullUUID{})
	require.NoError(t, err)
	require.Equal(t, summary, cached)
}

func TestSummaryRejectsForeignAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Summary(context.Background(), f.principal, uuid.NullUUID{UUID: uuid.New(), Valid: true})
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestSummaryOverdueAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := f.clock.AddDate(0, 0, -3)

	for i := 0; i < 3; i++ {
		inv, err := f.svc.Create(ctx, f.principal, CreateInvoiceRequest{
			JobID:        f.job.ID,
			MaterialCost: dp(fmt.Sprintf("%d", 100*(i+1))),
			TaxRate:      dp("0"),
			DueDate:      &past,
		})
		require.NoError(t, err)
		_, err = f.svc.Send(ctx, f.principal, inv.ID, SendInvoiceRequest{})
		require.NoError(t, err)
	}
	_, err := f.svc.SweepOverdue(ctx)
	require.NoError(t, err)

	summary, err := f.svc.Summary(ctx, f.principal, uuid.NullUUID{})
	require.NoError(t, err)
	require.Equal(t, 3, summary.OverdueCount)
	require.InDelta(t, 600, summary.OverdueAmount, 1e-9)
	require.InDelta(t, 600, summary.TotalOutstanding, 1e-9)
}
