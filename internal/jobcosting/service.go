package jobcosting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldline/fieldline/internal/billing"
	"github.com/fieldline/fieldline/internal/invoices"
	"github.com/fieldline/fieldline/internal/platform/cache"
	"github.com/fieldline/fieldline/internal/platform/httpx"
	"github.com/fieldline/fieldline/internal/servicejobs"
	"github.com/fieldline/fieldline/internal/shared"
)

// JobLookup resolves the job a cost belongs to.
type JobLookup interface {
	Get(ctx context.Context, accountID, id uuid.UUID) (servicejobs.Job, error)
}

// InvoiceLookup finds the invoice that prices a job.
type InvoiceLookup interface {
	LatestForJob(ctx context.Context, accountID, jobID uuid.UUID) (invoices.Invoice, bool, error)
}

// Service coordinates job cost operations.
type Service struct {
	repo     Repository
	jobs     JobLookup
	invoices InvoiceLookup
	audit    shared.AuditRecorder
	cache    *cache.Versioned
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service. A nil cache disables overview caching.
func NewService(repo Repository, lookup JobLookup, invoiceLookup InvoiceLookup, audit shared.AuditRecorder, overviews *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		jobs:     lookup,
		invoices: invoiceLookup,
		audit:    audit,
		cache:    overviews,
		logger:   logger,
		now:      time.Now,
	}
}

// Create records a cost against a job in the caller's account.
func (s *Service) Create(ctx context.Context, principal shared.Principal, req CreateCostRequest) (Cost, error) {
	if err := httpx.Validate(req); err != nil {
		return Cost{}, err
	}
	job, err := s.jobs.Get(ctx, principal.AccountID, req.JobID)
	if err != nil {
		return Cost{}, err
	}
	now := s.now().UTC()
	c := Cost{
		ID:          uuid.New(),
		JobID:       job.ID,
		AccountID:   job.AccountID,
		Amount:      *req.Amount,
		CostType:    billing.NormalizeCostType(req.CostType),
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Cost{}, fmt.Errorf("create job cost: %w", err)
	}
	s.invalidate(ctx)
	s.record(ctx, principal, "job_cost.created", c.ID, map[string]any{
		"job_id":    c.JobID.String(),
		"cost_type": c.CostType,
		"amount":    c.Amount.String(),
	})
	return c, nil
}

// Get returns a cost visible to the account.
func (s *Service) Get(ctx context.Context, accountID, id uuid.UUID) (Cost, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Cost{}, err
	}
	if c.AccountID != accountID {
		return Cost{}, ErrCostNotFound
	}
	return c, nil
}

// List returns a page of the account's costs.
func (s *Service) List(ctx context.Context, req ListCostsRequest, page, perPage int) (shared.Page[CostResponse], error) {
	p := shared.NewPagination(page, perPage, 0)
	req.Limit = p.PerPage
	req.Offset = p.Offset()
	items, total, err := s.repo.List(ctx, req)
	if err != nil {
		return shared.Page[CostResponse]{}, fmt.Errorf("list job costs: %w", err)
	}
	data := make([]CostResponse, 0, len(items))
	for _, c := range items {
		data = append(data, ToResponse(c))
	}
	return shared.Page[CostResponse]{Data: data, Pagination: shared.NewPagination(p.Page, p.PerPage, total)}, nil
}

// Update applies a partial change to a cost.
func (s *Service) Update(ctx context.Context, principal shared.Principal, id uuid.UUID, req UpdateCostRequest) (Cost, error) {
	if err := httpx.Validate(req); err != nil {
		return Cost{}, err
	}
	c, err := s.Get(ctx, principal.AccountID, id)
	if err != nil {
		return Cost{}, err
	}
	if req.Amount != nil {
		c.Amount = *req.Amount
	}
	if req.CostType != nil {
		c.CostType = billing.NormalizeCostType(*req.CostType)
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		return Cost{}, fmt.Errorf("update job cost: %w", err)
	}
	s.invalidate(ctx)
	s.record(ctx, principal, "job_cost.updated", c.ID, map[string]any{"amount": c.Amount.String(), "cost_type": c.CostType})
	return c, nil
}

// Delete removes a cost.
func (s *Service) Delete(ctx context.Context, principal shared.Principal, id uuid.UUID) error {
	if _, err := s.Get(ctx, principal.AccountID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, principal, "job_cost.deleted", id, nil)
	return nil
}

// Analysis totals a job's costs and compares them to its latest invoice, or to
// a marked-up estimate when the job has not been invoiced.
func (s *Service) Analysis(ctx context.Context, accountID, jobID uuid.UUID) (Analysis, error) {
	job, err := s.jobs.Get(ctx, accountID, jobID)
	if err != nil {
		return Analysis{}, err
	}
	entries, err := s.repo.Entries(ctx, accountID, uuid.NullUUID{UUID: jobID, Valid: true})
	if err != nil {
		return Analysis{}, fmt.Errorf("load job costs: %w", err)
	}
	summary := billing.SummarizeCosts(entries)

	out := Analysis{
		JobID:     job.ID,
		JobTitle:  job.Title,
		TotalCost: summary.Total.InexactFloat64(),
		CostCount: summary.Entries,
		ByType:    breakdown(summary.ByType),
	}

	var invoiceTotal *decimal.Decimal
	if s.invoices != nil {
		inv, ok, err := s.invoices.LatestForJob(ctx, accountID, jobID)
		if err != nil {
			return Analysis{}, fmt.Errorf("load job invoice: %w", err)
		}
		if ok {
			total := inv.TotalAmount
			invoiceTotal = &total
			id := inv.ID
			f := total.InexactFloat64()
			out.InvoiceID = &id
			out.InvoiceNumber = inv.InvoiceNumber
			out.InvoiceTotal = &f
		}
	}

	p := billing.EstimateProfitability(summary.Total, invoiceTotal)
	out.EstimatedRevenue = p.Revenue.InexactFloat64()
	out.EstimatedProfit = p.Profit.InexactFloat64()
	out.ProfitMargin = p.Margin.InexactFloat64()
	out.RevenueEstimated = p.Estimated
	return out, nil
}

// Overview summarises all of the account's costs.
func (s *Service) Overview(ctx context.Context, accountID uuid.UUID) (Overview, error) {
	var out Overview
	err := s.cache.FetchJSON(ctx, &out, func(ctx context.Context) (any, error) {
		entries, err := s.repo.Entries(ctx, accountID, uuid.NullUUID{})
		if err != nil {
			return nil, err
		}
		summary := billing.SummarizeCosts(entries)
		return Overview{
			TotalCost:         summary.Total.InexactFloat64(),
			EntryCount:        summary.Entries,
			JobCount:          summary.Jobs,
			AverageCostPerJob: summary.AveragePerJob().InexactFloat64(),
			ByType:            breakdown(summary.ByType),
		}, nil
	}, "overview", accountID.String())
	if err != nil {
		return Overview{}, fmt.Errorf("job cost overview: %w", err)
	}
	return out, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("invalidate job cost overview failed", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, principal shared.Principal, action string, id uuid.UUID, meta map[string]any) {
	shared.RecordBestEffort(ctx, s.audit, s.logger, shared.AuditLog{
		AccountID: principal.AccountID,
		ActorID:   principal.UserID,
		Action:    action,
		Entity:    "job_cost",
		EntityID:  id.String(),
		Meta:      meta,
	})
}
